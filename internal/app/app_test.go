package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/roombook/internal/config"
	"github.com/hitoshi/roombook/internal/model"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{"引数なしはserve", nil, CommandServe},
		{"serve", []string{"serve"}, CommandServe},
		{"suggest", []string{"suggest"}, CommandSuggest},
		{"healthcheck", []string{"healthcheck"}, CommandHealthcheck},
		{"未知のコマンドはserve", []string{"unknown"}, CommandServe},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCommand(tt.args); got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestInit_ValidConfig(t *testing.T) {
	t.Setenv("BOOKING_API_URL", "https://booking.example.com/api/")
	t.Setenv("BOOKING_API_TOKEN", "token")
	t.Setenv("LOG_LEVEL", "debug")

	var buf bytes.Buffer
	cfg, log, err := Init(&buf)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if cfg.BookingAPIURL != "https://booking.example.com/api" {
		t.Errorf("BookingAPIURL = %q", cfg.BookingAPIURL)
	}

	log.Debug("debug message")
	if !strings.Contains(buf.String(), "debug message") {
		t.Errorf("LOG_LEVEL=debug のログが出力されていない: %s", buf.String())
	}
}

func TestInit_MissingRequired(t *testing.T) {
	t.Setenv("BOOKING_API_URL", "")
	t.Setenv("BOOKING_API_TOKEN", "")

	var buf bytes.Buffer
	_, log, err := Init(&buf)
	if err == nil {
		t.Fatal("必須の環境変数がない場合はエラーになるべき")
	}
	if log == nil {
		t.Error("エラー時もロガーを返すべき")
	}
	if !strings.Contains(err.Error(), "BOOKING_API_URL") {
		t.Errorf("error = %v, want mention of BOOKING_API_URL", err)
	}
}

func TestInit_InvalidLogLevelFallsBackToInfo(t *testing.T) {
	t.Setenv("BOOKING_API_URL", "https://booking.example.com")
	t.Setenv("BOOKING_API_TOKEN", "token")
	t.Setenv("LOG_LEVEL", "verbose")

	var buf bytes.Buffer
	_, log, err := Init(&buf)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	log.Debug("hidden")
	log.Info("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info レベルでは debug ログを出力しないべき")
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "verbose") {
		t.Errorf("unexpected log output: %s", out)
	}
}

func TestCheckHealth(t *testing.T) {
	t.Run("200はnil", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/health" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		if err := checkHealth(context.Background(), srv.URL+"/health"); err != nil {
			t.Errorf("checkHealth() error = %v", err)
		}
	})

	t.Run("503はエラー", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		err := checkHealth(context.Background(), srv.URL+"/health")
		if err == nil || !strings.Contains(err.Error(), "503") {
			t.Errorf("checkHealth() error = %v, want status 503", err)
		}
	})

	t.Run("接続失敗はエラー", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		url := srv.URL + "/health"
		srv.Close()

		if err := checkHealth(context.Background(), url); err == nil {
			t.Error("停止したサーバーへのヘルスチェックはエラーになるべき")
		}
	})
}

func testConfig(geocodeURL string, allowPrivate bool) *config.Config {
	return &config.Config{
		BookingAPIURL:       "https://booking.example.com/api",
		BookingAPIToken:     "token",
		UpstreamTimeout:     time.Second,
		CacheTTL:            time.Minute,
		LoaderConcurrency:   4,
		GeocodeURL:          geocodeURL,
		GeocodeCountry:      "vn",
		GeocodeRatePerSec:   1,
		GeocodeCacheTTL:     time.Hour,
		GeocodeAllowPrivate: allowPrivate,
		SearchMaxResults:    10,
		Timezone:            time.UTC,
		SessionTTL:          time.Hour,
	}
}

func TestBuild_RejectsPrivateGeocoder(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	_, err := build(context.Background(), testConfig("http://localhost:8088/search", false), log)
	if err == nil || !strings.Contains(err.Error(), "GEOCODE_URL") {
		t.Fatalf("build() error = %v, want GEOCODE_URL error", err)
	}

	c, err := build(context.Background(), testConfig("http://localhost:8088/search", true), log)
	if err != nil {
		t.Fatalf("GEOCODE_ALLOW_PRIVATE=true では内部のジオコーダーを許可すべき: %v", err)
	}
	defer c.Close()
	if c.redis != nil {
		t.Error("REDIS_URL 未設定ではRedisに接続しないべき")
	}
	// rooms, room, user, geocode の4つのメモリバックエンド
	if len(c.purgers) != 4 {
		t.Errorf("purgers = %d, want 4", len(c.purgers))
	}
	if c.catalog == nil || c.bookings == nil || c.geocoder == nil || c.upstream == nil {
		t.Errorf("components = %+v", c)
	}
}

var suggestCandidates = []model.Position{
	{ID: 1, TenViTri: "Đà Lạt", TinhThanh: "Lâm Đồng", QuocGia: "Việt Nam"},
	{ID: 2, TenViTri: "Hội An", TinhThanh: "Quảng Nam", QuocGia: "Việt Nam"},
	{ID: 3, TenViTri: "Đà Nẵng", TinhThanh: "Đà Nẵng", QuocGia: "Việt Nam"},
}

func TestRunSuggest_OnlyLastQueryIsDelivered(t *testing.T) {
	in := strings.NewReader("d\nda\nda l\n")
	var out bytes.Buffer

	// 入力の終端で保留中のクエリが即座に処理されるため、長い待ち時間でも完了する
	if err := RunSuggest(context.Background(), in, &out, suggestCandidates, time.Hour, 10); err != nil {
		t.Fatalf("RunSuggest() error = %v", err)
	}

	got := out.String()
	want := "> da l (1)\n  [Đà L]ạt, Lâm Đồng\n"
	if got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestRunSuggest_EmptyInput(t *testing.T) {
	var out bytes.Buffer
	if err := RunSuggest(context.Background(), strings.NewReader(""), &out, suggestCandidates, time.Hour, 10); err != nil {
		t.Fatalf("RunSuggest() error = %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("入力がない場合は何も出力しないべき: %q", out.String())
	}
}

func TestRunSuggest_MaxResults(t *testing.T) {
	var out bytes.Buffer
	if err := RunSuggest(context.Background(), strings.NewReader("viet\n"), &out, suggestCandidates, time.Hour, 2); err != nil {
		t.Fatalf("RunSuggest() error = %v", err)
	}
	// 表示名・省名にだけ一致するため国名の "Việt Nam" は対象外
	if got := out.String(); got != "> viet (0)\n" {
		t.Errorf("output = %q", got)
	}

	out.Reset()
	if err := RunSuggest(context.Background(), strings.NewReader("\n"), &out, suggestCandidates, time.Hour, 2); err != nil {
		t.Fatalf("RunSuggest() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 || lines[0] != ">  (2)" {
		t.Errorf("空クエリは先頭から2件を表示すべき: %q", out.String())
	}
}

// gatedWriter は最初の書き込みを release が閉じられるまで止める。
type gatedWriter struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
	writes  atomic.Int32
}

func (w *gatedWriter) Write(p []byte) (int, error) {
	w.once.Do(func() {
		close(w.started)
		<-w.release
	})
	w.writes.Add(1)
	return len(p), nil
}

func TestRunSuggest_WaitsForInFlightDelivery(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })
	go pw.Write([]byte("da\n"))

	out := &gatedWriter{started: make(chan struct{}), release: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- RunSuggest(ctx, pr, out, suggestCandidates, time.Millisecond, 10) }()

	select {
	case <-out.started:
	case <-time.After(time.Second):
		t.Fatal("候補の配信が始まらない")
	}
	cancel()

	select {
	case <-done:
		t.Fatal("配信中に RunSuggest が戻った")
	case <-time.After(30 * time.Millisecond):
	}

	close(out.release)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("RunSuggest() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("RunSuggest が戻らない")
	}
	written := out.writes.Load()
	time.Sleep(20 * time.Millisecond)
	if out.writes.Load() != written || written < 2 {
		t.Errorf("writes = %d → %d, want 戻る前にすべて書き込み済み", written, out.writes.Load())
	}
}
