package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestEgressGuard_NewClient(t *testing.T) {
	guard := NewEgressGuard()
	client := guard.NewClient(3 * time.Second)

	if client.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Error("接続先を検証するTransportが設定されているべき")
	}
}

// httptestサーバーは127.0.0.1で起動するため接続は拒否される。
func TestEgressGuard_NewClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewEgressGuard().NewClient(3 * time.Second)
	resp, err := client.Get(ts.URL)
	if err == nil {
		resp.Body.Close()
		t.Fatal("ループバックへの接続はエラーになるべき")
	}
}

func TestEgressGuard_ValidateEndpoint(t *testing.T) {
	guard := NewEgressGuard()

	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://nominatim.openstreetmap.org/search", false},
		{"http://geocode.example.com/search", false},
		{"", true},
		{"ftp://geocode.example.com/search", true},
		{"https:///search", true},
		{"http://localhost:8080/search", true},
		{"http://LOCALHOST/search", true},
		{"http://127.0.0.1/search", true},
		{"http://10.0.0.5/search", true},
		{"http://172.16.3.4/search", true},
		{"http://192.168.1.100/search", true},
		{"http://169.254.169.254/latest/meta-data", true},
		{"http://0.0.0.0/search", true},
		{"http://[::1]/search", true},
		{"http://[fd00::1]/search", true},
		{"http://8.8.8.8/search", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := guard.ValidateEndpoint(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEndpoint(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}
