// Package upstream は予約REST APIのクライアントを提供する。
//
// レスポンスは {statusCode, message, content} のエンベロープで返り、content を
// エンティティとしてデコードする。エンティティのフィールド名は変換しない。
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/roombook/internal/metrics"
	"github.com/hitoshi/roombook/internal/model"
)

const (
	headerTokenCybersoft = "TokenCybersoft"
	headerUserToken      = "token"
	userAgent            = "roombook/1.0"
	// maxResponseSize はレスポンスボディの最大読み取りサイズ（4MB）。
	maxResponseSize = 4 << 20
)

// Config はクライアントの接続設定。
type Config struct {
	BaseURL    string
	Token      string // TokenCybersoft ヘッダーの値
	MaxRetries int    // GET のリトライ回数
}

// Client は予約APIのクライアント。
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	maxRetries int
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
	sleep      func(ctx context.Context, d time.Duration) error // テスト用に差し替え可能
}

// NewClient は Client の新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, cfg Config, logger *slog.Logger, collector metrics.MetricsCollector) *Client {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		maxRetries: max(cfg.MaxRetries, 0),
		logger:     logger,
		metrics:    collector,
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// envelope は予約APIの共通レスポンス形式。
type envelope struct {
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Content    json.RawMessage `json:"content"`
}

// request は1回のAPI呼び出しの内容。
type request struct {
	op         string
	method     string
	path       string
	query      url.Values
	body       any
	upload     *fileUpload // 指定時は body の代わりに multipart/form-data で送る
	wantStatus int         // エンベロープの statusCode に期待する値（0は検査しない）
}

// fileUpload は multipart/form-data で送るファイル。
type fileUpload struct {
	Field    string
	Filename string
	Data     []byte
}

// avatarField はアバター画像を送るフォーム項目名。
const avatarField = "formFile"

// ListPositions は全地点を取得する。
func (c *Client) ListPositions(ctx context.Context) ([]model.Position, error) {
	var out []model.Position
	err := c.do(ctx, request{op: "ListPositions", method: http.MethodGet, path: "/api/vi-tri"}, &out)
	return nonNil(out), err
}

// ListRoomsByPosition は地点に属する部屋を取得する。
func (c *Client) ListRoomsByPosition(ctx context.Context, positionID int) ([]model.Room, error) {
	const op = "ListRoomsByPosition"
	if positionID < 1 {
		return nil, &FetchError{Op: op, Err: ErrInvalidID}
	}
	q := url.Values{}
	q.Set("maViTri", strconv.Itoa(positionID))

	var out []model.Room
	err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/api/phong-thue/lay-phong-theo-vi-tri", query: q}, &out)
	return nonNil(out), err
}

// GetRoom は部屋を取得する。
func (c *Client) GetRoom(ctx context.Context, roomID int) (model.Room, error) {
	const op = "GetRoom"
	if roomID < 1 {
		return model.Room{}, &FetchError{Op: op, Err: ErrInvalidID}
	}
	var out *model.Room
	if err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/api/phong-thue/" + strconv.Itoa(roomID)}, &out); err != nil {
		return model.Room{}, err
	}
	if out == nil {
		return model.Room{}, &FetchError{Op: op, StatusCode: http.StatusOK, Err: ErrNotFound}
	}
	return *out, nil
}

// ListBookingsByUser はユーザーの予約一覧を取得する。
func (c *Client) ListBookingsByUser(ctx context.Context, userID int) ([]model.Booking, error) {
	const op = "ListBookingsByUser"
	if userID < 1 {
		return nil, &FetchError{Op: op, Err: ErrInvalidID}
	}
	var out []model.Booking
	err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/api/dat-phong/lay-theo-nguoi-dung/" + strconv.Itoa(userID)}, &out)
	return nonNil(out), err
}

// GetUser はユーザーを取得する。
func (c *Client) GetUser(ctx context.Context, userID int) (model.User, error) {
	const op = "GetUser"
	if userID < 1 {
		return model.User{}, &FetchError{Op: op, Err: ErrInvalidID}
	}
	var out *model.User
	if err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/api/users/" + strconv.Itoa(userID)}, &out); err != nil {
		return model.User{}, err
	}
	if out == nil {
		return model.User{}, &FetchError{Op: op, StatusCode: http.StatusOK, Err: ErrNotFound}
	}
	return *out, nil
}

// ListCommentsByRoom は部屋のレビュー一覧を取得する。
func (c *Client) ListCommentsByRoom(ctx context.Context, roomID int) ([]model.Comment, error) {
	const op = "ListCommentsByRoom"
	if roomID < 1 {
		return nil, &FetchError{Op: op, Err: ErrInvalidID}
	}
	var out []model.Comment
	err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/api/binh-luan/lay-binh-luan-theo-phong/" + strconv.Itoa(roomID)}, &out)
	return nonNil(out), err
}

// CreateBooking は予約を登録する。エンベロープの statusCode が201以外は失敗とする。
func (c *Client) CreateBooking(ctx context.Context, b model.Booking) (model.Booking, error) {
	var out model.Booking
	err := c.do(ctx, request{op: "CreateBooking", method: http.MethodPost, path: "/api/dat-phong", body: b, wantStatus: http.StatusCreated}, &out)
	return out, err
}

// CreateComment はレビューを投稿する。
func (c *Client) CreateComment(ctx context.Context, cm model.PostComment) (model.Comment, error) {
	var out model.Comment
	err := c.do(ctx, request{op: "CreateComment", method: http.MethodPost, path: "/api/binh-luan", body: cm}, &out)
	return out, err
}

// UpdateUser はユーザーのプロフィールを更新し、更新後のユーザーを返す。
func (c *Client) UpdateUser(ctx context.Context, userID int, u model.UpdateUser) (model.User, error) {
	const op = "UpdateUser"
	if userID < 1 {
		return model.User{}, &FetchError{Op: op, Err: ErrInvalidID}
	}
	var out model.User
	err := c.do(ctx, request{op: op, method: http.MethodPut, path: "/api/users/" + strconv.Itoa(userID), body: u}, &out)
	return out, err
}

// UploadAvatar はログイン中ユーザーのアバター画像を登録する。
// 対象ユーザーはコンテキストのユーザートークンで決まる。
func (c *Client) UploadAvatar(ctx context.Context, filename string, data []byte) (model.User, error) {
	const op = "UploadAvatar"
	if userToken(ctx) == "" {
		return model.User{}, &FetchError{Op: op, Err: ErrMissingUserToken}
	}
	var out model.User
	err := c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   "/api/users/upload-avatar",
		upload: &fileUpload{Field: avatarField, Filename: filename, Data: data},
	}, &out)
	return out, err
}

// do はリクエストを実行し、エンベロープの content を out にデコードする。
// GET は通信エラーと 429/5xx の場合に指数バックオフでリトライする。
func (c *Client) do(ctx context.Context, r request, out any) error {
	attempts := 1
	if r.method == http.MethodGet {
		attempts += c.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			c.metrics.RecordUpstreamRetry(r.op)
			if err := c.sleep(ctx, CalculateBackoff(attempt-1)); err != nil {
				return &FetchError{Op: r.op, Err: err}
			}
		}

		retry, err := c.once(ctx, r, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
	}

	c.logger.Error("予約APIの呼び出しに失敗しました",
		slog.String("op", r.op),
		slog.String("path", r.path),
		slog.String("error", lastErr.Error()),
	)
	return lastErr
}

// once は1回分のHTTP呼び出しを行う。戻り値の bool はリトライ可能かを示す。
func (c *Client) once(ctx context.Context, r request, out any) (bool, error) {
	reqURL := c.baseURL + r.path
	if len(r.query) > 0 {
		reqURL += "?" + r.query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case r.upload != nil:
		data, ct, err := encodeMultipart(r.upload)
		if err != nil {
			return false, &FetchError{Op: r.op, Err: fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)}
		}
		body, contentType = bytes.NewReader(data), ct
	case r.body != nil:
		data, err := json.Marshal(r.body)
		if err != nil {
			return false, &FetchError{Op: r.op, Err: fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)}
		}
		body, contentType = bytes.NewReader(data), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, reqURL, body)
	if err != nil {
		return false, &FetchError{Op: r.op, Err: fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(headerTokenCybersoft, c.token)
	if token := userToken(ctx); token != "" {
		req.Header.Set(headerUserToken, token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordUpstreamRequest(r.op, 0, time.Since(start))
		return true, &FetchError{Op: r.op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	c.metrics.RecordUpstreamRequest(r.op, resp.StatusCode, time.Since(start))
	if err != nil {
		return true, &FetchError{Op: r.op, StatusCode: resp.StatusCode, Err: fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)}
	}

	var env envelope
	decodeErr := json.Unmarshal(data, &env)

	switch ClassifyStatus(resp.StatusCode) {
	case OutcomeRetry:
		return true, &FetchError{Op: r.op, StatusCode: resp.StatusCode, Message: env.Message, Err: ErrUnexpectedStatus}
	case OutcomeFail:
		sentinel := ErrUnexpectedStatus
		if resp.StatusCode == http.StatusNotFound {
			sentinel = ErrNotFound
		}
		return false, &FetchError{Op: r.op, StatusCode: resp.StatusCode, Message: contentMessage(env), Err: sentinel}
	}

	if decodeErr != nil {
		return false, &FetchError{Op: r.op, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %v", ErrDecode, decodeErr)}
	}
	if r.wantStatus != 0 && env.StatusCode != r.wantStatus {
		return false, &FetchError{Op: r.op, StatusCode: env.StatusCode, Message: env.Message, Err: ErrUnexpectedStatus}
	}
	if out == nil || len(env.Content) == 0 || string(env.Content) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(env.Content, out); err != nil {
		return false, &FetchError{Op: r.op, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %v", ErrDecode, err)}
	}
	return false, nil
}

// encodeMultipart はファイルを1つだけ含む multipart/form-data を生成する。
func encodeMultipart(f *fileUpload) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(f.Field, f.Filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(f.Data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// contentMessage はエラーレスポンスのメッセージを返す。
// 上流は content に詳細な文字列を入れることがあるため、それを優先する。
func contentMessage(env envelope) string {
	var s string
	if len(env.Content) > 0 && json.Unmarshal(env.Content, &s) == nil && s != "" {
		return s
	}
	return env.Message
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// StatusCode は err に含まれる上流のステータスコードを返す。含まれない場合は0。
func StatusCode(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}
