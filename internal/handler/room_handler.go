package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/roombook/internal/catalog"
	"github.com/hitoshi/roombook/internal/middleware"
	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/search"
	"github.com/hitoshi/roombook/internal/session"
	"github.com/hitoshi/roombook/internal/upstream"
)

// RoomHandler は部屋とレビューのHTTPハンドラー。
type RoomHandler struct {
	catalog  CatalogService
	bookings BookingService
	logger   *slog.Logger
}

// NewRoomHandler はRoomHandlerを生成する。
func NewRoomHandler(catalog CatalogService, bookings BookingService, logger *slog.Logger) *RoomHandler {
	return &RoomHandler{catalog: catalog, bookings: bookings, logger: logger}
}

// roomListResponse は地域の部屋一覧と、一覧を開いたときの確定済み検索条件。
type roomListResponse struct {
	Position model.PositionWithSlug `json:"position"`
	Rooms    []model.Room           `json:"rooms"`
	Search   search.Committed       `json:"search"`
}

// List は地域の部屋一覧を返す。
// GET /api/rooms?location={slug}
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("location")
	if slug == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingParameterError("location"))
		return
	}

	p, rooms, err := h.catalog.RoomsByLocation(r.Context(), slug)
	if errors.Is(err, catalog.ErrLocationNotFound) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewLocationNotFoundError(slug))
		return
	}
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	resp := roomListResponse{Position: p, Rooms: rooms}
	if s, ok := session.FromContext(r.Context()); ok {
		resp.Search = s.Committed.Get()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get は部屋の詳細を返す。
// GET /api/rooms/{id}
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	room, err := h.catalog.Room(r.Context(), id)
	if upstream.IsNotFound(err) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewRoomNotFoundError(id))
		return
	}
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// Comments は部屋のレビューを新しい順に返す。
// GET /api/rooms/{id}/comments
func (h *RoomHandler) Comments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	comments, err := h.catalog.Comments(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

// PostComment はレビューを投稿する。部屋IDはパスの値を使う。
// POST /api/rooms/{id}/comments
func (h *RoomHandler) PostComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req model.PostComment
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}
	req.MaPhong = id

	created, err := h.bookings.PostComment(upstreamContext(r), req)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}
