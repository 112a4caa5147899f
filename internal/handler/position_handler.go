package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/roombook/internal/catalog"
	"github.com/hitoshi/roombook/internal/middleware"
	"github.com/hitoshi/roombook/internal/model"
)

// maxSuggestLimit はlimitパラメータの上限。
const maxSuggestLimit = 50

// PositionHandler は地点候補のHTTPハンドラー。
type PositionHandler struct {
	catalog    CatalogService
	maxResults int
	logger     *slog.Logger
}

// NewPositionHandler はPositionHandlerを生成する。
func NewPositionHandler(catalog CatalogService, maxResults int, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{catalog: catalog, maxResults: maxResults, logger: logger}
}

// Suggest は入力中の地点の候補を返す。
// GET /api/positions?q=&limit=
func (h *PositionHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	limit := h.maxResults
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidIDError("limit", v))
			return
		}
		limit = min(n, maxSuggestLimit)
	}

	suggestions, err := h.catalog.Suggest(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": suggestions})
}

// Get はスラッグに対応する地点を返す。
// GET /api/positions/{slug}
func (h *PositionHandler) Get(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	p, err := h.catalog.BySlug(r.Context(), slug)
	if errors.Is(err, catalog.ErrLocationNotFound) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewLocationNotFoundError(slug))
		return
	}
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
