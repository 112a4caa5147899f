package handler

import (
	"log/slog"
	"net/http"
)

// GeocodeHandler は地図表示用の座標検索のHTTPハンドラー。
type GeocodeHandler struct {
	geocoder Geocoder
	logger   *slog.Logger
}

// NewGeocodeHandler はGeocodeHandlerを生成する。
func NewGeocodeHandler(geocoder Geocoder, logger *slog.Logger) *GeocodeHandler {
	return &GeocodeHandler{geocoder: geocoder, logger: logger}
}

// Lookup は都市名の座標を返す。見つからない場合は既定座標（fallback: true）。
// GET /api/geocode?city=
func (h *GeocodeHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	coords, err := h.geocoder.Lookup(r.Context(), r.URL.Query().Get("city"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, coords)
}

// Health はヘルスチェックに応答する。
// GET /health
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
