package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/roombook/internal/metrics"
	"github.com/hitoshi/roombook/internal/middleware"
	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/search"
	"github.com/hitoshi/roombook/internal/session"
)

// SearchHandler は訪問者ごとの検索フォームと確定済み検索条件のHTTPハンドラー。
type SearchHandler struct {
	catalog  CatalogService
	sessions *session.Manager
	metrics  metrics.MetricsCollector
	loc      *time.Location
	logger   *slog.Logger
}

// NewSearchHandler はSearchHandlerを生成する。
// loc は日付のみの入力を解釈するタイムゾーン。
func NewSearchHandler(catalog CatalogService, sessions *session.Manager, collector metrics.MetricsCollector, loc *time.Location, logger *slog.Logger) *SearchHandler {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &SearchHandler{catalog: catalog, sessions: sessions, metrics: collector, loc: loc, logger: logger}
}

// fieldView は入力項目1つ分のレスポンス。error は操作済みの項目のみ。
type fieldView struct {
	Value   any    `json:"value"`
	Touched bool   `json:"touched"`
	Error   string `json:"error,omitempty"`
}

// draftResponse は検索フォームの状態。
type draftResponse struct {
	State    string    `json:"state"`
	Location fieldView `json:"location"`
	CheckIn  fieldView `json:"checkIn"`
	CheckOut fieldView `json:"checkOut"`
	Guests   fieldView `json:"guests"`
}

func dateValue(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return search.FormatISO(t)
}

func toDraftResponse(c *search.Coordinator) draftResponse {
	d := c.Draft()
	return draftResponse{
		State:    c.State().String(),
		Location: fieldView{Value: d.Location.Value, Touched: d.Location.Touched, Error: d.Location.VisibleErr()},
		CheckIn:  fieldView{Value: dateValue(d.CheckIn.Value), Touched: d.CheckIn.Touched, Error: d.CheckIn.VisibleErr()},
		CheckOut: fieldView{Value: dateValue(d.CheckOut.Value), Touched: d.CheckOut.Touched, Error: d.CheckOut.VisibleErr()},
		Guests:   fieldView{Value: d.Guests.Value, Touched: d.Guests.Touched, Error: d.Guests.VisibleErr()},
	}
}

// draftPatch は検索フォームの部分更新。指定された項目のみ適用する。
type draftPatch struct {
	Location *string `json:"location"`
	CheckIn  *string `json:"checkIn"`
	CheckOut *string `json:"checkOut"`
	Guests   *int    `json:"guests"`
}

// parsedPatch は日付を解釈済みの draftPatch。
type parsedPatch struct {
	draftPatch
	checkIn, checkOut time.Time
}

func (h *SearchHandler) decodePatch(w http.ResponseWriter, r *http.Request) (parsedPatch, bool) {
	var p parsedPatch
	if err := json.NewDecoder(r.Body).Decode(&p.draftPatch); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return p, false
	}
	var err error
	if p.CheckIn != nil {
		if p.checkIn, err = parseDate(*p.CheckIn, h.loc); err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidDateError(search.FieldCheckIn, *p.CheckIn))
			return p, false
		}
	}
	if p.CheckOut != nil {
		if p.checkOut, err = parseDate(*p.CheckOut, h.loc); err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidDateError(search.FieldCheckOut, *p.CheckOut))
			return p, false
		}
	}
	return p, true
}

// apply は地点→チェックイン→チェックアウト→人数の順に適用する。
func (p parsedPatch) apply(c *search.Coordinator) {
	if p.Location != nil {
		c.SetLocationText(*p.Location)
	}
	if p.CheckIn != nil {
		c.SetCheckIn(p.checkIn)
	}
	if p.CheckOut != nil {
		c.SetCheckOut(p.checkOut)
	}
	if p.Guests != nil {
		c.SetGuestCount(*p.Guests)
	}
}

func currentSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, ok := session.FromContext(r.Context())
	if !ok {
		middleware.WriteInternalServerError(w)
	}
	return s, ok
}

// GetDraft は検索フォームの状態を返す。
// GET /api/search/draft
func (h *SearchHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	var resp draftResponse
	s.WithSearch(func(c *search.Coordinator) { resp = toDraftResponse(c) })
	writeJSON(w, http.StatusOK, resp)
}

// PatchDraft は検索フォームの項目を更新する。
// PATCH /api/search/draft
func (h *SearchHandler) PatchDraft(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	p, ok := h.decodePatch(w, r)
	if !ok {
		return
	}
	var resp draftResponse
	s.WithSearch(func(c *search.Coordinator) {
		p.apply(c)
		resp = toDraftResponse(c)
	})
	writeJSON(w, http.StatusOK, resp)
}

// Commit は検索フォームを確定し、確定済み検索条件を更新する。
// ボディで項目を指定した場合は適用してから確定する。
// POST /api/search
func (h *SearchHandler) Commit(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	p, ok := h.decodePatch(w, r)
	if !ok {
		return
	}
	candidates, err := h.catalog.Candidates(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	var (
		res       search.Result
		commitErr error
	)
	s.WithSearch(func(c *search.Coordinator) {
		p.apply(c)
		res, commitErr = c.Commit(candidates)
	})

	var ce *search.CommitError
	switch {
	case commitErr == nil:
		s.Committed.Set(res.Search)
		h.metrics.RecordCommit(metrics.CommitOutcomeCommitted)
		writeJSON(w, http.StatusOK, res)
	case errors.As(commitErr, &ce):
		outcome := metrics.CommitOutcomeInvalid
		if len(ce.Validation) == 0 {
			outcome = metrics.CommitOutcomeUnresolved
		}
		h.metrics.RecordCommit(outcome)
		var text string
		s.WithSearch(func(c *search.Coordinator) { text = c.Draft().Location.Value })
		middleware.WriteCommitError(w, ce, model.NewLocationUnresolvedError(text))
	default:
		handleServiceError(w, h.logger, commitErr)
	}
}

// GetCommitted は確定済みの検索条件を返す。未確定の場合は既定値。
// GET /api/search
func (h *SearchHandler) GetCommitted(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Committed.Get())
}

// ClearCommitted は確定済みの検索条件と検索フォームを初期状態に戻す。
// DELETE /api/search
func (h *SearchHandler) ClearCommitted(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(w, r)
	if !ok {
		return
	}
	s.WithSearch(func(c *search.Coordinator) { c.Reset() })
	writeJSON(w, http.StatusOK, h.sessions.ClearSearch(s))
}
