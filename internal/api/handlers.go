package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/specmon/internal/viewservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *viewservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *viewservice.Service) *Handler {
	return &Handler{svc: svc}
}

// GetState handles GET /api/state.
//
//	@Summary		Current render state
//	@Tags			render
//	@Produce		json
//	@Success		200	{object}	StateResponse
//	@Security		BearerAuth
//	@Router			/state [get]
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.State(r.Context()))
}

// GetFrameImage handles GET /api/frame.png.
//
//	@Summary		Current render as PNG
//	@Tags			render
//	@Produce		png
//	@Param			width	query	int	false	"Image width in pixels"
//	@Success		200
//	@Success		304
//	@Security		BearerAuth
//	@Router			/frame.png [get]
func (h *Handler) GetFrameImage(w http.ResponseWriter, r *http.Request) {
	width := 0
	if raw := r.URL.Query().Get("width"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("width must be a positive integer"))
			return
		}
		width = n
	}

	data, etag, err := h.svc.Image(r.Context(), width)
	if err != nil {
		writeError(w, "render image", err)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// etagMatches reports whether an If-None-Match header names etag. The header
// may list several tags or "*"; weak tags compare equal to their strong form.
func etagMatches(header, etag string) bool {
	for _, tag := range strings.Split(header, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" || (tag != "" && strings.TrimPrefix(tag, "W/") == strings.TrimPrefix(etag, "W/")) {
			return true
		}
	}
	return false
}

// GetMatrix handles GET /api/matrix.
//
//	@Summary		Current display matrix (heatmap mode)
//	@Tags			render
//	@Produce		json
//	@Success		200	{object}	models.DisplayMatrix
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/matrix [get]
func (h *Handler) GetMatrix(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Matrix(r.Context())
	if err != nil {
		writeError(w, "get matrix", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// GetTraces handles GET /api/traces.
//
//	@Summary		Current trace set (trace mode)
//	@Tags			render
//	@Produce		json
//	@Success		200	{object}	TracesResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/traces [get]
func (h *Handler) GetTraces(w http.ResponseWriter, r *http.Request) {
	traces, err := h.svc.Traces(r.Context())
	if err != nil {
		writeError(w, "get traces", err)
		return
	}
	writeJSON(w, http.StatusOK, TracesResponse{Traces: traces})
}

// GetParams handles GET /api/params.
//
//	@Summary		Live gain and offset
//	@Tags			params
//	@Produce		json
//	@Success		200	{object}	ParamsResponse
//	@Security		BearerAuth
//	@Router			/params [get]
func (h *Handler) GetParams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Params(r.Context()))
}

// PutParams handles PUT /api/params. Omitted fields keep their value; the
// response carries the applied (clamped) values.
//
//	@Summary		Update gain and/or offset
//	@Tags			params
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ParamsRequest	true	"New values"
//	@Success		200		{object}	ParamsResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/params [put]
func (h *Handler) PutParams(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	var req ParamsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON"))
		return
	}
	if req.Gain == nil && req.Offset == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("gain or offset is required"))
		return
	}

	p := h.svc.Params(r.Context())
	if req.Gain != nil {
		p.Gain = *req.Gain
	}
	if req.Offset != nil {
		p.Offset = *req.Offset
	}
	applied, err := h.svc.SetParams(r.Context(), p)
	if err != nil {
		writeError(w, "set params", err)
		return
	}
	writeJSON(w, http.StatusOK, applied)
}

// ListHistory handles GET /api/history.
//
//	@Summary		Recent fresh renders, newest first
//	@Tags			history
//	@Produce		json
//	@Param			limit	query		int	false	"Maximum rows"	default(50)
//	@Success		200		{object}	HistoryResponse
//	@Security		BearerAuth
//	@Router			/history [get]
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit > 1000 {
		limit = 1000
	}
	rows, err := h.svc.History(r.Context(), limit)
	if err != nil {
		writeError(w, "list history", err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Renders: rows})
}

// GetHistory handles GET /api/history/{seq}.
//
//	@Summary		One recorded render
//	@Tags			history
//	@Produce		json
//	@Param			seq	path		int	true	"Render sequence number"
//	@Success		200	{object}	history.Row
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/history/{seq} [get]
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.ParseUint(chi.URLParam(r, "seq"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("seq must be a non-negative integer"))
		return
	}
	row, err := h.svc.HistoryEntry(r.Context(), seq)
	if err != nil {
		writeError(w, "get history", err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// GetStatus handles GET /api/status.
//
//	@Summary		Session, uptime, reader counters and process usage
//	@Tags			status
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Security		BearerAuth
//	@Router			/status [get]
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status(r.Context()))
}
