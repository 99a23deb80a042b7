package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/specmon/internal/viewservice"
)

// SnapshotHandler saves and serves rendered PNG snapshots.
type SnapshotHandler struct {
	svc *viewservice.Service
}

// NewSnapshotHandler creates a snapshot handler.
func NewSnapshotHandler(svc *viewservice.Service) *SnapshotHandler {
	return &SnapshotHandler{svc: svc}
}

// Create handles POST /api/snapshots.
//
//	@Summary		Save the current render as PNG
//	@Tags			snapshots
//	@Produce		json
//	@Success		201	{object}	SnapshotResponse
//	@Security		BearerAuth
//	@Router			/snapshots [post]
func (h *SnapshotHandler) Create(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.SaveSnapshot(r.Context())
	if err != nil {
		writeError(w, "save snapshot", err)
		return
	}
	writeJSON(w, http.StatusCreated, SnapshotResponse{
		Filename: snap.Filename,
		Size:     snap.Size,
		Seq:      snap.Seq,
		URL:      snap.URL,
	})
}

// ServeFile handles GET /api/snapshots/{filename}.
func (h *SnapshotHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	abs, err := h.svc.SnapshotPath(chi.URLParam(r, "filename"))
	if err != nil {
		writeError(w, "serve snapshot", err)
		return
	}
	http.ServeFile(w, r, abs)
}
