package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/specmon/internal/viewservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *viewservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)
	sh := NewSnapshotHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Render state.
	r.Get("/state", h.GetState)
	r.Get("/frame.png", h.GetFrameImage)
	r.Get("/matrix", h.GetMatrix)
	r.Get("/traces", h.GetTraces)

	// Contrast controls.
	r.Get("/params", h.GetParams)
	r.Put("/params", h.PutParams)

	// Render history.
	r.Get("/history", h.ListHistory)
	r.Get("/history/{seq}", h.GetHistory)

	r.Get("/status", h.GetStatus)

	// Snapshots.
	r.Post("/snapshots", sh.Create)
	r.Get("/snapshots/{filename}", sh.ServeFile)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
