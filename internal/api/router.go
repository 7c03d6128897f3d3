package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/float/internal/blockservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *blockservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Blocks.
	r.Get("/blocks", h.ListBlocks)
	r.Post("/blocks", h.CreateBlock)
	r.Get("/blocks/{id}", h.GetBlock)
	r.Put("/blocks/{id}", h.UpdateBlock)
	r.Post("/blocks/{id}/execute", h.ExecuteBlock)
	r.Get("/blocks/{id}/runs", h.BlockRuns)
	r.Get("/tree", h.Tree)

	// Search.
	r.Get("/search", h.Search)

	// Reference graph.
	r.Get("/nodes", h.ListNodes)
	r.Post("/nodes/{id}/inject", h.InjectNode)
	r.Get("/graph", h.Graph)
	r.Get("/stats", h.Stats)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
