package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/roster/internal/catalog"
	"github.com/starford/roster/internal/thumbnail"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(engine *catalog.Engine, thumbs thumbnail.Resolver, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(engine, thumbs)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/characters", func(r chi.Router) {
		r.Get("/", h.ListCharacters)
		r.Post("/", h.CreateCharacter)
		r.Post("/more", h.LoadMore)
		r.Get("/export", h.ExportCharacters)
		r.Get("/{id}", h.GetCharacter)
		r.Put("/{id}", h.UpdateCharacter)
		r.Delete("/{id}", h.DeleteCharacter)
		r.Get("/{id}/comics", h.ListComics)
	})

	r.Post("/query/search", h.Search)
	r.Post("/query/next", h.NextPage)
	r.Post("/query/previous", h.PreviousPage)
	r.Post("/query/page/{n}", h.GoToPage)
	r.Get("/state", h.State)

	r.Post("/sessions", h.SaveSession)
	r.Post("/sessions/{token}/restore", h.RestoreSession)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
