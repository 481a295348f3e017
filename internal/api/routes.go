package api

import "github.com/go-chi/chi/v5"

func RegisterRoutes(mux *chi.Mux, h *Handlers) {
	mux.Get("/healthz", h.Health)
	mux.Get("/version", h.Version)

	mux.Post("/api/chat", h.Chat)
	mux.Get("/api/models", h.ListModels)

	mux.Route("/api/conversations", func(r chi.Router) {
		r.Get("/", h.ListConversations)
		r.Post("/", h.CreateConversation)
		r.Get("/{id}", h.GetConversation)
		r.Post("/{id}/messages", h.SendMessage)
		r.Put("/{id}/input", h.SaveInput)
	})
	mux.Get("/ws/conversations/{id}", h.Stream)

	if h.Gifs != nil {
		mux.Post("/api/gif-answer", h.GifAnswer)
	}
	if h.Admin != nil {
		mux.Post("/admin/conversations/{id}/analyze", h.Admin.Analyze)
	}
}
