package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/f1bet-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса f1bet.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/ping", h.Ping)

	r.Get("/events", h.GetEvents)

	r.Route("/bets", func(r chi.Router) {
		r.Post("/", h.PlaceBet)
		r.Get("/", h.GetBetsByEvent)
	})

	r.Post("/event-outcomes", h.ProcessEventOutcome)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "Resource not found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}
