package statusapi

import (
	"net/http"

	"github.com/dom/chess-lobby-client/internal/api"
	"github.com/dom/chess-lobby-client/internal/lobby"
	"github.com/dom/chess-lobby-client/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the local HTTP surface the rendering layer observes:
// the lobby list, the current join request and countdown, notifications,
// connection status, and the imperative game actions.
func NewRouter(sup *lobby.Supervisor, st *lobby.Store, neg *lobby.Negotiator, notifs *lobby.Notifications, actions *api.Client, archive *store.Archive) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	h := NewHandler(sup, st, neg, notifs, actions, archive)

	r.Get("/status", h.Status)
	r.Get("/lobby", h.Lobby)

	r.Route("/request", func(r chi.Router) {
		r.Get("/", h.CurrentRequest)
		r.Post("/accept", h.AcceptRequest)
		r.Post("/reject", h.RejectRequest)
	})

	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.Notifications)
		r.Delete("/", h.ClearNotifications)
		r.Delete("/{index}", h.DismissNotification)
	})

	r.Route("/games", func(r chi.Router) {
		r.Post("/", h.CreateGame)
		r.Post("/{id}/join", h.JoinGame)
		r.Post("/{id}/cancel", h.CancelGame)
		r.Post("/{id}/leave", h.LeaveGame)
		r.Post("/{id}/resign", h.ResignGame)
		r.Post("/{id}/offer-draw", h.OfferDraw)
		r.Post("/{id}/respond-draw", h.RespondDraw)
	})

	r.Get("/archive", h.Archive)

	return r
}
