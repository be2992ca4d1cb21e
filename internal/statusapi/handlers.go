package statusapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/dom/chess-lobby-client/internal/api"
	"github.com/dom/chess-lobby-client/internal/domain"
	"github.com/dom/chess-lobby-client/internal/lobby"
	"github.com/dom/chess-lobby-client/internal/store"
	"github.com/go-chi/chi/v5"
)

// Handler serves the local observable state and proxies game actions to
// the remote server, surfacing per-call failures so the UI can retry.
type Handler struct {
	sup     *lobby.Supervisor
	store   *lobby.Store
	neg     *lobby.Negotiator
	notifs  *lobby.Notifications
	actions *api.Client
	archive *store.Archive
}

// NewHandler wires the handler to the client core
func NewHandler(sup *lobby.Supervisor, st *lobby.Store, neg *lobby.Negotiator, notifs *lobby.Notifications, actions *api.Client, archive *store.Archive) *Handler {
	return &Handler{
		sup:     sup,
		store:   st,
		neg:     neg,
		notifs:  notifs,
		actions: actions,
		archive: archive,
	}
}

type StatusResponse struct {
	Connected bool   `json:"connected"`
	ViewerID  string `json:"viewerId"`
}

type LobbyResponse struct {
	Games   []domain.Game `json:"games"`
	Version uint64        `json:"version"`
}

type RequestResponse struct {
	Request   *domain.JoinRequest `json:"request"`
	State     domain.RequestState `json:"state"`
	Remaining int                 `json:"remainingSeconds"`
	Deciding  bool                `json:"deciding"`
}

type CreateGameBody struct {
	TimeControl int    `json:"timeControl"`
	IsPrivate   bool   `json:"isPrivate"`
	Password    string `json:"password,omitempty"`
}

type JoinGameBody struct {
	Password string `json:"password,omitempty"`
}

type RespondDrawBody struct {
	Accept bool `json:"accept"`
}

// Status reports the connection state
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, StatusResponse{
		Connected: h.sup.Connected(),
		ViewerID:  h.sup.ViewerID(),
	})
}

// Lobby returns the deduplicated session list, newest creations first
func (h *Handler) Lobby(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, LobbyResponse{
		Games:   h.store.Games(),
		Version: h.store.Version(),
	})
}

// CurrentRequest returns the pending join request plus countdown
func (h *Handler) CurrentRequest(w http.ResponseWriter, r *http.Request) {
	resp := RequestResponse{
		State:     h.neg.State(),
		Remaining: h.neg.Remaining(),
		Deciding:  h.neg.Deciding(),
	}
	if req, ok := h.neg.Current(); ok {
		resp.Request = &req
	}
	writeJSON(w, resp)
}

// AcceptRequest accepts the pending join request
func (h *Handler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.neg.Accept(r.Context()); err != nil {
		writeNegotiationError(w, err)
		return
	}
	writeJSON(w, map[string]string{"result": "accepted"})
}

// RejectRequest rejects the pending join request
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.neg.Reject(r.Context()); err != nil {
		writeNegotiationError(w, err)
		return
	}
	writeJSON(w, map[string]string{"result": "rejected"})
}

// Notifications returns the undismissed notification log
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.notifs.List())
}

// DismissNotification removes one notification by its current index
func (h *Handler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "Invalid notification index", http.StatusBadRequest)
		return
	}
	h.notifs.Dismiss(index)
	w.WriteHeader(http.StatusNoContent)
}

// ClearNotifications drops the whole log
func (h *Handler) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	h.notifs.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// CreateGame creates a session on the remote server. The store is not
// touched here; the created event reconciles it.
func (h *Handler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var body CreateGameBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.TimeControl <= 0 {
		http.Error(w, "timeControl must be positive", http.StatusBadRequest)
		return
	}

	game, err := h.actions.CreateGame(r.Context(), domain.CreateGameRequest{
		TimeControl: body.TimeControl,
		IsPrivate:   body.IsPrivate,
		Password:    body.Password,
	})
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, game)
}

// JoinGame requests to join a session
func (h *Handler) JoinGame(w http.ResponseWriter, r *http.Request) {
	// An empty body is fine (public games); chunked requests report no
	// ContentLength, so only a decode failure on actual content is an error.
	var body JoinGameBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err != io.EOF {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	game, err := h.actions.JoinGame(r.Context(), chi.URLParam(r, "id"), body.Password)
	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, game)
}

// CancelGame cancels a session the viewer created
func (h *Handler) CancelGame(w http.ResponseWriter, r *http.Request) {
	if err := h.actions.CancelGame(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeActionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LeaveGame withdraws the viewer from a session
func (h *Handler) LeaveGame(w http.ResponseWriter, r *http.Request) {
	if err := h.actions.LeaveGame(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeActionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResignGame resigns an in-progress session
func (h *Handler) ResignGame(w http.ResponseWriter, r *http.Request) {
	if err := h.actions.ResignGame(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeActionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// OfferDraw offers the opponent a draw
func (h *Handler) OfferDraw(w http.ResponseWriter, r *http.Request) {
	if err := h.actions.OfferDraw(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeActionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RespondDraw answers a draw offer
func (h *Handler) RespondDraw(w http.ResponseWriter, r *http.Request) {
	var body RespondDrawBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.actions.RespondDraw(r.Context(), chi.URLParam(r, "id"), body.Accept); err != nil {
		writeActionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Archive returns recently recorded outcomes
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeJSON(w, []store.FinishedGame{})
		return
	}

	records, err := h.archive.Recent(r.Context(), 50)
	if err != nil {
		log.Printf("ERROR [Handler.Archive] failed to read archive: %v", err)
		http.Error(w, "Failed to read archive", http.StatusInternalServerError)
		return
	}
	writeJSON(w, records)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeNegotiationError maps negotiator errors onto statuses the UI can
// distinguish: already-resolved races are conflicts, not failures.
func writeNegotiationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNoPendingRequest):
		http.Error(w, "No pending join request", http.StatusNotFound)
	case errors.Is(err, domain.ErrRequestAlreadyResolved):
		http.Error(w, "Join request already resolved", http.StatusConflict)
	case errors.Is(err, domain.ErrDecisionInFlight):
		http.Error(w, "A decision is already in flight", http.StatusConflict)
	default:
		writeActionError(w, err)
	}
}

// writeActionError surfaces a remote action failure with the server's
// status and message so the caller can show a retry affordance.
func writeActionError(w http.ResponseWriter, err error) {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		http.Error(w, apiErr.Message, apiErr.Status)
		return
	}
	http.Error(w, err.Error(), http.StatusBadGateway)
}
