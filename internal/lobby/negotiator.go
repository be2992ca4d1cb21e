package lobby

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dom/chess-lobby-client/internal/domain"
)

// DefaultRequestWindow is how long a join request stays open before it
// auto-rejects.
const DefaultRequestWindow = 30 * time.Second

// decisionTimeout bounds the reject call issued by the automatic
// timeout path, which runs without a caller-supplied context.
const decisionTimeout = 10 * time.Second

// GameActions is the remote decision interface the negotiator drives.
// Implementations suspend on the network; both calls return the updated
// game so the caller can feed it back through reconciliation.
type GameActions interface {
	AcceptOpponent(ctx context.Context, gameID string) (domain.Game, error)
	RejectOpponent(ctx context.Context, gameID string) (domain.Game, error)
}

// Negotiator tracks the viewer's single join-request slot and drives it
// through pending -> accepted/rejected/timed-out/superseded. At most one
// request is pending at a time; a second inbound request while one is
// pending is dropped with a diagnostic.
type Negotiator struct {
	actions   GameActions
	notifs    *Notifications
	window    time.Duration
	tickEvery time.Duration
	reconcile func(domain.Game) // feeds action results back into the store

	mu          sync.RWMutex
	current     *domain.JoinRequest
	deciding    bool
	lastOutcome domain.RequestState
	tickCancel  chan struct{}
}

// NewNegotiator creates an idle negotiator. A zero window uses
// DefaultRequestWindow.
func NewNegotiator(actions GameActions, notifs *Notifications, window time.Duration) *Negotiator {
	if window <= 0 {
		window = DefaultRequestWindow
	}
	return &Negotiator{
		actions:     actions,
		notifs:      notifs,
		window:      window,
		tickEvery:   time.Second,
		lastOutcome: domain.RequestStateIdle,
	}
}

// SetReconciler registers the callback that receives the updated game
// returned by accept/reject calls.
func (n *Negotiator) SetReconciler(fn func(domain.Game)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reconcile = fn
}

// Begin transitions idle -> pending for an inbound join request.
// Returns false if a request is already pending (the new one is dropped)
// or if the request's window has already fully elapsed.
func (n *Negotiator) Begin(req domain.JoinRequest) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.current != nil {
		log.Printf("Negotiator: dropping join request for game %s from %s, another request is pending", req.GameID, req.RequesterID)
		return false
	}

	if req.ReceivedAt.IsZero() {
		req.ReceivedAt = time.Now()
	}
	if n.remainingFor(&req) <= 0 {
		log.Printf("Negotiator: dropping already-expired join request for game %s", req.GameID)
		return false
	}

	n.current = &req
	n.lastOutcome = domain.RequestStatePending
	n.startCountdownLocked()

	log.Printf("Negotiator: join request pending for game %s from %s (%ds remaining)", req.GameID, req.RequesterID, n.remainingFor(&req))
	return true
}

// Current returns the pending join request, if any
func (n *Negotiator) Current() (domain.JoinRequest, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.current == nil {
		return domain.JoinRequest{}, false
	}
	return *n.current, true
}

// State reports pending while a request is tracked, otherwise the
// outcome of the most recently resolved request (idle before the first).
func (n *Negotiator) State() domain.RequestState {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.current != nil {
		return domain.RequestStatePending
	}
	return n.lastOutcome
}

// Remaining returns the countdown seconds left for the pending request,
// never negative. Zero when idle.
func (n *Negotiator) Remaining() int {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.current == nil {
		return 0
	}
	return n.remainingFor(n.current)
}

// Deciding reports whether an accept/reject call is in flight, so the
// UI can disable duplicate invocations.
func (n *Negotiator) Deciding() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.deciding
}

// Accept resolves the pending request by accepting the challenger.
// On action failure the request stays pending so the user can retry.
func (n *Negotiator) Accept(ctx context.Context) error {
	return n.decide(ctx, true)
}

// Reject resolves the pending request by turning the challenger away.
// On action failure the request stays pending so the user can retry.
func (n *Negotiator) Reject(ctx context.Context) error {
	return n.decide(ctx, false)
}

func (n *Negotiator) decide(ctx context.Context, accept bool) error {
	n.mu.Lock()
	if n.current == nil {
		// A decision raced against timeout/supersede and lost.
		last := n.lastOutcome
		n.mu.Unlock()
		if last != domain.RequestStateIdle && last != domain.RequestStatePending {
			return domain.ErrRequestAlreadyResolved
		}
		return domain.ErrNoPendingRequest
	}
	if n.deciding {
		n.mu.Unlock()
		return domain.ErrDecisionInFlight
	}
	n.deciding = true
	req := *n.current
	n.mu.Unlock()

	var (
		game domain.Game
		err  error
	)
	if accept {
		game, err = n.actions.AcceptOpponent(ctx, req.GameID)
	} else {
		game, err = n.actions.RejectOpponent(ctx, req.GameID)
	}

	n.mu.Lock()

	if n.current == nil || n.current.GameID != req.GameID {
		// Resolved elsewhere while the call was in flight.
		n.deciding = false
		n.mu.Unlock()
		if err == nil {
			n.feedReconciler(game)
			return nil
		}
		return domain.ErrRequestAlreadyResolved
	}

	if err != nil {
		if n.remainingFor(n.current) <= 0 {
			// The window closed while the failed call was in flight; the
			// countdown goroutine deferred to us, so run the timeout path.
			// The requester must still be told the slot is gone, even when
			// the failed call was an accept. fireTimeout clears deciding.
			n.mu.Unlock()
			n.fireTimeout(req)
			return fmt.Errorf("request window expired: %w", domain.ErrRequestAlreadyResolved)
		}
		n.deciding = false
		n.mu.Unlock()
		if accept {
			return fmt.Errorf("failed to accept opponent for game %s: %w", req.GameID, err)
		}
		return fmt.Errorf("failed to reject opponent for game %s: %w", req.GameID, err)
	}

	n.deciding = false
	if accept {
		n.resolveLocked(domain.RequestStateAccepted)
	} else {
		n.resolveLocked(domain.RequestStateRejected)
	}
	n.mu.Unlock()

	n.feedReconciler(game)
	return nil
}

// Supersede clears a pending request that concluded elsewhere (session
// cancelled, requester withdrew, stale after resync). No action call is
// issued. Returns true if a request for the given game was cleared; an
// empty gameID matches any pending request.
func (n *Negotiator) Supersede(gameID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.current == nil {
		return false
	}
	if gameID != "" && n.current.GameID != gameID {
		return false
	}

	log.Printf("Negotiator: join request for game %s superseded", n.current.GameID)
	n.resolveLocked(domain.RequestStateSuperseded)
	return true
}

// ConnectionLost clears a pending request when the transport drops.
// There is no one left to answer, so no action call is issued.
func (n *Negotiator) ConnectionLost() {
	n.mu.Lock()
	if n.current == nil {
		n.mu.Unlock()
		return
	}
	gameID := n.current.GameID
	n.resolveLocked(domain.RequestStateSuperseded)
	n.mu.Unlock()

	log.Printf("Negotiator: connection lost with request pending for game %s", gameID)
	n.notifs.Push("Connection lost while a join request was pending")
}

// Validate checks the pending request against freshly resynced lobby
// state and discards it if the session no longer has the requester
// pending. Prevents a stale modal surviving a reconnect.
func (n *Negotiator) Validate(store *Store) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.current == nil {
		return
	}

	game, ok := store.Get(n.current.GameID)
	if ok && game.HasPendingOpponent(n.current.RequesterID) {
		return
	}

	log.Printf("Negotiator: discarding stale join request for game %s after resync", n.current.GameID)
	n.resolveLocked(domain.RequestStateSuperseded)
}

// Close cancels the countdown and clears any pending request without
// issuing action calls. Used on shutdown and identity teardown.
func (n *Negotiator) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.current != nil {
		n.resolveLocked(domain.RequestStateSuperseded)
	}
}

// remainingFor computes whole seconds left in the window, clamped at
// zero. Computed from ReceivedAt every time so it is non-increasing
// even across remounts.
func (n *Negotiator) remainingFor(req *domain.JoinRequest) int {
	elapsed := time.Since(req.ReceivedAt)
	left := n.window - elapsed
	if left <= 0 {
		return 0
	}
	// Round up so the UI shows the full window at the first tick.
	return int((left + time.Second - 1) / time.Second)
}

// startCountdownLocked launches the single countdown task for the
// current request. Must be called with the lock held.
func (n *Negotiator) startCountdownLocked() {
	cancel := make(chan struct{})
	n.tickCancel = cancel
	go n.runCountdown(cancel)
}

// runCountdown ticks once a second while the request is pending and
// fires the timeout transition exactly once when the window closes.
func (n *Negotiator) runCountdown(cancel chan struct{}) {
	ticker := time.NewTicker(n.tickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-cancel:
			return
		case <-ticker.C:
			n.mu.Lock()
			if n.current == nil || n.tickCancel != cancel {
				n.mu.Unlock()
				return
			}
			if n.remainingFor(n.current) > 0 {
				n.mu.Unlock()
				continue
			}
			if n.deciding {
				// An explicit decision is in flight; let it win. Its failure
				// path completes the timeout if the call does not go through.
				n.mu.Unlock()
				return
			}
			req := *n.current
			n.deciding = true
			n.mu.Unlock()

			n.fireTimeout(req)
			return
		}
	}
}

// fireTimeout performs the automatic reject when the countdown reaches
// zero. The remote side must still be told the slot is gone, but the
// local slot clears regardless of whether that call succeeds.
func (n *Negotiator) fireTimeout(req domain.JoinRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), decisionTimeout)
	defer cancel()

	game, err := n.actions.RejectOpponent(ctx, req.GameID)
	if err != nil {
		log.Printf("ERROR [Negotiator.fireTimeout] reject call for game %s failed: %v", req.GameID, err)
	}

	n.mu.Lock()
	n.deciding = false
	if n.current != nil && n.current.GameID == req.GameID {
		n.resolveLocked(domain.RequestStateTimedOut)
	}
	n.mu.Unlock()

	n.notifs.Push("Join request timed out")
	if err == nil {
		n.feedReconciler(game)
	}
}

// resolveLocked finishes the pending request with the given outcome and
// cancels the countdown. Must be called with the lock held.
func (n *Negotiator) resolveLocked(outcome domain.RequestState) {
	if n.tickCancel != nil {
		close(n.tickCancel)
		n.tickCancel = nil
	}
	n.current = nil
	n.lastOutcome = outcome
}

func (n *Negotiator) feedReconciler(game domain.Game) {
	n.mu.RLock()
	fn := n.reconcile
	n.mu.RUnlock()

	if fn != nil && game.ID != "" {
		fn(game)
	}
}
