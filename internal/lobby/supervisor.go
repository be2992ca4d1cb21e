package lobby

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/dom/chess-lobby-client/internal/domain"
	"github.com/dom/chess-lobby-client/internal/protocol"
)

// Fetcher loads the full lobby, used for the initial load and for the
// resync after every reconnect.
type Fetcher interface {
	FetchGames(ctx context.Context) ([]domain.Game, error)
}

// Transport is the persistent-connection collaborator. It is assumed to
// deliver named events at least once and to reconnect on its own; the
// supervisor learns about both through the status channel.
type Transport interface {
	Connect(ctx context.Context, viewerID string) error
	Events() <-chan protocol.Envelope
	StatusChanges() <-chan bool
	Send(env *protocol.Envelope) error
	Close() error
}

// Archiver records terminal outcomes locally. Optional; a nil archiver
// disables archiving.
type Archiver interface {
	RecordFinished(ctx context.Context, gameID string, winnerID *string, reason string) error
}

// Supervisor owns the connection lifecycle for one viewer session and
// routes inbound events to the store and the negotiator. It is created
// without an identity and connects once Start is called with one;
// Stop tears everything down on logout or shutdown.
type Supervisor struct {
	store      *Store
	negotiator *Negotiator
	notifs     *Notifications
	fetcher    Fetcher
	transport  Transport
	archive    Archiver

	mu        sync.RWMutex
	viewerID  string
	connected bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewSupervisor wires the supervisor to its collaborators
func NewSupervisor(store *Store, negotiator *Negotiator, notifs *Notifications, fetcher Fetcher, transport Transport, archive Archiver) *Supervisor {
	s := &Supervisor{
		store:      store,
		negotiator: negotiator,
		notifs:     notifs,
		fetcher:    fetcher,
		transport:  transport,
		archive:    archive,
	}
	negotiator.SetReconciler(store.ApplyUpdated)
	return s
}

// Start connects the transport with the viewer's identity and begins
// routing events. It is an error to start without an identity or to
// start twice without stopping.
func (s *Supervisor) Start(ctx context.Context, viewerID string) error {
	if viewerID == "" {
		return domain.ErrNoIdentity
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return errors.New("supervisor already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.viewerID = viewerID
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	if err := s.transport.Connect(runCtx, viewerID); err != nil {
		s.mu.Lock()
		s.cancel = nil
		s.viewerID = ""
		s.mu.Unlock()
		cancel()
		return fmt.Errorf("failed to connect transport: %w", err)
	}

	go s.run(runCtx)
	return nil
}

// Stop tears down the connection and clears any pending negotiation.
// Safe to call when not started.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.viewerID = ""
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if err := s.transport.Close(); err != nil {
		log.Printf("ERROR [Supervisor.Stop] transport close failed: %v", err)
	}
	<-done
	s.negotiator.Close()
}

// Connected reports the observable connection status
func (s *Supervisor) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// ViewerID returns the identity the supervisor is running for, empty
// when stopped.
func (s *Supervisor) ViewerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewerID
}

// Resync reloads the full lobby from the fetcher, replacing the store
// content and discarding any join request the fresh state no longer
// supports.
func (s *Supervisor) Resync(ctx context.Context) error {
	games, err := s.fetcher.FetchGames(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch games for resync: %w", err)
	}

	s.store.Resync(games)
	s.negotiator.Validate(s.store)
	log.Printf("Supervisor: resynced %d games", len(games))
	return nil
}

// run is the event loop: a single goroutine serializes every inbound
// event and status change onto the store and negotiator.
func (s *Supervisor) run(ctx context.Context) {
	defer close(s.done)

	events := s.transport.Events()
	statuses := s.transport.StatusChanges()

	for {
		select {
		case <-ctx.Done():
			return

		case connected, ok := <-statuses:
			if !ok {
				return
			}
			s.handleStatus(ctx, connected)

		case env, ok := <-events:
			if !ok {
				return
			}
			s.handleEnvelope(ctx, &env)
		}
	}
}

// handleStatus reacts to connect/disconnect transitions. Every connect,
// including reconnects, re-joins the per-user channel and resyncs so no
// targeted events or missed mutations are lost.
func (s *Supervisor) handleStatus(ctx context.Context, connected bool) {
	s.mu.Lock()
	s.connected = connected
	viewerID := s.viewerID
	s.mu.Unlock()

	if !connected {
		log.Printf("Supervisor: disconnected")
		s.negotiator.ConnectionLost()
		return
	}

	log.Printf("Supervisor: connected, joining user channel %s", viewerID)

	env, err := protocol.NewEnvelope(protocol.CommandJoinUserRoom, protocol.JoinUserRoomPayload{UserID: viewerID})
	if err == nil {
		err = s.transport.Send(env)
	}
	if err != nil {
		log.Printf("ERROR [Supervisor.handleStatus] failed to join user channel: %v", err)
	}

	if err := s.Resync(ctx); err != nil {
		log.Printf("ERROR [Supervisor.handleStatus] resync failed: %v", err)
	}
}

// handleEnvelope decodes and dispatches one inbound event. Malformed
// events are dropped with a diagnostic; they never propagate.
func (s *Supervisor) handleEnvelope(ctx context.Context, env *protocol.Envelope) {
	event, err := protocol.Decode(env)
	if err != nil {
		log.Printf("Supervisor: dropping event: %v", err)
		return
	}

	switch e := event.(type) {
	case protocol.GameCreated:
		s.store.ApplyCreated(e.Game)

	case protocol.GameUpdated:
		s.store.ApplyUpdated(e.Game)

	case protocol.GameRemoved:
		s.store.ApplyRemoved(e.GameID)

	case protocol.JoinRequested:
		s.negotiator.Begin(domain.JoinRequest{
			GameID:        e.GameID,
			RequesterID:   e.RequesterID,
			RequesterName: e.RequesterName,
			ReceivedAt:    e.ReceivedAt,
		})

	case protocol.RequestAccepted:
		s.notifs.Push("Your request to join the game was accepted!")
		s.store.ApplyUpdated(e.Game)

	case protocol.RequestRejected:
		if e.Message != "" {
			s.notifs.Push(e.Message)
		} else {
			s.notifs.Push("Your join request was rejected")
		}

	case protocol.OpponentAccepted:
		s.negotiator.Supersede(e.GameID)
		s.store.ApplyUpdated(e.Game)

	case protocol.OpponentRejected:
		s.negotiator.Supersede(e.GameID)
		s.store.ApplyUpdated(e.Game)

	case protocol.ModalClose:
		s.negotiator.Supersede(e.GameID)

	case protocol.RequestTimeout:
		s.negotiator.Supersede(e.GameID)
		if e.Message != "" {
			s.notifs.Push(e.Message)
		} else {
			s.notifs.Push("Join request timed out")
		}
		if e.Game.ID != "" {
			s.store.ApplyUpdated(e.Game)
		}

	case protocol.GameCancelled:
		s.negotiator.Supersede(e.GameID)
		s.notifs.Push(fmt.Sprintf("Game %s... was cancelled by the creator", shortID(e.GameID)))

	case protocol.GameFinished:
		s.handleFinished(ctx, e)

	case protocol.DrawOffer:
		if e.Message != "" {
			s.notifs.Push(e.Message)
		} else {
			s.notifs.Push("Your opponent offered a draw")
		}

	case protocol.DrawResponse:
		if !e.Accepted {
			s.notifs.Push("Your draw offer was declined")
		}
	}
}

func (s *Supervisor) handleFinished(ctx context.Context, e protocol.GameFinished) {
	if e.Reason == "forfeit" {
		s.mu.RLock()
		viewerID := s.viewerID
		s.mu.RUnlock()

		if e.WinnerID != nil && *e.WinnerID == viewerID {
			s.notifs.Push(fmt.Sprintf("Game %s... ended - you won by forfeit!", shortID(e.GameID)))
		} else {
			s.notifs.Push(fmt.Sprintf("Game %s... ended - opponent won by forfeit", shortID(e.GameID)))
		}
	}

	if s.archive != nil {
		if err := s.archive.RecordFinished(ctx, e.GameID, e.WinnerID, e.Reason); err != nil {
			log.Printf("ERROR [Supervisor.handleFinished] failed to archive game %s: %v", e.GameID, err)
		}
	}
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
