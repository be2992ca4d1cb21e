package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dom/chess-lobby-client/internal/domain"
)

// EventType identifies a named event on the games channel
type EventType string

const (
	// Server -> Client, lobby-wide
	EventGameCreated EventType = "game:created"
	EventGameUpdated EventType = "game:updated"
	EventGameRemoved EventType = "game:removed"

	// Server -> Client, addressed to the per-user channel
	EventJoinRequested    EventType = "game:join-requested"
	EventRequestAccepted  EventType = "game:request-accepted"
	EventRequestRejected  EventType = "game:request-rejected"
	EventOpponentAccepted EventType = "game:opponent-accepted"
	EventOpponentRejected EventType = "game:opponent-rejected"
	EventModalClose       EventType = "game:modal-close"
	EventRequestTimeout   EventType = "game:request-timeout"
	EventGameCancelled    EventType = "game:cancelled"
	EventGameFinished     EventType = "game:finished"
	EventDrawOffer        EventType = "game:draw-offer"
	EventDrawResponse     EventType = "game:draw-response"

	// Client -> Server commands
	CommandJoinUserRoom EventType = "join-user-room"
	CommandJoinGame     EventType = "join-game"
)

// Envelope is the wire format for every message on the socket
type Envelope struct {
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// NewEnvelope wraps a payload for sending
func NewEnvelope(eventType EventType, payload interface{}) (*Envelope, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
		}
		raw = data
	}
	return &Envelope{
		Type:      eventType,
		Payload:   raw,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// Event is the closed union of decoded server events. New event types
// extend this set; consumers dispatch with a single type switch.
type Event interface{ isEvent() }

// GameCreated announces a new session in the lobby
type GameCreated struct {
	Game domain.Game
}

// GameUpdated carries the full replacement state for a session
type GameUpdated struct {
	Game domain.Game
}

// GameRemoved announces a session left the lobby
type GameRemoved struct {
	GameID string
}

// JoinRequested is addressed to a creator: someone wants the open slot
type JoinRequested struct {
	GameID        string
	RequesterID   string
	RequesterName string
	ReceivedAt    time.Time
}

// RequestAccepted is addressed to a requester whose request was accepted
type RequestAccepted struct {
	GameID string
	Game   domain.Game
}

// RequestRejected is addressed to a requester whose request was rejected
type RequestRejected struct {
	GameID  string
	Message string
}

// OpponentAccepted confirms to the creator that the accept went through
type OpponentAccepted struct {
	GameID string
	Game   domain.Game
}

// OpponentRejected confirms to the creator that the reject went through
type OpponentRejected struct {
	GameID string
	Game   domain.Game
}

// ModalClose tells the creator the requester withdrew
type ModalClose struct {
	GameID string
}

// RequestTimeout tells the creator the server expired the request
type RequestTimeout struct {
	GameID  string
	Message string
	Game    domain.Game
}

// GameCancelled announces the creator cancelled the session
type GameCancelled struct {
	GameID string
}

// GameFinished announces a terminal outcome for a session
type GameFinished struct {
	GameID   string
	WinnerID *string
	Reason   string
}

// DrawOffer is addressed to a player whose opponent offered a draw
type DrawOffer struct {
	GameID    string
	OffererID string
	Message   string
}

// DrawResponse tells the offerer whether the draw was accepted
type DrawResponse struct {
	GameID   string
	Accepted bool
	Message  string
}

func (GameCreated) isEvent()      {}
func (GameUpdated) isEvent()      {}
func (GameRemoved) isEvent()      {}
func (JoinRequested) isEvent()    {}
func (RequestAccepted) isEvent()  {}
func (RequestRejected) isEvent()  {}
func (OpponentAccepted) isEvent() {}
func (OpponentRejected) isEvent() {}
func (ModalClose) isEvent()       {}
func (RequestTimeout) isEvent()   {}
func (GameCancelled) isEvent()    {}
func (GameFinished) isEvent()     {}
func (DrawOffer) isEvent()        {}
func (DrawResponse) isEvent()     {}

// wire payloads

type gamePayload struct {
	domain.Game
}

type gameIDPayload struct {
	GameID string `json:"gameId"`
}

type joinRequestedPayload struct {
	GameID        string `json:"gameId"`
	RequesterID   string `json:"requesterId"`
	RequesterName string `json:"requesterName,omitempty"`
}

type gameWithIDPayload struct {
	GameID string      `json:"gameId"`
	Game   domain.Game `json:"game"`
}

type messagePayload struct {
	GameID  string      `json:"gameId"`
	Message string      `json:"message,omitempty"`
	Game    domain.Game `json:"game,omitempty"`
}

type finishedPayload struct {
	GameID   string  `json:"gameId"`
	WinnerID *string `json:"winnerId"`
	Reason   string  `json:"reason"`
}

type drawOfferPayload struct {
	GameID    string `json:"gameId"`
	OffererID string `json:"offererId"`
	Message   string `json:"message,omitempty"`
}

type drawResponsePayload struct {
	GameID   string `json:"gameId"`
	Accepted bool   `json:"accepted"`
	Message  string `json:"message,omitempty"`
}

// JoinUserRoomPayload is sent by the client to join its per-user channel
type JoinUserRoomPayload struct {
	UserID string `json:"userId"`
}

// JoinGamePayload subscribes the client to a single game's events
type JoinGamePayload struct {
	GameID string `json:"gameId"`
}

// Decode turns a raw envelope into a typed event. Payloads missing a
// required id decode to ErrMalformedEvent so the caller can drop them
// without crossing the reconciliation boundary.
func Decode(env *Envelope) (Event, error) {
	switch env.Type {
	case EventGameCreated, EventGameUpdated:
		var p gamePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedEvent, env.Type, err)
		}
		if p.ID == "" {
			return nil, fmt.Errorf("%w: %s: missing game id", domain.ErrMalformedEvent, env.Type)
		}
		if env.Type == EventGameCreated {
			return GameCreated{Game: p.Game}, nil
		}
		return GameUpdated{Game: p.Game}, nil

	case EventGameRemoved, EventGameCancelled, EventModalClose:
		var p gameIDPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedEvent, env.Type, err)
		}
		if p.GameID == "" {
			return nil, fmt.Errorf("%w: %s: missing game id", domain.ErrMalformedEvent, env.Type)
		}
		switch env.Type {
		case EventGameRemoved:
			return GameRemoved{GameID: p.GameID}, nil
		case EventGameCancelled:
			return GameCancelled{GameID: p.GameID}, nil
		default:
			return ModalClose{GameID: p.GameID}, nil
		}

	case EventJoinRequested:
		var p joinRequestedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedEvent, env.Type, err)
		}
		if p.GameID == "" || p.RequesterID == "" {
			return nil, fmt.Errorf("%w: %s: missing game or requester id", domain.ErrMalformedEvent, env.Type)
		}
		receivedAt := time.Now()
		if env.Timestamp > 0 {
			receivedAt = time.UnixMilli(env.Timestamp)
		}
		return JoinRequested{
			GameID:        p.GameID,
			RequesterID:   p.RequesterID,
			RequesterName: p.RequesterName,
			ReceivedAt:    receivedAt,
		}, nil

	case EventRequestAccepted, EventOpponentAccepted, EventOpponentRejected:
		var p gameWithIDPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedEvent, env.Type, err)
		}
		if p.Game.ID == "" {
			return nil, fmt.Errorf("%w: %s: missing game id", domain.ErrMalformedEvent, env.Type)
		}
		switch env.Type {
		case EventRequestAccepted:
			return RequestAccepted{GameID: p.GameID, Game: p.Game}, nil
		case EventOpponentAccepted:
			return OpponentAccepted{GameID: p.GameID, Game: p.Game}, nil
		default:
			return OpponentRejected{GameID: p.GameID, Game: p.Game}, nil
		}

	case EventRequestRejected:
		var p messagePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedEvent, env.Type, err)
		}
		if p.GameID == "" {
			return nil, fmt.Errorf("%w: %s: missing game id", domain.ErrMalformedEvent, env.Type)
		}
		return RequestRejected{GameID: p.GameID, Message: p.Message}, nil

	case EventRequestTimeout:
		var p messagePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedEvent, env.Type, err)
		}
		if p.GameID == "" {
			return nil, fmt.Errorf("%w: %s: missing game id", domain.ErrMalformedEvent, env.Type)
		}
		return RequestTimeout{GameID: p.GameID, Message: p.Message, Game: p.Game}, nil

	case EventGameFinished:
		var p finishedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedEvent, env.Type, err)
		}
		if p.GameID == "" {
			return nil, fmt.Errorf("%w: %s: missing game id", domain.ErrMalformedEvent, env.Type)
		}
		return GameFinished{GameID: p.GameID, WinnerID: p.WinnerID, Reason: p.Reason}, nil

	case EventDrawOffer:
		var p drawOfferPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedEvent, env.Type, err)
		}
		if p.GameID == "" {
			return nil, fmt.Errorf("%w: %s: missing game id", domain.ErrMalformedEvent, env.Type)
		}
		return DrawOffer{GameID: p.GameID, OffererID: p.OffererID, Message: p.Message}, nil

	case EventDrawResponse:
		var p drawResponsePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedEvent, env.Type, err)
		}
		if p.GameID == "" {
			return nil, fmt.Errorf("%w: %s: missing game id", domain.ErrMalformedEvent, env.Type)
		}
		return DrawResponse{GameID: p.GameID, Accepted: p.Accepted, Message: p.Message}, nil

	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEvent, env.Type)
	}
}
