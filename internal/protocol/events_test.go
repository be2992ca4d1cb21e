package protocol_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dom/chess-lobby-client/internal/domain"
	"github.com/dom/chess-lobby-client/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelope(t *testing.T, eventType protocol.EventType, payload interface{}) *protocol.Envelope {
	t.Helper()
	env, err := protocol.NewEnvelope(eventType, payload)
	require.NoError(t, err)
	return env
}

func TestDecodeGameCreated(t *testing.T) {
	game := domain.Game{ID: "g1", CreatorID: "u1", Status: domain.GameStatusWaiting, TimeControl: 600}
	env := envelope(t, protocol.EventGameCreated, game)

	event, err := protocol.Decode(env)
	require.NoError(t, err)

	created, ok := event.(protocol.GameCreated)
	require.True(t, ok)
	assert.Equal(t, "g1", created.Game.ID)
	assert.Equal(t, 600, created.Game.TimeControl)
}

func TestDecodeGameUpdatedSharesPayloadShape(t *testing.T) {
	game := domain.Game{ID: "g1", CreatorID: "u1", Status: domain.GameStatusInProgress}
	env := envelope(t, protocol.EventGameUpdated, game)

	event, err := protocol.Decode(env)
	require.NoError(t, err)

	updated, ok := event.(protocol.GameUpdated)
	require.True(t, ok)
	assert.Equal(t, domain.GameStatusInProgress, updated.Game.Status)
}

func TestDecodeGameRemoved(t *testing.T) {
	env := envelope(t, protocol.EventGameRemoved, map[string]string{"gameId": "g1"})

	event, err := protocol.Decode(env)
	require.NoError(t, err)

	removed, ok := event.(protocol.GameRemoved)
	require.True(t, ok)
	assert.Equal(t, "g1", removed.GameID)
}

func TestDecodeJoinRequestedUsesEnvelopeTimestamp(t *testing.T) {
	sentAt := time.Now().Add(-5 * time.Second)
	env := &protocol.Envelope{
		Type:      protocol.EventJoinRequested,
		Payload:   json.RawMessage(`{"gameId":"g1","requesterId":"u2","requesterName":"challenger"}`),
		Timestamp: sentAt.UnixMilli(),
	}

	event, err := protocol.Decode(env)
	require.NoError(t, err)

	req, ok := event.(protocol.JoinRequested)
	require.True(t, ok)
	assert.Equal(t, "g1", req.GameID)
	assert.Equal(t, "u2", req.RequesterID)
	assert.Equal(t, "challenger", req.RequesterName)
	assert.WithinDuration(t, sentAt, req.ReceivedAt, time.Millisecond)
}

func TestDecodeJoinRequestedWithoutTimestamp(t *testing.T) {
	env := &protocol.Envelope{
		Type:    protocol.EventJoinRequested,
		Payload: json.RawMessage(`{"gameId":"g1","requesterId":"u2"}`),
	}

	event, err := protocol.Decode(env)
	require.NoError(t, err)

	req := event.(protocol.JoinRequested)
	assert.WithinDuration(t, time.Now(), req.ReceivedAt, time.Second)
}

func TestDecodeRequestAccepted(t *testing.T) {
	opponent := "u2"
	env := envelope(t, protocol.EventRequestAccepted, map[string]interface{}{
		"gameId": "g1",
		"game": domain.Game{
			ID:         "g1",
			CreatorID:  "u1",
			OpponentID: &opponent,
			Status:     domain.GameStatusInProgress,
		},
	})

	event, err := protocol.Decode(env)
	require.NoError(t, err)

	accepted, ok := event.(protocol.RequestAccepted)
	require.True(t, ok)
	assert.Equal(t, "g1", accepted.GameID)
	require.NotNil(t, accepted.Game.OpponentID)
	assert.Equal(t, "u2", *accepted.Game.OpponentID)
}

func TestDecodeRequestTimeoutWithOptionalGame(t *testing.T) {
	withGame := envelope(t, protocol.EventRequestTimeout, map[string]interface{}{
		"gameId":  "g1",
		"message": "Join request timed out",
		"game":    domain.Game{ID: "g1", CreatorID: "u1", Status: domain.GameStatusWaiting},
	})

	event, err := protocol.Decode(withGame)
	require.NoError(t, err)
	timeout := event.(protocol.RequestTimeout)
	assert.Equal(t, "Join request timed out", timeout.Message)
	assert.Equal(t, "g1", timeout.Game.ID)

	withoutGame := &protocol.Envelope{
		Type:    protocol.EventRequestTimeout,
		Payload: json.RawMessage(`{"gameId":"g1"}`),
	}
	event, err = protocol.Decode(withoutGame)
	require.NoError(t, err)
	assert.Empty(t, event.(protocol.RequestTimeout).Game.ID)
}

func TestDecodeGameFinished(t *testing.T) {
	winner := "u1"
	env := envelope(t, protocol.EventGameFinished, map[string]interface{}{
		"gameId":   "g1",
		"winnerId": winner,
		"reason":   "forfeit",
	})

	event, err := protocol.Decode(env)
	require.NoError(t, err)

	finished := event.(protocol.GameFinished)
	require.NotNil(t, finished.WinnerID)
	assert.Equal(t, "u1", *finished.WinnerID)
	assert.Equal(t, "forfeit", finished.Reason)

	// Draws carry no winner
	drawn := envelope(t, protocol.EventGameFinished, map[string]interface{}{
		"gameId": "g2",
		"reason": "draw",
	})
	event, err = protocol.Decode(drawn)
	require.NoError(t, err)
	assert.Nil(t, event.(protocol.GameFinished).WinnerID)
}

func TestDecodeDrawEvents(t *testing.T) {
	offer := envelope(t, protocol.EventDrawOffer, map[string]string{
		"gameId":    "g1",
		"offererId": "u2",
		"message":   "Draw?",
	})
	event, err := protocol.Decode(offer)
	require.NoError(t, err)
	assert.Equal(t, "u2", event.(protocol.DrawOffer).OffererID)

	response := envelope(t, protocol.EventDrawResponse, map[string]interface{}{
		"gameId":   "g1",
		"accepted": true,
	})
	event, err = protocol.Decode(response)
	require.NoError(t, err)
	assert.True(t, event.(protocol.DrawResponse).Accepted)
}

func TestDecodeMissingRequiredIDs(t *testing.T) {
	cases := []struct {
		name string
		env  *protocol.Envelope
	}{
		{"created without id", &protocol.Envelope{Type: protocol.EventGameCreated, Payload: json.RawMessage(`{}`)}},
		{"removed without id", &protocol.Envelope{Type: protocol.EventGameRemoved, Payload: json.RawMessage(`{}`)}},
		{"join without requester", &protocol.Envelope{Type: protocol.EventJoinRequested, Payload: json.RawMessage(`{"gameId":"g1"}`)}},
		{"accepted without game", &protocol.Envelope{Type: protocol.EventRequestAccepted, Payload: json.RawMessage(`{"gameId":"g1"}`)}},
		{"finished without id", &protocol.Envelope{Type: protocol.EventGameFinished, Payload: json.RawMessage(`{"reason":"draw"}`)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := protocol.Decode(tc.env)
			assert.ErrorIs(t, err, domain.ErrMalformedEvent)
		})
	}
}

func TestDecodeInvalidJSON(t *testing.T) {
	env := &protocol.Envelope{
		Type:    protocol.EventGameCreated,
		Payload: json.RawMessage(`{not json`),
	}

	_, err := protocol.Decode(env)
	assert.ErrorIs(t, err, domain.ErrMalformedEvent)
}

func TestDecodeUnknownType(t *testing.T) {
	env := &protocol.Envelope{
		Type:    "game:telepathy",
		Payload: json.RawMessage(`{"gameId":"g1"}`),
	}

	_, err := protocol.Decode(env)
	assert.ErrorIs(t, err, domain.ErrUnknownEvent)
}

func TestNewEnvelopeStampsTime(t *testing.T) {
	before := time.Now().UnixMilli()
	env := envelope(t, protocol.CommandJoinUserRoom, protocol.JoinUserRoomPayload{UserID: "u1"})
	after := time.Now().UnixMilli()

	assert.GreaterOrEqual(t, env.Timestamp, before)
	assert.LessOrEqual(t, env.Timestamp, after)
	assert.JSONEq(t, `{"userId":"u1"}`, string(env.Payload))
}
