package domain

// GameStatus represents the lifecycle state of a game session
type GameStatus string

const (
	GameStatusWaiting    GameStatus = "WAITING"
	GameStatusInProgress GameStatus = "IN_PROGRESS"
	GameStatusCompleted  GameStatus = "COMPLETED"
)

// Game represents one matchmaking/game session as the server reports it.
// The board position and move history are opaque to the lobby core; they
// are carried through untouched for the rendering layer.
type Game struct {
	ID                string     `json:"id"`
	CreatorID         string     `json:"creatorId"`
	OpponentID        *string    `json:"opponentId"`
	PendingOpponentID *string    `json:"pendingOpponentId"`
	Status            GameStatus `json:"status"`
	TimeControl       int        `json:"timeControl"`
	IsPrivate         bool       `json:"isPrivate"`
	Fen               string     `json:"fen,omitempty"`
	MoveHistory       []string   `json:"moveHistory,omitempty"`
	WinnerID          *string    `json:"winnerId"`
}

// HasPendingOpponent returns true if the given user is waiting for the
// creator's decision on this game.
func (g *Game) HasPendingOpponent(userID string) bool {
	return g.PendingOpponentID != nil && *g.PendingOpponentID == userID
}

// IsOpen returns true if the game is still waiting for an opponent slot
// to be filled.
func (g *Game) IsOpen() bool {
	return g.Status == GameStatusWaiting && g.OpponentID == nil
}

// CreateGameRequest is the payload for creating a new game session
type CreateGameRequest struct {
	TimeControl int    `json:"timeControl"`
	IsPrivate   bool   `json:"isPrivate"`
	Password    string `json:"password,omitempty"`
}
