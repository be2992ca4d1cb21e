package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dom/chess-lobby-client/internal/domain"
)

// Error carries the HTTP status and the server's message for a failed
// action call, giving the caller enough to show a retry affordance.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Message)
}

// Client handles HTTP communication with the game server
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the game server. The token is sent as
// a bearer credential on every request.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchGames loads the full lobby, used for the initial load and resync
func (c *Client) FetchGames(ctx context.Context) ([]domain.Game, error) {
	resp, err := c.get(ctx, "/games")
	if err != nil {
		return nil, fmt.Errorf("fetch games request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readError(resp)
	}

	var games []domain.Game
	if err := json.NewDecoder(resp.Body).Decode(&games); err != nil {
		return nil, fmt.Errorf("failed to decode games: %w", err)
	}
	return games, nil
}

// CreateGame creates a new game session
func (c *Client) CreateGame(ctx context.Context, req domain.CreateGameRequest) (domain.Game, error) {
	return c.gameCall(ctx, "/games/create", req)
}

// JoinGame requests to join a game; private games require the password
func (c *Client) JoinGame(ctx context.Context, gameID, password string) (domain.Game, error) {
	var body interface{}
	if password != "" {
		body = map[string]string{"password": password}
	} else {
		body = map[string]string{}
	}
	return c.gameCall(ctx, "/games/join/"+gameID, body)
}

// AcceptOpponent accepts the pending join request for one of the
// viewer's games.
func (c *Client) AcceptOpponent(ctx context.Context, gameID string) (domain.Game, error) {
	return c.gameCall(ctx, "/games/accept/"+gameID, nil)
}

// RejectOpponent rejects the pending join request for one of the
// viewer's games. The timeout path uses this too, so the requester
// always learns the slot is gone.
func (c *Client) RejectOpponent(ctx context.Context, gameID string) (domain.Game, error) {
	return c.gameCall(ctx, "/games/reject/"+gameID, nil)
}

// CancelGame cancels a game the viewer created
func (c *Client) CancelGame(ctx context.Context, gameID string) error {
	return c.voidCall(ctx, "/games/cancel/"+gameID)
}

// LeaveGame withdraws the viewer from a game
func (c *Client) LeaveGame(ctx context.Context, gameID string) error {
	return c.voidCall(ctx, "/games/leave/"+gameID)
}

// ResignGame resigns an in-progress game
func (c *Client) ResignGame(ctx context.Context, gameID string) error {
	return c.voidCall(ctx, "/games/resign/"+gameID)
}

// OfferDraw offers the opponent a draw
func (c *Client) OfferDraw(ctx context.Context, gameID string) error {
	return c.voidCall(ctx, "/games/offer-draw/"+gameID)
}

// RespondDraw answers an opponent's draw offer
func (c *Client) RespondDraw(ctx context.Context, gameID string, accept bool) error {
	resp, err := c.post(ctx, "/games/respond-draw/"+gameID, map[string]bool{"accept": accept})
	if err != nil {
		return fmt.Errorf("respond draw request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readError(resp)
	}
	return nil
}

// gameCall posts and decodes the updated game from the response
func (c *Client) gameCall(ctx context.Context, path string, body interface{}) (domain.Game, error) {
	resp, err := c.post(ctx, path, body)
	if err != nil {
		return domain.Game{}, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return domain.Game{}, readError(resp)
	}

	var game domain.Game
	if err := json.NewDecoder(resp.Body).Decode(&game); err != nil {
		return domain.Game{}, fmt.Errorf("failed to decode game from %s: %w", path, err)
	}
	return game, nil
}

// voidCall posts and checks the status without decoding a body
func (c *Client) voidCall(ctx context.Context, path string) error {
	resp, err := c.post(ctx, path, nil)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return readError(resp)
	}
	return nil
}

// HTTP helpers

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)
	return c.httpClient.Do(req)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)
	return c.httpClient.Do(req)
}

func (c *Client) setHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Content-Type", "application/json")
}

// readError extracts the server message from a non-2xx response
func readError(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	message := string(bodyBytes)
	if err := json.Unmarshal(bodyBytes, &payload); err == nil {
		if payload.Message != "" {
			message = payload.Message
		} else if payload.Error != "" {
			message = payload.Error
		}
	}

	return &Error{Status: resp.StatusCode, Message: message}
}
