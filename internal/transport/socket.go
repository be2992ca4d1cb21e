package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/dom/chess-lobby-client/internal/domain"
	"github.com/dom/chess-lobby-client/internal/protocol"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Socket maintains the persistent connection to the game server. It
// dials once up front, then keeps reconnecting with exponential backoff
// until closed, reporting every transition on the status channel so the
// owner can re-join channels and resync.
type Socket struct {
	url       string
	token     string
	dialer    *websocket.Dialer
	pingEvery time.Duration

	events   chan protocol.Envelope
	statuses chan bool

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc

	closeOnce sync.Once
	done      chan struct{}
}

// NewSocket creates an unconnected socket for the given websocket URL
func NewSocket(wsURL, token string) *Socket {
	dialer := &websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	return &Socket{
		url:       wsURL,
		token:     token,
		dialer:    dialer,
		pingEvery: pingPeriod,
		events:    make(chan protocol.Envelope, 256),
		statuses:  make(chan bool, 16),
		done:      make(chan struct{}),
	}
}

// Connect dials the server, failing fast if the first attempt does not
// go through. After that the socket reconnects on its own until Close.
func (s *Socket) Connect(ctx context.Context, viewerID string) error {
	connectURL, err := s.buildURL(viewerID)
	if err != nil {
		return err
	}

	conn, err := s.dial(ctx, connectURL)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", s.url, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.conn = conn
	s.cancel = cancel
	s.mu.Unlock()

	go s.run(runCtx, connectURL, conn)
	return nil
}

// Events delivers inbound envelopes. Closed when the socket closes.
func (s *Socket) Events() <-chan protocol.Envelope {
	return s.events
}

// StatusChanges delivers connected/disconnected transitions
func (s *Socket) StatusChanges() <-chan bool {
	return s.statuses
}

// Send writes an envelope to the server
func (s *Socket) Send(env *protocol.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", env.Type, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return domain.ErrNotConnected
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Close tears the connection down and closes the event and status
// channels. Safe to call more than once.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		if s.cancel != nil {
			s.cancel()
		}
		conn := s.conn
		s.conn = nil
		s.mu.Unlock()

		if conn != nil {
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		}
		close(s.done)
	})
	return nil
}

// run owns the connection for its lifetime: pump the first connection,
// then redial with backoff after every drop until the context ends.
func (s *Socket) run(ctx context.Context, connectURL string, conn *websocket.Conn) {
	defer close(s.events)
	defer close(s.statuses)

	s.pushStatus(true)
	s.pump(ctx, conn)

	backoff := initialBackoff
	for {
		s.pushStatus(false)

		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-time.After(backoff):
		}

		next, err := s.dial(ctx, connectURL)
		if err != nil {
			log.Printf("Socket: reconnect failed, retrying in %s: %v", backoff, err)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = initialBackoff
		s.mu.Lock()
		s.conn = next
		s.mu.Unlock()

		s.pushStatus(true)
		s.pump(ctx, next)
	}
}

// pump reads the connection until it drops, keeping it alive with pings
func (s *Socket) pump(ctx context.Context, conn *websocket.Conn) {
	stopPing := make(chan struct{})
	go s.pingLoop(conn, stopPing)
	defer close(stopPing)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Socket: read error: %v", err)
			}
			conn.Close()
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
			}
			s.mu.Unlock()
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("Socket: dropping unparseable message: %v", err)
			continue
		}

		select {
		case s.events <- env:
		default:
			// Consumer is behind; the resync after the next status change
			// repairs anything dropped here.
			log.Printf("Socket: event buffer full, dropping %s", env.Type)
		}
	}
}

func (s *Socket) pingLoop(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// Writes share s.mu with Send; gorilla allows only one
			// concurrent writer per connection.
			s.mu.Lock()
			if s.conn != conn {
				s.mu.Unlock()
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			s.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (s *Socket) dial(ctx context.Context, connectURL string) (*websocket.Conn, error) {
	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}

	conn, resp, err := s.dialer.DialContext(ctx, connectURL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

func (s *Socket) buildURL(viewerID string) (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", fmt.Errorf("invalid websocket url %q: %w", s.url, err)
	}
	if viewerID != "" {
		q := u.Query()
		q.Set("userId", viewerID)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (s *Socket) pushStatus(connected bool) {
	select {
	case s.statuses <- connected:
	default:
		log.Printf("Socket: status buffer full, dropping transition connected=%v", connected)
	}
}
