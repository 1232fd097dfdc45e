// Package wsrelay exposes a liveproxy.Proxy's mutation/cursor/error
// events to remote websocket clients, and stamps connections with a JWT
// so a relay can tell which caller subscribed. Both are grounded on the
// teacher module's blueprints/chat/app/web/ws (connection/hub split,
// read/write pumps, send-channel backpressure) and
// blueprints/localbase/app/web/handler/api/realtime.go and auth.go (JWT
// issuance and verification with golang-jwt/jwt/v5 HMAC claims).
package wsrelay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/go-mizu/liveproxy"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Message is the wire envelope relayed to every connected client. Type
// selects the populated fields: Target/Value/Previous/IsRemote for
// "mutation", Cursor for "cursor", Error for "error".
type Message struct {
	Type     string               `json:"type"` // "mutation", "cursor", or "error"
	Target   []any                `json:"target,omitempty"`
	Value    any                  `json:"value,omitempty"`
	Previous any                  `json:"previous,omitempty"`
	IsRemote bool                 `json:"is_remote,omitempty"`
	Cursor   string               `json:"cursor,omitempty"`
	Error    *liveproxy.ErrorEvent `json:"error,omitempty"`
}

// Relay fans out one Proxy's events to any number of authenticated
// websocket clients.
type Relay struct {
	proxy  *liveproxy.Proxy
	secret []byte
	log    *slog.Logger

	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*connection]bool

	unsubscribe func()
}

// NewRelay wires cb registrations on p so every mutation, cursor advance,
// and error event is broadcast to connected clients. secret is the HMAC
// key used both to issue tokens (Token) and verify them (ServeHTTP).
func NewRelay(p *liveproxy.Proxy, secret []byte, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Relay{
		proxy:  p,
		secret: secret,
		log:    logger,
		conns:  make(map[*connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	onMutation := func(v any) {
		if m, ok := v.(liveproxy.MutationEvent); ok {
			r.broadcast(Message{Type: "mutation", Target: []any(m.Target), Value: m.Value, Previous: m.Previous, IsRemote: m.IsRemote})
		}
	}
	onError := func(v any) {
		if e, ok := v.(liveproxy.ErrorEvent); ok {
			ev := e
			r.broadcast(Message{Type: "error", Error: &ev})
		}
	}
	onCursor := func(v any) {
		if c, ok := v.(string); ok {
			r.broadcast(Message{Type: "cursor", Cursor: c})
		}
	}
	p.On("mutation", onMutation)
	p.On("error", onError)
	p.On("cursor", onCursor)
	r.unsubscribe = func() {
		p.Off("mutation", onMutation)
		p.Off("error", onError)
		p.Off("cursor", onCursor)
	}
	return r
}

// Token mints an HS256 JWT with subject sub, matching the teacher's
// Supabase-compatible claim shape in auth.go (minus the product-specific
// fields this relay has no use for).
func (r *Relay) Token(sub string, ttl time.Duration) (string, error) {
	return IssueToken(r.secret, sub, ttl)
}

// IssueToken mints an HS256 JWT with subject sub using secret, without
// requiring a live Relay — used by the demo CLI's "token" subcommand to
// hand out credentials before any relay is running.
func IssueToken(secret []byte, sub string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": sub,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(secret)
}

func (r *Relay) authenticate(req *http.Request) (string, error) {
	auth := req.Header.Get("Authorization")
	if auth == "" {
		auth = "Bearer " + req.URL.Query().Get("access_token")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", fmt.Errorf("wsrelay: missing bearer token")
	}
	token, err := jwt.Parse(parts[1], func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wsrelay: unexpected signing method %v", t.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("wsrelay: invalid token")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", fmt.Errorf("wsrelay: token missing sub claim")
	}
	return sub, nil
}

// ServeHTTP upgrades an authenticated request to a websocket and streams
// relayed events to it until the client disconnects.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	sub, err := r.authenticate(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Warn("wsrelay: upgrade failed", "err", err)
		return
	}
	c := &connection{userID: sub, conn: conn, send: make(chan []byte, sendBuffer)}
	r.register(c)

	go r.writePump(c)
	r.readPump(c)
}

type connection struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
}

func (c *connection) close() {
	c.once.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}

func (r *Relay) register(c *connection) {
	r.mu.Lock()
	r.conns[c] = true
	r.mu.Unlock()
}

func (r *Relay) unregister(c *connection) {
	r.mu.Lock()
	delete(r.conns, c)
	r.mu.Unlock()
	c.close()
}

func (r *Relay) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Warn("wsrelay: marshal failed", "err", err)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.conns {
		select {
		case c.send <- data:
		default:
			r.log.Warn("wsrelay: send buffer full, dropping client", "user", c.userID)
			go r.unregister(c)
		}
	}
}

func (r *Relay) readPump(c *connection) {
	defer r.unregister(c)
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (r *Relay) writePump(c *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		r.unregister(c)
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close stops relaying events and disconnects every connected client.
func (r *Relay) Close(ctx context.Context) error {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
	r.mu.Lock()
	conns := make([]*connection, 0, len(r.conns))
	for c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.Unlock()
	for _, c := range conns {
		r.unregister(c)
	}
	return nil
}
