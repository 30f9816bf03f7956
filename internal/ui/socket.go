package ui

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"formvoice/native/internal/domain"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
)

// outbound is a message pushed to UI clients.
type outbound struct {
	Type    string                   `json:"type"`
	Text    string                   `json:"text,omitempty"`
	Level   domain.ToastLevel        `json:"level,omitempty"`
	State   string                   `json:"state,omitempty"`
	CanStop *bool                    `json:"can_stop,omitempty"`
	Turns   []turnView               `json:"turns,omitempty"`
	Form    *domain.VerificationForm `json:"form,omitempty"`
}

type turnView struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Streaming bool   `json:"streaming,omitempty"`
}

// inbound is a command from a UI client.
type inbound struct {
	Type   string            `json:"type"`
	CallID string            `json:"call_id,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Bridge serves the session to WebSocket UI clients. It is a domain.Presenter that
// broadcasts to every client and replays the latest state, transcript and form to
// new ones.
type Bridge struct {
	cmds     domain.Commands
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	state   *outbound
	turns   *outbound
	form    *outbound
}

// NewBridge creates a bridge. Call SetCommands before serving.
func NewBridge() *Bridge {
	return &Bridge{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

// SetCommands injects the command target after construction (the controller needs
// the bridge as presenter, the bridge needs the controller for commands).
func (b *Bridge) SetCommands(cmds domain.Commands) {
	b.cmds = cmds
}

// Status broadcasts a status line.
func (b *Bridge) Status(text string) {
	b.broadcast(outbound{Type: "status", Text: text})
}

// Toast broadcasts a transient notification.
func (b *Bridge) Toast(level domain.ToastLevel, text string) {
	b.broadcast(outbound{Type: "toast", Level: level, Text: text})
}

// StateChanged broadcasts the lifecycle state and keeps it for replay.
func (b *Bridge) StateChanged(state string, canStop bool) {
	msg := outbound{Type: "state", State: state, CanStop: &canStop}
	b.mu.Lock()
	b.state = &msg
	b.mu.Unlock()
	b.broadcast(msg)
}

// TranscriptChanged broadcasts the full transcript and keeps it for replay.
func (b *Bridge) TranscriptChanged(turns []domain.Turn) {
	views := make([]turnView, 0, len(turns))
	for _, t := range turns {
		views = append(views, turnView{
			Role:      string(t.Role),
			Content:   t.Content,
			Timestamp: t.Timestamp.UTC().Format(time.RFC3339Nano),
			Streaming: t.Streaming,
		})
	}
	msg := outbound{Type: "transcript", Turns: views}
	b.mu.Lock()
	b.turns = &msg
	b.mu.Unlock()
	b.broadcast(msg)
}

// ShowVerification broadcasts the verification form and keeps it for replay.
func (b *Bridge) ShowVerification(form domain.VerificationForm) {
	msg := outbound{Type: "verification.show", Form: &form}
	b.mu.Lock()
	b.form = &msg
	b.mu.Unlock()
	b.broadcast(msg)
}

// HideVerification clears the replayed form and tells clients to close it.
func (b *Bridge) HideVerification() {
	b.mu.Lock()
	b.form = nil
	b.mu.Unlock()
	b.broadcast(outbound{Type: "verification.hide"})
}

// ServeHTTP upgrades the request and serves one UI client until it disconnects.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ui] upgrade: %v", err)
		return
	}
	c := &wsClient{conn: conn, closed: make(chan struct{})}

	b.mu.Lock()
	b.clients[c] = struct{}{}
	var replay []outbound
	for _, m := range []*outbound{b.state, b.turns, b.form} {
		if m != nil {
			replay = append(replay, *m)
		}
	}
	b.mu.Unlock()
	log.Printf("[ui] client connected from %s", r.RemoteAddr)

	for _, m := range replay {
		c.sendJSON(m)
	}

	go c.pingLoop()
	b.readLoop(r.Context(), c)

	b.mu.Lock()
	delete(b.clients, c)
	b.mu.Unlock()
	log.Printf("[ui] client disconnected")
}

func (b *Bridge) broadcast(msg outbound) {
	b.mu.Lock()
	clients := make([]*wsClient, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.Unlock()

	for _, c := range clients {
		c.sendJSON(msg)
	}
}

func (b *Bridge) readLoop(ctx context.Context, c *wsClient) {
	defer c.Close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("[ui] read error: %v", err)
				}
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[ui] unmarshal error: %v", err)
			continue
		}
		b.dispatch(ctx, c, msg)
	}
}

func (b *Bridge) dispatch(ctx context.Context, c *wsClient, msg inbound) {
	if b.cmds == nil {
		log.Printf("[ui] no command target, dropping %s", msg.Type)
		return
	}

	var err error
	switch msg.Type {
	case "interact":
		b.cmds.Interact()
	case "start":
		b.cmds.Interact()
		err = b.cmds.StartSession(context.WithoutCancel(ctx))
	case "stop":
		b.cmds.Interact()
		err = b.cmds.StopSession(context.WithoutCancel(ctx))
	case "verify.confirm":
		b.cmds.Interact()
		err = b.cmds.ConfirmVerification(msg.CallID, msg.Fields)
	case "verify.skip":
		b.cmds.Interact()
		err = b.cmds.SkipVerification()
	default:
		log.Printf("[ui] unhandled command: %s", msg.Type)
		return
	}
	if err != nil {
		c.sendJSON(outbound{Type: "error", Text: err.Error()})
	}
}

// wsClient is one connected UI.
type wsClient struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed chan struct{}
	once   sync.Once
}

func (c *wsClient) sendJSON(msg any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[ui] marshal error: %v", err)
		return
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[ui] write error: %v", err)
	}
}

func (c *wsClient) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			c.mu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeTimeout))
			c.mu.Unlock()
			if err != nil {
				select {
				case <-c.closed:
				default:
					log.Printf("[ui] ping error: %v", err)
				}
				return
			}
		}
	}
}

// Close shuts the client connection down.
func (c *wsClient) Close() {
	c.once.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}
