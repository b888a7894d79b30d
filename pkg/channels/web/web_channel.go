// Package web serves the chat over a WebSocket, one session per connection.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"crucible/pkg/channels"
	"crucible/pkg/llm"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for decoupled UI
	},
}

// Inbound message types.
const (
	TypeMessage = "message"
	TypeClear   = "clear"
	TypeHistory = "history"
)

// Outbound message types.
const (
	TypeReply    = "reply"
	TypeCleared  = "cleared"
	TypeError    = "error"
	TypeExamples = "examples"
)

type WebConfig struct {
	Port int `json:"port"` // Default: 8080
}

// Inbound is a client request. A frame that is not JSON is treated as a
// plain text message.
type Inbound struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Outbound is a server frame.
type Outbound struct {
	Type      string             `json:"type"`
	Text      string             `json:"text,omitempty"`
	Error     string             `json:"error,omitempty"`
	ToolCalls []llm.ToolActivity `json:"tool_calls,omitempty"`
	Fallback  bool               `json:"fallback,omitempty"`
	Messages  []HistoryEntry     `json:"messages,omitempty"`
	Examples  []string           `json:"examples,omitempty"`
	Metrics   *Metrics           `json:"metrics,omitempty"`
}

// HistoryEntry is one stored turn as shown to the UI.
type HistoryEntry struct {
	Role      string             `json:"role"`
	Content   string             `json:"content"`
	ToolCalls []llm.ToolActivity `json:"tool_calls,omitempty"`
}

// Metrics summarizes a session.
type Metrics struct {
	Messages  int `json:"messages"`
	ToolCalls int `json:"tool_calls"`
}

type WebChannel struct {
	config   WebConfig
	chat     channels.Chatter
	sessions *llm.SessionManager

	mu     sync.Mutex
	server *http.Server
	addr   string
}

func NewWebChannel(cfg WebConfig, deps channels.Deps) *WebChannel {
	sessions := deps.Sessions
	if sessions == nil {
		sessions = llm.NewSessionManager()
	}
	return &WebChannel{
		config:   cfg,
		chat:     deps.Chat,
		sessions: sessions,
	}
}

func (c *WebChannel) ID() string {
	return "web"
}

// Handler exposes the /ws endpoint.
func (c *WebChannel) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", c.handleWebSocket)
	return mux
}

func (c *WebChannel) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", c.config.Port))
	if err != nil {
		return fmt.Errorf("web listen: %w", err)
	}

	server := &http.Server{
		Handler:     c.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	c.mu.Lock()
	c.server = server
	c.addr = ln.Addr().String()
	c.mu.Unlock()

	slog.Info("Web API listening", "addr", c.addr)

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Web API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the listening address once started.
func (c *WebChannel) Addr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

func (c *WebChannel) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.server != nil {
		return c.server.Close()
	}
	return nil
}

func (c *WebChannel) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WS Upgrade failed", "error", err)
		return
	}

	session := c.sessions.Create()
	slog.Info("Web session opened", "session", session.ID(), "remote", r.RemoteAddr)

	defer func() {
		c.sessions.Delete(session.ID())
		conn.Close()
		slog.Info("Web session closed", "session", session.ID())
	}()

	if err := writeJSON(conn, Outbound{Type: TypeExamples, Examples: channels.ExampleQueries}); err != nil {
		return
	}

	ctx := r.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var in Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			in = Inbound{Type: TypeMessage, Text: string(data)}
		}

		if err := writeJSON(conn, c.handle(ctx, session, in)); err != nil {
			slog.Warn("Failed to write frame", "session", session.ID(), "error", err)
			return
		}
	}
}

func (c *WebChannel) handle(ctx context.Context, session *llm.ChatHistory, in Inbound) Outbound {
	switch in.Type {
	case TypeMessage, "":
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return Outbound{Type: TypeError, Error: "empty message"}
		}
		answer, err := channels.Ask(ctx, c.chat, session, text)
		if err != nil {
			return Outbound{Type: TypeError, Error: err.Error(), Metrics: metrics(session)}
		}
		return Outbound{
			Type:      TypeReply,
			Text:      answer.Text,
			ToolCalls: answer.Activity,
			Fallback:  answer.Fallback,
			Metrics:   metrics(session),
		}

	case TypeClear:
		session.Clear()
		return Outbound{Type: TypeCleared, Metrics: metrics(session)}

	case TypeHistory:
		msgs := session.GetMessages()
		entries := make([]HistoryEntry, 0, len(msgs))
		for _, m := range msgs {
			entries = append(entries, HistoryEntry{Role: m.Role, Content: m.Content, ToolCalls: m.Activity})
		}
		return Outbound{Type: TypeHistory, Messages: entries, Metrics: metrics(session)}

	default:
		return Outbound{Type: TypeError, Error: fmt.Sprintf("unknown message type %q", in.Type)}
	}
}

func metrics(session *llm.ChatHistory) *Metrics {
	return &Metrics{Messages: session.Len(), ToolCalls: session.ToolCallCount()}
}

func writeJSON(conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
