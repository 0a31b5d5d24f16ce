package voice

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"jarvis/internal/agent"
)

// Frame is the websocket wire format for the voice bridge. The client
// does its own audio capture and playback; only text crosses the wire.
type Frame struct {
	Kind      string `json:"kind"` // utterance, reply, error, greeting
	Content   string `json:"content"`
	SessionID string `json:"session_id,omitempty"`
}

// Frame kinds.
const (
	KindUtterance = "utterance"
	KindReply     = "reply"
	KindError     = "error"
	KindGreeting  = "greeting"
)

// Bridge serves voice clients over websocket. Each connection gets its
// own session, greeted on connect.
type Bridge struct {
	logger   *slog.Logger
	agent    *agent.Agent
	upgrader websocket.Upgrader
}

// NewBridge creates a websocket voice bridge.
func NewBridge(logger *slog.Logger, ag *agent.Agent) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		logger: logger,
		agent:  ag,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The bridge serves local microphone clients, not browsers.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and serves it until the client
// disconnects or the request context is done.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sessionID := uuid.New().String()
	b.logger.Info("voice client connected", "session", sessionID, "remote", r.RemoteAddr)

	if err := writeFrame(conn, Frame{
		Kind:      KindGreeting,
		Content:   Greeting(time.Now()),
		SessionID: sessionID,
	}); err != nil {
		b.logger.Warn("greeting write failed", "session", sessionID, "error", err)
		return
	}

	b.serve(r.Context(), conn, sessionID)
	b.logger.Info("voice client disconnected", "session", sessionID)
}

func (b *Bridge) serve(ctx context.Context, conn *websocket.Conn, sessionID string) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !isClosed(err) {
				b.logger.Warn("voice read failed", "session", sessionID, "error", err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(msg, &frame); err != nil || frame.Kind != KindUtterance {
			if err := writeFrame(conn, Frame{
				Kind:      KindError,
				Content:   "Unexpected response.",
				SessionID: sessionID,
			}); err != nil {
				return
			}
			continue
		}

		reply, err := b.agent.Process(ctx, sessionID, frame.Content)
		if errors.Is(err, agent.ErrEmptyInput) {
			continue
		}

		out := Frame{Kind: KindReply, Content: reply, SessionID: sessionID}
		if err != nil {
			out = Frame{Kind: KindError, Content: agent.UserMessage(err), SessionID: sessionID}
		}
		if err := writeFrame(conn, out); err != nil {
			b.logger.Warn("voice write failed", "session", sessionID, "error", err)
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// isClosed reports whether err is an expected end-of-connection.
func isClosed(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure)
}
