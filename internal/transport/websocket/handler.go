// Package websocket serves conversations over a WebSocket connection, one
// conversation per connection.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-reader/internal/dialogue"
	"github.com/lexiqai/voice-reader/internal/observability"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Browser and dev clients connect from arbitrary origins
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Handler processes one conversation turn
type Handler interface {
	Handle(ctx context.Context, msg dialogue.Message, out dialogue.Replier) error
}

// InboundMessage is a client frame: either a command or a text
type InboundMessage struct {
	Command string `json:"command,omitempty"`
	Text    string `json:"text,omitempty"`
}

// OutboundMessage is a JSON frame sent to the client. Audio is sent as a
// binary frame instead.
type OutboundMessage struct {
	Type           string `json:"type"` // "session" or "text"
	ConversationID string `json:"conversation_id,omitempty"`
	Text           string `json:"text,omitempty"`
}

// Handle returns the HTTP handler upgrading requests to conversations
func Handle(handler Handler, logger zerolog.Logger) http.HandlerFunc {
	logger = logger.With().Str("component", "websocket").Logger()

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already replied with an HTTP error
			logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
			return
		}
		defer conn.Close()

		s := newSession(conn, handler, logger)
		s.run(r.Context())
	}
}

// session is one connection and its conversation
type session struct {
	conn           *websocket.Conn
	handler        Handler
	conversationID string
	logger         zerolog.Logger

	writeMu sync.Mutex
}

func newSession(conn *websocket.Conn, handler Handler, logger zerolog.Logger) *session {
	id := "ws:" + uuid.New().String()
	return &session{
		conn:           conn,
		handler:        handler,
		conversationID: id,
		logger:         observability.WithConversation(logger, id),
	}
}

// run reads frames until the client goes away. Turns run one at a time in
// the read loop.
func (s *session) run(ctx context.Context) {
	s.conn.SetReadLimit(maxMessageSize)
	s.logger.Info().Msg("WebSocket conversation started")
	defer s.logger.Info().Msg("WebSocket conversation ended")

	if err := s.writeJSON(OutboundMessage{Type: "session", ConversationID: s.conversationID}); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to send session frame")
		return
	}

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		msg := dialogue.Message{ConversationID: s.conversationID}
		if msgType == websocket.TextMessage {
			var in InboundMessage
			if err := json.Unmarshal(data, &in); err != nil {
				s.logger.Debug().Err(err).Msg("Invalid frame, treating as message without text")
			} else {
				msg.Command = in.Command
				msg.Text = in.Text
			}
		}
		// Binary frames carry no text

		if err := s.handler.Handle(ctx, msg, s); err != nil {
			s.logger.Error().Err(err).Msg("Turn failed")
		}
	}
}

// SendText implements dialogue.Replier
func (s *session) SendText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.writeJSON(OutboundMessage{Type: "text", Text: text})
}

// SendAudio implements dialogue.Replier
func (s *session) SendAudio(ctx context.Context, audio []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.write(websocket.BinaryMessage, audio)
}

func (s *session) writeJSON(v OutboundMessage) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	return s.write(websocket.TextMessage, data)
}

func (s *session) write(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := s.conn.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}
