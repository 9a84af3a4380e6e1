package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-reader/internal/dialogue"
	"github.com/lexiqai/voice-reader/internal/language"
)

type stubSynthesizer struct{}

func (stubSynthesizer) Synthesize(ctx context.Context, text string, lang language.Language) ([]byte, error) {
	return []byte(lang.Command + ":" + text), nil
}

func dial(t *testing.T) (*websocket.Conn, string) {
	t.Helper()

	engine := dialogue.NewEngine(dialogue.NewMemoryStore(), stubSynthesizer{})
	server := httptest.NewServer(Handle(engine, zerolog.Nop()))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	session := readJSON(t, conn)
	if session.Type != "session" || !strings.HasPrefix(session.ConversationID, "ws:") {
		t.Fatalf("Expected session frame, got %+v", session)
	}
	return conn, session.ConversationID
}

func readJSON(t *testing.T, conn *websocket.Conn) OutboundMessage {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Fatalf("Expected text frame, got type %d", msgType)
	}

	var out OutboundMessage
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Invalid JSON frame %q: %v", data, err)
	}
	return out
}

func send(t *testing.T, conn *websocket.Conn, in InboundMessage) {
	t.Helper()
	if err := conn.WriteJSON(in); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
}

func TestHandle_Conversation(t *testing.T) {
	conn, _ := dial(t)

	send(t, conn, InboundMessage{Command: "spanish"})
	if got := readJSON(t, conn); got.Type != "text" || got.Text != "Send me a plain text in Spanish." {
		t.Fatalf("Unexpected prompt frame: %+v", got)
	}

	send(t, conn, InboundMessage{Text: "Hola. Adios."})

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Fatalf("Expected binary audio frame, got type %d", msgType)
	}
	if string(data) != "spanish:Hola. Adios." {
		t.Errorf("Unexpected audio %q", data)
	}

	// Back to awaiting a command
	send(t, conn, InboundMessage{Text: "Again."})
	if got := readJSON(t, conn); !strings.HasPrefix(got.Text, "These commands are supported:") {
		t.Errorf("Expected command list, got %+v", got)
	}
}

func TestHandle_InvalidFrameReprompts(t *testing.T) {
	conn, _ := dial(t)

	send(t, conn, InboundMessage{Command: "italian"})
	readJSON(t, conn)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	if got := readJSON(t, conn); got.Text != "Send me a plain text in Italian." {
		t.Errorf("Expected reprompt, got %+v", got)
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	if got := readJSON(t, conn); got.Text != "Send me a plain text in Italian." {
		t.Errorf("Expected reprompt for binary frame, got %+v", got)
	}
}

func TestHandle_ConnectionsAreSeparateConversations(t *testing.T) {
	engine := dialogue.NewEngine(dialogue.NewMemoryStore(), stubSynthesizer{})
	server := httptest.NewServer(Handle(engine, zerolog.Nop()))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")

	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer first.Close()
	second, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer second.Close()

	a := readJSON(t, first)
	b := readJSON(t, second)
	if a.ConversationID == b.ConversationID {
		t.Fatalf("Expected distinct conversation ids, got %s twice", a.ConversationID)
	}

	send(t, first, InboundMessage{Command: "polish"})
	readJSON(t, first)

	// The second connection never chose a language
	send(t, second, InboundMessage{Text: "Hello."})
	if got := readJSON(t, second); !strings.HasPrefix(got.Text, "These commands are supported:") {
		t.Errorf("Expected command list on second connection, got %+v", got)
	}
}
