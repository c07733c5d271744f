package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/dental-scheduling-agent/internal/conversation"
	"github.com/wolfman30/dental-scheduling-agent/pkg/logging"
)

// fakeConversations echoes user text and tracks transcripts in memory.
type fakeConversations struct {
	mu      sync.Mutex
	next    int
	history map[string][]conversation.ChatMessage
	turnErr error
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{history: make(map[string][]conversation.ChatMessage)}
}

func (f *fakeConversations) StartConversation(context.Context) (conversation.TurnResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := "conv-" + string(rune('0'+f.next))
	f.history[id] = []conversation.ChatMessage{{Role: conversation.ChatRoleAssistant, Content: "Olá!"}}
	return conversation.TurnResult{ConversationID: id, Reply: "Olá!", State: conversation.StateGathering}, nil
}

func (f *fakeConversations) HandleTurn(_ context.Context, id, text string) (conversation.TurnResult, error) {
	if f.turnErr != nil {
		return conversation.TurnResult{}, f.turnErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	reply := "eco: " + text
	f.history[id] = append(f.history[id],
		conversation.ChatMessage{Role: conversation.ChatRoleUser, Content: text},
		conversation.ChatMessage{Role: conversation.ChatRoleAssistant, Content: reply},
	)
	return conversation.TurnResult{ConversationID: id, Reply: reply, State: conversation.StateGathering}, nil
}

func (f *fakeConversations) Transcript(_ context.Context, id string) ([]conversation.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs, ok := f.history[id]
	if !ok {
		return nil, conversation.ErrUnknownConversation
	}
	return append([]conversation.ChatMessage(nil), msgs...), nil
}

func dialWS(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, err := websocket.Dial(url, "", "http://localhost/")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func receive(t *testing.T, conn *websocket.Conn) OutboundMessage {
	t.Helper()
	var msg OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	return msg
}

func TestWebSocketNewSession(t *testing.T) {
	h := NewHandler(newFakeConversations(), nil, logging.New("error"))
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	conn := dialWS(t, srv, "")
	session := receive(t, conn)
	assert.Equal(t, "session", session.Type)
	assert.Equal(t, "conv-1", session.SessionID)

	history := receive(t, conn)
	assert.Equal(t, "history", history.Type)
	require.Len(t, history.Messages, 1)
	assert.Equal(t, "Olá!", history.Messages[0].Text)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "ping"}))
	assert.Equal(t, "pong", receive(t, conn).Type)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "quero marcar"}))
	assert.Equal(t, "typing", receive(t, conn).Type)
	reply := receive(t, conn)
	assert.Equal(t, "message", reply.Type)
	assert.Equal(t, "eco: quero marcar", reply.Text)
	assert.Equal(t, "gathering", reply.State)
}

func TestWebSocketResumesSession(t *testing.T) {
	convs := newFakeConversations()
	_, _ = convs.StartConversation(context.Background())
	_, _ = convs.HandleTurn(context.Background(), "conv-1", "oi")

	h := NewHandler(convs, nil, logging.New("error"))
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	conn := dialWS(t, srv, "?session=conv-1")
	assert.Equal(t, "conv-1", receive(t, conn).SessionID)
	history := receive(t, conn)
	assert.Len(t, history.Messages, 3)
}

func TestWebSocketTurnError(t *testing.T) {
	convs := newFakeConversations()
	convs.turnErr = errors.New("redis down")
	h := NewHandler(convs, nil, logging.New("error"))
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	conn := dialWS(t, srv, "")
	receive(t, conn)
	receive(t, conn)
	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "oi"}))
	receive(t, conn)
	msg := receive(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, errorText, msg.Text)
}

func TestHandleMessageHTTP(t *testing.T) {
	h := NewHandler(newFakeConversations(), nil, logging.New("error"))

	req := httptest.NewRequest(http.MethodPost, "/webchat/message", strings.NewReader(`{"text":"Hello"}`))
	w := httptest.NewRecorder()
	h.HandleMessage(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp OutboundMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "conv-1", resp.SessionID)
	assert.Equal(t, "eco: Hello", resp.Text)
}

func TestHandleMessageMissingText(t *testing.T) {
	h := NewHandler(newFakeConversations(), nil, logging.New("error"))

	w := httptest.NewRecorder()
	h.HandleMessage(w, httptest.NewRequest(http.MethodPost, "/webchat/message", strings.NewReader(`{"session_id":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHistory(t *testing.T) {
	convs := newFakeConversations()
	_, _ = convs.StartConversation(context.Background())
	h := NewHandler(convs, nil, logging.New("error"))

	w := httptest.NewRecorder()
	h.HandleHistory(w, httptest.NewRequest(http.MethodGet, "/webchat/history?session=conv-1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Messages []HistoryMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "assistant", resp.Messages[0].Role)

	w = httptest.NewRecorder()
	h.HandleHistory(w, httptest.NewRequest(http.MethodGet, "/webchat/history?session=missing", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"messages":[]`)

	w = httptest.NewRecorder()
	h.HandleHistory(w, httptest.NewRequest(http.MethodGet, "/webchat/history", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleWidgetJS(t *testing.T) {
	h := NewHandler(newFakeConversations(), nil, logging.New("error"))

	w := httptest.NewRecorder()
	h.HandleWidgetJS(w, httptest.NewRequest(http.MethodGet, "/webchat/widget.js", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/javascript", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "/webchat/ws")
}
