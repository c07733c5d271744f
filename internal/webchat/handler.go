package webchat

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/websocket"

	"github.com/wolfman30/dental-scheduling-agent/internal/conversation"
	"github.com/wolfman30/dental-scheduling-agent/pkg/logging"
)

//go:embed widget.js
var defaultWidgetJS []byte

const errorText = "Desculpe, algo deu errado. Por favor, tente novamente."

// Conversations is the part of the orchestrator the widget drives.
type Conversations interface {
	StartConversation(ctx context.Context) (conversation.TurnResult, error)
	HandleTurn(ctx context.Context, conversationID, text string) (conversation.TurnResult, error)
	Transcript(ctx context.Context, conversationID string) ([]conversation.ChatMessage, error)
}

// Handler serves the web chat widget over WebSocket with an HTTP fallback.
type Handler struct {
	conversations Conversations
	logger        *logging.Logger
	widgetJS      []byte
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string           `json:"type"` // "message", "typing", "history", "session", "error", "pong"
	Text      string           `json:"text,omitempty"`
	Role      string           `json:"role,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
	State     string           `json:"state,omitempty"`
	Timestamp string           `json:"timestamp,omitempty"`
	Messages  []HistoryMessage `json:"messages,omitempty"`
}

// HistoryMessage is a simplified message for history responses.
type HistoryMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// NewHandler creates a web chat handler. A nil widgetJS serves the bundled widget.
func NewHandler(conversations Conversations, widgetJS []byte, logger *logging.Logger) *Handler {
	if conversations == nil {
		panic("webchat: conversations required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if widgetJS == nil {
		widgetJS = defaultWidgetJS
	}
	return &Handler{
		conversations: conversations,
		logger:        logger,
		widgetJS:      widgetJS,
	}
}

// HandleWebSocket upgrades to WebSocket and handles real-time messaging.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	ctx := r.Context()
	// The hijacked connection keeps the server's write deadline; chats outlive it.
	_ = conn.SetDeadline(time.Time{})
	sessionID, history, err := h.resume(ctx, r.URL.Query().Get("session"))
	if err != nil {
		h.logger.Error("webchat: failed to open session", "error", err)
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: errorText})
		return
	}

	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "session", SessionID: sessionID})
	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "history", Messages: history})
	h.logger.Info("webchat: connection opened", "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}

		if msg.Type == "ping" {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
			continue
		}
		if msg.Type != "message" || strings.TrimSpace(msg.Text) == "" {
			continue
		}

		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "typing"})
		if err := websocket.JSON.Send(conn, h.reply(ctx, sessionID, msg.Text)); err != nil {
			return
		}
	}
}

// resume reopens an existing session or starts a new one when the id is
// empty or expired.
func (h *Handler) resume(ctx context.Context, sessionID string) (string, []HistoryMessage, error) {
	if sessionID != "" {
		msgs, err := h.conversations.Transcript(ctx, sessionID)
		if err == nil {
			return sessionID, toHistory(msgs), nil
		}
		if !errors.Is(err, conversation.ErrUnknownConversation) {
			return "", nil, err
		}
	}
	res, err := h.conversations.StartConversation(ctx)
	if err != nil {
		return "", nil, err
	}
	return res.ConversationID, []HistoryMessage{{Role: conversation.ChatRoleAssistant, Text: res.Reply}}, nil
}

func (h *Handler) reply(ctx context.Context, sessionID, text string) OutboundMessage {
	res, err := h.conversations.HandleTurn(ctx, sessionID, text)
	if err != nil {
		h.logger.Error("webchat: turn failed", "session_id", sessionID, "error", err)
		return OutboundMessage{Type: "error", Text: errorText}
	}
	return OutboundMessage{
		Type:      "message",
		Role:      conversation.ChatRoleAssistant,
		Text:      res.Reply,
		State:     string(res.State),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// HandleMessage is the HTTP fallback for sending messages.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Text      string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	sessionID, _, err := h.resume(r.Context(), req.SessionID)
	if err != nil {
		h.logger.Error("webchat: failed to open session", "error", err)
		http.Error(w, "failed to open session", http.StatusInternalServerError)
		return
	}
	out := h.reply(r.Context(), sessionID, req.Text)
	out.SessionID = sessionID

	status := http.StatusOK
	if out.Type == "error" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, out)
}

// HandleHistory returns chat history for a session.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}

	msgs, err := h.conversations.Transcript(r.Context(), sessionID)
	if errors.Is(err, conversation.ErrUnknownConversation) {
		writeJSON(w, http.StatusOK, map[string]any{"messages": []HistoryMessage{}})
		return
	}
	if err != nil {
		h.logger.Error("webchat: failed to load history", "error", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": toHistory(msgs)})
}

// HandleWidgetJS serves the embeddable widget JavaScript.
func (h *Handler) HandleWidgetJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write(h.widgetJS)
}

func toHistory(msgs []conversation.ChatMessage) []HistoryMessage {
	history := make([]HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, HistoryMessage{Role: m.Role, Text: m.Content})
	}
	return history
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
