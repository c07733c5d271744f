package conversation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/dental-scheduling-agent/internal/appointments"
	"github.com/wolfman30/dental-scheduling-agent/pkg/logging"
)

const maxMessageBytes = 16 << 10

// Handler wires HTTP requests to the orchestrator.
type Handler struct {
	orchestrator *Orchestrator
	logger       *logging.Logger
}

// NewHandler creates a conversation handler.
func NewHandler(orchestrator *Orchestrator, logger *logging.Logger) *Handler {
	if orchestrator == nil {
		panic("conversation: orchestrator required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		orchestrator: orchestrator,
		logger:       logger,
	}
}

type messageRequest struct {
	Text string `json:"text"`
}

type appointmentView struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	PatientName string `json:"patient_name"`
	Contact     string `json:"contact"`
	Reason      string `json:"reason"`
}

type turnResponse struct {
	ConversationID string           `json:"conversation_id"`
	Reply          string           `json:"reply"`
	State          State            `json:"state"`
	Appointment    *appointmentView `json:"appointment,omitempty"`
}

type transcriptResponse struct {
	ConversationID string        `json:"conversation_id"`
	Messages       []ChatMessage `json:"messages"`
}

// Start handles POST /conversations/start.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	res, err := h.orchestrator.StartConversation(r.Context())
	if err != nil {
		h.logger.Error("failed to start conversation", "error", err)
		http.Error(w, "Failed to start conversation", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusCreated, newTurnResponse(res))
}

// Message handles POST /conversations/{conversationID}/messages.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	var req messageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.orchestrator.HandleTurn(r.Context(), conversationID, req.Text)
	if errors.Is(err, ErrEmptyMessage) {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.logger.Error("failed to process message", "conversation_id", conversationID, "error", err)
		h.writeJSON(w, http.StatusServiceUnavailable, turnResponse{
			ConversationID: conversationID,
			Reply:          replyUnexpected,
			State:          StateGathering,
		})
		return
	}
	h.writeJSON(w, http.StatusOK, newTurnResponse(res))
}

// Transcript handles GET /conversations/{conversationID}.
func (h *Handler) Transcript(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	msgs, err := h.orchestrator.Transcript(r.Context(), conversationID)
	if errors.Is(err, ErrUnknownConversation) {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to load conversation", "conversation_id", conversationID, "error", err)
		http.Error(w, "Failed to load conversation", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, transcriptResponse{ConversationID: conversationID, Messages: msgs})
}

func newTurnResponse(res TurnResult) turnResponse {
	resp := turnResponse{
		ConversationID: res.ConversationID,
		Reply:          res.Reply,
		State:          res.State,
	}
	if rec := res.Appointment; rec != nil {
		resp.Appointment = &appointmentView{
			Start:       appointments.FormatTime(rec.Start),
			End:         appointments.FormatTime(rec.End),
			PatientName: rec.PatientName,
			Contact:     rec.Contact,
			Reason:      rec.Reason,
		}
	}
	return resp
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
