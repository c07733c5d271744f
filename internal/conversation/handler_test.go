package conversation

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/conversations/start", h.Start)
	r.Get("/conversations/{conversationID}", h.Transcript)
	r.Post("/conversations/{conversationID}/messages", h.Message)
	return r
}

func TestHandlerStartAndMessage(t *testing.T) {
	hs := newHarness(t, "Qual o seu nome?", scheduleJSON)
	router := newTestRouter(NewHandler(hs.orch, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/conversations/start", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	var started turnResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	require.NotEmpty(t, started.ConversationID)

	send := func(text string) turnResponse {
		rec := httptest.NewRecorder()
		body := strings.NewReader(`{"text":"` + text + `"}`)
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/conversations/"+started.ConversationID+"/messages", body))
		require.Equal(t, http.StatusOK, rec.Code)
		var resp turnResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	first := send("Quero uma limpeza")
	assert.Equal(t, "Qual o seu nome?", first.Reply)
	assert.Nil(t, first.Appointment)

	second := send("Ana Silva, segunda às 14h")
	assert.Equal(t, StateConfirmed, second.State)
	require.NotNil(t, second.Appointment)
	assert.Equal(t, "2024-06-10 14:00:00", second.Appointment.Start)
	assert.Equal(t, "2024-06-10 15:00:00", second.Appointment.End)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations/"+started.ConversationID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var transcript transcriptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &transcript))
	assert.Len(t, transcript.Messages, 5)
}

func TestHandlerMessageValidation(t *testing.T) {
	hs := newHarness(t)
	router := newTestRouter(NewHandler(hs.orch, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/conversations/abc/messages", strings.NewReader("not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/conversations/abc/messages", strings.NewReader(`{"text":"  "}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerTranscriptUnknown(t *testing.T) {
	hs := newHarness(t)
	router := newTestRouter(NewHandler(hs.orch, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerMessageHistoryUnavailable(t *testing.T) {
	orch := NewOrchestrator(OrchestratorConfig{
		LLM:     &stubLLM{},
		History: failingHistory{loadErr: errors.New("redis down")},
		Booker:  stubBooker{},
	})
	router := newTestRouter(NewHandler(orch, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/conversations/abc/messages", strings.NewReader(`{"text":"oi"}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "Desculpe")
}
