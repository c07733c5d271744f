package availability

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/dental-scheduling-agent/internal/appointments"
	"github.com/wolfman30/dental-scheduling-agent/pkg/logging"
)

// Handler serves free-slot queries.
type Handler struct {
	engine *Engine
	logger *logging.Logger
}

// NewHandler creates an availability handler.
func NewHandler(engine *Engine, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{engine: engine, logger: logger}
}

type slotsResponse struct {
	Date            string   `json:"date"`
	DurationMinutes int      `json:"duration_minutes"`
	Slots           []string `json:"slots"`
	Error           string   `json:"error,omitempty"`
}

type checkResponse struct {
	Start           string `json:"start"`
	DurationMinutes int    `json:"duration_minutes"`
	Available       bool   `json:"available"`
	Error           string `json:"error,omitempty"`
}

// Slots handles GET /availability?date=YYYY-MM-DD&duration_minutes=60.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(q.Get("date")), time.Local)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	minutes, err := h.durationMinutes(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	slots, err := h.engine.FindAvailableSlots(r.Context(), day, time.Duration(minutes)*time.Minute)
	resp := slotsResponse{
		Date:            day.Format("2006-01-02"),
		DurationMinutes: minutes,
		Slots:           make([]string, 0, len(slots)),
	}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, appointments.FormatTime(s))
	}
	status := http.StatusOK
	if err != nil {
		resp.Error = "schedule unavailable"
		status = http.StatusBadGateway
	}
	h.writeJSON(w, status, resp)
}

// Check handles GET /availability/check?start=YYYY-MM-DD HH:MM:SS&duration_minutes=60.
// The start need not sit on the slot grid.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := appointments.ParseTime(q.Get("start"))
	if err != nil {
		http.Error(w, "start must be YYYY-MM-DD HH:MM:SS", http.StatusBadRequest)
		return
	}
	minutes, err := h.durationMinutes(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ok, err := h.engine.IsAvailable(r.Context(), start, time.Duration(minutes)*time.Minute)
	resp := checkResponse{
		Start:           appointments.FormatTime(start),
		DurationMinutes: minutes,
		Available:       ok,
	}
	status := http.StatusOK
	if err != nil {
		resp.Available = false
		resp.Error = "schedule unavailable"
		status = http.StatusBadGateway
	}
	h.writeJSON(w, status, resp)
}

// durationMinutes reads duration_minutes, defaulting to one appointment. A
// duration longer than the operating window can never fit and is rejected.
func (h *Handler) durationMinutes(q url.Values) (int, error) {
	raw := strings.TrimSpace(q.Get("duration_minutes"))
	if raw == "" {
		return int(appointments.DefaultDuration / time.Minute), nil
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return 0, errors.New("duration_minutes must be a positive integer")
	}
	if limit := int((h.engine.opts.Close - h.engine.opts.Open) / time.Minute); minutes > limit {
		return 0, fmt.Errorf("duration_minutes must not exceed %d", limit)
	}
	return minutes, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
