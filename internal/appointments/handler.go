package appointments

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/dental-scheduling-agent/pkg/logging"
)

// Handler exposes the schedule to clinic staff.
type Handler struct {
	store  Store
	logger *logging.Logger
}

// NewHandler creates an appointments handler.
func NewHandler(store Store, logger *logging.Logger) *Handler {
	if store == nil {
		panic("appointments: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

type appointmentView struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	PatientName string `json:"patient_name"`
	Contact     string `json:"contact"`
	Reason      string `json:"reason"`
	CreatedAt   string `json:"created_at"`
}

type listResponse struct {
	Date         string            `json:"date,omitempty"`
	Appointments []appointmentView `json:"appointments"`
}

// List handles GET /admin/appointments?date=YYYY-MM-DD. Without a date the
// full schedule is returned.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	dateParam := strings.TrimSpace(r.URL.Query().Get("date"))
	var day time.Time
	if dateParam != "" {
		parsed, err := time.ParseInLocation("2006-01-02", dateParam, time.Local)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		day = parsed
	}

	records, err := h.store.ReadAll(r.Context())
	if err != nil {
		h.logger.Error("failed to read schedule", "error", err)
		var readErr *StoreReadError
		if errors.As(err, &readErr) {
			http.Error(w, "Schedule unavailable", http.StatusBadGateway)
			return
		}
		http.Error(w, "Failed to read schedule", http.StatusInternalServerError)
		return
	}
	if !day.IsZero() {
		records = OnDay(records, day)
	}
	SortByStart(records)

	resp := listResponse{Date: dateParam, Appointments: make([]appointmentView, 0, len(records))}
	for _, rec := range records {
		row := rec.Row()
		resp.Appointments = append(resp.Appointments, appointmentView{
			Start:       row[0],
			End:         row[1],
			PatientName: row[2],
			Contact:     row[3],
			Reason:      row[4],
			CreatedAt:   row[5],
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
