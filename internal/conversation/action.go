package conversation

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/dental-scheduling-agent/internal/bookings"
)

// ActionSchedule is the only action kind the assistant emits.
const ActionSchedule = "schedule"

// SchedulingAction is a booking request the model embedded in its reply.
type SchedulingAction struct {
	Kind           string `json:"action_kind"`
	PatientName    string `json:"patient_name"`
	Contact        string `json:"contact"`
	Reason         string `json:"reason"`
	RequestedStart string `json:"requested_start"`
}

// IncompleteActionError reports a recognized scheduling action that lacks
// required fields.
type IncompleteActionError struct {
	Missing []string
}

func (e *IncompleteActionError) Error() string {
	return "conversation: scheduling action missing " + strings.Join(e.Missing, ", ")
}

var (
	fencedJSONPattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")
	jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)
)

// Keys accepted for each field: English first, then Portuguese.
var (
	kindKeys    = []string{"action_kind", "acao"}
	nameKeys    = []string{"patient_name", "nome"}
	contactKeys = []string{"contact", "contato"}
	reasonKeys  = []string{"reason", "motivo"}
	startKeys   = []string{"requested_start", "data_desejada"}
)

// TryExtractAction looks for a scheduling action in a model reply. Replies
// without a recognizable action return nil, nil and are shown to the user as-is.
func TryExtractAction(reply string) (*SchedulingAction, error) {
	fields := decodeObject(reply)
	if fields == nil || !isScheduleKind(fields) {
		return nil, nil
	}

	action := &SchedulingAction{Kind: ActionSchedule}
	var missing []string
	var ok bool
	if action.PatientName, ok = textField(fields, nameKeys, false); !ok || strings.TrimSpace(action.PatientName) == "" {
		missing = append(missing, nameKeys[0])
	}
	if action.RequestedStart, ok = textField(fields, startKeys, false); !ok || strings.TrimSpace(action.RequestedStart) == "" {
		missing = append(missing, startKeys[0])
	}
	if len(missing) > 0 {
		return nil, &IncompleteActionError{Missing: missing}
	}
	action.Contact, _ = textField(fields, contactKeys, true)
	action.Reason, _ = textField(fields, reasonKeys, true)
	return action, nil
}

// ParseRequestedStart converts the action's start text to a local time.
func ParseRequestedStart(action *SchedulingAction) (time.Time, error) {
	if action == nil {
		return time.Time{}, &bookings.FormatError{Value: "", Err: errors.New("no scheduling action")}
	}
	return bookings.ParseStart(action.RequestedStart)
}

// decodeObject returns the JSON object embedded in reply, preferring a fenced
// block. The match runs from the first '{' to the last '}'.
func decodeObject(reply string) map[string]any {
	if m := fencedJSONPattern.FindStringSubmatch(reply); m != nil {
		if fields := decodeGreedy(m[1]); fields != nil {
			return fields
		}
	}
	return decodeGreedy(reply)
}

func decodeGreedy(text string) map[string]any {
	raw := jsonObjectPattern.FindString(text)
	if raw == "" {
		return nil
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil
	}
	return fields
}

func isScheduleKind(fields map[string]any) bool {
	if v, ok := fields[kindKeys[0]].(string); ok && v == ActionSchedule {
		return true
	}
	v, ok := fields[kindKeys[1]].(string)
	return ok && v == "agendar"
}

// textField returns the first present key as text. With numeric set, a number
// is accepted too, so a phone emitted without quotes still reads back.
func textField(fields map[string]any, keys []string, numeric bool) (string, bool) {
	for _, key := range keys {
		v, present := fields[key]
		if !present {
			continue
		}
		switch val := v.(type) {
		case string:
			return val, true
		case float64:
			if !numeric {
				return "", false
			}
			return strconv.FormatFloat(val, 'f', -1, 64), true
		default:
			return "", false
		}
	}
	return "", false
}
