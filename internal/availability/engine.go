package availability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/dental-scheduling-agent/internal/appointments"
	"github.com/wolfman30/dental-scheduling-agent/pkg/logging"
)

var availabilityTracer = otel.Tracer("dental.internal.availability")

// Options configures the daily operating window.
type Options struct {
	// Open and Close are offsets from midnight.
	Open  time.Duration
	Close time.Duration
}

// DefaultOptions is the clinic's 09:00–18:00 window.
func DefaultOptions() Options {
	return Options{Open: 9 * time.Hour, Close: 18 * time.Hour}
}

// Recorder observes availability queries. Satisfied by the metrics package.
type Recorder interface {
	ObserveAvailability(outcome string, free int)
}

// Engine computes free grid slots over a snapshot of the schedule.
type Engine struct {
	store    appointments.Store
	opts     Options
	logger   *logging.Logger
	recorder Recorder
}

// NewEngine constructs an availability engine.
func NewEngine(store appointments.Store, opts Options, logger *logging.Logger) *Engine {
	if store == nil {
		panic("availability: store required")
	}
	if opts.Close <= opts.Open {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{store: store, opts: opts, logger: logger}
}

// WithRecorder attaches a metrics recorder.
func (e *Engine) WithRecorder(r Recorder) *Engine {
	e.recorder = r
	return e
}

// Window returns the operating window on the calendar day of day, in day's location.
func (e *Engine) Window(day time.Time) (openAt, closeAt time.Time) {
	y, m, d := day.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	return midnight.Add(e.opts.Open), midnight.Add(e.opts.Close)
}

// FindAvailableSlots returns the chronological start times of free slots on
// day. Slots sit on a fixed grid: window open plus k*duration. A non-positive
// duration means one hour. If the schedule cannot be read the result is an
// empty slice together with the read error; no slot is ever reported free
// without a successful read.
func (e *Engine) FindAvailableSlots(ctx context.Context, day time.Time, duration time.Duration) ([]time.Time, error) {
	ctx, span := availabilityTracer.Start(ctx, "availability.find_slots")
	defer span.End()

	if duration <= 0 {
		duration = appointments.DefaultDuration
	}
	span.SetAttributes(
		attribute.String("dental.day", day.Format("2006-01-02")),
		attribute.Int64("dental.duration_minutes", int64(duration/time.Minute)),
	)

	records, err := e.store.ReadAll(ctx)
	if err != nil {
		span.RecordError(err)
		e.logger.Error("availability: failed to read schedule", "error", err, "day", day.Format("2006-01-02"))
		e.observe("read_error", 0)
		var readErr *appointments.StoreReadError
		if !errors.As(err, &readErr) {
			err = &appointments.StoreReadError{Backend: "unknown", Err: err}
		}
		return []time.Time{}, err
	}

	openAt, closeAt := e.Window(day)
	slots := freeSlots(records, openAt, closeAt, duration)
	e.observe("ok", len(slots))
	return slots, nil
}

// IsAvailable reports whether [start, start+duration) lies inside the
// operating window and overlaps no booking. It does not require grid alignment.
func (e *Engine) IsAvailable(ctx context.Context, start time.Time, duration time.Duration) (bool, error) {
	if duration <= 0 {
		duration = appointments.DefaultDuration
	}
	openAt, closeAt := e.Window(start)
	end := start.Add(duration)
	if start.Before(openAt) || end.After(closeAt) {
		return false, nil
	}
	records, err := e.store.ReadAll(ctx)
	if err != nil {
		return false, err
	}
	return !Conflicts(records, start, end), nil
}

// Conflicts reports whether any record overlaps [start, end).
func Conflicts(records []appointments.Record, start, end time.Time) bool {
	for _, rec := range records {
		if Overlaps(start, end, rec.Start, rec.End) {
			return true
		}
	}
	return false
}

// Overlaps is the half-open interval test shared by the engine and the
// booking writer.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func freeSlots(records []appointments.Record, openAt, closeAt time.Time, duration time.Duration) []time.Time {
	slots := []time.Time{}
	for start := openAt; !start.Add(duration).After(closeAt); start = start.Add(duration) {
		if !Conflicts(records, start, start.Add(duration)) {
			slots = append(slots, start)
		}
	}
	return slots
}

func (e *Engine) observe(outcome string, free int) {
	if e.recorder != nil {
		e.recorder.ObserveAvailability(outcome, free)
	}
}
