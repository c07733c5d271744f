package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/dental-scheduling-agent/internal/appointments"
	"github.com/wolfman30/dental-scheduling-agent/internal/availability"
	"github.com/wolfman30/dental-scheduling-agent/pkg/logging"
)

var bookingsTracer = otel.Tracer("dental.internal.bookings")

// Notifier is told about every committed appointment.
type Notifier interface {
	AppointmentBooked(ctx context.Context, rec appointments.Record) error
}

// Recorder observes booking outcomes. Satisfied by the metrics package.
type Recorder interface {
	ObserveBooking(outcome string)
}

// Request is a booking request with a resolved start time.
type Request struct {
	PatientName string
	Contact     string
	Reason      string
	Start       time.Time
}

// Service is the only writer of the schedule. It serializes commits through
// its Locker and re-checks for overlaps against a fresh read right before
// appending.
type Service struct {
	store    appointments.Store
	engine   *availability.Engine
	locker   Locker
	logger   *logging.Logger
	notifier Notifier
	recorder Recorder
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithLocker replaces the default in-process lock.
func WithLocker(l Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithNotifier sets the post-commit notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithClock overrides the created_at clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs the booking writer. engine supplies the operating
// window; when nil, window checks are skipped.
func NewService(store appointments.Store, engine *availability.Engine, logger *logging.Logger, opts ...Option) *Service {
	if store == nil {
		panic("bookings: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		store:  store,
		engine: engine,
		locker: NewLocalLocker(),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParseStart parses a canonical YYYY-MM-DD HH:MM:SS start time.
func ParseStart(value string) (time.Time, error) {
	t, err := time.ParseInLocation(appointments.TimeLayout, strings.TrimSpace(value), time.Local)
	if err != nil {
		return time.Time{}, &FormatError{Value: value, Err: err}
	}
	return t, nil
}

// BookText parses start and books it. Malformed start text fails with *FormatError.
func (s *Service) BookText(ctx context.Context, patientName, contact, reason, start string) (*appointments.Record, error) {
	startAt, err := ParseStart(start)
	if err != nil {
		s.observe("format_error")
		return nil, err
	}
	return s.Book(ctx, Request{PatientName: patientName, Contact: contact, Reason: reason, Start: startAt})
}

// Book appends a one-hour appointment starting at req.Start.
func (s *Service) Book(ctx context.Context, req Request) (*appointments.Record, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.book")
	defer span.End()
	span.SetAttributes(attribute.String("dental.start", appointments.FormatTime(req.Start)))

	name := strings.TrimSpace(req.PatientName)
	if name == "" {
		s.observe("invalid")
		return nil, ErrMissingPatientName
	}
	end := req.Start.Add(appointments.DefaultDuration)
	if s.engine != nil {
		openAt, closeAt := s.engine.Window(req.Start)
		if req.Start.Before(openAt) || end.After(closeAt) {
			s.observe("outside_hours")
			return nil, ErrOutsideHours
		}
	}

	rec, err := s.commitLocked(ctx, appointments.Record{
		Start:       req.Start,
		End:         end,
		PatientName: name,
		Contact:     strings.TrimSpace(req.Contact),
		Reason:      strings.TrimSpace(req.Reason),
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.logger.Info("booking confirmed",
		"start", appointments.FormatTime(rec.Start),
		"end", appointments.FormatTime(rec.End),
		"reason", rec.Reason,
		"contact_hash", logging.HashContact(rec.Contact),
	)
	s.observe("confirmed")
	if s.notifier != nil {
		if err := s.notifier.AppointmentBooked(ctx, *rec); err != nil {
			s.logger.Warn("booking notification failed", "error", err, "start", appointments.FormatTime(rec.Start))
		}
	}
	return rec, nil
}

// commitLocked holds the write lock for the duration of commit, including
// when a store backend panics.
func (s *Service) commitLocked(ctx context.Context, rec appointments.Record) (*appointments.Record, error) {
	release, err := s.locker.Lock(ctx)
	if err != nil {
		s.observe("lock_error")
		return nil, &appointments.StoreWriteError{Backend: "lock", Err: err}
	}
	defer release()
	return s.commit(ctx, rec)
}

// commit runs under the write lock.
func (s *Service) commit(ctx context.Context, rec appointments.Record) (*appointments.Record, error) {
	existing, err := s.store.ReadAll(ctx)
	if err != nil {
		s.observe("read_error")
		return nil, err
	}
	if availability.Conflicts(existing, rec.Start, rec.End) {
		s.observe("slot_taken")
		return nil, ErrSlotTaken
	}

	rec.CreatedAt = s.now()
	if err := s.store.Append(ctx, rec); err != nil {
		if errors.Is(err, appointments.ErrConflict) {
			s.observe("slot_taken")
			return nil, fmt.Errorf("%w: %v", ErrSlotTaken, err)
		}
		s.observe("write_error")
		return nil, err
	}
	return &rec, nil
}

func (s *Service) observe(outcome string) {
	if s.recorder != nil {
		s.recorder.ObserveBooking(outcome)
	}
}
