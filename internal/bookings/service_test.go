package bookings

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dental-scheduling-agent/internal/appointments"
	"github.com/wolfman30/dental-scheduling-agent/internal/availability"
)

func fixedClock() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)
}

func newTestService(store appointments.Store, opts ...Option) *Service {
	engine := availability.NewEngine(store, availability.DefaultOptions(), nil)
	opts = append([]Option{WithClock(fixedClock)}, opts...)
	return NewService(store, engine, nil, opts...)
}

type stubNotifier struct {
	calls int
	err   error
}

func (s *stubNotifier) AppointmentBooked(context.Context, appointments.Record) error {
	s.calls++
	return s.err
}

type stubRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (s *stubRecorder) ObserveBooking(outcome string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcome)
}

func TestBookTextOnEmptyStore(t *testing.T) {
	store := appointments.NewMemoryStore()
	notifier := &stubNotifier{}
	svc := newTestService(store, WithNotifier(notifier))

	rec, err := svc.BookText(context.Background(), "Ana Silva", "+55 11 90000-0000", "limpeza", "2024-06-10 09:00:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-10 10:00:00", appointments.FormatTime(rec.End))
	assert.Equal(t, fixedClock(), rec.CreatedAt)

	records, err := store.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{
		"2024-06-10 09:00:00", "2024-06-10 10:00:00", "Ana Silva", "+55 11 90000-0000", "limpeza", "2024-06-01 12:00:00",
	}, records[0].Row())
	assert.Equal(t, 1, notifier.calls)
}

func TestBookTextMalformedStart(t *testing.T) {
	store := appointments.NewMemoryStore()
	svc := newTestService(store)

	_, err := svc.BookText(context.Background(), "Ana", "1", "dor", "next Monday")
	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, "next Monday", formatErr.Value)
	assert.Zero(t, store.Len())
}

func TestBookRejectsOverlap(t *testing.T) {
	store := appointments.NewMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.BookText(ctx, "Ana", "1", "limpeza", "2024-06-10 09:00:00")
	require.NoError(t, err)

	_, err = svc.BookText(ctx, "Bruno", "2", "avaliação", "2024-06-10 09:30:00")
	assert.ErrorIs(t, err, ErrSlotTaken)

	_, err = svc.BookText(ctx, "Bruno", "2", "avaliação", "2024-06-10 10:00:00")
	assert.NoError(t, err, "back-to-back booking is allowed")
	assert.Equal(t, 2, store.Len())
}

func TestBookValidation(t *testing.T) {
	svc := newTestService(appointments.NewMemoryStore())
	ctx := context.Background()

	_, err := svc.BookText(ctx, "   ", "1", "x", "2024-06-10 09:00:00")
	assert.ErrorIs(t, err, ErrMissingPatientName)

	_, err = svc.BookText(ctx, "Ana", "1", "x", "2024-06-10 17:30:00")
	assert.ErrorIs(t, err, ErrOutsideHours)

	_, err = svc.BookText(ctx, "Ana", "1", "x", "2024-06-10 07:00:00")
	assert.ErrorIs(t, err, ErrOutsideHours)
}

func TestBookWithoutEngineSkipsWindow(t *testing.T) {
	svc := NewService(appointments.NewMemoryStore(), nil, nil)
	_, err := svc.BookText(context.Background(), "Ana", "1", "x", "2024-06-10 20:00:00")
	assert.NoError(t, err)
}

func TestBookStoreWriteFailure(t *testing.T) {
	store := appointments.NewMemoryStore()
	store.AppendErr = errors.New("quota exceeded")
	rec := &stubRecorder{}
	svc := newTestService(store, WithRecorder(rec))

	_, err := svc.BookText(context.Background(), "Ana", "1", "x", "2024-06-10 09:00:00")
	var writeErr *appointments.StoreWriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, []string{"write_error"}, rec.outcomes)
}

func TestBookStoreReadFailure(t *testing.T) {
	store := appointments.NewMemoryStore()
	store.ReadErr = errors.New("offline")
	svc := newTestService(store)

	_, err := svc.BookText(context.Background(), "Ana", "1", "x", "2024-06-10 09:00:00")
	var readErr *appointments.StoreReadError
	require.ErrorAs(t, err, &readErr)
	assert.Zero(t, store.Len())
}

// conflictStore simulates a backend that detects overlap itself.
type conflictStore struct{ appointments.Store }

func (conflictStore) Append(context.Context, appointments.Record) error {
	return &appointments.StoreWriteError{Backend: "postgres", Err: appointments.ErrConflict}
}

func TestBookBackendConflictMapsToSlotTaken(t *testing.T) {
	svc := newTestService(conflictStore{appointments.NewMemoryStore()})
	_, err := svc.BookText(context.Background(), "Ana", "1", "x", "2024-06-10 09:00:00")
	assert.ErrorIs(t, err, ErrSlotTaken)
}

func TestBookNotifierFailureDoesNotFailBooking(t *testing.T) {
	store := appointments.NewMemoryStore()
	svc := newTestService(store, WithNotifier(&stubNotifier{err: errors.New("smtp down")}))
	_, err := svc.BookText(context.Background(), "Ana", "1", "x", "2024-06-10 09:00:00")
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

// slowStore widens the read-then-append window so racing writers would
// double book without the lock.
type slowStore struct {
	*appointments.MemoryStore
}

func (s slowStore) ReadAll(ctx context.Context) ([]appointments.Record, error) {
	records, err := s.MemoryStore.ReadAll(ctx)
	time.Sleep(5 * time.Millisecond)
	return records, err
}

func TestConcurrentBookingsOfSameSlot(t *testing.T) {
	store := slowStore{appointments.NewMemoryStore()}
	svc := newTestService(store)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		taken     atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.BookText(context.Background(), "Paciente", "1", "x", "2024-06-10 14:00:00")
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, ErrSlotTaken):
				taken.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(7), taken.Load())
	assert.Equal(t, 1, store.Len())
}

func TestBookLockTimeout(t *testing.T) {
	locker := NewLocalLocker()
	release, err := locker.Lock(context.Background())
	require.NoError(t, err)
	defer release()

	svc := newTestService(appointments.NewMemoryStore(), WithLocker(locker))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = svc.BookText(ctx, "Ana", "1", "x", "2024-06-10 09:00:00")
	var writeErr *appointments.StoreWriteError
	require.ErrorAs(t, err, &writeErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type panicOnceStore struct {
	*appointments.MemoryStore
	panicked atomic.Bool
}

func (s *panicOnceStore) Append(ctx context.Context, rec appointments.Record) error {
	if s.panicked.CompareAndSwap(false, true) {
		panic("backend exploded")
	}
	return s.MemoryStore.Append(ctx, rec)
}

func TestBookReleasesLockWhenStorePanics(t *testing.T) {
	store := &panicOnceStore{MemoryStore: appointments.NewMemoryStore()}
	svc := newTestService(store)

	assert.Panics(t, func() {
		_, _ = svc.BookText(context.Background(), "Ana", "1", "limpeza", "2024-06-10 09:00:00")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	rec, err := svc.BookText(ctx, "Bruno", "2", "avaliação", "2024-06-10 11:00:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-10 11:00:00", appointments.FormatTime(rec.Start))
	assert.Equal(t, 1, store.Len())
}
