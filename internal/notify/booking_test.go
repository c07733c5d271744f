package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/wolfman30/dental-scheduling-agent/internal/appointments"
)

type captureSender struct {
	msgs []EmailMessage
}

func (c *captureSender) Send(_ context.Context, msg EmailMessage) error {
	c.msgs = append(c.msgs, msg)
	return nil
}

func TestNewBookingNotifierRequiresRecipient(t *testing.T) {
	if NewBookingNotifier(&captureSender{}, " ", "Clínica") != nil {
		t.Fatal("expected nil notifier without staff email")
	}
	if NewBookingNotifier(nil, "staff@example.com", "Clínica") != nil {
		t.Fatal("expected nil notifier without sender")
	}
}

func TestBookingNotifierFormatsRecord(t *testing.T) {
	sender := &captureSender{}
	n := NewBookingNotifier(sender, "staff@example.com", "Clínica Sorriso")
	start := time.Date(2024, 6, 11, 14, 0, 0, 0, time.Local)
	rec := appointments.Record{
		Start:       start,
		End:         start.Add(time.Hour),
		PatientName: "Ana Silva",
		Contact:     "+55 11 98888-7777",
		Reason:      "limpeza",
		CreatedAt:   start.Add(-48 * time.Hour),
	}

	if err := n.AppointmentBooked(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(sender.msgs))
	}
	msg := sender.msgs[0]
	if msg.To != "staff@example.com" {
		t.Fatalf("unexpected recipient %s", msg.To)
	}
	if msg.Subject != "Nova consulta: Ana Silva em 11/06/2024 14:00" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	for _, want := range []string{"Clínica Sorriso", "Motivo: limpeza", "Fim: 2024-06-11 15:00:00"} {
		if !strings.Contains(msg.Body, want) {
			t.Fatalf("body missing %q:\n%s", want, msg.Body)
		}
	}
}

func TestNilBookingNotifier(t *testing.T) {
	var n *BookingNotifier
	if err := n.AppointmentBooked(context.Background(), appointments.Record{}); err == nil {
		t.Fatal("expected error from nil notifier")
	}
}
