package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/dental-scheduling-agent/internal/appointments"
)

// BookingNotifier e-mails clinic staff whenever an appointment is committed.
type BookingNotifier struct {
	sender     EmailSender
	staffEmail string
	clinicName string
}

// NewBookingNotifier returns nil when there is no sender or recipient.
func NewBookingNotifier(sender EmailSender, staffEmail, clinicName string) *BookingNotifier {
	if sender == nil || strings.TrimSpace(staffEmail) == "" {
		return nil
	}
	return &BookingNotifier{sender: sender, staffEmail: staffEmail, clinicName: clinicName}
}

// AppointmentBooked sends the staff notification for rec.
func (n *BookingNotifier) AppointmentBooked(ctx context.Context, rec appointments.Record) error {
	if n == nil {
		return errors.New("notify: booking notifier not configured")
	}
	return n.sender.Send(ctx, EmailMessage{
		To:      n.staffEmail,
		Subject: fmt.Sprintf("Nova consulta: %s em %s", rec.PatientName, rec.Start.Format("02/01/2006 15:04")),
		Body:    bookingBody(n.clinicName, rec),
	})
}

func bookingBody(clinic string, rec appointments.Record) string {
	var b strings.Builder
	if clinic != "" {
		fmt.Fprintf(&b, "%s\n\n", clinic)
	}
	fmt.Fprintf(&b, "Paciente: %s\n", rec.PatientName)
	fmt.Fprintf(&b, "Contato: %s\n", rec.Contact)
	fmt.Fprintf(&b, "Motivo: %s\n", rec.Reason)
	fmt.Fprintf(&b, "Início: %s\n", appointments.FormatTime(rec.Start))
	fmt.Fprintf(&b, "Fim: %s\n", appointments.FormatTime(rec.End))
	fmt.Fprintf(&b, "Registrado em: %s\n", appointments.FormatTime(rec.CreatedAt))
	return b.String()
}
