package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type stubSendGrid struct {
	last   *mail.SGMailV3
	status int
	err    error
}

func (s *stubSendGrid) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	s.last = email
	if s.err != nil {
		return nil, s.err
	}
	return &rest.Response{StatusCode: s.status}, nil
}

type stubSES struct {
	last *sesv2.SendEmailInput
	err  error
}

func (s *stubSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	s.last = in
	if s.err != nil {
		return nil, s.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestNewSendGridSenderNilWithoutAPIKey(t *testing.T) {
	if NewSendGridSender("", "agenda@example.com", "", nil) != nil {
		t.Fatal("expected nil sender when API key is empty")
	}
}

func TestSendGridSenderSend(t *testing.T) {
	client := &stubSendGrid{status: 202}
	sender := newSendGridSender(client, "agenda@example.com", "", nil)

	err := sender.Send(context.Background(), EmailMessage{To: "staff@example.com", Subject: "Nova consulta", Body: "corpo"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.last == nil || client.last.From.Name != defaultFromName {
		t.Fatalf("expected default from name, got %#v", client.last)
	}
	if client.last.Subject != "Nova consulta" {
		t.Fatalf("unexpected subject %q", client.last.Subject)
	}
}

func TestSendGridSenderErrorStatus(t *testing.T) {
	sender := newSendGridSender(&stubSendGrid{status: 401}, "agenda@example.com", "Clínica", nil)
	if err := sender.Send(context.Background(), EmailMessage{To: "staff@example.com"}); err == nil {
		t.Fatal("expected error for 401 status")
	}

	sender = newSendGridSender(&stubSendGrid{err: errors.New("dial tcp")}, "agenda@example.com", "Clínica", nil)
	if err := sender.Send(context.Background(), EmailMessage{To: "staff@example.com"}); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestSESSender(t *testing.T) {
	if NewSESSender(&stubSES{}, "", "", nil) != nil {
		t.Fatal("expected nil sender without from address")
	}

	client := &stubSES{}
	sender := NewSESSender(client, "agenda@example.com", "Clínica Sorriso", nil)
	if err := sender.Send(context.Background(), EmailMessage{To: "staff@example.com", Subject: "s", Body: "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := aws.ToString(client.last.FromEmailAddress); got != "Clínica Sorriso <agenda@example.com>" {
		t.Fatalf("unexpected from %q", got)
	}
	if got := aws.ToString(client.last.Content.Simple.Body.Text.Data); got != "b" {
		t.Fatalf("unexpected body %q", got)
	}

	failing := NewSESSender(&stubSES{err: errors.New("throttled")}, "agenda@example.com", "", nil)
	if err := failing.Send(context.Background(), EmailMessage{To: "staff@example.com"}); err == nil || !strings.Contains(err.Error(), "throttled") {
		t.Fatalf("expected wrapped ses error, got %v", err)
	}
}

func TestStubSenderRequiresRecipient(t *testing.T) {
	sender := NewStubSender(nil)
	if err := sender.Send(context.Background(), EmailMessage{}); err == nil {
		t.Fatal("expected error without recipient")
	}
	if err := sender.Send(context.Background(), EmailMessage{To: "staff@example.com"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
