package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.opentelemetry.io/otel"

	"github.com/wolfman30/dental-scheduling-agent/internal/appointments"
	"github.com/wolfman30/dental-scheduling-agent/internal/conversation"
	"github.com/wolfman30/dental-scheduling-agent/pkg/logging"
)

var archiveTracer = otel.Tracer("dental.internal.archive")

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store archives booked conversations to S3.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
	now      func() time.Time
}

var _ conversation.Archiver = (*Store)(nil)

// NewStore creates an archive Store. If bucket is empty, all operations are no-ops.
func NewStore(s3Client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, logger: logger, now: time.Now}
}

// Enabled returns true if archival is configured (bucket is set).
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// ArchiveBooking stores the transcript of a conversation that produced rec.
func (s *Store) ArchiveBooking(ctx context.Context, convo *conversation.Context, rec appointments.Record) error {
	if !s.Enabled() || convo == nil {
		return nil
	}
	return s.ArchiveTranscript(ctx, newTranscriptRecord(convo, rec, s.now()))
}

func newTranscriptRecord(convo *conversation.Context, rec appointments.Record, now time.Time) *TranscriptRecord {
	transcript := convo.Transcript()
	msgs := make([]Message, 0, len(transcript))
	for _, m := range transcript {
		msgs = append(msgs, Message{Role: m.Role, Content: logging.ScrubPII(m.Content)})
	}
	return &TranscriptRecord{
		Version:        recordVersion,
		ConversationID: convo.ID,
		ContactHash:    logging.HashContact(rec.Contact),
		ArchivedAt:     now.UTC(),
		StartedAt:      convo.CreatedAt.UTC(),
		MessageCount:   len(msgs),
		Appointment: AppointmentSummary{
			Start:  appointments.FormatTime(rec.Start),
			End:    appointments.FormatTime(rec.End),
			Reason: rec.Reason,
		},
		Messages: msgs,
	}
}

// ArchiveTranscript writes a TranscriptRecord as JSON to S3 and appends to the manifest.
func (s *Store) ArchiveTranscript(ctx context.Context, record *TranscriptRecord) error {
	if !s.Enabled() {
		return nil
	}
	ctx, span := archiveTracer.Start(ctx, "archive.transcript")
	defer span.End()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("archive: marshal record: %w", err)
	}

	archivedAt := record.ArchivedAt
	if archivedAt.IsZero() {
		archivedAt = s.now().UTC()
	}
	key := fmt.Sprintf("conversations/v1/by-date/%d/%02d/%02d/%s.json",
		archivedAt.Year(), archivedAt.Month(), archivedAt.Day(), record.ConversationID)

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("archive: s3 put %s: %w", key, err)
	}

	s.logger.Info("archived conversation",
		"conversation_id", record.ConversationID,
		"s3_key", key,
		"message_count", record.MessageCount,
	)

	entry := ManifestEntry{
		ConversationID: record.ConversationID,
		S3Key:          key,
		ArchivedAt:     archivedAt.Format(time.RFC3339),
		MessageCount:   record.MessageCount,
		Reason:         record.Appointment.Reason,
	}
	if err := s.AppendManifest(ctx, archivedAt, entry); err != nil {
		// The transcript itself is already stored.
		s.logger.Warn("failed to append manifest", "error", err, "conversation_id", record.ConversationID)
	}
	return nil
}

// AppendManifest appends a JSONL line to the monthly manifest file.
// S3 has no append, so this is a read-modify-write.
func (s *Store) AppendManifest(ctx context.Context, month time.Time, entry ManifestEntry) error {
	if !s.Enabled() {
		return nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}
	key := fmt.Sprintf("conversations/v1/manifests/%d-%02d.jsonl", month.Year(), month.Month())

	var existing []byte
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	switch {
	case err == nil:
		existing, err = io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return fmt.Errorf("archive: read manifest: %w", err)
		}
	case isNotFound(err):
		s.logger.Debug("manifest not found, creating new", "key", key)
	default:
		return fmt.Errorf("archive: s3 get manifest: %w", err)
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
