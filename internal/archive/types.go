package archive

import "time"

const recordVersion = "1.0"

// TranscriptRecord is the JSON document written for each booked conversation.
type TranscriptRecord struct {
	Version        string             `json:"version"`
	ConversationID string             `json:"conversation_id"`
	ContactHash    string             `json:"contact_hash"`
	ArchivedAt     time.Time          `json:"archived_at"`
	StartedAt      time.Time          `json:"started_at"`
	MessageCount   int                `json:"message_count"`
	Appointment    AppointmentSummary `json:"appointment"`
	Messages       []Message          `json:"messages"`
}

// AppointmentSummary is the booked slot without patient identifiers.
type AppointmentSummary struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	Reason string `json:"reason"`
}

// Message is a single conversation turn with PII scrubbed.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ManifestEntry is one JSONL line in the monthly manifest file.
type ManifestEntry struct {
	ConversationID string `json:"conversation_id"`
	S3Key          string `json:"s3_key"`
	ArchivedAt     string `json:"archived_at"`
	MessageCount   int    `json:"message_count"`
	Reason         string `json:"reason"`
}
