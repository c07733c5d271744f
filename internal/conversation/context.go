package conversation

import (
	"errors"
	"time"
)

// State is where a conversation stands in the booking flow.
type State string

const (
	StateGathering  State = "gathering"
	StateCommitting State = "committing"
	StateConfirmed  State = "confirmed"
)

// ErrUnknownConversation is returned by a HistoryStore for ids it has never
// seen or has expired.
var ErrUnknownConversation = errors.New("conversation: unknown conversation")

// Context is everything one conversation carries between turns.
type Context struct {
	ID            string        `json:"id"`
	History       []ChatMessage `json:"history"`
	ReferenceDate time.Time     `json:"reference_date"`
	State         State         `json:"state"`
	Greeting      string        `json:"greeting"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Transcript returns what the patient has seen: the greeting then every turn.
func (c *Context) Transcript() []ChatMessage {
	out := make([]ChatMessage, 0, len(c.History)+1)
	if c.Greeting != "" {
		out = append(out, ChatMessage{Role: ChatRoleAssistant, Content: c.Greeting})
	}
	return append(out, c.History...)
}

func (c *Context) clone() *Context {
	cp := *c
	cp.History = append([]ChatMessage(nil), c.History...)
	return &cp
}
