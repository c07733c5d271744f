package conversation

import "context"

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one turn of the dialogue as the model sees it.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// LLMRequest carries the system prompt and full history for one completion.
// A negative Temperature leaves the provider default in place. Model overrides
// the client's configured model when set.
type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// LLMClient produces the assistant's next free-text reply.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// ModelInfo describes a model returned by a provider listing.
type ModelInfo struct {
	Name              string
	DisplayName       string
	GenerationMethods []string
	InputTokenLimit   int32
	OutputTokenLimit  int32
}
