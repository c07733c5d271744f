package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConverse struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
	err   error
}

func (s *stubConverse) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	s.input = in
	return s.out, s.err
}

func textOutput(text string) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role:    brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: text}},
		}},
		StopReason: brtypes.StopReasonEndTurn,
		Usage:      &brtypes.TokenUsage{InputTokens: aws.Int32(10), OutputTokens: aws.Int32(4), TotalTokens: aws.Int32(14)},
	}
}

func TestBedrockLLMClientComplete(t *testing.T) {
	api := &stubConverse{out: textOutput("  Olá!  ")}
	client := NewBedrockLLMClient(api, "anthropic.claude-3-haiku")

	resp, err := client.Complete(context.Background(), LLMRequest{
		System: []string{"prompt"},
		Messages: []ChatMessage{
			{Role: ChatRoleUser, Content: "oi"},
			{Role: ChatRoleAssistant, Content: "Olá"},
			{Role: ChatRoleUser, Content: "quero marcar"},
		},
		Temperature: -1,
	})
	require.NoError(t, err)
	assert.Equal(t, "Olá!", resp.Text)
	assert.Equal(t, int32(14), resp.Usage.TotalTokens)
	assert.Equal(t, "end_turn", resp.StopReason)

	require.NotNil(t, api.input)
	assert.Equal(t, "anthropic.claude-3-haiku", aws.ToString(api.input.ModelId))
	assert.Len(t, api.input.System, 1)
	assert.Len(t, api.input.Messages, 3)
	assert.Nil(t, api.input.InferenceConfig)
}

func TestBedrockLLMClientRequiresModel(t *testing.T) {
	_, err := NewBedrockLLMClient(&stubConverse{}, "").Complete(context.Background(), LLMRequest{
		Messages: []ChatMessage{{Role: ChatRoleUser, Content: "oi"}},
	})
	assert.Error(t, err)
}

func TestBedrockLLMClientErrors(t *testing.T) {
	msgs := []ChatMessage{{Role: ChatRoleUser, Content: "oi"}}

	_, err := NewBedrockLLMClient(&stubConverse{err: errors.New("throttled")}, "m").Complete(context.Background(), LLMRequest{Messages: msgs})
	assert.ErrorContains(t, err, "throttled")

	_, err = NewBedrockLLMClient(&stubConverse{out: textOutput("  ")}, "m").Complete(context.Background(), LLMRequest{Messages: msgs})
	assert.Error(t, err)

	_, err = NewBedrockLLMClient(&stubConverse{}, "m").Complete(context.Background(), LLMRequest{Messages: []ChatMessage{{Role: "tool", Content: "x"}}})
	assert.ErrorContains(t, err, "unsupported role")
}
