package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleContext(id string) *Context {
	return &Context{
		ID:            id,
		ReferenceDate: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		State:         StateGathering,
		Greeting:      "Olá!",
		History: []ChatMessage{
			{Role: ChatRoleUser, Content: "Quero uma limpeza"},
			{Role: ChatRoleAssistant, Content: "Qual o seu nome?"},
		},
	}
}

func TestRedisHistoryStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisHistoryStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleContext("abc")))
	assert.True(t, mr.Exists("conversation:abc"))
	assert.Equal(t, conversationTTL, mr.TTL("conversation:abc"))

	got, err := store.Load(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", got.ID)
	assert.Len(t, got.History, 2)
	assert.True(t, got.ReferenceDate.Equal(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)))
}

func TestRedisHistoryStoreUnknown(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisHistoryStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	_, err := store.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownConversation)
}

func TestRedisHistoryStoreExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisHistoryStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleContext("abc")))
	mr.FastForward(conversationTTL + time.Second)

	_, err := store.Load(ctx, "abc")
	assert.ErrorIs(t, err, ErrUnknownConversation)
}

func TestMemoryHistoryStoreIsolatesCopies(t *testing.T) {
	store := NewMemoryHistoryStore()
	ctx := context.Background()
	convo := sampleContext("abc")
	require.NoError(t, store.Save(ctx, convo))

	convo.History = append(convo.History, ChatMessage{Role: ChatRoleUser, Content: "mutated"})
	got, err := store.Load(ctx, "abc")
	require.NoError(t, err)
	assert.Len(t, got.History, 2)

	_, err = store.Load(ctx, "other")
	assert.ErrorIs(t, err, ErrUnknownConversation)
	assert.Error(t, store.Save(ctx, &Context{}))
}

func TestContextTranscriptStartsWithGreeting(t *testing.T) {
	msgs := sampleContext("abc").Transcript()
	require.Len(t, msgs, 3)
	assert.Equal(t, ChatMessage{Role: ChatRoleAssistant, Content: "Olá!"}, msgs[0])
}
