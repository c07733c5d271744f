package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const conversationTTL = 24 * time.Hour

var conversationTracer = otel.Tracer("dental.internal.conversation")

// HistoryStore persists conversation contexts between turns.
type HistoryStore interface {
	Load(ctx context.Context, id string) (*Context, error)
	Save(ctx context.Context, convo *Context) error
}

// RedisHistoryStore keeps each conversation as one JSON value with a 24h TTL.
type RedisHistoryStore struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

func NewRedisHistoryStore(client *redis.Client) *RedisHistoryStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	return &RedisHistoryStore{
		redis:  client,
		tracer: otel.Tracer("dental.internal.conversation.history"),
		ttl:    conversationTTL,
	}
}

func (s *RedisHistoryStore) Save(ctx context.Context, convo *Context) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_history")
	defer span.End()

	data, err := json.Marshal(convo)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal context: %w", err)
	}
	if err := s.redis.Set(ctx, conversationKey(convo.ID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist context: %w", err)
	}
	return nil
}

func (s *RedisHistoryStore) Load(ctx context.Context, id string) (*Context, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_history")
	defer span.End()

	data, err := s.redis.Get(ctx, conversationKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUnknownConversation
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load context: %w", err)
	}

	var convo Context
	if err := json.Unmarshal(data, &convo); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode context: %w", err)
	}
	return &convo, nil
}

func conversationKey(id string) string {
	return fmt.Sprintf("conversation:%s", id)
}

// MemoryHistoryStore is the single-process HistoryStore. Entries never expire.
type MemoryHistoryStore struct {
	mu    sync.RWMutex
	items map[string]*Context
}

func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{items: make(map[string]*Context)}
}

func (s *MemoryHistoryStore) Load(_ context.Context, id string) (*Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	convo, ok := s.items[id]
	if !ok {
		return nil, ErrUnknownConversation
	}
	return convo.clone(), nil
}

func (s *MemoryHistoryStore) Save(_ context.Context, convo *Context) error {
	if convo == nil || convo.ID == "" {
		return errors.New("conversation: context id required")
	}
	s.mu.Lock()
	s.items[convo.ID] = convo.clone()
	s.mu.Unlock()
	return nil
}
