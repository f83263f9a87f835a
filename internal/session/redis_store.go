package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pdfchat/internal/models"
	"pdfchat/internal/redis"
)

const redisKeyPrefix = "pdfchat:session:"

// RedisStore keeps session state as JSON in redis so it survives restarts
// and can be shared between instances.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.SessionState, error) {
	raw, err := s.client.Get(ctx, redisKey(id))
	if err != nil {
		if errors.Is(err, redis.ErrCacheMiss) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	var state models.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &state, nil
}

func (s *RedisStore) Put(ctx context.Context, id string, content models.ExtractedContent) error {
	if id == "" {
		return errors.New("session id required")
	}
	payload, err := json.Marshal(models.SessionState{ID: id, Content: content, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(id), payload, s.ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKey(id)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
