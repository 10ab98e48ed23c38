package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/geosoft/accounts-api/internal/core/domain"
)

// StateStore keeps OAuth anti-forgery states until their callback.
// Key format: oauth:state:<state>, value: the app-source it was issued for.
type StateStore struct {
	client *redis.Client
}

func NewStateStore(client *redis.Client) *StateStore {
	return &StateStore{client: client}
}

// Save records state for ttl. An existing key is never overwritten.
func (s *StateStore) Save(ctx context.Context, state string, app domain.AppSource, ttl time.Duration) error {
	ok, err := s.client.SetNX(ctx, s.key(state), string(app), ttl).Result()
	if err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}
	if !ok {
		return fmt.Errorf("save oauth state: %w: state already issued", domain.ErrInvariant)
	}
	return nil
}

// Consume atomically reads and deletes state, so a state is accepted once.
func (s *StateStore) Consume(ctx context.Context, state string) (domain.AppSource, error) {
	if state == "" {
		return "", domain.ErrInvalidState
	}
	v, err := s.client.GetDel(ctx, s.key(state)).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrInvalidState
	}
	if err != nil {
		return "", fmt.Errorf("consume oauth state: %w", err)
	}
	return domain.AppSource(v), nil
}

func (s *StateStore) key(state string) string {
	return "oauth:state:" + state
}
