package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const changeChannel = "storefront:token-changes"

// RedisStore keeps tokens in redis so they survive restarts and are visible
// to every storefront process sharing the instance. Every write is published
// on a pub/sub channel so other processes can react, mirroring how browser
// tabs observe storage events.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "storefront:",
	}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.storageKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return v, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.storageKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	r.publish(ctx, Change{Key: key, Value: value})
	return nil
}

func (r *RedisStore) Clear(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.storageKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}

	r.publish(ctx, Change{Key: key})
	return nil
}

// Watch subscribes to the change channel and converts messages into Change
// values. The returned channel closes when ctx is done.
func (r *RedisStore) Watch(ctx context.Context) (<-chan Change, error) {
	sub := r.client.Subscribe(ctx, changeChannel)

	// Force the subscription to be established before returning so callers
	// do not miss changes published right after Watch.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe failed: %w", err)
	}

	out := make(chan Change, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					slog.Warn("dropping malformed token change", "error", err)
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (r *RedisStore) publish(ctx context.Context, change Change) {
	payload, err := json.Marshal(change)
	if err != nil {
		slog.Warn("marshal token change failed", "error", err)
		return
	}
	if err := r.client.Publish(ctx, changeChannel, payload).Err(); err != nil {
		// Notification is best-effort; the write itself already succeeded.
		slog.Warn("publish token change failed", "key", change.Key, "error", err)
	}
}

func (r *RedisStore) storageKey(key string) string {
	return r.prefix + key
}
