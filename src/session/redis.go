package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix  = "labeladmin:session:"
	defaultRedisChannel = "labeladmin:session:changes"
)

// RedisStore keeps flags as plain string keys and announces every write on a
// pub/sub channel so that other processes (and other tabs served by them)
// re-check.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	channel string
}

// NewRedisClient connects and pings within two seconds.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("session: redis ping: %w", err)
	}
	return client, nil
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:  client,
		prefix:  defaultRedisPrefix,
		channel: defaultRedisChannel,
	}
}

func (r *RedisStore) key(k string) string {
	return r.prefix + k
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("session: get %s: %w", key, err)
	}
	return val, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("session: set %s: %w", key, err)
	}
	return r.client.Publish(ctx, r.channel, key).Err()
}

func (r *RedisStore) Clear(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("session: clear %s: %w", key, err)
	}
	return r.client.Publish(ctx, r.channel, key).Err()
}

func (r *RedisStore) Subscribe(ctx context.Context) (<-chan Change, error) {
	pubsub := r.client.Subscribe(ctx, r.channel)
	// Wait for the subscription confirmation so no write issued after
	// Subscribe returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("session: subscribe: %w", err)
	}

	out := make(chan Change, 8)
	go func() {
		defer close(out)
		defer pubsub.Close()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- Change{Key: strings.TrimPrefix(msg.Payload, r.prefix)}:
				default:
				}
			}
		}
	}()
	return out, nil
}
