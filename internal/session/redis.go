package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/code-with-zain-hunzai/kekar-go/internal/models"
)

const (
	snapshotKey = "kekar:session:identity"
	snapshotTTL = 30 * 24 * time.Hour
	redisOpTTL  = 5 * time.Second
)

// Redis persists the snapshot in Redis. Meant for headless or bot
// deployments of the SDK where a home directory is not a given.
type Redis struct {
	client *redis.Client
	key    string
}

var _ Store = (*Redis)(nil)

// NewRedis connects to the given Redis URL and verifies the
// connection.
func NewRedis(ctx context.Context, redisURL string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Redis{client: client, key: snapshotKey}, nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Save(ident models.Identity) error {
	data, err := json.Marshal(ident)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTTL)
	defer cancel()
	return r.client.Set(ctx, r.key, data, snapshotTTL).Err()
}

func (r *Redis) Load() (*models.Identity, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTTL)
	defer cancel()

	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		return nil, false
	}
	var ident models.Identity
	if err := json.Unmarshal(data, &ident); err != nil {
		return nil, false
	}
	return &ident, true
}

func (r *Redis) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTTL)
	defer cancel()
	return r.client.Del(ctx, r.key).Err()
}
