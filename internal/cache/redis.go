package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Connect dials the Redis instance named by redisURL (redis://host:port/db
// form) and confirms it is reachable before handing back the client. A
// client that cannot be pinged is closed rather than returned.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("reaching redis at %s: %w", opts.Addr, err)
	}

	return client, nil
}
