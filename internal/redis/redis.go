package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const claimPrefix = "moodline:event:"

type Client struct {
	rdb *redis.Client
}

func New(addr string) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	return &Client{rdb: rdb}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Claim marks a webhook event as seen. It returns false when another
// delivery of the same event already claimed it within ttl.
func (c *Client) Claim(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, claimPrefix+eventID, time.Now().Unix(), ttl).Result()
}
