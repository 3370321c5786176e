// Package queue hands saved prompt IDs to the embedding worker over a
// redis list.
package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultName = "pf:embed"

type Queue struct {
	client *redis.Client
	name   string
}

func New(url, name string) (*Queue, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewWithClient(redis.NewClient(opt), name), nil
}

// NewWithClient shares an existing client, so the serve path and the
// cache can ride one connection pool.
func NewWithClient(client *redis.Client, name string) *Queue {
	if name == "" {
		name = defaultName
	}
	return &Queue{client: client, name: name}
}

func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *Queue) PushPromptJob(ctx context.Context, promptID string) error {
	return q.client.LPush(ctx, q.name, promptID).Err()
}

// PopPromptJob blocks up to timeout. A redis.Nil error means the queue
// stayed empty.
func (q *Queue) PopPromptJob(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.client.BRPop(ctx, timeout, q.name).Result()
	if err != nil {
		return "", err
	}
	if len(res) < 2 {
		return "", redis.Nil
	}
	return res[1], nil
}

func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.name).Result()
}

func (q *Queue) Close() error {
	return q.client.Close()
}
