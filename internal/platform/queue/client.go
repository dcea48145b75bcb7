package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client enqueues fanout tasks. It satisfies the blog announcer interface,
// so publishing an article returns as soon as the task is stored.
type Client struct {
	client enqueuer
	logger zerolog.Logger
}

// RedisOpt parses a redis:// URL into asynq connection options.
func RedisOpt(url string) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return opt, nil
}

func NewClient(opt asynq.RedisConnOpt, logger zerolog.Logger) *Client {
	return &Client{client: asynq.NewClient(opt), logger: logger.With().Str("component", "queue").Logger()}
}

func (c *Client) AnnounceArticle(ctx context.Context, articleID uuid.UUID, title string) error {
	task, err := NewArticlePublishedTask(articleID, title)
	if err != nil {
		return err
	}
	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", TypeArticlePublished, err)
	}
	c.logger.Info().Str("task_id", info.ID).Str("queue", info.Queue).
		Str("article_id", articleID.String()).Msg("article fanout enqueued")
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
