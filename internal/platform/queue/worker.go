package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// ArticleAnnouncer performs the fanout for a dequeued task.
type ArticleAnnouncer interface {
	AnnounceArticle(ctx context.Context, articleID uuid.UUID, title string) error
}

// NewServer builds the asynq worker server. Its log output goes through
// logger.
func NewServer(opt asynq.RedisConnOpt, concurrency int, logger zerolog.Logger) *asynq.Server {
	logger = logger.With().Str("component", "worker").Logger()
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{"default": 1},
		Logger:      asynqLogger{logger},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Error().Err(err).Str("type", task.Type()).
				Int("retry", retried).Int("max_retry", maxRetry).Msg("task failed")
		}),
	})
}

func NewMux(announcer ArticleAnnouncer, logger zerolog.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeArticlePublished, handleArticlePublished(announcer, logger))
	return mux
}

// handleArticlePublished reruns the fanout for a task. A malformed payload
// is never retried.
func handleArticlePublished(announcer ArticleAnnouncer, logger zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p ArticlePublishedPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			return fmt.Errorf("decode %s payload: %v: %w", task.Type(), err, asynq.SkipRetry)
		}
		if p.ArticleID == uuid.Nil {
			return fmt.Errorf("%s payload has no article id: %w", task.Type(), asynq.SkipRetry)
		}

		logger.Info().Str("article_id", p.ArticleID.String()).Msg("processing article fanout")
		return announcer.AnnounceArticle(ctx, p.ArticleID, p.Title)
	}
}

// asynqLogger adapts zerolog to asynq.Logger.
type asynqLogger struct {
	l zerolog.Logger
}

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...interface{}) { a.l.Fatal().Msg(fmt.Sprint(args...)) }
