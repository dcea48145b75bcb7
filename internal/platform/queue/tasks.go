// Package queue moves article fanout off the request path onto an asynq
// worker backed by Redis.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TypeArticlePublished = "notification:article_published"

const (
	articleMaxRetry = 3
	articleTimeout  = 5 * time.Minute
)

type ArticlePublishedPayload struct {
	ArticleID uuid.UUID `json:"articleId"`
	Title     string    `json:"title"`
}

func NewArticlePublishedTask(articleID uuid.UUID, title string) (*asynq.Task, error) {
	b, err := json.Marshal(ArticlePublishedPayload{ArticleID: articleID, Title: title})
	if err != nil {
		return nil, fmt.Errorf("marshal article payload: %w", err)
	}
	return asynq.NewTask(TypeArticlePublished, b, asynq.MaxRetry(articleMaxRetry), asynq.Timeout(articleTimeout)), nil
}
