// Package assistant answers free-form health questions through Gemini.
package assistant

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/validate"
)

var (
	ErrNotConfigured = apperr.New(apperr.ErrUnavailable, "assistant is not configured")
	ErrNoAnswer      = apperr.New(apperr.ErrUnavailable, "no answer was found")
)

const (
	promptPrefix  = "Answer briefly and clearly: "
	answerTimeout = 30 * time.Second
)

// Answerer answers a single question.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type GeminiClient struct {
	client *genai.Client
	model  generator
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: client.GenerativeModel(model)}, nil
}

func (g *GeminiClient) Answer(ctx context.Context, question string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, answerTimeout)
	defer cancel()

	resp, err := g.model.GenerateContent(ctx, genai.Text(promptPrefix+question))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrNoAnswer
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	answer := strings.TrimSpace(sb.String())
	if answer == "" {
		return "", ErrNoAnswer
	}
	return answer, nil
}

func (g *GeminiClient) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// ---------------------------------------------------------------------------
// Handler
// ---------------------------------------------------------------------------

type Handler struct {
	answerer Answerer
	logger   zerolog.Logger
}

// NewHandler serves POST /ai. A nil answerer makes the endpoint report 503.
func NewHandler(answerer Answerer, logger zerolog.Logger) *Handler {
	return &Handler{answerer: answerer, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/ai", h.Ask)
}

type askRequest struct {
	Question string `json:"question" validate:"required,max=2000"`
}

func (h *Handler) Ask(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return apperr.HTTP(apperr.Validation("invalid request body"))
	}
	req.Question = strings.TrimSpace(req.Question)
	if err := validate.Struct(&req); err != nil {
		return apperr.HTTP(err)
	}
	if h.answerer == nil {
		return apperr.HTTP(ErrNotConfigured)
	}

	answer, err := h.answerer.Answer(c.Request().Context(), req.Question)
	if err != nil {
		if apperr.Status(err) == http.StatusInternalServerError {
			h.logger.Error().Err(err).Msg("assistant answer")
			return apperr.HTTP(apperr.New(apperr.ErrUnavailable, "assistant is unavailable, try again later"))
		}
		return apperr.HTTP(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "answer": answer})
}
