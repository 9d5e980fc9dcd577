package reasoner

import (
	"context"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/joblens-inc/joblens-engine/pkg/config"
	"github.com/joblens-inc/joblens-engine/pkg/models"
)

// openaiClient speaks to OpenAI-compatible endpoints, including local vLLM
// deployments.
type openaiClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func newOpenAIClient(cfg *config.ReasonerConfig, logger *zap.Logger) (*openaiClient, error) {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	return &openaiClient{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		logger:  logger.Named("reasoner"),
	}, nil
}

func (c *openaiClient) GenerateReport(ctx context.Context, agg *models.Aggregates) (*models.Report, error) {
	prompt, err := buildPrompt(agg)
	if err != nil {
		return nil, newError(ErrorTypeValidation, "bad aggregates", false, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		c.logger.Warn("reasoning request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, classifyError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, newError(ErrorTypeValidation, "no choices in response", false, nil)
	}

	report, err := parseReport(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	c.logger.Info("reasoning request completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))
	return report, nil
}
