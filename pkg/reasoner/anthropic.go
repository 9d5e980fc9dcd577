package reasoner

import (
	"context"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/joblens-inc/joblens-engine/pkg/config"
	"github.com/joblens-inc/joblens-engine/pkg/models"
)

type anthropicClient struct {
	client  *anthropic.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func newAnthropicClient(cfg *config.ReasonerConfig, logger *zap.Logger) (*anthropicClient, error) {
	return &anthropicClient{
		client:  anthropic.NewClient(cfg.APIKey),
		model:   cfg.Model,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		logger:  logger.Named("reasoner"),
	}, nil
}

func (c *anthropicClient) GenerateReport(ctx context.Context, agg *models.Aggregates) (*models.Report, error) {
	prompt, err := buildPrompt(agg)
	if err != nil {
		return nil, newError(ErrorTypeValidation, "bad aggregates", false, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		MaxTokens: 2000,
		System:    systemPrompt,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	})
	if err != nil {
		c.logger.Warn("reasoning request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, classifyError(err)
	}

	responseText := ""
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			responseText = *block.Text
			break
		}
	}
	if responseText == "" {
		return nil, newError(ErrorTypeValidation, "no text content in response", false, nil)
	}

	report, err := parseReport(responseText)
	if err != nil {
		return nil, err
	}

	c.logger.Info("reasoning request completed",
		zap.Duration("elapsed", time.Since(start)))
	return report, nil
}
