package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"ReviewSentinel/internal/config"
	"ReviewSentinel/internal/domain"
	"ReviewSentinel/internal/ports"
	"ReviewSentinel/pkg/retry"
)

const systemPrompt = "You are an expert analyst specializing in identifying policy violations in online business reviews."

// OpenAIClassifier maps review text onto the configured set of reportable
// policy-violation categories. Classification never blocks an alert: when the
// service is unreachable the review falls back to the unable-to-classify
// category with a diagnostic rationale.
type OpenAIClassifier struct {
	client *openai.Client
	cfg    config.ClassifierConfig
	policy retry.Policy
	logger *slog.Logger
}

var _ ports.Classifier = (*OpenAIClassifier)(nil)

// NewOpenAIClassifier builds a classifier from configuration.
func NewOpenAIClassifier(cfg config.ClassifierConfig, policy retry.Policy, logger *slog.Logger) *OpenAIClassifier {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIClassifier{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		policy: policy,
		logger: logger,
	}
}

// Classify returns a category and rationale for the review. Rating-only
// reviews are resolved from the rating policy without calling the service.
func (c *OpenAIClassifier) Classify(ctx context.Context, review domain.Review) (domain.Classification, error) {
	if strings.TrimSpace(review.Text) == "" {
		return domain.Classification{
			Category:  c.cfg.RatingCategory(review.Rating),
			Rationale: fmt.Sprintf("Rating-only review (%d stars, no text); category assigned by rating policy.", review.Rating),
		}, nil
	}

	var content string
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.cfg.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: c.buildPrompt(review)},
			},
			Temperature: 0.3,
			MaxTokens:   300,
		})
		if err != nil {
			if isPermanent(err) {
				return retry.Permanent(fmt.Errorf("chat completion: %w", err))
			}
			return fmt.Errorf("chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return errors.New("chat completion: no choices")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		c.warn("classification exhausted", "identity_key", review.IdentityKey, "error", err)
		return domain.Classification{
			Category:  domain.CategoryUnableToClassify,
			Rationale: fmt.Sprintf("Classification service unavailable (%v); review the text manually.", err),
		}, nil
	}

	return c.parseResponse(content), nil
}

func (c *OpenAIClassifier) buildPrompt(review domain.Review) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A business has received the following %d-star review:\n\n", review.Rating)
	fmt.Fprintf(&b, "Reviewer: %s\nReview: %q\n\n", review.Author, review.Text)
	fmt.Fprintf(&b, "Available reporting categories:\n%s\n\n", strings.Join(c.cfg.Categories, ", "))
	b.WriteString("Select the single category from the list that best describes a reportable " +
		"policy violation in this review, and explain the choice in 2-3 sentences.\n\n" +
		"Respond in exactly this format:\n" +
		"CATEGORY: [exact category name from the list]\n" +
		"REASONING: [your explanation]")
	return b.String()
}

// parseResponse extracts the CATEGORY and REASONING lines. An answer outside
// the configured category set is mapped to the closest match, or to the
// default category when nothing matches.
func (c *OpenAIClassifier) parseResponse(content string) domain.Classification {
	var category, reasoning string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "CATEGORY:"); ok {
			category = strings.TrimSpace(rest)
		} else if rest, ok := strings.CutPrefix(line, "REASONING:"); ok {
			reasoning = strings.TrimSpace(rest)
		}
	}

	matched := c.matchCategory(category)
	if matched == "" {
		matched = c.cfg.DefaultCategory
		reasoning = fmt.Sprintf("Service returned unrecognized category %q; defaulting to %s.", category, matched)
	}
	if reasoning == "" {
		reasoning = "Analysis completed but the reasoning was unclear."
	}
	return domain.Classification{Category: matched, Rationale: reasoning}
}

func (c *OpenAIClassifier) matchCategory(answer string) string {
	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer == "" {
		return ""
	}
	for _, valid := range c.cfg.Categories {
		lower := strings.ToLower(valid)
		if lower == answer || strings.Contains(answer, lower) || strings.Contains(lower, answer) {
			return valid
		}
	}
	return ""
}

// isPermanent treats auth and request errors as non-retryable; rate limits
// and server errors stay transient.
func isPermanent(err error) bool {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.HTTPStatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return false
	}
	return apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500
}

func (c *OpenAIClassifier) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
