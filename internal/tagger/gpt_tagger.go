package tagger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/notegram/internal/models"
	"go.uber.org/zap"
)

type GPTConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	MaxTags     int
}

type gptResponse struct {
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
}

// GPTTagger asks a chat model for keywords. Any failure falls back to the
// frontmatter tags.
type GPTTagger struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	maxTags     int
	fallback    Tagger
	logger      *zap.Logger
}

func NewGPTTagger(cfg GPTConfig, logger *zap.Logger) *GPTTagger {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &GPTTagger{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		maxTags:     cfg.MaxTags,
		fallback:    NewFrontmatterTagger(cfg.MaxTags),
		logger:      logger,
	}
}

func (t *GPTTagger) Tags(ctx context.Context, note models.Note) []string {
	tags, err := t.suggest(ctx, note)
	if err != nil {
		t.logger.Warn("Falling back to frontmatter tags",
			zap.String("note", note.Path),
			zap.Error(err))
		return t.fallback.Tags(ctx, note)
	}
	return tags
}

func (t *GPTTagger) suggest(ctx context.Context, note models.Note) ([]string, error) {
	maxTags := t.maxTags
	if maxTags <= 0 {
		maxTags = 5
	}

	prompt := fmt.Sprintf(`Suggest tags for the following note.
Return a JSON object with this structure:
{
    "category": "main_category",
    "keywords": ["keyword1", "keyword2", ...]
}
Use at most %d keywords, lower case, without the # sign.

Existing tags: %s

Note:
%s`, maxTags, strings.Join(note.Tags, ", "), note.RawText)

	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   t.maxTokens,
		Temperature: float32(t.temperature),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	parsed, err := parseResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	tags := make([]string, 0, len(parsed.Keywords)+1)
	if parsed.Category != "" {
		tags = append(tags, strings.ToLower(parsed.Category))
	}
	for _, keyword := range parsed.Keywords {
		if keyword = strings.TrimSpace(keyword); keyword != "" {
			tags = append(tags, strings.ToLower(keyword))
		}
	}
	tags = exclude(tags, InlineTags(note.RawText))
	if len(tags) == 0 {
		return nil, errors.New("no keywords in response")
	}

	return limit(tags, maxTags), nil
}

// parseResponse decodes the model reply, repairing near-JSON such as
// trailing commas or a fenced block.
func parseResponse(content string) (gptResponse, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(content, "```json"), "```"))

	var parsed gptResponse
	err := json.Unmarshal([]byte(content), &parsed)
	if err == nil {
		return parsed, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(content)
	if repairErr != nil {
		return gptResponse{}, fmt.Errorf("failed to parse response %q: %w", content, err)
	}
	if err := json.Unmarshal([]byte(repaired), &parsed); err != nil {
		return gptResponse{}, fmt.Errorf("failed to parse repaired response %q: %w", repaired, err)
	}
	return parsed, nil
}
