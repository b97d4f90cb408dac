// Package openai extracts entities and scores sentiment with a chat model.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/DeafMist/headline-radar/internal/nlp"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

const entityPrompt = `Extract named entities from the news headline given by the user.
Return JSON {"entities":[{"text":"...","type":"..."}]} with entities in the order they appear.
Use type PERSON, ORG, LOCATION, or another upper-case label for anything else.
Copy each entity text exactly as written in the headline.`

const sentimentPrompt = `Rate the sentiment of the news headline given by the user.
Return JSON {"score": <number>} where score is between -1 (most negative) and 1 (most positive), 0 when neutral.`

// Client implements nlp.EntityExtractor and nlp.SentimentScorer.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a client for apiKey. baseURL overrides the API endpoint when set.
func New(apiKey, model, baseURL string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{api: openai.NewClientWithConfig(cfg), model: model}, nil
}

// Extract implements nlp.EntityExtractor.
func (c *Client) Extract(ctx context.Context, text string) ([]nlp.Mention, error) {
	var out struct {
		Entities []struct {
			Text string `json:"text"`
			Type string `json:"type"`
		} `json:"entities"`
	}
	if err := c.complete(ctx, entityPrompt, text, &out); err != nil {
		return nil, fmt.Errorf("extract entities: %w", err)
	}

	mentions := make([]nlp.Mention, 0, len(out.Entities))
	for _, e := range out.Entities {
		if e.Text == "" {
			continue
		}
		mentions = append(mentions, nlp.Mention{Text: e.Text, Type: nlp.CanonicalType(e.Type)})
	}
	return mentions, nil
}

// Score implements nlp.SentimentScorer.
func (c *Client) Score(ctx context.Context, text string) (float64, error) {
	var out struct {
		Score *float64 `json:"score"`
	}
	if err := c.complete(ctx, sentimentPrompt, text, &out); err != nil {
		return 0, fmt.Errorf("score sentiment: %w", err)
	}
	if out.Score == nil {
		return 0, errors.New("score sentiment: response has no score")
	}
	return *out.Score, nil
}

func (c *Client) complete(ctx context.Context, system, user string, dst any) error {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return err
	}
	if len(resp.Choices) == 0 {
		return errors.New("empty completion")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), dst); err != nil {
		return fmt.Errorf("decode completion: %w", err)
	}
	return nil
}
