package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/yungbote/clipcut-backend/internal/config"
	"github.com/yungbote/clipcut-backend/internal/platform/logger"
)

// Client is the chat surface the scoring and captioning code talks to.
// Responses are free-form text; callers parse what they need and treat
// anything malformed as "no refinement".
type Client interface {
	Chat(ctx context.Context, system string, user string) (string, error)
}

// New builds the configured provider. Returns (nil, nil) when LLM use
// is disabled or not configured; callers must treat a nil client as
// "skip refinement".
func New(cfg config.LLMConfig, log *logger.Logger) (Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	switch provider {
	case "":
		return nil, nil
	case "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return nil, nil
		}
		return &openaiClient{
			log:    log.With("service", "OpenAIClient"),
			client: openai.NewClient(cfg.OpenAIAPIKey),
			model:  model,
		}, nil
	case "ollama":
		base := strings.TrimRight(strings.TrimSpace(cfg.OllamaBaseURL), "/")
		if base == "" {
			base = "http://localhost:11434"
		}
		return &ollamaClient{
			log:        log.With("service", "OllamaClient"),
			baseURL:    base,
			model:      model,
			httpClient: &http.Client{Timeout: 60 * time.Second},
		}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}

type openaiClient struct {
	log    *logger.Logger
	client *openai.Client
	model  string
}

func (c *openaiClient) Chat(ctx context.Context, system string, user string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.5,
		MaxTokens:   500,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

type ollamaClient struct {
	log        *logger.Logger
	baseURL    string
	model      string
	httpClient *http.Client
}

func (c *ollamaClient) Chat(ctx context.Context, system string, user string) (string, error) {
	payload := map[string]any{
		"model":  c.model,
		"stream": false,
		"options": map[string]any{
			"temperature": 0.5,
		},
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama chat: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("ollama chat: decode: %w", err)
	}
	return out.Message.Content, nil
}
