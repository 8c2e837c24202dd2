// Package openrouter calls the OpenRouter chat completions API. It is the
// default route for model tags with no dedicated provider.
package openrouter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	models "github.com/linxule/liminal-backrooms/models"
	"github.com/joho/godotenv"
)

const (
	DefaultBaseURL   = "https://openrouter.ai/api/v1/chat/completions"
	DefaultMaxTokens = 4000

	// OpenRouter uses these for rankings attribution.
	RefererHeader = "http://localhost:3000"
	TitleHeader   = "AI Conversation"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
}

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Request is the chat completions request body.
type Request struct {
	Model       string               `json:"model"`
	Messages    []models.ChatMessage `json:"messages"`
	Stream      bool                 `json:"stream"`
	Temperature float64              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens"`
	TopP        *float64             `json:"top_p,omitempty"`
}

// Response is the chat completions result.
type Response struct {
	Choices []struct {
		Message models.ChatMessage `json:"message"`
	} `json:"choices"`
}

type Client struct {
	BaseURL   string
	APIKeyEnv string // defaults to OPENROUTER_API_KEY
}

func Call(payload models.ProviderPayload) (models.ProviderReply, error) {
	return (&Client{}).Call(payload)
}

func (c *Client) Call(payload models.ProviderPayload) (models.ProviderReply, error) {
	apiKeyEnv := c.APIKeyEnv
	if apiKeyEnv == "" {
		apiKeyEnv = "OPENROUTER_API_KEY"
	}
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return models.ProviderReply{}, fmt.Errorf("%s not found in environment variables", apiKeyEnv)
	}

	// OpenRouter takes the full sequence, system message included.
	messages := payload.FullMessages
	if len(messages) == 0 {
		if payload.SystemPrompt != "" {
			messages = append(messages, models.ChatMessage{Role: models.RoleSystem, Content: payload.SystemPrompt})
		}
		messages = append(messages, payload.ContextMessages...)
		messages = append(messages, models.ChatMessage{Role: models.RoleUser, Content: payload.Prompt})
	}

	opts := payload.Options
	temperature := 1.0
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	maxTokens := DefaultMaxTokens
	if opts.MaxTokens != nil {
		maxTokens = *opts.MaxTokens
	}

	req := Request{
		Model:       payload.ModelID,
		Messages:    messages,
		Stream:      false,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		TopP:        opts.TopP,
	}

	jsonBytes, err := json.Marshal(req)
	if err != nil {
		return models.ProviderReply{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpReq, err := http.NewRequest("POST", baseURL, bytes.NewReader(jsonBytes))
	if err != nil {
		return models.ProviderReply{}, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("HTTP-Referer", RefererHeader)
	httpReq.Header.Set("X-Title", TitleHeader)

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return models.ProviderReply{}, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.ProviderReply{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return models.ProviderReply{}, fmt.Errorf("OpenRouter API error %d: %s", resp.StatusCode, string(body))
	}

	var apiResp Response
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.ProviderReply{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return models.ProviderReply{}, fmt.Errorf("unexpected response structure from OpenRouter")
	}

	return models.ProviderReply{
		Role:    models.RoleAssistant,
		Content: apiResp.Choices[0].Message.Content,
	}, nil
}
