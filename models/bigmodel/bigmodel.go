// Package bigmodel calls BigModel (Zhipu) GLM models through the official
// chat completions API.
package bigmodel

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

const DefaultBaseURL = "https://open.bigmodel.cn/api/paas/v4/chat/completions"

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
	Temperature *float64             `json:"temperature,omitempty"`
	MaxTokens   *int                 `json:"max_tokens,omitempty"`
}

// Response is the chat completions result.
type Response struct {
	Choices []struct {
		Message models.ChatMessage `json:"message"`
	} `json:"choices"`
}

type Client struct {
	BaseURL   string
	APIKeyEnv string // defaults to BIGMODEL_API_KEY
}

func Call(payload models.ProviderPayload) (models.ProviderReply, error) {
	return (&Client{}).Call(payload)
}

func (c *Client) Call(payload models.ProviderPayload) (models.ProviderReply, error) {
	apiKeyEnv := c.APIKeyEnv
	if apiKeyEnv == "" {
		apiKeyEnv = "BIGMODEL_API_KEY"
	}
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return models.ProviderReply{}, fmt.Errorf("%s not found in environment variables", apiKeyEnv)
	}

	messages := make([]models.ChatMessage, 0, len(payload.ContextMessages)+2)
	if payload.SystemPrompt != "" {
		messages = append(messages, models.ChatMessage{Role: models.RoleSystem, Content: payload.SystemPrompt})
	}
	for _, msg := range payload.ContextMessages {
		if msg.Content == "" {
			continue
		}
		messages = append(messages, msg)
	}
	messages = append(messages, models.ChatMessage{Role: models.RoleUser, Content: payload.Prompt})

	req := Request{
		Model:       payload.ModelID,
		Messages:    messages,
		Stream:      false,
		Temperature: payload.Options.Temperature,
		MaxTokens:   payload.Options.MaxTokens,
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
		return models.ProviderReply{}, fmt.Errorf("BigModel API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var apiResp Response
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.ProviderReply{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return models.ProviderReply{}, fmt.Errorf("no content in BigModel response")
	}

	return models.ProviderReply{
		Role:    models.RoleAssistant,
		Content: apiResp.Choices[0].Message.Content,
	}, nil
}
