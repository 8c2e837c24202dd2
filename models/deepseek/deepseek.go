// Package deepseek calls DeepSeek's official chat completions API. The
// reasoner models return chain-of-thought in a reasoning_content field
// next to the final content.
package deepseek

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

const DefaultBaseURL = "https://api.deepseek.com/chat/completions"

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
}

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Request is the chat completions request body.
type Request struct {
	Model       string              `json:"model"`
	Messages    []models.ChatMessage `json:"messages"`
	Temperature *float64            `json:"temperature,omitempty"`
	MaxTokens   *int                `json:"max_tokens,omitempty"`
}

// Response is the chat completions result.
type Response struct {
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Message ChoiceMessage `json:"message"`
}

type ChoiceMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	// ReasoningContent is a string today; decoded leniently in case the
	// API switches to block arrays.
	ReasoningContent json.RawMessage `json:"reasoning_content,omitempty"`
}

// Client calls the DeepSeek API.
type Client struct {
	BaseURL   string
	APIKeyEnv string // defaults to DEEPSEEK_API_KEY
}

func Call(payload models.ProviderPayload) (models.ProviderReply, error) {
	return (&Client{}).Call(payload)
}

func (c *Client) Call(payload models.ProviderPayload) (models.ProviderReply, error) {
	apiKeyEnv := c.APIKeyEnv
	if apiKeyEnv == "" {
		apiKeyEnv = "DEEPSEEK_API_KEY"
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
		return models.ProviderReply{}, fmt.Errorf("DeepSeek API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var apiResp Response
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.ProviderReply{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return models.ProviderReply{}, fmt.Errorf("no content in DeepSeek response")
	}

	msg := apiResp.Choices[0].Message
	return models.ProviderReply{
		Role:            models.RoleAssistant,
		Content:         msg.Content,
		ReasoningBlocks: decodeReasoning(msg.ReasoningContent),
	}, nil
}

func decodeReasoning(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return nil
		}
		return []string{single}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	var blocks []string
	for _, item := range items {
		var text string
		if err := json.Unmarshal(item, &text); err == nil {
			if text != "" {
				blocks = append(blocks, text)
			}
			continue
		}
		var obj struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(item, &obj); err == nil && obj.Text != "" {
			blocks = append(blocks, obj.Text)
		}
	}
	return blocks
}
