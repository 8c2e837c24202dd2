package openai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	models "github.com/linxule/liminal-backrooms/models"
	"github.com/joho/godotenv"
)

const DefaultBaseURL = "https://api.openai.com/v1/responses"

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
}

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Client calls the OpenAI Responses API.
type Client struct {
	BaseURL   string
	APIKeyEnv string // defaults to OPENAI_API_KEY
}

// Call sends one chat turn to the Responses API.
func Call(payload models.ProviderPayload) (models.ProviderReply, error) {
	return (&Client{}).Call(payload)
}

func (c *Client) Call(payload models.ProviderPayload) (models.ProviderReply, error) {
	apiKeyEnv := c.APIKeyEnv
	if apiKeyEnv == "" {
		apiKeyEnv = "OPENAI_API_KEY"
	}
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return models.ProviderReply{}, fmt.Errorf("%s not found in environment variables", apiKeyEnv)
	}

	req := Request{
		Model:           payload.ModelID,
		Input:           buildInput(payload),
		Temperature:     payload.Options.Temperature,
		TopP:            payload.Options.TopP,
		MaxOutputTokens: payload.Options.MaxTokens,
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
		return models.ProviderReply{}, fmt.Errorf("OpenAI API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var apiResp Response
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.ProviderReply{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	var texts, reasoning []string
	for _, item := range apiResp.Output {
		itemIsReasoning := isReasoningType(item.Type)
		for _, block := range item.Content {
			if block.Text == "" {
				continue
			}
			if itemIsReasoning || isReasoningType(block.Type) {
				reasoning = append(reasoning, strings.TrimSpace(block.Text))
			} else {
				texts = append(texts, block.Text)
			}
		}
		for _, block := range item.Summary {
			if trimmed := strings.TrimSpace(block.Text); trimmed != "" {
				reasoning = append(reasoning, trimmed)
			}
		}
	}

	content := strings.TrimSpace(strings.Join(texts, "\n"))
	if content == "" && len(reasoning) > 0 {
		content = reasoning[len(reasoning)-1]
	}

	return models.ProviderReply{
		Role:            models.RoleAssistant,
		Content:         content,
		ReasoningBlocks: reasoning,
	}, nil
}

func isReasoningType(blockType string) bool {
	lower := strings.ToLower(blockType)
	return strings.Contains(lower, "reason") ||
		strings.Contains(lower, "chain_of_thought") ||
		strings.Contains(lower, "cot")
}

// buildInput converts the payload into Responses API input. Assistant
// history becomes output_text blocks, everything else input_text, and the
// input never ends empty.
func buildInput(payload models.ProviderPayload) []InputMessage {
	var input []InputMessage
	appendMessage := func(role, text string) {
		stripped := strings.TrimSpace(text)
		if stripped == "" {
			return
		}
		contentType := "input_text"
		if role == models.RoleAssistant {
			contentType = "output_text"
		}
		input = append(input, InputMessage{
			Role:    role,
			Content: []ContentBlock{{Type: contentType, Text: stripped}},
		})
	}

	appendMessage(models.RoleSystem, payload.SystemPrompt)
	for _, msg := range payload.ContextMessages {
		appendMessage(msg.Role, msg.Content)
	}
	if strings.TrimSpace(payload.Prompt) != "" {
		appendMessage(models.RoleUser, payload.Prompt)
	} else {
		input = append(input, InputMessage{
			Role:    models.RoleUser,
			Content: []ContentBlock{{Type: "input_text", Text: "..."}},
		})
	}
	return input
}
