package anthropic

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

const (
	DefaultBaseURL    = "https://api.anthropic.com/v1/messages"
	DefaultAPIVersion = "2023-06-01"
	DefaultMaxTokens  = 4000
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
}

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Client calls the Anthropic Messages API.
type Client struct {
	BaseURL   string // Optional: custom API endpoint
	APIKeyEnv string // Optional: env var name for API key (defaults to ANTHROPIC_API_KEY)
}

// Call sends one chat turn to the Messages API.
func Call(payload models.ProviderPayload) (models.ProviderReply, error) {
	return (&Client{}).Call(payload)
}

func (c *Client) Call(payload models.ProviderPayload) (models.ProviderReply, error) {
	apiKeyEnv := c.APIKeyEnv
	if apiKeyEnv == "" {
		apiKeyEnv = "ANTHROPIC_API_KEY"
	}
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return models.ProviderReply{}, fmt.Errorf("%s not found in environment variables", apiKeyEnv)
	}

	req := c.buildRequest(payload)

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
	httpReq.Header.Set("X-API-Key", apiKey)
	httpReq.Header.Set("anthropic-version", DefaultAPIVersion)

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
		return models.ProviderReply{}, fmt.Errorf("Anthropic API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var apiResp Response
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.ProviderReply{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	var texts, thinking []string
	for _, block := range apiResp.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				texts = append(texts, block.Text)
			}
		case "thinking":
			thought := block.Thinking
			if thought == "" {
				thought = block.Text
			}
			if thought != "" {
				thinking = append(thinking, thought)
			}
		}
	}

	return models.ProviderReply{
		Role:            models.RoleAssistant,
		Content:         strings.TrimSpace(strings.Join(texts, "\n")),
		ReasoningBlocks: thinking,
	}, nil
}

// buildRequest assembles the Messages API body: deduplicated context, the
// current prompt as the final user message, merged to the strict role
// alternation the API requires.
func (c *Client) buildRequest(payload models.ProviderPayload) Request {
	messages := make([]Msg, 0, len(payload.ContextMessages)+1)
	seen := make(map[string]bool)
	for _, msg := range payload.ContextMessages {
		if msg.Role == models.RoleSystem {
			continue
		}
		if seen[msg.Content] {
			log.Printf("Skipping duplicate message in API call: %s", firstN(msg.Content, 30))
			continue
		}
		seen[msg.Content] = true
		messages = append(messages, Msg{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, Msg{Role: models.RoleUser, Content: payload.Prompt})
	messages = mergeConsecutiveMessages(messages)

	opts := payload.Options
	maxTokens := DefaultMaxTokens
	if opts.MaxTokens != nil {
		maxTokens = *opts.MaxTokens
	}
	temperature := 1.0
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}

	req := Request{
		Model:         payload.ModelID,
		MaxTokens:     maxTokens,
		Messages:      messages,
		System:        payload.SystemPrompt,
		Temperature:   &temperature,
		TopP:          opts.TopP,
		StopSequences: opts.StopSequences,
	}

	if opts.ExtendedThinking && SupportsExtendedThinking(payload.ModelID) {
		req.Thinking = &ThinkingConfig{Type: "enabled", BudgetTokens: opts.ThinkingBudgetTokens}
	}

	return req
}

// SupportsExtendedThinking reports whether the model accepts a thinking
// block (Claude 3.7 and Claude 4 families).
func SupportsExtendedThinking(modelID string) bool {
	lower := strings.ToLower(modelID)
	return strings.Contains(lower, "claude-3-7") || strings.Contains(lower, "claude-4")
}

// mergeConsecutiveMessages merges consecutive messages with the same role.
// Anthropic requires strictly alternating user/assistant roles.
func mergeConsecutiveMessages(messages []Msg) []Msg {
	if len(messages) <= 1 {
		return messages
	}
	var result []Msg
	for _, msg := range messages {
		if len(result) > 0 && result[len(result)-1].Role == msg.Role {
			prev := &result[len(result)-1]
			prev.Content = prev.Content + "\n" + msg.Content
		} else {
			result = append(result, msg)
		}
	}
	return result
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
