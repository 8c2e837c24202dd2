// Package replicate runs models hosted on Replicate through the
// synchronous predictions API. It backs the legacy DeepSeek route used
// when the official API is down.
package replicate

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
	DefaultBaseURL   = "https://api.replicate.com/v1/models"
	DefaultModel     = "deepseek-ai/deepseek-r1"
	DefaultMaxTokens = 8000
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
}

// Predictions can take a while even with blocking mode.
var httpClient = &http.Client{Timeout: 300 * time.Second}

// Request is the predictions request body.
type Request struct {
	Input Input `json:"input"`
}

type Input struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// Response is the prediction result in blocking mode.
type Response struct {
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error,omitempty"`
}

type Client struct {
	BaseURL   string
	APIKeyEnv string // defaults to REPLICATE_API_TOKEN
}

func Call(payload models.ProviderPayload) (models.ProviderReply, error) {
	return (&Client{}).Call(payload)
}

func (c *Client) Call(payload models.ProviderPayload) (models.ProviderReply, error) {
	apiKeyEnv := c.APIKeyEnv
	if apiKeyEnv == "" {
		apiKeyEnv = "REPLICATE_API_TOKEN"
	}
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return models.ProviderReply{}, fmt.Errorf("%s not found in environment variables", apiKeyEnv)
	}

	model := payload.ModelID
	if model == "" {
		model = DefaultModel
	}

	opts := payload.Options
	maxTokens := DefaultMaxTokens
	if opts.MaxTokens != nil {
		maxTokens = *opts.MaxTokens
	}
	temperature := 1.0
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}

	req := Request{Input: Input{
		Prompt:      flattenConversation(payload),
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}}

	jsonBytes, err := json.Marshal(req)
	if err != nil {
		return models.ProviderReply{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	url := fmt.Sprintf("%s/%s/predictions", baseURL, model)

	httpReq, err := http.NewRequest("POST", url, bytes.NewReader(jsonBytes))
	if err != nil {
		return models.ProviderReply{}, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Prefer", "wait")

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return models.ProviderReply{}, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.ProviderReply{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return models.ProviderReply{}, fmt.Errorf("Replicate API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var apiResp Response
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.ProviderReply{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if apiResp.Error != "" {
		return models.ProviderReply{}, fmt.Errorf("Replicate prediction failed: %s", apiResp.Error)
	}

	text := decodeOutput(apiResp.Output)
	if strings.TrimSpace(text) == "" {
		return models.ProviderReply{}, fmt.Errorf("no content in Replicate response")
	}

	// Think tags stay embedded; the response normalizer strips them.
	return models.ProviderReply{Role: models.RoleAssistant, Content: text}, nil
}

// flattenConversation renders the history as a role-prefixed transcript,
// skipping repeated roles so the prompt stays interleaved.
func flattenConversation(payload models.ProviderPayload) string {
	var b strings.Builder
	if payload.SystemPrompt != "" {
		fmt.Fprintf(&b, "System: %s\n", payload.SystemPrompt)
	}
	lastRole := ""
	for _, msg := range payload.ContextMessages {
		if msg.Content == "" || msg.Role == lastRole {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", capitalize(msg.Role), msg.Content)
		lastRole = msg.Role
	}
	fmt.Fprintf(&b, "User: %s\n", payload.Prompt)
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// decodeOutput joins chunked string output, or stringifies anything else.
func decodeOutput(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var chunks []string
	if err := json.Unmarshal(raw, &chunks); err == nil {
		return strings.Join(chunks, "")
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	return string(raw)
}
