// Package bedrock calls Anthropic models deployed on AWS Bedrock through
// the InvokeModel runtime API.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	models "github.com/linxule/liminal-backrooms/models"
)

const (
	DefaultRegion    = "us-east-1"
	DefaultMaxTokens = 4000
	APIVersion       = "bedrock-2023-05-31"

	callTimeout = 60 * time.Second
)

var (
	clientOnce sync.Once
	client     *bedrockruntime.Client
	clientErr  error
)

// getClient returns a cached Bedrock runtime client.
func getClient(ctx context.Context) (*bedrockruntime.Client, error) {
	clientOnce.Do(func() {
		region := os.Getenv("AWS_REGION")
		if region == "" {
			region = DefaultRegion
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
		if err != nil {
			clientErr = fmt.Errorf("failed to load AWS config: %w", err)
			return
		}
		client = bedrockruntime.NewFromConfig(cfg)
	})
	return client, clientErr
}

// invokeRequest is the Anthropic-on-Bedrock request body.
type invokeRequest struct {
	AnthropicVersion string      `json:"anthropic_version"`
	Messages         []invokeMsg `json:"messages"`
	MaxTokens        int         `json:"max_tokens"`
	Temperature      float64     `json:"temperature"`
	System           string      `json:"system,omitempty"`
}

type invokeMsg struct {
	Role    string        `json:"role"`
	Content []invokeBlock `json:"content"`
}

type invokeBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type invokeResponse struct {
	Content []invokeBlock `json:"content"`
}

// Call sends one chat turn through Bedrock InvokeModel.
func Call(payload models.ProviderPayload) (models.ProviderReply, error) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	runtime, err := getClient(ctx)
	if err != nil {
		return models.ProviderReply{}, err
	}

	messages := make([]invokeMsg, 0, len(payload.ContextMessages)+1)
	for _, msg := range payload.ContextMessages {
		if msg.Content == "" {
			continue
		}
		role := models.RoleUser
		if msg.Role == models.RoleAssistant {
			role = models.RoleAssistant
		}
		messages = append(messages, invokeMsg{
			Role:    role,
			Content: []invokeBlock{{Type: "text", Text: msg.Content}},
		})
	}
	messages = append(messages, invokeMsg{
		Role:    models.RoleUser,
		Content: []invokeBlock{{Type: "text", Text: payload.Prompt}},
	})

	opts := payload.Options
	maxTokens := DefaultMaxTokens
	if opts.MaxTokens != nil {
		maxTokens = *opts.MaxTokens
	}
	temperature := 1.0
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}

	body, err := json.Marshal(invokeRequest{
		AnthropicVersion: APIVersion,
		Messages:         messages,
		MaxTokens:        maxTokens,
		Temperature:      temperature,
		System:           payload.SystemPrompt,
	})
	if err != nil {
		return models.ProviderReply{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	out, err := runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(payload.ModelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return models.ProviderReply{}, fmt.Errorf("error calling AWS Bedrock for model %s: %w", payload.ModelID, err)
	}

	var parsed invokeResponse
	if err := json.Unmarshal(out.Body, &parsed); err != nil {
		return models.ProviderReply{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	var texts []string
	for _, block := range parsed.Content {
		if block.Type == "text" && block.Text != "" {
			texts = append(texts, block.Text)
		}
	}

	return models.ProviderReply{
		Role:    models.RoleAssistant,
		Content: strings.TrimSpace(strings.Join(texts, "\n")),
	}, nil
}
