// Package gemini calls Gemini models through the official Google GenAI
// SDK, with thought parts surfaced as reasoning blocks.
package gemini

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	models "github.com/linxule/liminal-backrooms/models"
	"github.com/joho/godotenv"
	"google.golang.org/genai"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
}

const callTimeout = 60 * time.Second

type Client struct {
	// APIKeyEnv defaults to GOOGLE_API_KEY with GEMINI_API_KEY as the
	// secondary lookup.
	APIKeyEnv string
}

func Call(payload models.ProviderPayload) (models.ProviderReply, error) {
	return (&Client{}).Call(payload)
}

func (c *Client) Call(payload models.ProviderPayload) (models.ProviderReply, error) {
	apiKey := ""
	if c.APIKeyEnv != "" {
		apiKey = os.Getenv(c.APIKeyEnv)
	} else {
		apiKey = os.Getenv("GOOGLE_API_KEY")
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
	}
	if apiKey == "" {
		return models.ProviderReply{}, fmt.Errorf("GOOGLE_API_KEY (or GEMINI_API_KEY) not found in environment variables")
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return models.ProviderReply{}, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	var contents []*genai.Content
	for _, msg := range payload.ContextMessages {
		if msg.Content == "" {
			continue
		}
		role := genai.RoleModel
		if msg.Role == models.RoleUser {
			role = genai.RoleUser
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}
	contents = append(contents, &genai.Content{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: payload.Prompt}},
	})

	config := &genai.GenerateContentConfig{}
	if payload.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: payload.SystemPrompt}},
		}
	}
	opts := payload.Options
	if opts.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*opts.Temperature))
	}
	if opts.TopP != nil {
		config.TopP = genai.Ptr(float32(*opts.TopP))
	}
	if opts.MaxTokens != nil {
		config.MaxOutputTokens = int32(*opts.MaxTokens)
	}
	if opts.ExtendedThinking && SupportsThinking(payload.ModelID) {
		config.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(int32(opts.ThinkingBudgetTokens)),
		}
	}

	resp, err := client.Models.GenerateContent(ctx, payload.ModelID, contents, config)
	if err != nil {
		return models.ProviderReply{}, fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return models.ProviderReply{}, fmt.Errorf("no content in Gemini response")
	}

	var texts, thoughts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text == "" {
			continue
		}
		if part.Thought {
			thoughts = append(thoughts, part.Text)
		} else {
			texts = append(texts, part.Text)
		}
	}

	return models.ProviderReply{
		Role:            models.RoleAssistant,
		Content:         strings.TrimSpace(strings.Join(texts, "")),
		ReasoningBlocks: thoughts,
	}, nil
}

// SupportsThinking reports whether thinking mode applies (Gemini 2.x).
func SupportsThinking(modelID string) bool {
	return strings.Contains(strings.ToLower(modelID), "gemini-2")
}
