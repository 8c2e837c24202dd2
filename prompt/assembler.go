package prompt

import (
	"log"
	"strings"

	"github.com/linxule/liminal-backrooms/conversation"
	"github.com/linxule/liminal-backrooms/models"
)

// DefaultPrompt stands in when the transcript has no usable message yet.
const DefaultPrompt = "Connecting..."

// BranchState captures how the latest branch indicator in a transcript
// shapes the next turn.
type BranchState struct {
	Kind       string
	AnchorText string
	// RepliesSince counts assistant messages after the latest indicator.
	RepliesSince int
}

// DetectBranchState scans the transcript for the most recent branch
// indicator and counts assistant replies after it. The anchor text is the
// first quoted span of the indicator.
func DetectBranchState(transcript []conversation.Message) BranchState {
	state := BranchState{Kind: conversation.BranchMain}
	latest := -1
	for i, msg := range transcript {
		if !msg.IsIndicator() {
			continue
		}
		latest = i
		switch {
		case strings.Contains(msg.Content, "Rabbitholing down:"):
			state.Kind = conversation.BranchRabbithole
		case strings.Contains(msg.Content, "Forking off:"):
			state.Kind = conversation.BranchFork
		default:
			continue
		}
		state.AnchorText = quotedSpan(msg.Content)
	}
	if latest >= 0 {
		state.RepliesSince = conversation.AssistantRepliesSinceIndicator(transcript)
	}
	return state
}

func quotedSpan(content string) string {
	first := strings.IndexByte(content, '"')
	if first < 0 {
		return ""
	}
	rest := content[first+1:]
	second := strings.IndexByte(rest, '"')
	if second < 0 {
		return ""
	}
	return rest[:second]
}

// EffectiveSystemPrompt applies the one-shot branch overrides: rabbithole
// branches get the anchor-emphasis prompt for the first two replies after
// the indicator, forks get the continuation prompt for the first reply
// only. Everything else keeps the speaker's own system prompt.
func EffectiveSystemPrompt(systemPrompt string, state BranchState) string {
	switch state.Kind {
	case conversation.BranchRabbithole:
		if state.AnchorText != "" && state.RepliesSince < 2 {
			return "'" + state.AnchorText + "'!!!"
		}
	case conversation.BranchFork:
		if state.AnchorText != "" && state.RepliesSince == 0 {
			return "The conversation forks from '" + state.AnchorText + "'. Continue naturally from this point."
		}
	}
	return systemPrompt
}

// Assembly is a provider-ready view of one speaker's turn.
type Assembly struct {
	SystemPrompt string
	// Messages is the full sequence with the system message first.
	Messages []models.ChatMessage
	// Prompt is the newest non-system content; ContextMessages is
	// everything non-system before it.
	Prompt          string
	ContextMessages []models.ChatMessage
}

// Build converts a branch transcript into the message sequence sent on a
// speaker's behalf. The system message always comes first; hidden
// connecting placeholders, empty messages, system messages, and exact
// content duplicates are dropped; roles are assigned by speaker (this
// speaker's messages become assistant, everything else user); and the
// sequence is guaranteed to end on a user message. With shareReasoning
// set, messages carrying reasoning are rendered as the chain-of-thought
// plus final-answer concatenation.
func Build(systemPrompt, speaker string, transcript []conversation.Message, shareReasoning bool) Assembly {
	state := DetectBranchState(transcript)
	effective := EffectiveSystemPrompt(systemPrompt, state)

	type rendered struct {
		conversation.Message
		text string
	}
	var filtered []rendered
	for _, msg := range transcript {
		if conversation.IsConnectingPlaceholder(msg) {
			continue
		}
		if msg.Role == models.RoleSystem {
			continue
		}
		text := renderContent(msg, shareReasoning)
		if strings.TrimSpace(text) == "" {
			continue
		}
		duplicate := false
		for _, existing := range filtered {
			if existing.text == text {
				duplicate = true
				log.Printf("Skipping duplicate message: %s", truncate(text, 30))
				break
			}
		}
		if !duplicate {
			filtered = append(filtered, rendered{Message: msg, text: text})
		}
	}

	messages := []models.ChatMessage{{Role: models.RoleSystem, Content: effective}}
	for _, msg := range filtered {
		role := models.RoleUser
		if msg.Speaker != "" && msg.Speaker == speaker {
			role = models.RoleAssistant
		}
		messages = append(messages, models.ChatMessage{Role: role, Content: msg.text})
	}

	if len(messages) > 1 && messages[len(messages)-1].Role == models.RoleAssistant {
		closing := branchClosingMessage(state)
		if closing == "" {
			closing = "Let's continue our conversation."
			for i := len(filtered) - 1; i >= 0; i-- {
				if filtered[i].Speaker != speaker {
					closing = filtered[i].text
					break
				}
			}
		}
		messages = append(messages, models.ChatMessage{Role: models.RoleUser, Content: closing})
	}

	assembly := Assembly{SystemPrompt: effective, Messages: messages}
	var nonSystem []models.ChatMessage
	for _, msg := range messages {
		if msg.Role != models.RoleSystem && msg.Content != "" {
			nonSystem = append(nonSystem, msg)
		}
	}
	if len(nonSystem) > 0 {
		assembly.Prompt = nonSystem[len(nonSystem)-1].Content
		assembly.ContextMessages = nonSystem[:len(nonSystem)-1]
	} else {
		assembly.Prompt = DefaultPrompt
	}
	return assembly
}

// renderContent picks the text a message contributes to the context:
// normally the stored content, or the chain-of-thought concatenation when
// sharing is on and the message carries reasoning.
func renderContent(msg conversation.Message, shareReasoning bool) string {
	if shareReasoning && msg.Reasoning != "" {
		final := msg.RawContent
		if final == "" {
			final = msg.Content
		}
		return "[Chain of Thought]\n" + msg.Reasoning + "\n\n[Final Answer]\n" + final
	}
	return msg.Content
}

// branchClosingMessage is the synthetic user instruction that keeps a
// fresh branch's sequence ending on a user turn. Empty outside branches.
func branchClosingMessage(state BranchState) string {
	if state.AnchorText == "" {
		return ""
	}
	switch state.Kind {
	case conversation.BranchRabbithole:
		return "Please explore the concept of '" + state.AnchorText + "' in depth. What are the most interesting aspects or connections related to this concept?"
	case conversation.BranchFork:
		return "Continue on naturally from the point about '" + state.AnchorText + "' without including this text."
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
