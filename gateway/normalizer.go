package gateway

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/linxule/liminal-backrooms/models"
)

var (
	// Paired think/thinking blocks. Go's regexp has no backreferences, so
	// the open/close tags are compared after matching.
	thinkTagRe = regexp.MustCompile(`(?is)<(think|thinking)>(.*?)</(think|thinking)>`)

	finalAnswerRe = regexp.MustCompile(`(?i)(?:final\s+answer|answer)\s*[:\-]\s*(.+)`)
)

// Normalizer converts raw provider results into the canonical response
// envelope. ShowChainOfThought controls whether the Display field is
// populated with the reasoning + final answer concatenation.
type Normalizer struct {
	ShowChainOfThought bool
}

// ErrorEnvelope builds the standardized error envelope the fallback check
// detects. Content always carries the "Error" prefix that check matches.
func ErrorEnvelope(message string) models.ResponseEnvelope {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "An unknown error occurred"
	}
	if !strings.HasPrefix(strings.ToLower(message), "error") {
		message = "Error: " + message
	}
	return models.ResponseEnvelope{Role: models.RoleSystem, Content: message}
}

// Normalize accepts a structured reply, a plain string, an error, or nil,
// and returns the canonical envelope. Content is never left empty when the
// provider produced any text at all.
func (n *Normalizer) Normalize(raw interface{}) models.ResponseEnvelope {
	switch v := raw.(type) {
	case nil:
		return ErrorEnvelope("Provider returned no response")
	case error:
		return ErrorEnvelope(v.Error())
	case string:
		stripped := strings.TrimSpace(v)
		if strings.HasPrefix(strings.ToLower(stripped), "error") {
			return ErrorEnvelope(stripped)
		}
		return n.FormatReasoning(v, nil)
	case models.ProviderReply:
		return n.normalizeReply(v)
	case *models.ProviderReply:
		if v == nil {
			return ErrorEnvelope("Provider returned no response")
		}
		return n.normalizeReply(*v)
	default:
		return models.ResponseEnvelope{Role: models.RoleAssistant, Content: fmt.Sprint(v)}
	}
}

func (n *Normalizer) normalizeReply(reply models.ProviderReply) models.ResponseEnvelope {
	env := n.FormatReasoning(reply.Content, reply.ReasoningBlocks)
	if reply.Role != "" {
		env.Role = reply.Role
	}
	if strings.TrimSpace(env.Content) == "" && env.Reasoning == "" {
		return ErrorEnvelope("Provider returned no response")
	}
	return env
}

// FormatReasoning strips embedded think-tag blocks out of content, merges
// them with provider-supplied reasoning blocks (first-seen order, exact
// duplicates dropped), and synthesizes a final answer when the stripped
// content would otherwise be empty.
func (n *Normalizer) FormatReasoning(content string, reasoningBlocks []string) models.ResponseEnvelope {
	cleaned, extracted := stripThinkTags(content)

	var combined []string
	for _, block := range reasoningBlocks {
		if trimmed := strings.TrimSpace(block); trimmed != "" {
			combined = append(combined, trimmed)
		}
	}
	combined = append(combined, extracted...)

	seen := make(map[string]bool)
	var deduped []string
	for _, block := range combined {
		if !seen[block] {
			seen[block] = true
			deduped = append(deduped, block)
		}
	}
	reasoning := strings.TrimSpace(strings.Join(deduped, "\n"))

	if cleaned == "" && reasoning != "" {
		cleaned = synthesizeFinalAnswer(deduped)
		if cleaned == "" {
			cleaned = reasoning
		}
	}

	env := models.ResponseEnvelope{
		Role:      models.RoleAssistant,
		Content:   cleaned,
		Reasoning: reasoning,
	}

	if n.ShowChainOfThought {
		var sections []string
		if reasoning != "" {
			sections = append(sections, "[Chain of Thought]\n"+reasoning)
		}
		if cleaned != "" {
			sections = append(sections, "[Final Answer]\n"+cleaned)
		}
		if len(sections) > 0 {
			env.Display = strings.Join(sections, "\n\n")
		} else {
			env.Display = cleaned
		}
	}

	return env
}

// stripThinkTags removes paired think/thinking blocks from content and
// returns the trimmed remainder plus the non-empty inner texts in order.
// Mismatched open/close tags are left in place.
func stripThinkTags(content string) (string, []string) {
	matches := thinkTagRe.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(content), nil
	}

	var cleaned strings.Builder
	var blocks []string
	prev := 0
	for _, m := range matches {
		openTag := content[m[2]:m[3]]
		closeTag := content[m[6]:m[7]]
		if !strings.EqualFold(openTag, closeTag) {
			continue
		}
		cleaned.WriteString(content[prev:m[0]])
		if inner := strings.TrimSpace(content[m[4]:m[5]]); inner != "" {
			blocks = append(blocks, inner)
		}
		prev = m[1]
	}
	cleaned.WriteString(content[prev:])
	return strings.TrimSpace(cleaned.String()), blocks
}

// synthesizeFinalAnswer scans reasoning blocks in reverse for an
// "answer:" / "final answer:" line, falling back to the last non-empty
// line of the newest block.
func synthesizeFinalAnswer(blocks []string) string {
	for i := len(blocks) - 1; i >= 0; i-- {
		block := blocks[i]
		if m := finalAnswerRe.FindStringSubmatch(block); m != nil {
			if candidate := strings.TrimSpace(m[1]); candidate != "" {
				return candidate
			}
		}
		lines := strings.Split(block, "\n")
		for j := len(lines) - 1; j >= 0; j-- {
			if candidate := strings.TrimSpace(lines[j]); candidate != "" {
				return candidate
			}
		}
	}
	return ""
}
