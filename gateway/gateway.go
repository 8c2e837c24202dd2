package gateway

import (
	"log"
	"strings"

	"github.com/linxule/liminal-backrooms/models"
)

// DefaultProvider handles any model tag with no dedicated registry entry.
const DefaultProvider = "openrouter"

// CallFunc performs one provider API call.
type CallFunc func(models.ProviderPayload) (models.ProviderReply, error)

// Fallback names the provider (and optionally the model) to try when an
// entry's own call errors.
type Fallback struct {
	Provider string
	Model    string
}

// Entry describes one registered provider.
type Entry struct {
	Call              CallFunc
	SupportsReasoning bool
	// DefaultFallback chains this provider onto another when the call
	// errors and the caller supplied no fallback of its own.
	DefaultFallback *Fallback
}

// Gateway routes chat calls to registered providers and applies the
// single-hop fallback policy. Unknown tags go to the default provider.
type Gateway struct {
	registry map[string]Entry
	norm     *Normalizer
}

func New(registry map[string]Entry, norm *Normalizer) *Gateway {
	if norm == nil {
		norm = &Normalizer{}
	}
	g := &Gateway{registry: make(map[string]Entry, len(registry)), norm: norm}
	for tag, entry := range registry {
		g.registry[strings.ToLower(strings.TrimSpace(tag))] = entry
	}
	return g
}

// SupportsReasoning reports whether the tagged provider surfaces
// chain-of-thought blocks.
func (g *Gateway) SupportsReasoning(providerTag string) bool {
	entry, ok := g.registry[strings.ToLower(strings.TrimSpace(providerTag))]
	return ok && entry.SupportsReasoning
}

// Invoke calls the tagged provider and normalizes the result. On an error
// envelope it tries the caller-supplied fallback first, then the entry's
// registry default, skipping any provider already attempted for this
// payload so fallback chains cannot cycle.
func (g *Gateway) Invoke(providerTag string, payload *models.ProviderPayload) models.ResponseEnvelope {
	key := strings.ToLower(strings.TrimSpace(providerTag))
	entry, ok := g.registry[key]
	if key == "" || !ok {
		key = DefaultProvider
		entry, ok = g.registry[key]
		if !ok {
			return ErrorEnvelope("Error: no provider registered for '" + providerTag + "'")
		}
	}
	payload.MarkAttempted(key)

	env := g.call(key, entry, payload)
	if !env.IsError() {
		return env
	}
	log.Printf("Warning: provider %s failed: %s", key, env.Content)

	if fb := strings.ToLower(strings.TrimSpace(payload.FallbackProvider)); fb != "" && !payload.Attempted[fb] {
		next := *payload
		if payload.FallbackModel != "" {
			next.ModelID = payload.FallbackModel
		}
		log.Printf("Falling back from %s to %s", key, fb)
		return g.Invoke(fb, &next)
	}
	if entry.DefaultFallback != nil {
		fb := strings.ToLower(strings.TrimSpace(entry.DefaultFallback.Provider))
		if fb != "" && !payload.Attempted[fb] {
			next := *payload
			if entry.DefaultFallback.Model != "" {
				next.ModelID = entry.DefaultFallback.Model
			}
			log.Printf("Falling back from %s to %s", key, fb)
			return g.Invoke(fb, &next)
		}
	}
	return env
}

func (g *Gateway) call(key string, entry Entry, payload *models.ProviderPayload) models.ResponseEnvelope {
	reply, err := entry.Call(*payload)
	var env models.ResponseEnvelope
	if err != nil {
		env = g.norm.Normalize(err)
	} else {
		env = g.norm.Normalize(reply)
	}
	if env.Provider == "" {
		env.Provider = key
	}
	return env
}
