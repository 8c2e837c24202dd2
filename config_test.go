package backrooms

import (
	"testing"
)

func TestResolveModel_RegistryHit(t *testing.T) {
	cfg := NewConfig()
	mc := cfg.ResolveModel("DeepSeek R1")
	if mc.Provider != "deepseek" || mc.ModelID != "deepseek-reasoner" {
		t.Errorf("Unexpected resolution: %+v", mc)
	}
	if mc.FallbackProvider != "deepseek_legacy" {
		t.Errorf("Expected legacy fallback, got %q", mc.FallbackProvider)
	}
}

func TestResolveModel_LegacyShim(t *testing.T) {
	cfg := NewConfig()
	mc := cfg.ResolveModel("moonshot::kimi-latest")
	if mc.Provider != "moonshot" || mc.ModelID != "kimi-latest" {
		t.Errorf("Expected provider::model split, got %+v", mc)
	}
}

func TestResolveModel_UntaggedPassthrough(t *testing.T) {
	cfg := NewConfig()
	mc := cfg.ResolveModel("mistralai/mixtral-8x22b")
	if mc.Provider != "" {
		t.Errorf("Untagged names should stay untagged for default routing, got %q", mc.Provider)
	}
	if mc.ModelID != "mistralai/mixtral-8x22b" {
		t.Errorf("Model id lost: %q", mc.ModelID)
	}
}

func TestModelConfig_NoSelfFallback(t *testing.T) {
	mc := ModelConfig{Provider: "anthropic", ModelID: "claude", FallbackProvider: "Anthropic"}
	if err := mc.Validate(); err == nil {
		t.Error("Expected self-fallback rejection")
	}

	cfg := NewConfig().WithModels(map[string]ModelConfig{"bad": mc})
	if err := cfg.ValidateModels(); err == nil {
		t.Error("Expected registry validation to fail")
	}
}

func TestDefaultRegistryCoversDefaultModels(t *testing.T) {
	registry := DefaultRegistry()
	for name, mc := range DefaultModels() {
		if mc.Provider == "" {
			continue
		}
		if _, ok := registry[mc.Provider]; !ok {
			t.Errorf("Model %q names provider %q with no registry entry", name, mc.Provider)
		}
	}
}
