package backrooms

import (
	"github.com/linxule/liminal-backrooms/gateway"
	"github.com/linxule/liminal-backrooms/models/anthropic"
	"github.com/linxule/liminal-backrooms/models/bedrock"
	"github.com/linxule/liminal-backrooms/models/bigmodel"
	"github.com/linxule/liminal-backrooms/models/deepseek"
	"github.com/linxule/liminal-backrooms/models/gemini"
	"github.com/linxule/liminal-backrooms/models/moonshot"
	"github.com/linxule/liminal-backrooms/models/openai"
	"github.com/linxule/liminal-backrooms/models/openrouter"
	"github.com/linxule/liminal-backrooms/models/replicate"
)

// DefaultRegistry wires every built-in provider into a gateway dispatch
// table. The deepseek entry chains onto the legacy Replicate route by
// default, so the fallback works even without an explicit fallback field.
func DefaultRegistry() map[string]gateway.Entry {
	return map[string]gateway.Entry{
		"anthropic": {Call: anthropic.Call, SupportsReasoning: true},
		"bedrock":   {Call: bedrock.Call},
		"openai":    {Call: openai.Call, SupportsReasoning: true},
		"deepseek": {
			Call:              deepseek.Call,
			SupportsReasoning: true,
			DefaultFallback:   &gateway.Fallback{Provider: "deepseek_legacy", Model: replicate.DefaultModel},
		},
		"deepseek_legacy": {Call: replicate.Call, SupportsReasoning: true},
		"gemini":          {Call: gemini.Call, SupportsReasoning: true},
		"moonshot":        {Call: moonshot.Call},
		"bigmodel":        {Call: bigmodel.Call},
		"openrouter":      {Call: openrouter.Call},
	}
}
