package openai

// OpenAI Responses API types

// Request is the request body for the Responses API. The API takes
// "input" rather than "messages".
type Request struct {
	Model           string         `json:"model"`
	Input           []InputMessage `json:"input"`
	Temperature     *float64       `json:"temperature,omitempty"`
	TopP            *float64       `json:"top_p,omitempty"`
	MaxOutputTokens *int           `json:"max_output_tokens,omitempty"`
}

// InputMessage is one conversation entry in Responses API form.
type InputMessage struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock carries typed text. Assistant history uses "output_text",
// everything else "input_text".
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Response is the Responses API result. Reasoning models emit reasoning
// output items with summary entries alongside the message items.
type Response struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Output []OutputItem `json:"output"`
}

// OutputItem is one entry of the output array.
type OutputItem struct {
	Type    string        `json:"type"` // "message", "reasoning", ...
	Role    string        `json:"role,omitempty"`
	Content []OutputBlock `json:"content,omitempty"`
	Summary []OutputBlock `json:"summary,omitempty"`
}

// OutputBlock is typed text inside an output item.
type OutputBlock struct {
	Type string `json:"type"` // "output_text", "summary_text", ...
	Text string `json:"text"`
}
