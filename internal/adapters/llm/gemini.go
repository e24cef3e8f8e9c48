package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/policyradar/policyradar/internal/core/domain"
	"github.com/policyradar/policyradar/internal/core/ports"
)

// GeminiBackend drives the Gemini generateContent REST API. Gemini keeps no
// server-side conversation, so the full contents history is replayed each
// turn and there is no resume handle.
type GeminiBackend struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string

	system   string
	contents []map[string]any
	tools    []map[string]any
	calls    []domain.ToolCall
	text     string
}

// NewGeminiBackend creates the backend.
func NewGeminiBackend(baseURL, apiKey, model string) *GeminiBackend {
	return &GeminiBackend{
		client:  newHTTPClient(),
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
	}
}

func (b *GeminiBackend) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent", b.baseURL, b.model)
}

func (b *GeminiBackend) headers() map[string]string {
	return map[string]string{"x-goog-api-key": b.apiKey}
}

type geminiReply struct {
	Candidates []struct {
		Content struct {
			Role  string `json:"role"`
			Parts []struct {
				Text         string `json:"text"`
				FunctionCall *struct {
					Name string         `json:"name"`
					Args map[string]any `json:"args"`
				} `json:"functionCall"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	ModelVersion string `json:"modelVersion"`
}

// Start sends the opening request with the system instruction and tool set.
func (b *GeminiBackend) Start(ctx context.Context, instructions, userMessage string, tools []domain.ToolSpec) error {
	declarations := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		declarations = append(declarations, map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"parameters":  geminiSchema(t.Parameters),
		})
	}
	b.tools = []map[string]any{{"function_declarations": declarations}}
	b.system = instructions
	b.contents = []map[string]any{
		{"role": "user", "parts": []map[string]any{{"text": userMessage}}},
	}
	return b.send(ctx)
}

// Respond appends functionResponse parts for each output and requests the
// next turn. Images travel as inline_data parts in the same user content.
func (b *GeminiBackend) Respond(ctx context.Context, outputs []ports.ToolOutput) error {
	var parts []map[string]any
	for _, out := range outputs {
		parts = append(parts, map[string]any{
			"functionResponse": map[string]any{
				"name":     out.Name,
				"response": map[string]any{"result": out.Result},
			},
		})
		for _, img := range out.Images {
			mime := img.MimeType
			if mime == "" {
				mime = "image/png"
			}
			parts = append(parts, map[string]any{
				"inline_data": map[string]any{
					"mime_type": mime,
					"data":      base64.StdEncoding.EncodeToString(img.Data),
				},
			})
		}
	}
	b.contents = append(b.contents, map[string]any{"role": "user", "parts": parts})
	return b.send(ctx)
}

func (b *GeminiBackend) send(ctx context.Context) error {
	payload := map[string]any{
		"system_instruction": map[string]any{"parts": []map[string]any{{"text": b.system}}},
		"contents":           b.contents,
		"tools":              b.tools,
	}

	var reply geminiReply
	if err := postJSON(ctx, b.client, b.endpoint(), b.headers(), payload, &reply, "gemini"); err != nil {
		return err
	}
	if len(reply.Candidates) == 0 {
		return &domain.APIError{Message: "gemini API returned no candidates", StatusCode: 502}
	}

	content := reply.Candidates[0].Content
	b.calls = nil
	b.text = ""

	// Replay the model turn into the history so the next request carries it.
	var echoParts []map[string]any
	for i, part := range content.Parts {
		if part.FunctionCall != nil {
			b.calls = append(b.calls, domain.ToolCall{
				CallID: fmt.Sprintf("%s-%d", part.FunctionCall.Name, i),
				Name:   part.FunctionCall.Name,
				Args:   part.FunctionCall.Args,
			})
			echoParts = append(echoParts, map[string]any{
				"functionCall": map[string]any{
					"name": part.FunctionCall.Name,
					"args": part.FunctionCall.Args,
				},
			})
			continue
		}
		if part.Text != "" {
			b.text += part.Text
			echoParts = append(echoParts, map[string]any{"text": part.Text})
		}
	}
	if len(echoParts) > 0 {
		b.contents = append(b.contents, map[string]any{"role": "model", "parts": echoParts})
	}
	return nil
}

// Calls returns the tool calls requested by the last turn.
func (b *GeminiBackend) Calls() []domain.ToolCall { return b.calls }

// Text returns the last turn's answer text.
func (b *GeminiBackend) Text() string { return b.text }

// Handle returns empty: Gemini conversations are replayed, not resumed.
func (b *GeminiBackend) Handle() string { return "" }

// Model returns the configured model identifier.
func (b *GeminiBackend) Model() string { return b.model }

// Complete performs one plain generation outside the conversation.
func (b *GeminiBackend) Complete(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"contents": []map[string]any{
			{"role": "user", "parts": []map[string]any{{"text": prompt}}},
		},
	}
	var reply geminiReply
	if err := postJSON(ctx, b.client, b.endpoint(), b.headers(), payload, &reply, "gemini"); err != nil {
		return "", err
	}
	if len(reply.Candidates) == 0 {
		return "", &domain.APIError{Message: "gemini API returned no candidates", StatusCode: 502}
	}
	var text string
	for _, part := range reply.Candidates[0].Content.Parts {
		text += part.Text
	}
	return text, nil
}

// geminiSchema converts a tool parameter schema into Gemini's variant, which
// wants uppercase type names and no unsupported keywords.
func geminiSchema(schema *openapi3.Schema) map[string]any {
	if schema == nil {
		return map[string]any{"type": "OBJECT", "properties": map[string]any{}}
	}
	out := map[string]any{"type": geminiType(schema)}
	if schema.Description != "" {
		out["description"] = schema.Description
	}
	if len(schema.Properties) > 0 {
		props := map[string]any{}
		for name, ref := range schema.Properties {
			if ref != nil && ref.Value != nil {
				props[name] = geminiSchema(ref.Value)
			}
		}
		out["properties"] = props
	} else if geminiType(schema) == "OBJECT" {
		out["properties"] = map[string]any{}
	}
	if len(schema.Required) > 0 {
		out["required"] = schema.Required
	}
	if schema.Items != nil && schema.Items.Value != nil {
		out["items"] = geminiSchema(schema.Items.Value)
	}
	return out
}

func geminiType(schema *openapi3.Schema) string {
	if schema.Type != nil {
		for _, t := range schema.Type.Slice() {
			switch t {
			case openapi3.TypeObject:
				return "OBJECT"
			case openapi3.TypeArray:
				return "ARRAY"
			case openapi3.TypeString:
				return "STRING"
			case openapi3.TypeInteger:
				return "INTEGER"
			case openapi3.TypeNumber:
				return "NUMBER"
			case openapi3.TypeBoolean:
				return "BOOLEAN"
			}
		}
	}
	return "STRING"
}
