package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/policyradar/policyradar/internal/core/domain"
	"github.com/policyradar/policyradar/internal/core/ports"
)

// ResponsesBackend drives the OpenAI Responses API, the native multi-turn
// function-calling surface. Conversation state lives server-side; the
// previous response id is the resume handle.
type ResponsesBackend struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string

	handle string
	calls  []domain.ToolCall
	text   string
	tools  []map[string]any
}

// NewResponsesBackend creates the backend. prevHandle resumes an earlier
// conversation when non-empty.
func NewResponsesBackend(baseURL, apiKey, model, prevHandle string) *ResponsesBackend {
	return &ResponsesBackend{
		client:  newHTTPClient(),
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		handle:  prevHandle,
	}
}

func (b *ResponsesBackend) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + b.apiKey}
}

type responsesReply struct {
	ID     string `json:"id"`
	Model  string `json:"model"`
	Output []struct {
		Type      string `json:"type"`
		CallID    string `json:"call_id"`
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
		Content   []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

// Start sends the opening request with instructions and the tool set.
func (b *ResponsesBackend) Start(ctx context.Context, instructions, userMessage string, tools []domain.ToolSpec) error {
	b.tools = make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		b.tools = append(b.tools, map[string]any{
			"type":        "function",
			"name":        t.Name,
			"description": t.Description,
			"parameters":  schemaJSON(t.Parameters),
		})
	}

	payload := map[string]any{
		"model":        b.model,
		"instructions": instructions,
		"input":        userMessage,
		"tools":        b.tools,
	}
	if b.handle != "" {
		payload["previous_response_id"] = b.handle
	}
	return b.send(ctx, payload)
}

// Respond feeds the executed tool outputs back as the next turn's input.
// Surviving image attachments ride along as an extra user message, since
// function call outputs carry text only.
func (b *ResponsesBackend) Respond(ctx context.Context, outputs []ports.ToolOutput) error {
	input := make([]map[string]any, 0, len(outputs)+1)
	var imageParts []map[string]any
	for _, out := range outputs {
		input = append(input, map[string]any{
			"type":    "function_call_output",
			"call_id": out.CallID,
			"output":  encodeOutput(out.Result),
		})
		for _, img := range out.Images {
			mime := img.MimeType
			if mime == "" {
				mime = "image/png"
			}
			imageParts = append(imageParts, map[string]any{
				"type":      "input_image",
				"image_url": fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(img.Data)),
			})
		}
	}
	if len(imageParts) > 0 {
		input = append(input, map[string]any{
			"role":    "user",
			"content": append([]map[string]any{{"type": "input_text", "text": "Images extracted by the previous tool calls:"}}, imageParts...),
		})
	}

	payload := map[string]any{
		"model":                b.model,
		"previous_response_id": b.handle,
		"input":                input,
		"tools":                b.tools,
	}
	return b.send(ctx, payload)
}

func (b *ResponsesBackend) send(ctx context.Context, payload map[string]any) error {
	var reply responsesReply
	if err := postJSON(ctx, b.client, b.baseURL+"/responses", b.headers(), payload, &reply, "openai"); err != nil {
		return err
	}

	b.handle = reply.ID
	if reply.Model != "" {
		b.model = reply.Model
	}
	b.calls = nil
	b.text = ""
	for _, item := range reply.Output {
		switch item.Type {
		case "function_call":
			b.calls = append(b.calls, domain.ToolCall{
				CallID: item.CallID,
				Name:   item.Name,
				Args:   parseArgs(item.Arguments),
			})
		case "message":
			for _, part := range item.Content {
				if part.Type == "output_text" {
					b.text += part.Text
				}
			}
		}
	}
	return nil
}

// Calls returns the tool calls requested by the last turn.
func (b *ResponsesBackend) Calls() []domain.ToolCall { return b.calls }

// Text returns the last turn's answer text.
func (b *ResponsesBackend) Text() string { return b.text }

// Handle returns the latest response id.
func (b *ResponsesBackend) Handle() string { return b.handle }

// Model returns the model identifier reported by the API.
func (b *ResponsesBackend) Model() string { return b.model }

// Complete performs one plain generation outside the conversation.
func (b *ResponsesBackend) Complete(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model": b.model,
		"input": prompt,
	}
	var reply responsesReply
	if err := postJSON(ctx, b.client, b.baseURL+"/responses", b.headers(), payload, &reply, "openai"); err != nil {
		return "", err
	}
	var text string
	for _, item := range reply.Output {
		if item.Type == "message" {
			for _, part := range item.Content {
				if part.Type == "output_text" {
					text += part.Text
				}
			}
		}
	}
	return text, nil
}
