package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/policyradar/policyradar/internal/core/domain"
	"github.com/policyradar/policyradar/internal/core/ports"
)

// ChatBackend drives any OpenAI-compatible chat completions API (OpenAI,
// Azure, Together, local Ollama /v1). The message history lives in-process,
// so there is no resume handle.
type ChatBackend struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string

	messages []map[string]any
	tools    []map[string]any
	calls    []domain.ToolCall
	text     string
}

// NewChatBackend creates the backend.
func NewChatBackend(baseURL, apiKey, model string) *ChatBackend {
	return &ChatBackend{
		client:  newHTTPClient(),
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
	}
}

func (b *ChatBackend) headers() map[string]string {
	h := map[string]string{}
	if b.apiKey != "" {
		h["Authorization"] = "Bearer " + b.apiKey
	}
	return h
}

type chatReply struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// Start sends the system and user messages with the tool set.
func (b *ChatBackend) Start(ctx context.Context, instructions, userMessage string, tools []domain.ToolSpec) error {
	b.tools = make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		b.tools = append(b.tools, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  schemaJSON(t.Parameters),
			},
		})
	}
	b.messages = []map[string]any{
		{"role": "system", "content": instructions},
		{"role": "user", "content": userMessage},
	}
	return b.send(ctx)
}

// Respond appends the tool outputs to the history and requests the next turn.
func (b *ChatBackend) Respond(ctx context.Context, outputs []ports.ToolOutput) error {
	var imageParts []map[string]any
	for _, out := range outputs {
		b.messages = append(b.messages, map[string]any{
			"role":         "tool",
			"tool_call_id": out.CallID,
			"content":      encodeOutput(out.Result),
		})
		for _, img := range out.Images {
			mime := img.MimeType
			if mime == "" {
				mime = "image/png"
			}
			imageParts = append(imageParts, map[string]any{
				"type": "image_url",
				"image_url": map[string]any{
					"url": fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(img.Data)),
				},
			})
		}
	}
	if len(imageParts) > 0 {
		content := append([]map[string]any{
			{"type": "text", "text": "Images extracted by the previous tool calls:"},
		}, imageParts...)
		b.messages = append(b.messages, map[string]any{"role": "user", "content": content})
	}
	return b.send(ctx)
}

func (b *ChatBackend) send(ctx context.Context) error {
	payload := map[string]any{
		"model":    b.model,
		"messages": b.messages,
	}
	if len(b.tools) > 0 {
		payload["tools"] = b.tools
	}

	var reply chatReply
	if err := postJSON(ctx, b.client, b.baseURL+"/chat/completions", b.headers(), payload, &reply, "openai-compatible"); err != nil {
		return err
	}
	if len(reply.Choices) == 0 {
		return &domain.APIError{Message: "openai-compatible API returned no choices", StatusCode: 502}
	}
	if reply.Model != "" {
		b.model = reply.Model
	}

	msg := reply.Choices[0].Message
	b.text = msg.Content
	b.calls = nil

	// Echo the assistant turn into the history so tool outputs attach to it.
	assistant := map[string]any{"role": "assistant"}
	if msg.Content != "" {
		assistant["content"] = msg.Content
	}
	if len(msg.ToolCalls) > 0 {
		var rawCalls []map[string]any
		for _, tc := range msg.ToolCalls {
			b.calls = append(b.calls, domain.ToolCall{
				CallID: tc.ID,
				Name:   tc.Function.Name,
				Args:   parseArgs(tc.Function.Arguments),
			})
			rawCalls = append(rawCalls, map[string]any{
				"id":   tc.ID,
				"type": "function",
				"function": map[string]any{
					"name":      tc.Function.Name,
					"arguments": tc.Function.Arguments,
				},
			})
		}
		assistant["tool_calls"] = rawCalls
	}
	b.messages = append(b.messages, assistant)
	return nil
}

// Calls returns the tool calls requested by the last turn.
func (b *ChatBackend) Calls() []domain.ToolCall { return b.calls }

// Text returns the last turn's answer text.
func (b *ChatBackend) Text() string { return b.text }

// Handle returns empty: chat completions conversations are not resumable.
func (b *ChatBackend) Handle() string { return "" }

// Model returns the model identifier reported by the API.
func (b *ChatBackend) Model() string { return b.model }

// Complete performs one plain generation outside the conversation.
func (b *ChatBackend) Complete(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model": b.model,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
	}
	var reply chatReply
	if err := postJSON(ctx, b.client, b.baseURL+"/chat/completions", b.headers(), payload, &reply, "openai-compatible"); err != nil {
		return "", err
	}
	if len(reply.Choices) == 0 {
		return "", &domain.APIError{Message: "openai-compatible API returned no choices", StatusCode: 502}
	}
	return reply.Choices[0].Message.Content, nil
}
