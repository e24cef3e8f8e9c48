package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policyradar/policyradar/internal/core/domain"
	"github.com/policyradar/policyradar/internal/core/ports"
)

const responsesToolCallReply = `{
	"id": "resp_1",
	"model": "gpt-test",
	"output": [{"type": "function_call", "call_id": "call_1", "name": "federal_register_search", "arguments": "{\"query\":\"pfas\"}"}]
}`

const responsesAnswerReply = `{
	"id": "resp_2",
	"model": "gpt-test",
	"output": [{"type": "message", "content": [
		{"type": "output_text", "text": "First part. "},
		{"type": "output_text", "text": "Second part."}
	]}]
}`

func newResponsesServer(t *testing.T, replies ...string) (*httptest.Server, *[]map[string]any) {
	t.Helper()
	var requests []map[string]any
	i := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/responses", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		requests = append(requests, body)
		reply := replies[min(i, len(replies)-1)]
		i++
		_, _ = w.Write([]byte(reply))
	}))
	return srv, &requests
}

func TestResponsesBackendToolRoundTrip(t *testing.T) {
	srv, requests := newResponsesServer(t, responsesToolCallReply, responsesAnswerReply)
	defer srv.Close()
	backend := NewResponsesBackend(srv.URL, "sk-test", "gpt-test", "")

	require.NoError(t, backend.Start(context.Background(), "sys", "pfas rules?", []domain.ToolSpec{searchTool()}))

	calls := backend.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].CallID)
	assert.Equal(t, "pfas", calls[0].Args["query"])
	assert.Equal(t, "resp_1", backend.Handle())

	require.NoError(t, backend.Respond(context.Background(), []ports.ToolOutput{
		{CallID: "call_1", Result: map[string]any{"count": 2}},
	}))

	assert.Empty(t, backend.Calls())
	assert.Equal(t, "First part. Second part.", backend.Text())
	assert.Equal(t, "resp_2", backend.Handle(), "handle advances with each response")

	// The tool round referenced the previous response and sent the output
	// under its call id.
	second := (*requests)[1]
	assert.Equal(t, "resp_1", second["previous_response_id"])
	input := second["input"].([]any)
	require.Len(t, input, 1)
	item := input[0].(map[string]any)
	assert.Equal(t, "function_call_output", item["type"])
	assert.Equal(t, "call_1", item["call_id"])
}

func TestResponsesBackendResumesFromHandle(t *testing.T) {
	srv, requests := newResponsesServer(t, responsesAnswerReply)
	defer srv.Close()
	backend := NewResponsesBackend(srv.URL, "sk-test", "gpt-test", "resp_prev")

	require.NoError(t, backend.Start(context.Background(), "sys", "follow-up", nil))

	first := (*requests)[0]
	assert.Equal(t, "resp_prev", first["previous_response_id"])
}

func TestResponsesBackendFreshConversationOmitsHandle(t *testing.T) {
	srv, requests := newResponsesServer(t, responsesAnswerReply)
	defer srv.Close()
	backend := NewResponsesBackend(srv.URL, "sk-test", "gpt-test", "")

	require.NoError(t, backend.Start(context.Background(), "sys", "first turn", nil))

	first := (*requests)[0]
	_, present := first["previous_response_id"]
	assert.False(t, present)
}

func TestResponsesBackendComplete(t *testing.T) {
	srv, _ := newResponsesServer(t, responsesAnswerReply)
	defer srv.Close()
	backend := NewResponsesBackend(srv.URL, "sk-test", "gpt-test", "")

	text, err := backend.Complete(context.Background(), "prompt")

	require.NoError(t, err)
	assert.Equal(t, "First part. Second part.", text)
	assert.Empty(t, backend.Handle(), "Complete must not advance the conversation")
}
