package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policyradar/policyradar/internal/core/domain"
	"github.com/policyradar/policyradar/internal/core/ports"
)

// scriptedBackend replays a fixed sequence of tool-call rounds. Respond
// advances to the next round; once the rounds run out, Calls returns nothing
// and Text yields the scripted answer.
type scriptedBackend struct {
	rounds        [][]domain.ToolCall
	answer        string
	completeReply string

	round    int
	started  bool
	tools    []domain.ToolSpec
	prompt   string
	received [][]ports.ToolOutput
}

func (b *scriptedBackend) Start(_ context.Context, _, userMessage string, tools []domain.ToolSpec) error {
	b.started = true
	b.prompt = userMessage
	b.tools = tools
	return nil
}

func (b *scriptedBackend) Respond(_ context.Context, outputs []ports.ToolOutput) error {
	b.received = append(b.received, outputs)
	b.round++
	return nil
}

func (b *scriptedBackend) Calls() []domain.ToolCall {
	if b.round >= len(b.rounds) {
		return nil
	}
	return b.rounds[b.round]
}

func (b *scriptedBackend) Text() string   { return b.answer }
func (b *scriptedBackend) Handle() string { return "resp_123" }
func (b *scriptedBackend) Model() string  { return "test-model" }

func (b *scriptedBackend) Complete(context.Context, string) (string, error) {
	return b.completeReply, nil
}

type fixedFactory struct {
	backend ports.ConversationBackend
	err     error
}

func (f *fixedFactory) Backend(provider, model, prevHandle string) (ports.ConversationBackend, error) {
	return f.backend, f.err
}

// fedRegStub records the args it was dispatched with. A non-zero failOn
// makes that call (1-based) fail inside the collaborator.
type fedRegStub struct {
	gotDays int
	calls   int
	failOn  int
}

func (s *fedRegStub) Search(_ context.Context, query string, days, pageSize int) (domain.ToolResult, []domain.SourceRecord, error) {
	s.calls++
	s.gotDays = days
	if s.failOn > 0 && s.calls == s.failOn {
		return domain.ToolResult{}, nil, errors.New("upstream exploded")
	}
	data := map[string]any{"query": query, "count": 1}
	records := []domain.SourceRecord{{
		SourceType: "federal_register",
		ID:         "2026-01234",
		Title:      "A rule about " + query,
		URL:        "https://www.federalregister.gov/d/2026-01234",
	}}
	return domain.ToolResult{Data: data}, records, nil
}

type orchestratorFixture struct {
	orch    *Orchestrator
	cancels *CancellationRegistry
	fedReg  *fedRegStub
}

func newOrchestratorFixture(backend ports.ConversationBackend) *orchestratorFixture {
	logger := slog.Default()
	registry := NewToolCatalog()
	fedReg := &fedRegStub{}
	executor := NewToolExecutor(logger, registry, ExecutorDeps{FederalRegister: fedReg})
	cancels := NewCancellationRegistry()
	orch := NewOrchestrator(
		logger,
		registry,
		NewSourceRouter(logger, allConfigured()),
		executor,
		cancels,
		&fixedFactory{backend: backend},
		DefaultSanitizePolicy(),
	)
	return &orchestratorFixture{orch: orch, cancels: cancels, fedReg: fedReg}
}

func collectEvents() (EmitFunc, *[]domain.StreamEvent) {
	var events []domain.StreamEvent
	return func(ev domain.StreamEvent) { events = append(events, ev) }, &events
}

func eventsOfKind(events []domain.StreamEvent, kind domain.EventKind) []domain.StreamEvent {
	var out []domain.StreamEvent
	for _, ev := range events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func fedRegRequest() domain.ChatRequest {
	return domain.ChatRequest{
		SessionID: "sess-1",
		RequestID: "req-1",
		Message:   "any new rules on drone operations?",
		Mode:      domain.ModeBoth,
		Sources:   &domain.SourceSelection{FederalRegister: true},
	}
}

func TestRunPlainAnswerWithoutTools(t *testing.T) {
	backend := &scriptedBackend{answer: "Nothing new this week."}
	fix := newOrchestratorFixture(backend)
	emit, events := collectEvents()

	result, err := fix.orch.Run(context.Background(), fedRegRequest(), emit)

	require.NoError(t, err)
	assert.Equal(t, "Nothing new this week.", result.AnswerText)
	assert.Empty(t, result.Steps)
	assert.True(t, backend.started)

	deltas := eventsOfKind(*events, domain.EventDelta)
	require.NotEmpty(t, deltas)
	var streamed string
	for _, d := range deltas {
		streamed += d.Delta
	}
	assert.Equal(t, "Nothing new this week.", streamed)

	done := eventsOfKind(*events, domain.EventDone)
	require.Len(t, done, 1)
	assert.Equal(t, (*events)[len(*events)-1].Kind, domain.EventDone)
}

func TestRunToolRoundEmitsPairedSteps(t *testing.T) {
	backend := &scriptedBackend{
		rounds: [][]domain.ToolCall{{
			{CallID: "call_1", Name: "federal_register_search", Args: map[string]any{"query": "drones"}},
		}},
		answer: "Found one rule.",
	}
	fix := newOrchestratorFixture(backend)
	emit, events := collectEvents()

	result, err := fix.orch.Run(context.Background(), fedRegRequest(), emit)

	require.NoError(t, err)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, "step-1", result.Steps[0].ID)
	assert.Equal(t, domain.StepDone, result.Steps[0].Status)

	steps := eventsOfKind(*events, domain.EventStep)
	require.Len(t, steps, 2)
	assert.Equal(t, domain.StepRunning, steps[0].Step.Status)
	assert.Equal(t, domain.StepDone, steps[1].Step.Status)
	assert.Equal(t, steps[0].Step.ID, steps[1].Step.ID)

	// The model got the sanitized output back under the same call id.
	require.Len(t, backend.received, 1)
	require.Len(t, backend.received[0], 1)
	assert.Equal(t, "call_1", backend.received[0][0].CallID)
	assert.Equal(t, "drones", backend.received[0][0].Result["query"])

	require.Len(t, result.Sources, 1)
	assert.Equal(t, "2026-01234", result.Sources[0].ID)
}

func TestRunStreamsMultibyteRunesIntact(t *testing.T) {
	answer := strings.Repeat("x", 49) + "日本語の回答です"
	backend := &scriptedBackend{answer: answer}
	fix := newOrchestratorFixture(backend)
	emit, events := collectEvents()

	_, err := fix.orch.Run(context.Background(), fedRegRequest(), emit)

	require.NoError(t, err)
	var streamed string
	for _, d := range eventsOfKind(*events, domain.EventDelta) {
		assert.True(t, utf8.ValidString(d.Delta), "a delta must not split a rune")
		streamed += d.Delta
	}
	assert.Equal(t, answer, streamed)
}

func TestRunToolFailureIsDataNotFatal(t *testing.T) {
	backend := &scriptedBackend{
		rounds: [][]domain.ToolCall{{
			{CallID: "call_1", Name: "federal_register_search", Args: map[string]any{"query": "ok"}},
			{CallID: "call_2", Name: "no_such_tool", Args: map[string]any{}},
		}},
		answer: "Partial answer.",
	}
	fix := newOrchestratorFixture(backend)

	result, err := fix.orch.Run(context.Background(), fedRegRequest(), nil)

	require.NoError(t, err)
	require.Len(t, result.Steps, 2)
	assert.Equal(t, domain.StepDone, result.Steps[0].Status)
	assert.Equal(t, domain.StepError, result.Steps[1].Status)

	// Both outputs went back to the model, the failed one as error data.
	require.Len(t, backend.received, 1)
	require.Len(t, backend.received[0], 2)
	assert.Contains(t, backend.received[0][1].Result, "error")
	assert.Equal(t, "Partial answer.", result.AnswerText)
}

func TestRunCollaboratorFailureMidRoundContinues(t *testing.T) {
	backend := &scriptedBackend{
		rounds: [][]domain.ToolCall{{
			{CallID: "call_1", Name: "federal_register_search", Args: map[string]any{"query": "a"}},
			{CallID: "call_2", Name: "federal_register_search", Args: map[string]any{"query": "b"}},
			{CallID: "call_3", Name: "federal_register_search", Args: map[string]any{"query": "c"}},
		}},
		answer: "Two of three succeeded.",
	}
	fix := newOrchestratorFixture(backend)
	fix.fedReg.failOn = 2

	result, err := fix.orch.Run(context.Background(), fedRegRequest(), nil)

	require.NoError(t, err)
	require.Len(t, result.Steps, 3)
	assert.Equal(t, domain.StepDone, result.Steps[0].Status)
	assert.Equal(t, domain.StepError, result.Steps[1].Status)
	assert.Equal(t, domain.StepDone, result.Steps[2].Status)

	// All three outputs go back to the model, the failure as error data.
	require.Len(t, backend.received, 1)
	require.Len(t, backend.received[0], 3)
	assert.Contains(t, backend.received[0][1].Result["error"], "upstream exploded")
	assert.Equal(t, 3, fix.fedReg.calls)

	// Only the successful calls contributed citable records.
	assert.Len(t, result.Sources, 2)
	assert.Equal(t, "Two of three succeeded.", result.AnswerText)
}

func TestRunInjectsDaysWhenOmitted(t *testing.T) {
	backend := &scriptedBackend{
		rounds: [][]domain.ToolCall{{
			{CallID: "call_1", Name: "federal_register_search", Args: map[string]any{"query": "x"}},
		}},
	}
	fix := newOrchestratorFixture(backend)
	req := fedRegRequest()
	req.Days = 7

	_, err := fix.orch.Run(context.Background(), req, nil)

	require.NoError(t, err)
	assert.Equal(t, 7, fix.fedReg.gotDays)
}

func TestRunRespectsExplicitDays(t *testing.T) {
	backend := &scriptedBackend{
		rounds: [][]domain.ToolCall{{
			{CallID: "call_1", Name: "federal_register_search", Args: map[string]any{"query": "x", "days": 90}},
		}},
	}
	fix := newOrchestratorFixture(backend)
	req := fedRegRequest()
	req.Days = 7

	_, err := fix.orch.Run(context.Background(), req, nil)

	require.NoError(t, err)
	assert.Equal(t, 90, fix.fedReg.gotDays)
}

func TestRunIterationBoundTerminates(t *testing.T) {
	// Every round requests another call; the loop must still terminate in a
	// done event with the last available text.
	rounds := make([][]domain.ToolCall, maxIterations+5)
	for i := range rounds {
		rounds[i] = []domain.ToolCall{
			{CallID: "call", Name: "federal_register_search", Args: map[string]any{"query": "loop"}},
		}
	}
	backend := &scriptedBackend{rounds: rounds, answer: "best effort answer"}
	fix := newOrchestratorFixture(backend)
	emit, events := collectEvents()

	result, err := fix.orch.Run(context.Background(), fedRegRequest(), emit)

	require.NoError(t, err)
	assert.Equal(t, maxIterations, len(backend.received))
	assert.Equal(t, "best effort answer", result.AnswerText)
	require.Len(t, eventsOfKind(*events, domain.EventDone), 1)
}

func TestRunCancelledBeforeStartIsSilent(t *testing.T) {
	backend := &scriptedBackend{answer: "never delivered"}
	fix := newOrchestratorFixture(backend)
	emit, events := collectEvents()

	// Cancellation raced ahead of registration; the registry remembers it.
	fix.cancels.Cancel("req-1")

	result, err := fix.orch.Run(context.Background(), fedRegRequest(), emit)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.Empty(t, eventsOfKind(*events, domain.EventDone))
	assert.Empty(t, eventsOfKind(*events, domain.EventError))
}

func TestRunCancelledMidRoundEndsStreamSilently(t *testing.T) {
	backend := &scriptedBackend{
		rounds: [][]domain.ToolCall{{
			{CallID: "call_1", Name: "federal_register_search", Args: map[string]any{"query": "x"}},
			{CallID: "call_2", Name: "federal_register_search", Args: map[string]any{"query": "y"}},
		}},
		answer: "never delivered",
	}
	fix := newOrchestratorFixture(backend)
	emit, events := collectEvents()

	// Cancel as soon as the first tool runs; the second call never dispatches.
	calls := 0
	origEmit := emit
	emit = func(ev domain.StreamEvent) {
		origEmit(ev)
		if ev.Kind == domain.EventStep && ev.Step.Status == domain.StepRunning {
			calls++
			if calls == 1 {
				fix.cancels.Cancel("req-1")
			}
		}
	}

	result, err := fix.orch.Run(context.Background(), fedRegRequest(), emit)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.Empty(t, backend.received, "outputs must not reach the model after cancel")
	assert.Empty(t, eventsOfKind(*events, domain.EventDone))
	assert.Empty(t, eventsOfKind(*events, domain.EventError))
}

func TestRunEmptyAllowedSetIsValidationError(t *testing.T) {
	backend := &scriptedBackend{}
	fix := newOrchestratorFixture(backend)
	emit, events := collectEvents()

	req := fedRegRequest()
	req.Sources = &domain.SourceSelection{} // nothing requested, no auto

	result, err := fix.orch.Run(context.Background(), req, emit)

	assert.Nil(t, result)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.False(t, backend.started, "no model call before validation")
	require.Len(t, eventsOfKind(*events, domain.EventError), 1)
}

func TestRunAutoRoutingEmitsOwnStep(t *testing.T) {
	backend := &scriptedBackend{
		answer:        "Routed answer.",
		completeReply: `{"sources":["federal_register"],"rationale":"rulemaking"}`,
	}
	fix := newOrchestratorFixture(backend)
	emit, events := collectEvents()

	req := fedRegRequest()
	req.Sources = nil // mode "both" with no selection implies auto routing

	result, err := fix.orch.Run(context.Background(), req, emit)

	require.NoError(t, err)
	steps := eventsOfKind(*events, domain.EventStep)
	require.Len(t, steps, 2)
	assert.Equal(t, "Selecting data sources", steps[0].Step.Label)
	assert.Equal(t, domain.StepDone, steps[1].Step.Status)
	assert.Equal(t, []string{domain.SourceFederalRegister}, steps[1].Step.ResultPreview["sources"])

	// Only the routed source's tools (plus sourceless ones) reach the model.
	for _, spec := range backend.tools {
		if spec.Source != "" {
			assert.Equal(t, domain.SourceFederalRegister, spec.Source)
		}
	}
	assert.Equal(t, "Routed answer.", result.AnswerText)
}

func TestRunBackendFactoryErrorIsReported(t *testing.T) {
	logger := slog.Default()
	registry := NewToolCatalog()
	orch := NewOrchestrator(
		logger,
		registry,
		NewSourceRouter(logger, allConfigured()),
		NewToolExecutor(logger, registry, ExecutorDeps{}),
		NewCancellationRegistry(),
		&fixedFactory{err: errors.New("OPENAI_API_KEY is not set")},
		DefaultSanitizePolicy(),
	)
	emit, events := collectEvents()

	result, err := orch.Run(context.Background(), fedRegRequest(), emit)

	assert.Nil(t, result)
	require.Error(t, err)
	require.Len(t, eventsOfKind(*events, domain.EventError), 1)
	assert.Contains(t, (*events)[0].Err, "OPENAI_API_KEY")
}
