package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/policyradar/policyradar/internal/core/domain"
	"github.com/policyradar/policyradar/internal/core/ports"
)

const (
	// maxIterations bounds the tool-calling loop. Hitting it terminates the
	// turn with the last available text rather than failing.
	maxIterations = 20

	deltaChunkSize = 50
	deltaPacing    = 10 * time.Millisecond
	defaultDays    = 30
)

// BackendFactory builds a conversation backend for a provider and model.
// prevHandle resumes an earlier backend conversation when non-empty.
type BackendFactory interface {
	Backend(provider, model, prevHandle string) (ports.ConversationBackend, error)
}

// EmitFunc receives stream events in emission order. Nil is allowed for
// non-streaming callers.
type EmitFunc func(domain.StreamEvent)

// Orchestrator drives one chat turn: resolve sources, loop the model through
// tool rounds, and stream steps and answer deltas. The state machine is
// written once against ports.ConversationBackend; vendor differences live in
// the adapters.
type Orchestrator struct {
	logger   *slog.Logger
	registry *domain.ToolRegistry
	router   *SourceRouter
	executor *ToolExecutor
	cancels  *CancellationRegistry
	backends BackendFactory
	policy   SanitizePolicy
}

// NewOrchestrator wires the turn loop over its collaborators.
func NewOrchestrator(
	logger *slog.Logger,
	registry *domain.ToolRegistry,
	router *SourceRouter,
	executor *ToolExecutor,
	cancels *CancellationRegistry,
	backends BackendFactory,
	policy SanitizePolicy,
) *Orchestrator {
	return &Orchestrator{
		logger:   logger,
		registry: registry,
		router:   router,
		executor: executor,
		cancels:  cancels,
		backends: backends,
		policy:   policy,
	}
}

// Run executes one turn. Events go to emit as they happen; the returned
// result mirrors the terminal done event. On cancellation the stream ends
// silently and the error is domain.ErrCancelled. Backend failures emit one
// error event and return the typed error.
func (o *Orchestrator) Run(ctx context.Context, req domain.ChatRequest, emit EmitFunc) (*domain.ChatResult, error) {
	if emit == nil {
		emit = func(domain.StreamEvent) {}
	}
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	token := o.cancels.Register(requestID)
	defer o.cancels.Clear(requestID)

	result, err := o.run(ctx, req, token, emit)
	if err != nil {
		if err == domain.ErrCancelled {
			o.logger.Info("turn cancelled", "request_id", requestID, "session_id", req.SessionID)
			return nil, err
		}
		emit(domain.StreamEvent{Kind: domain.EventError, Err: err.Error()})
		return nil, err
	}
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, req domain.ChatRequest, token *CancelToken, emit EmitFunc) (*domain.ChatResult, error) {
	mode := req.Mode
	if mode == "" {
		mode = domain.ModeBoth
	}
	days := req.Days
	if days <= 0 {
		days = defaultDays
	}

	auto, allowed := o.router.Resolve(mode, req.Sources)
	if len(allowed) == 0 {
		return nil, domain.NewValidationError("no data sources are available for this request")
	}

	backend, err := o.backends.Backend(req.Provider, req.Model, req.PrevHandle)
	if err != nil {
		return nil, err
	}

	steps := newStepTracker(emit)
	selected := allowed
	rationale := ""
	if auto && len(allowed) > 1 {
		if token.Cancelled() {
			return nil, domain.ErrCancelled
		}
		step := steps.start("Selecting data sources", "", nil)
		selected, rationale = o.router.AutoSelect(ctx, backend, req.Message, allowed)
		steps.finish(step, domain.StepDone, map[string]any{
			"sources":   sortedKeys(selected),
			"rationale": rationale,
		})
	}

	tools := o.registry.FilterBySources(selected)
	prompt := BuildUserPrompt(req.Message, days, selected, rationale)

	if token.Cancelled() {
		return nil, domain.ErrCancelled
	}
	if err := backend.Start(ctx, SystemInstructions, prompt, tools); err != nil {
		return nil, err
	}

	var sources []domain.SourceRecord
	for iteration := 0; iteration < maxIterations; iteration++ {
		calls := backend.Calls()
		if len(calls) == 0 {
			break
		}

		outputs := make([]ports.ToolOutput, 0, len(calls))
		for _, call := range calls {
			if token.Cancelled() {
				return nil, domain.ErrCancelled
			}
			o.injectDays(&call, days)

			step := steps.start(ToolLabel(call.Name, call.Args), call.Name, call.Args)
			result, preview, discovered := o.executor.Execute(ctx, call, req.SessionID)
			if token.Cancelled() {
				return nil, domain.ErrCancelled
			}

			status := domain.StepDone
			if _, failed := result.Data["error"]; failed {
				status = domain.StepError
			}
			steps.finish(step, status, preview)

			sources = append(sources, discovered...)
			safe, images := o.policy.Apply(result)
			outputs = append(outputs, ports.ToolOutput{
				CallID: call.CallID,
				Name:   call.Name,
				Result: safe,
				Images: images,
			})
		}

		if token.Cancelled() {
			return nil, domain.ErrCancelled
		}
		if err := backend.Respond(ctx, outputs); err != nil {
			return nil, err
		}
	}

	// Past the bound with calls still pending: answer with whatever text the
	// last turn produced.
	answer := backend.Text()

	if err := o.streamDeltas(answer, token, emit); err != nil {
		return nil, err
	}

	done := &domain.DoneEvent{
		AnswerText: answer,
		Sources:    sources,
		Handle:     backend.Handle(),
		Model:      backend.Model(),
	}
	emit(domain.StreamEvent{Kind: domain.EventDone, Done: done})

	return &domain.ChatResult{
		AnswerText: answer,
		Sources:    sources,
		Steps:      steps.all(),
		Handle:     backend.Handle(),
		Model:      backend.Model(),
	}, nil
}

// injectDays fills the default lookback window when the tool declares a
// "days" parameter and the model omitted it.
func (o *Orchestrator) injectDays(call *domain.ToolCall, days int) {
	spec, ok := o.registry.Get(call.Name)
	if !ok || !spec.HasDaysParam() {
		return
	}
	if call.Args == nil {
		call.Args = map[string]any{}
	}
	if _, present := call.Args["days"]; !present {
		call.Args["days"] = days
	}
}

// streamDeltas emits the answer in small chunks with pacing so callers see
// progressive output. Chunks split on rune boundaries so a multi-byte
// character never straddles two deltas. Cancellation between chunks ends the
// stream silently.
func (o *Orchestrator) streamDeltas(text string, token *CancelToken, emit EmitFunc) error {
	runes := []rune(text)
	for start := 0; start < len(runes); start += deltaChunkSize {
		if token.Cancelled() {
			return domain.ErrCancelled
		}
		end := start + deltaChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		emit(domain.StreamEvent{Kind: domain.EventDelta, Delta: string(runes[start:end])})
		if end < len(runes) {
			time.Sleep(deltaPacing)
		}
	}
	return nil
}

// stepTracker assigns monotonic step ids and guarantees the running event of
// a step is emitted before its terminal event, one step at a time.
type stepTracker struct {
	emit  EmitFunc
	next  int
	steps []domain.Step
}

func newStepTracker(emit EmitFunc) *stepTracker {
	return &stepTracker{emit: emit}
}

func (t *stepTracker) start(label, tool string, args map[string]any) int {
	t.next++
	step := domain.Step{
		ID:     fmt.Sprintf("step-%d", t.next),
		Status: domain.StepRunning,
		Label:  label,
		Tool:   tool,
		Args:   args,
	}
	t.steps = append(t.steps, step)
	idx := len(t.steps) - 1
	t.emitStep(idx)
	return idx
}

func (t *stepTracker) finish(idx int, status domain.StepStatus, preview map[string]any) {
	t.steps[idx].Status = status
	t.steps[idx].ResultPreview = preview
	t.emitStep(idx)
}

func (t *stepTracker) emitStep(idx int) {
	step := t.steps[idx]
	t.emit(domain.StreamEvent{Kind: domain.EventStep, Step: &step})
}

func (t *stepTracker) all() []domain.Step {
	out := make([]domain.Step, len(t.steps))
	copy(out, t.steps)
	return out
}
