package domain

// Chat modes restrict which source families a conversation may touch.
const (
	ModeRegulations = "regulations"
	ModeGovInfo     = "govinfo"
	ModeBoth        = "both"
)

// ChatRequest is one user turn handed to the orchestrator.
type ChatRequest struct {
	SessionID string           `json:"session_id"`
	RequestID string           `json:"request_id,omitempty"`
	Message   string           `json:"message"`
	Mode      string           `json:"mode,omitempty"`
	Sources   *SourceSelection `json:"sources,omitempty"`
	Days      int              `json:"days,omitempty"`
	Provider  string           `json:"provider,omitempty"`
	Model     string           `json:"model,omitempty"`
	// PrevHandle resumes a backend conversation (opaque, backend-specific).
	PrevHandle string `json:"previous_response_id,omitempty"`
}

// ChatResult is the terminal output of one orchestrated turn.
type ChatResult struct {
	AnswerText string         `json:"answer_text"`
	Sources    []SourceRecord `json:"sources"`
	Steps      []Step         `json:"steps"`
	Handle     string         `json:"response_id,omitempty"`
	Model      string         `json:"model,omitempty"`
}

// StepStatus is the lifecycle state of one observability step.
type StepStatus string

const (
	StepRunning StepStatus = "running"
	StepDone    StepStatus = "done"
	StepError   StepStatus = "error"
)

// Step records one tool invocation (or the source-routing call) for
// observability. IDs are monotonic within a turn; a step transitions
// running -> done|error in place.
type Step struct {
	ID            string         `json:"step_id"`
	Status        StepStatus     `json:"status"`
	Label         string         `json:"label,omitempty"`
	Tool          string         `json:"tool_name,omitempty"`
	Args          map[string]any `json:"args,omitempty"`
	ResultPreview map[string]any `json:"result_preview,omitempty"`
}

// Stream event kinds, in emission order: zero or more step pairs, zero or
// more assistant deltas, then exactly one done (or error).
type EventKind string

const (
	EventStep  EventKind = "step"
	EventDelta EventKind = "assistant_delta"
	EventDone  EventKind = "done"
	EventError EventKind = "error"
)

// StreamEvent is one element of the orchestrator's event stream.
type StreamEvent struct {
	Kind  EventKind  `json:"event"`
	Step  *Step      `json:"step,omitempty"`
	Delta string     `json:"delta,omitempty"`
	Done  *DoneEvent `json:"done,omitempty"`
	Err   string     `json:"error,omitempty"`
}

// DoneEvent carries the full answer once the turn terminates normally.
type DoneEvent struct {
	AnswerText string         `json:"answer_text"`
	Sources    []SourceRecord `json:"sources"`
	Handle     string         `json:"response_id,omitempty"`
	Model      string         `json:"model,omitempty"`
}
