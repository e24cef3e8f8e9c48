package domain

import (
	"fmt"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
)

// ToolSpec describes one callable tool: what the model sees. Specs are
// immutable and registered at startup. Source is the data-source key the tool
// belongs to; tools with an empty Source (URL fetch, memory search) are
// available regardless of the selected sources.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  *openapi3.Schema
	Source      string
}

// HasDaysParam reports whether the tool declares a "days" lookback parameter.
// The orchestrator injects the request's time window for these tools when the
// model omits the argument.
func (t ToolSpec) HasDaysParam() bool {
	if t.Parameters == nil {
		return false
	}
	_, ok := t.Parameters.Properties["days"]
	return ok
}

// ValidateArgs checks a model-supplied argument map against the tool's
// parameter schema.
func (t ToolSpec) ValidateArgs(args map[string]any) error {
	if t.Parameters == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := t.Parameters.VisitJSON(args); err != nil {
		return fmt.Errorf("invalid arguments for %s: %w", t.Name, err)
	}
	return nil
}

// ToolCall is a model-issued request to invoke a named tool. Ephemeral, one
// per round.
type ToolCall struct {
	CallID string
	Name   string
	Args   map[string]any
}

// ToolImage is a raw binary attachment extracted by a collaborator (for
// example a figure pulled out of a PDF).
type ToolImage struct {
	ID       string
	Page     int
	Source   string
	MimeType string
	Width    int
	Height   int
	ByteSize int
	Data     []byte
}

// ToolResult is the structured payload a tool produced, before sanitization.
// A failed call is represented by an "error" key in Data, never by a Go error
// reaching the orchestrator.
type ToolResult struct {
	Data   map[string]any
	Images []ToolImage
}

// ToolRegistry is the static catalog of tool specs, partitioned by source key.
type ToolRegistry struct {
	specs []ToolSpec
	index map[string]int
}

// NewToolRegistry builds a registry from the given specs.
func NewToolRegistry(specs ...ToolSpec) (*ToolRegistry, error) {
	r := &ToolRegistry{index: make(map[string]int, len(specs))}
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("tool name cannot be empty")
		}
		if _, dup := r.index[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate tool: %s", spec.Name)
		}
		r.index[spec.Name] = len(r.specs)
		r.specs = append(r.specs, spec)
	}
	return r, nil
}

// Get returns a spec by name.
func (r *ToolRegistry) Get(name string) (ToolSpec, bool) {
	i, ok := r.index[name]
	if !ok {
		return ToolSpec{}, false
	}
	return r.specs[i], true
}

// All returns every registered spec in registration order.
func (r *ToolRegistry) All() []ToolSpec {
	out := make([]ToolSpec, len(r.specs))
	copy(out, r.specs)
	return out
}

// FilterBySources returns the specs visible when the given sources are
// selected. Tools with no source key are always kept.
func (r *ToolRegistry) FilterBySources(selected map[string]bool) []ToolSpec {
	var out []ToolSpec
	for _, spec := range r.specs {
		if spec.Source == "" || selected[spec.Source] {
			out = append(out, spec)
		}
	}
	return out
}

// Sources returns the distinct source keys present in the catalog, sorted.
func (r *ToolRegistry) Sources() []string {
	seen := map[string]bool{}
	for _, spec := range r.specs {
		if spec.Source != "" {
			seen[spec.Source] = true
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
