package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/policyradar/policyradar/internal/core/domain"
	"github.com/policyradar/policyradar/internal/core/ports"
)

// maxRoutedSources caps how many sources the routing model may pick.
const maxRoutedSources = 6

// SourceRouter resolves which data sources a request may touch and, in auto
// mode, asks a model to narrow them. Routing never fails closed: an empty or
// unparsable answer falls back to the entire allowed set.
type SourceRouter struct {
	logger     *slog.Logger
	configured map[string]bool
}

// NewSourceRouter creates a router over the set of sources that actually
// have credentials configured.
func NewSourceRouter(logger *slog.Logger, configured map[string]bool) *SourceRouter {
	return &SourceRouter{logger: logger, configured: configured}
}

// Resolve computes the allowed-source set for a mode and explicit selection.
// A nil selection means mode decides; auto is implied for mode "both".
func (r *SourceRouter) Resolve(mode string, sources *domain.SourceSelection) (bool, map[string]bool) {
	if sources == nil {
		switch mode {
		case domain.ModeRegulations:
			return false, r.intersectConfigured(map[string]bool{domain.SourceRegulations: true})
		case domain.ModeGovInfo:
			return false, r.intersectConfigured(map[string]bool{domain.SourceGovInfo: true})
		default:
			allowed := map[string]bool{}
			for _, key := range domain.AllSourceKeys() {
				allowed[key] = true
			}
			return true, r.intersectConfigured(allowed)
		}
	}

	requested := sources.Requested()
	auto := sources.Auto
	if len(requested) == 0 {
		if !auto {
			return false, map[string]bool{}
		}
		for _, key := range domain.AllSourceKeys() {
			requested[key] = true
		}
	}

	switch mode {
	case domain.ModeRegulations:
		requested = intersect(requested, map[string]bool{domain.SourceRegulations: true})
	case domain.ModeGovInfo:
		requested = intersect(requested, map[string]bool{domain.SourceGovInfo: true})
	}

	return auto, r.intersectConfigured(requested)
}

// AutoSelect asks the backend to pick a subset of the allowed sources for
// the query. On any routing hiccup it returns the whole allowed set and a
// rationale noting the fallback.
func (r *SourceRouter) AutoSelect(ctx context.Context, backend ports.ConversationBackend, message string, allowed map[string]bool) (map[string]bool, string) {
	if len(allowed) == 0 {
		return map[string]bool{}, ""
	}
	if len(allowed) == 1 {
		return copySet(allowed), "Only one source available."
	}

	raw, err := backend.Complete(ctx, buildSelectorPrompt(message, allowed))
	if err != nil {
		r.logger.Warn("auto source selection failed; using all allowed sources", "error", err)
		return copySet(allowed), "Auto selection failed; using all allowed sources."
	}

	data := extractJSONObject(raw)
	chosen := map[string]bool{}
	if data != nil {
		if list, ok := data["sources"].([]any); ok {
			for _, item := range list {
				if len(chosen) >= maxRoutedSources {
					break
				}
				if key, ok := item.(string); ok && allowed[key] {
					chosen[key] = true
				}
			}
		}
	}

	if len(chosen) == 0 {
		r.logger.Warn("auto source selection returned no valid sources", "raw", raw)
		return copySet(allowed), "No valid selection returned; using all allowed sources."
	}

	rationale, _ := data["rationale"].(string)
	return chosen, rationale
}

func buildSelectorPrompt(message string, allowed map[string]bool) string {
	keys := sortedKeys(allowed)
	var options strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&options, "- %s: %s - %s\n", key, domain.SourceDisplayNames[key], domain.SourceDescriptions[key])
	}

	var guidance strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&guidance, "- %s: %s\n", key, domain.SourceDescriptions[key])
	}

	return fmt.Sprintf(`You route user queries to the most relevant data sources.
Use the routing guidance and choose the sources most likely to contain authoritative results.
Return STRICT JSON only: {"sources":["source_key",...], "rationale":"short"}.
Choose 1-%d sources; choose fewer when the query is narrow.
Only choose from the allowed list.

User query: %s

Allowed sources:
%s
Routing guidance:
%s`, maxRoutedSources, message, options.String(), guidance.String())
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// extractJSONObject parses the first well-formed JSON object found anywhere
// in the text. Returns nil when nothing parses.
func extractJSONObject(text string) map[string]any {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err == nil {
		return out
	}
	match := jsonObjectPattern.FindString(text)
	if match == "" {
		return nil
	}
	out = nil
	if err := json.Unmarshal([]byte(match), &out); err != nil {
		return nil
	}
	return out
}

func (r *SourceRouter) intersectConfigured(set map[string]bool) map[string]bool {
	return intersect(set, r.configured)
}

func intersect(a, b map[string]bool) map[string]bool {
	out := map[string]bool{}
	for k := range a {
		if b[k] {
			out[k] = true
		}
	}
	return out
}

func copySet(set map[string]bool) map[string]bool {
	out := make(map[string]bool, len(set))
	for k := range set {
		out[k] = true
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
