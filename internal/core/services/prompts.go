package services

import (
	"fmt"
	"strings"

	"github.com/policyradar/policyradar/internal/core/domain"
)

// SystemInstructions is the standing instruction set for the answering model.
const SystemInstructions = `You are a research assistant for questions about US government activity: regulations, legislation, spending, enforcement, and official publications.

Work method:
1. Use the provided tools to search authoritative sources before answering. Prefer primary documents over summaries.
2. After a search, read the most relevant documents with the read/content tools when the question needs detail.
3. When a tool returns an error, try a different tool or different arguments instead of giving up.
4. Cite what you used: mention document titles, identifiers, and dates in the answer.
5. If the available sources cannot answer the question, say so plainly. Never invent documents, citations, or numbers.

Answer in clear prose. Use short sections or bullet lists only when they genuinely help.`

// BuildUserPrompt renders the first user message of a turn: the question plus
// the resolved time window, the sources in play, and the router's rationale
// when auto-selection ran.
func BuildUserPrompt(message string, days int, selected map[string]bool, rationale string) string {
	var b strings.Builder
	b.WriteString(message)

	b.WriteString("\n\n---\n")
	if days > 0 {
		fmt.Fprintf(&b, "Time window: focus on the last %d days unless the question says otherwise.\n", days)
	}
	if len(selected) > 0 {
		names := make([]string, 0, len(selected))
		for _, key := range domain.AllSourceKeys() {
			if selected[key] {
				names = append(names, domain.SourceDisplayNames[key])
			}
		}
		fmt.Fprintf(&b, "Sources in scope: %s.\n", strings.Join(names, ", "))
	}
	if rationale != "" {
		fmt.Fprintf(&b, "Source selection rationale: %s\n", rationale)
	}
	return b.String()
}
