package services

import (
	"strings"

	"github.com/policyradar/policyradar/internal/core/domain"
)

// SanitizePolicy bounds what a tool result may carry into a model request.
// It is a pure transform, independent of any provider.
type SanitizePolicy struct {
	MaxTextChars       int
	MaxImages          int
	MaxImageBytes      int
	MaxTotalImageBytes int
}

// DefaultSanitizePolicy mirrors the production limits.
func DefaultSanitizePolicy() SanitizePolicy {
	return SanitizePolicy{
		MaxTextChars:       20000,
		MaxImages:          2,
		MaxImageBytes:      200_000,
		MaxTotalImageBytes: 250_000,
	}
}

// Text fields subject to the character budget.
var truncatedFields = []string{"full_text", "text"}

// Apply returns a copy of the result safe to hand to a model: long text
// fields truncated (annotated with original length and a truncated flag) and
// image attachments capped. Rejected images are counted, never silently
// dropped. The returned images are the ones that survived the caps.
func (p SanitizePolicy) Apply(result domain.ToolResult) (map[string]any, []domain.ToolImage) {
	safe := make(map[string]any, len(result.Data))
	for k, v := range result.Data {
		safe[k] = v
	}

	for _, field := range truncatedFields {
		raw, ok := safe[field].(string)
		if !ok || raw == "" {
			continue
		}
		truncated, did := p.truncate(raw)
		if did {
			safe[field] = truncated
			safe[field+"_length"] = len(raw)
			safe[field+"_truncated"] = true
		}
	}

	if len(result.Images) == 0 {
		return safe, nil
	}

	var kept []domain.ToolImage
	var meta []map[string]any
	skipped := 0
	totalBytes := 0
	for _, img := range result.Images {
		size := img.ByteSize
		if size == 0 {
			size = len(img.Data)
		}
		switch {
		case len(kept) >= p.MaxImages,
			size > p.MaxImageBytes,
			totalBytes+size > p.MaxTotalImageBytes:
			skipped++
			continue
		}
		kept = append(kept, img)
		totalBytes += size
		meta = append(meta, map[string]any{
			"id":        img.ID,
			"page":      img.Page,
			"source":    img.Source,
			"mime_type": img.MimeType,
			"width":     img.Width,
			"height":    img.Height,
			"byte_size": size,
		})
	}

	safe["image_count"] = len(kept)
	if len(meta) > 0 {
		safe["image_metadata"] = meta
	}
	if skipped > 0 {
		safe["images_skipped_for_model"] = skipped
	}

	return safe, kept
}

// truncate cuts text to the budget, preferring the last sentence boundary
// past 80% of it, and appends a truncation notice.
func (p SanitizePolicy) truncate(text string) (string, bool) {
	if p.MaxTextChars <= 0 || len(text) <= p.MaxTextChars {
		return text, false
	}
	cut := text[:p.MaxTextChars]
	if idx := strings.LastIndex(cut, "."); idx > p.MaxTextChars*8/10 {
		cut = cut[:idx+1]
	}
	return cut + "\n\n[Content truncated for model context...]", true
}
