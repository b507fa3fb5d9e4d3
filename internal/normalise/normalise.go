package normalise

import (
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// Metadata keys injected by normalisation. Everything else in the
// metadata map is source-specific and passed through verbatim.
const (
	KeySource     = "source"
	KeyKind       = "kind"
	KeyTitle      = "title"
	KeyText       = "text"
	KeyURL        = "url"
	KeyAuthor     = "author"
	KeyOccurredAt = "occurred_at"
)

// Record converts a raw item fetched from source into a canonical
// IngestRecord. It returns domain.ErrSchemaViolation (wrapped) when the
// item is missing a required field; callers log and skip the item
// without failing the batch.
func Record(source domain.Source, item domain.RawItem) (domain.IngestRecord, error) {
	if item.NativeID == "" {
		return domain.IngestRecord{}, fmt.Errorf("%w: missing native id", domain.ErrSchemaViolation)
	}
	if item.OccurredAt.IsZero() {
		return domain.IngestRecord{}, fmt.Errorf("%w: item %s has no timestamp", domain.ErrSchemaViolation, item.NativeID)
	}
	if strings.TrimSpace(item.Text) == "" {
		return domain.IngestRecord{}, fmt.Errorf("%w: item %s has no text", domain.ErrSchemaViolation, item.NativeID)
	}

	// Copy the metadata map so the record never shares storage with the
	// fetched item.
	meta := make(map[string]any, len(item.Metadata)+4)
	for k, v := range item.Metadata {
		meta[k] = v
	}

	var title string
	var err error
	switch source.Kind {
	case domain.KindIssue:
		title, err = shapeIssue(item, meta)
	case domain.KindChat:
		title, err = shapeChat(item, meta)
	case domain.KindTranscript:
		title, err = shapeTranscript(item, meta)
	case domain.KindDocument:
		title, err = shapeDocument(item, meta)
	case domain.KindTimeLog:
		title, err = shapeTimeLog(item, meta)
	default:
		return domain.IngestRecord{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedKind, source.Kind)
	}
	if err != nil {
		return domain.IngestRecord{}, err
	}

	meta[KeySource] = source.ID
	meta[KeyKind] = string(source.Kind)
	meta[KeyTitle] = title
	meta[KeyText] = snippet(item.Text, 500)
	meta[KeyOccurredAt] = item.OccurredAt.UTC().Format(time.RFC3339)

	text := item.Text
	if title != "" && !strings.Contains(text, title) {
		text = title + "\n\n" + text
	}

	return domain.IngestRecord{
		ID:         domain.RecordID(source.ID, item.NativeID),
		Source:     source.ID,
		Text:       text,
		Metadata:   meta,
		OccurredAt: item.OccurredAt,
	}, nil
}

// metaString returns a string metadata value, or "" when absent or not
// a string.
func metaString(meta map[string]any, key string) string {
	v, ok := meta[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// snippet truncates s to at most n runes, appending an ellipsis when
// anything was cut.
func snippet(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
