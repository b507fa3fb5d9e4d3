package normalise

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// shapeIssue canonicalises issue-tracker items.
//
// Issue trackers supply the richest structured metadata the ranking
// functions pattern-match on: status, priority, assignee, project.
// An issue without a key cannot be attributed, so that one field is
// required; everything else is optional and passed through.
func shapeIssue(item domain.RawItem, meta map[string]any) (string, error) {
	key := metaString(meta, "key")
	if key == "" {
		return "", fmt.Errorf("%w: issue %s has no key", domain.ErrSchemaViolation, item.NativeID)
	}

	// Derive the project key from the issue key (e.g. "TICKET-623" ->
	// "TICKET") when the source did not send one.
	if metaString(meta, "project") == "" {
		if idx := strings.LastIndex(key, "-"); idx > 0 {
			meta["project"] = key[:idx]
		}
	}

	title := key
	if summary := metaString(meta, "summary"); summary != "" {
		title = key + ": " + summary
	}
	return title, nil
}
