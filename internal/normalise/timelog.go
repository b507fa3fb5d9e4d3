package normalise

import (
	"fmt"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// shapeTimeLog canonicalises time-tracking entries.
func shapeTimeLog(item domain.RawItem, meta map[string]any) (string, error) {
	author := metaString(meta, KeyAuthor)
	task := metaString(meta, "task")

	// Hours may arrive as float64 (JSON) or string; keep the original
	// value in the map either way.
	var hours string
	switch v := meta["hours"].(type) {
	case float64:
		hours = fmt.Sprintf("%.2fh", v)
	case string:
		hours = v + "h"
	}

	title := "time log " + item.NativeID
	if author != "" && task != "" {
		title = author + " on " + task
	} else if task != "" {
		title = task
	}
	if hours != "" {
		title += " (" + hours + ")"
	}
	return title, nil
}
