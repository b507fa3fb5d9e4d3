package normalise

import (
	"github.com/custodia-labs/recall/internal/core/domain"
)

// shapeDocument canonicalises document store items.
func shapeDocument(item domain.RawItem, meta map[string]any) (string, error) {
	if title := metaString(meta, KeyTitle); title != "" {
		return title, nil
	}
	if name := metaString(meta, "name"); name != "" {
		return name, nil
	}
	return "document " + item.NativeID, nil
}
