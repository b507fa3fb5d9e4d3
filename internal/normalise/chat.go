package normalise

import (
	"github.com/custodia-labs/recall/internal/core/domain"
)

// shapeChat canonicalises chat transcript items. A message without a
// channel is still ingestible; the channel only feeds the title.
func shapeChat(item domain.RawItem, meta map[string]any) (string, error) {
	channel := metaString(meta, "channel")
	author := metaString(meta, KeyAuthor)

	switch {
	case channel != "" && author != "":
		return "#" + channel + " - " + author, nil
	case channel != "":
		return "#" + channel, nil
	case author != "":
		return author, nil
	}
	return "chat message " + item.NativeID, nil
}
