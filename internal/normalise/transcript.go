package normalise

import (
	"github.com/custodia-labs/recall/internal/core/domain"
)

// shapeTranscript canonicalises meeting transcript segments.
func shapeTranscript(item domain.RawItem, meta map[string]any) (string, error) {
	meeting := metaString(meta, "meeting")
	speaker := metaString(meta, "speaker")

	// Speakers rank like authors downstream.
	if speaker != "" && metaString(meta, KeyAuthor) == "" {
		meta[KeyAuthor] = speaker
	}

	switch {
	case meeting != "" && speaker != "":
		return meeting + " (" + speaker + ")", nil
	case meeting != "":
		return meeting, nil
	}
	return "transcript segment " + item.NativeID, nil
}
