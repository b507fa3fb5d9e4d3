package domain

import "time"

// SourceKind identifies the shape of records a source produces.
type SourceKind string

// Known source kinds.
const (
	KindIssue      SourceKind = "issue"
	KindChat       SourceKind = "chat"
	KindTranscript SourceKind = "transcript"
	KindDocument   SourceKind = "document"
	KindTimeLog    SourceKind = "timelog"
)

// Valid reports whether k is a known source kind.
func (k SourceKind) Valid() bool {
	switch k {
	case KindIssue, KindChat, KindTranscript, KindDocument, KindTimeLog:
		return true
	}
	return false
}

// Source represents a configured external system producing ingestible records.
// Each source is synced independently and concurrently with the others.
type Source struct {
	// ID is the unique identifier for the source (e.g. "jira", "slack").
	ID string

	// Kind identifies the record shape the source produces.
	Kind SourceKind

	// Name is the human-readable name for this source.
	Name string

	// Interval defines the sync cadence. A source is due when
	// now - SyncStatus.LastSync >= Interval.
	Interval time.Duration

	// StaleAfter is the staleness threshold for this source.
	// Zero means the global default applies.
	StaleAfter time.Duration

	// MaxWindow caps the span of a single fetch window to bound batch
	// size during large backfills.
	MaxWindow time.Duration

	// Weight is the ranking weight applied to this source's results.
	// Zero is treated as 1.0.
	Weight float64

	// Endpoint is the base URL of the gateway exposing this source's
	// fetch API.
	Endpoint string

	// Token authenticates against the source gateway.
	Token string
}

// Window is a bounded time range [Start, End) used to fetch incremental
// changes from a source.
type Window struct {
	Start time.Time
	End   time.Time
}

// Clamp caps the window span to max, keeping the start fixed.
// A non-positive max leaves the window unchanged.
func (w Window) Clamp(max time.Duration) Window {
	if max <= 0 || w.End.Sub(w.Start) <= max {
		return w
	}
	return Window{Start: w.Start, End: w.Start.Add(max)}
}

// IsZero reports whether the window is unset.
func (w Window) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}
