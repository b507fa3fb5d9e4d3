package domain

// ExpansionEntry is a learned mapping from a query term to a domain
// synonym or abbreviation. Read-mostly at query time; the counters are
// updated after each query that consulted the entry.
type ExpansionEntry struct {
	// Term is the query token the entry matches (lower-cased).
	Term string

	// Expanded is the synonym or expansion added as an alternate
	// query variant.
	Expanded string

	// Confidence gates whether the entry is applied at query time.
	Confidence float64

	// UsageCount is how often the entry was consulted.
	UsageCount int

	// SuccessCount is how often a query using the entry returned results.
	SuccessCount int
}
