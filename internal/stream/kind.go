package stream

import "strings"

// Kind describes the two concrete stream variants spec.md §4.6 names —
// sample and filter — as data rather than a type hierarchy: a single
// Controller is parameterized by a Kind instead of subclassing a base
// stream and overriding a broadcast method.
type Kind struct {
	// Name identifies the kind for logging ("sample", "filter").
	Name string

	// Method is the upstream HTTP method (GET for sample, POST for filter).
	Method string

	// URL is the upstream endpoint for this kind.
	URL string

	// RequiresKeywords is true for Filter: Subscribe must be given a
	// non-empty keyword list. Sample requires the opposite — Subscribe
	// must be called with none.
	RequiresKeywords bool

	// Matches decides, for this kind, whether a passing event should be
	// delivered to a subscriber with the given keywords. Sample ignores
	// keywords and always matches; Filter requires a case-insensitive
	// substring hit against the event's text.
	Matches func(text string, keywords []string) bool
}

// SampleKind returns the sample-stream kind descriptor: broadcasts
// every passing event to every subscriber, no keywords.
func SampleKind(url string) Kind {
	return Kind{
		Name:             "sample",
		Method:           "GET",
		URL:              url,
		RequiresKeywords: false,
		Matches:          func(string, []string) bool { return true },
	}
}

// FilterKind returns the filter-stream kind descriptor: the upstream
// carries the union of all subscribers' keywords, and each event is
// re-matched per subscriber locally (spec.md §4.5's rationale: the
// upstream filter is a union, so local matching restores the narrower
// per-subscriber selection).
func FilterKind(url string) Kind {
	return Kind{
		Name:             "filter",
		Method:           "POST",
		URL:              url,
		RequiresKeywords: true,
		Matches:          matchesAnyKeyword,
	}
}

func matchesAnyKeyword(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Default upstream endpoints, per spec.md §6.
const (
	DefaultSampleURL = "https://stream.twitter.com/1.1/statuses/sample.json"
	DefaultFilterURL = "https://stream.twitter.com/1.1/statuses/filter.json"
)
