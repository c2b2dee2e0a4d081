// Package eventfilter decides which decoded upstream records are
// forwarded to subscribers: a record passes only if it looks like a
// status update (not a delete/warning) in an allowed language.
package eventfilter

import "encoding/json"

// LegacyAllowedLanguages is the legacy allowed-language set. It is not
// applied automatically: Allow always uses the list its caller passes.
var LegacyAllowedLanguages = []string{"en", "no"}

// Event is a decoded upstream record, kept as a permissive string-keyed
// tree so unrecognized fields pass through to subscribers untouched.
type Event map[string]any

// Decode parses a single frame payload into an Event. A decode failure
// is the caller's cue to log and drop the frame; Decode itself does
// not log.
func Decode(payload []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, err
	}
	return e, nil
}

// Allow reports whether e passes the event filter: it must carry the
// key "in_reply_to_status_id" (any value, including null, counts —
// only presence distinguishes a status from a delete/warning record),
// and its "lang" field must be a member of allowedLanguages.
func Allow(e Event, allowedLanguages []string) bool {
	if e == nil {
		return false
	}
	if _, ok := e["in_reply_to_status_id"]; !ok {
		return false
	}

	lang, ok := e["lang"].(string)
	if !ok {
		return false
	}
	for _, l := range allowedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// Text extracts the event's "text" field for Filter-stream keyword
// matching. Returns "" if absent or not a string.
func Text(e Event) string {
	t, _ := e["text"].(string)
	return t
}
