package admin

import (
	"regexp"
	"strings"
)

// UnknownAction is the bucket for paths with nothing left after stripping ids
const UnknownAction = "unknown"

var (
	numericSegment = regexp.MustCompile(`^[0-9]+$`)
	uuidSegment    = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	hexSegment     = regexp.MustCompile(`^[0-9a-fA-F]{8,}$`)
)

// DeriveAction folds a request path into a stable action bucket:
// "/conversations/42/messages" becomes "conversations.messages".
// Numeric segments, UUIDs and hex runs of 8 or more characters are treated
// as identifiers and dropped; shorter hex-looking words such as "abc" or
// "cafe" stay in the bucket.
func DeriveAction(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	path = strings.TrimPrefix(strings.TrimSpace(path), "/")

	segments := strings.Split(path, "/")
	kept := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg == "" || isIdentifierSegment(seg) {
			continue
		}
		kept = append(kept, seg)
	}

	action := strings.Trim(strings.Join(kept, "."), ".")
	if action == "" {
		return UnknownAction
	}
	return action
}

func isIdentifierSegment(seg string) bool {
	return numericSegment.MatchString(seg) ||
		uuidSegment.MatchString(seg) ||
		hexSegment.MatchString(seg)
}
