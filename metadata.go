package admin

import (
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf8"
)

const (
	// MaxMetadataKeys is the largest number of keys an audit entry keeps
	MaxMetadataKeys = 32
	// MaxMetadataKeyLength bounds key size
	MaxMetadataKeyLength = 64
	// MaxMetadataValueLength bounds string values, longer values are truncated
	MaxMetadataValueLength = 1024
)

// Metadata is the bounded, scalar only map stored on audit entries
type Metadata map[string]any

// Validate reports the first key that breaks the metadata bounds
func (m Metadata) Validate() error {
	if len(m) > MaxMetadataKeys {
		return ErrInvalidMetadata.Clone().WithMetadata(map[string]any{
			"reason": "too many keys",
			"count":  len(m),
		})
	}

	for _, key := range m.sortedKeys() {
		if reason := validateMetadataKey(key); reason != "" {
			return ErrInvalidMetadata.Clone().WithMetadata(map[string]any{
				"reason": reason,
				"key":    key,
			})
		}
		if _, ok := scalarValue(m[key]); !ok {
			return ErrInvalidMetadata.Clone().WithMetadata(map[string]any{
				"reason": "value is not a scalar",
				"key":    key,
			})
		}
	}

	return nil
}

// Sanitize returns a copy that fits the bounds together with the keys that
// had to be dropped.
func (m Metadata) Sanitize() (Metadata, []string) {
	if len(m) == 0 {
		return nil, nil
	}

	out := make(Metadata, len(m))
	var dropped []string

	for _, key := range m.sortedKeys() {
		if len(out) >= MaxMetadataKeys {
			dropped = append(dropped, key)
			continue
		}

		if validateMetadataKey(key) != "" {
			dropped = append(dropped, key)
			continue
		}

		value, ok := scalarValue(m[key])
		if !ok {
			dropped = append(dropped, key)
			continue
		}

		out[key] = value
	}

	if len(out) == 0 {
		out = nil
	}

	return out, dropped
}

func (m Metadata) sortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func validateMetadataKey(key string) string {
	if key == "" {
		return "empty key"
	}
	if len(key) > MaxMetadataKeyLength {
		return "key too long"
	}
	return ""
}

func scalarValue(v any) (any, bool) {
	switch val := v.(type) {
	case nil, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val, true
	case json.Number:
		return val.String(), true
	case string:
		return truncateString(val, MaxMetadataValueLength), true
	case fmt.Stringer:
		return truncateString(val.String(), MaxMetadataValueLength), true
	case error:
		return truncateString(val.Error(), MaxMetadataValueLength), true
	default:
		return nil, false
	}
}

func truncateString(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := s[:limit]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
