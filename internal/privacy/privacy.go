// Package privacy implements the blocked-key and content checks that every
// free-form or metadata field in an ingest payload must pass before it is
// persisted.
package privacy

import "strings"

// MaxStringValueLen is the longest a metadata string value may be.
const MaxStringValueLen = 100

// MaxDescriptionLen is the longest a baseline description may be.
const MaxDescriptionLen = 200

// MaxMessageLen is the longest a failure message may be.
const MaxMessageLen = 1000

// blockedKeys is the case-insensitive exact-match metadata key blocklist.
var blockedKeys = map[string]bool{
	"prompt":           true,
	"response":         true,
	"reasoning":        true,
	"thought":          true,
	"message":          true,
	"content":          true,
	"text":             true,
	"output":           true,
	"input":            true,
	"chain_of_thought": true,
	"explanation":      true,
	"rationale":        true,
}

// sensitiveSubstrings are scanned for inside free-form bounded text (failure
// messages, baseline descriptions) that doesn't go through the keyed
// metadata path. A hit rejects the field outright; we do not redact.
var sensitiveSubstrings = []string{
	"prompt:", "response:", "reasoning:", "chain of thought",
	"system prompt", "user said", "the model responded",
}

// IsBlockedKey reports whether key is on the metadata blocklist, matched
// case-insensitively and exactly (not by substring).
func IsBlockedKey(key string) bool {
	return blockedKeys[strings.ToLower(key)]
}

// CheckMetadataKeys returns the first blocked key found in keys, or "" if
// none are blocked.
func CheckMetadataKeys(keys []string) string {
	for _, k := range keys {
		if IsBlockedKey(k) {
			return k
		}
	}
	return ""
}

// CheckStringValue reports whether a metadata string value is within the
// bounded length. Values over the limit are rejected, never truncated.
func CheckStringValue(v string) bool {
	return len(v) <= MaxStringValueLen
}

// ContainsSensitiveContent scans free-form bounded text (failure message,
// baseline description) for forbidden substrings, case-insensitively.
// Policy: rejection, not redaction; see DESIGN.md Open Question decisions.
func ContainsSensitiveContent(s string) bool {
	lower := strings.ToLower(s)
	for _, substr := range sensitiveSubstrings {
		if strings.Contains(lower, substr) {
			return true
		}
	}
	return false
}

// CheckFailureMessage validates a failure message body: bounded length and
// free of sensitive content. Returns "" when valid, or a human-readable
// reason when not.
func CheckFailureMessage(msg string) string {
	if len(msg) > MaxMessageLen {
		return "message exceeds maximum length"
	}
	if ContainsSensitiveContent(msg) {
		return "message contains sensitive content"
	}
	return ""
}

// CheckDescription validates a baseline description: bounded length and
// free of sensitive content.
func CheckDescription(desc string) string {
	if len(desc) > MaxDescriptionLen {
		return "description exceeds maximum length"
	}
	if ContainsSensitiveContent(desc) {
		return "description contains sensitive content"
	}
	return ""
}
