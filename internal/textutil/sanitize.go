package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"
)

// SafeSegment turns an opaque identifier into a single directory name.
// Path separators, drive colons, and whitespace runs collapse into one dash;
// shell glob and quoting characters are dropped. Leading and trailing dots,
// dashes, and underscores are trimmed so a segment can never climb out of
// its parent or hide itself. Returns fallback when nothing usable remains.
func SafeSegment(value, fallback string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.TrimSpace(value) {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || unicode.IsSpace(r):
			pendingDash = true
			continue
		case strings.ContainsRune(`?"<>|`, r) || unicode.IsControl(r):
			continue
		}
		if pendingDash && b.Len() > 0 {
			b.WriteByte('-')
		}
		pendingDash = false
		b.WriteRune(r)
	}
	out := strings.Trim(b.String(), "-_.")
	if out == "" {
		return fallback
	}
	return out
}

// plainSegment matches identifiers that are already usable as a directory
// name. None of them contain '~', which DistinctSegment reserves.
var plainSegment = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// DistinctSegment maps an identifier to a directory name such that distinct
// identifiers never share one. Plain identifiers are returned unchanged;
// anything else becomes its SafeSegment form followed by '~' and a digest of
// the raw value, so "a/b" and "a b" land in different directories.
func DistinctSegment(value, fallback string) string {
	if plainSegment.MatchString(value) {
		return value
	}
	sum := sha256.Sum256([]byte(value))
	return SafeSegment(value, fallback) + "~" + hex.EncodeToString(sum[:6])
}
