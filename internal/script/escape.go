// Package script generates the AppleScript programs sent to Mail. Every
// caller-controlled string passes through Sanitize and Escape before it is
// embedded in script text; quoted is the single choke point that enforces
// this for quoted literals.
package script

import (
	"strings"
	"unicode/utf8"
)

// maxInputLen bounds sanitized input. Large enough for a message body,
// small enough that a hostile caller cannot balloon the generated script.
const maxInputLen = 64 * 1024

// Sanitize normalizes a caller-supplied string before it is embedded in
// script text: control characters are dropped (tabs and newlines survive,
// the escaper handles those) and the length is bounded. Never fails; empty
// in, empty out.
func Sanitize(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)

	return truncate(cleaned, maxInputLen)
}

// truncate bounds s to at most n bytes, backing up to a rune boundary so a
// multi-byte character is never split into invalid UTF-8.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Escape makes a sanitized string safe inside a double-quoted AppleScript
// literal. Backslashes and quotes are escaped, and line breaks become \n so
// they cannot terminate the literal or smuggle in extra statements. This is
// the sole injection defense; every interpolated string must pass through
// it.
func Escape(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\r\n", `\n`,
		"\r", `\n`,
		"\n", `\n`,
		"\t", `\t`,
	)
	return r.Replace(s)
}

// quoted sanitizes, escapes, and wraps a string as an AppleScript literal.
// All templates in this package interpolate caller strings through quoted
// (or quotedList); none concatenate raw input.
func quoted(s string) string {
	return `"` + Escape(Sanitize(s)) + `"`
}

// quotedList renders a slice as an AppleScript list of quoted literals,
// e.g. {"a@x.com", "b@y.com"}. An empty slice renders as {}.
func quotedList(items []string) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, quoted(it))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// SanitizeFilename reduces a filename to a safe basename: path components
// are stripped, control characters and NULs removed, colons and quotes
// replaced, and the result bounded to 255 bytes.
func SanitizeFilename(name string) string {
	// Strip any path components, whichever separator was used.
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r < 32 || r == 127:
			return -1
		case r == ':' || r == '"' || r == '\'':
			return '_'
		default:
			return r
		}
	}, name)

	return truncate(cleaned, 255)
}

// SanitizeMailboxName is the stricter sanitizer for mailbox names used in
// create operations: control characters, path separators and script
// metacharacters are removed outright. Returns "" when nothing safe is
// left, which callers treat as invalid input.
func SanitizeMailboxName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r < 32 || r == 127:
			return -1
		case strings.ContainsRune(`/\:"'{}`, r):
			return -1
		default:
			return r
		}
	}, name)

	return truncate(strings.TrimSpace(cleaned), 255)
}
