package mailapp

import (
	"fmt"
	"strings"
	"time"
)

// AccountNotFoundError reports that the host could not resolve an account
// reference. Detail carries the raw host diagnostic.
type AccountNotFoundError struct {
	Detail string
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("account not found: %s", e.Detail)
}

// MailboxNotFoundError reports an unresolvable mailbox reference.
type MailboxNotFoundError struct {
	Detail string
}

func (e *MailboxNotFoundError) Error() string {
	return fmt.Sprintf("mailbox not found: %s", e.Detail)
}

// MessageNotFoundError reports an unresolvable message reference, including
// the case where a full-scan lookup exhausted every mailbox without a match.
type MessageNotFoundError struct {
	Detail string
}

func (e *MessageNotFoundError) Error() string {
	return fmt.Sprintf("message not found: %s", e.Detail)
}

// ScriptError is the catch-all for a failed script run: any non-zero exit
// whose stderr matches no known phrase, or a failure to launch the
// interpreter at all.
type ScriptError struct {
	Detail string
	Err    error
}

func (e *ScriptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("script execution failed: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("script execution failed: %s", e.Detail)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// TimeoutError reports that the interpreter did not finish within the
// configured bound and was terminated. The host-side effect of the
// operation is unknown; it may have partially applied.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("script execution timeout after %s", e.Timeout)
}

// ValidationError reports caller input rejected before any process was
// executed. A request that fails validation has no side effect.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// FileNotFoundError reports a missing attachment source file or save
// directory.
type FileNotFoundError struct {
	Path string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Path)
}

// classification maps known host error phrases to constructors. Matching is
// ordered and first-match-wins; the phrases are the exact wording Mail's
// scripting interface emits for unresolvable object references. Anything
// else stays a ScriptError so that new host phrasings degrade to the
// catch-all instead of being misclassified.
var classification = []struct {
	phrase string
	wrap   func(detail string) error
}{
	{"Can't get account", func(d string) error { return &AccountNotFoundError{Detail: d} }},
	{"Can't get mailbox", func(d string) error { return &MailboxNotFoundError{Detail: d} }},
	{"Can't get message", func(d string) error { return &MessageNotFoundError{Detail: d} }},
}

// Classify converts stderr text from a failed script run into the matching
// typed error. The raw text is always preserved on the returned error.
func Classify(stderr string) error {
	for _, c := range classification {
		if strings.Contains(stderr, c.phrase) {
			return c.wrap(stderr)
		}
	}
	return &ScriptError{Detail: stderr}
}
