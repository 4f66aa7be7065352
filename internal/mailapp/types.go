// Package mailapp holds the types shared between the script bridge and its
// callers: the entities Mail exposes through its scripting dictionary and
// the error taxonomy for failed script runs.
//
// None of these entities are owned by this process. They are projections of
// whatever Mail reports at call time; ids and counts are only meaningful for
// the lifetime of the host application session.
package mailapp

import "fmt"

// Account is a mail account as reported by the host application.
type Account struct {
	Name         string `json:"name"`
	PrimaryEmail string `json:"primary_email,omitempty"`
}

// Mailbox is a mailbox scoped to one account.
type Mailbox struct {
	Name        string `json:"name"`
	UnreadCount int    `json:"unread_count"`
}

// Message is a message summary or, when fetched individually, a full
// message including its body.
type Message struct {
	ID           string `json:"id"`
	Subject      string `json:"subject"`
	Sender       string `json:"sender"`
	DateReceived string `json:"date_received"`
	ReadStatus   bool   `json:"read_status"`
	Flagged      bool   `json:"flagged,omitempty"`
	Content      string `json:"content,omitempty"`
}

// Attachment describes one attachment of a message. Index positions are
// 0-based at this boundary; the generated script uses 1-based positions.
type Attachment struct {
	Name       string `json:"name"`
	MIMEType   string `json:"mime_type"`
	Size       int    `json:"size"`
	Downloaded bool   `json:"downloaded"`
}

// BulkResult reports the outcome of a best-effort bulk operation. Skipped
// identifiers were not found in any mailbox of any account; that is not an
// error, the host simply has no such message anymore.
type BulkResult struct {
	Succeeded []string `json:"succeeded"`
	Skipped   []string `json:"skipped,omitempty"`
}

// Count returns the number of identifiers the host actually updated.
func (r BulkResult) Count() int { return len(r.Succeeded) }

// FlagColor is one of the flag colors Mail understands.
type FlagColor string

const (
	FlagNone   FlagColor = "none"
	FlagOrange FlagColor = "orange"
	FlagRed    FlagColor = "red"
	FlagYellow FlagColor = "yellow"
	FlagBlue   FlagColor = "blue"
	FlagGreen  FlagColor = "green"
	FlagPurple FlagColor = "purple"
	FlagGray   FlagColor = "gray"
)

// flagIndexes maps each color to the flag index value Mail uses
// internally. "none" clears the flag; its index is never written.
var flagIndexes = map[FlagColor]int{
	FlagNone:   -1,
	FlagRed:    0,
	FlagOrange: 1,
	FlagYellow: 2,
	FlagGreen:  3,
	FlagBlue:   4,
	FlagPurple: 5,
	FlagGray:   6,
}

// ParseFlagColor validates a caller-supplied color name.
func ParseFlagColor(s string) (FlagColor, error) {
	c := FlagColor(s)
	if _, ok := flagIndexes[c]; !ok {
		return "", &ValidationError{Reason: fmt.Sprintf("invalid flag color: %q", s)}
	}
	return c, nil
}

// Index returns the host application's flag index for the color.
func (c FlagColor) Index() int { return flagIndexes[c] }

// Flagged reports whether the color sets the flagged status at all.
func (c FlagColor) Flagged() bool { return c != FlagNone }
