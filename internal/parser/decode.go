// Package parser decodes Mail's textual replies into typed records. The
// wire format is one record per line with pipe-delimited fields; booleans
// are literal true/false, counts are bare digit strings.
//
// Decoding is deliberately lenient: the host's counters and records are
// defensive, not authoritative, so malformed input degrades to zero values
// or skipped records instead of errors.
package parser

import (
	"math"
	"strings"

	"github.com/felo/mailbridge/internal/mailapp"
)

const fieldSep = "|"

// Count parses a scalar count reply. Anything that is not a plain digit
// string decodes to zero, including values that would overflow int.
func Count(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		d := int(r - '0')
		if n > (math.MaxInt-d)/10 {
			return 0
		}
		n = n*10 + d
	}
	return n
}

// Bool parses a literal true/false field, case-insensitively.
func Bool(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}

// Accounts decodes name|email lines. Empty input is an empty list.
func Accounts(raw string) []mailapp.Account {
	var accounts []mailapp.Account
	for _, line := range lines(raw) {
		parts := strings.Split(line, fieldSep)
		if len(parts) < 2 {
			continue
		}
		accounts = append(accounts, mailapp.Account{
			Name:         parts[0],
			PrimaryEmail: parts[1],
		})
	}
	return accounts
}

// Mailboxes decodes name|unreadCount lines.
func Mailboxes(raw string) []mailapp.Mailbox {
	var mailboxes []mailapp.Mailbox
	for _, line := range lines(raw) {
		parts := strings.Split(line, fieldSep)
		if len(parts) < 2 {
			continue
		}
		mailboxes = append(mailboxes, mailapp.Mailbox{
			Name:        parts[0],
			UnreadCount: Count(parts[1]),
		})
	}
	return mailboxes
}

// Messages decodes search results: id|subject|sender|dateReceived|readStatus
// lines. Records with fewer fields are skipped.
func Messages(raw string) []mailapp.Message {
	var messages []mailapp.Message
	for _, line := range lines(raw) {
		parts := strings.Split(line, fieldSep)
		if len(parts) < 5 {
			continue
		}
		messages = append(messages, mailapp.Message{
			ID:           parts[0],
			Subject:      parts[1],
			Sender:       parts[2],
			DateReceived: parts[3],
			ReadStatus:   Bool(parts[4]),
		})
	}
	return messages
}

// Message decodes a single full message:
// id|subject|sender|dateReceived|readStatus|flagged|content. The split is
// bounded so the content field keeps any pipes it contains; it is always
// the final field. A reply with fewer than six fields means the host's
// scan exhausted without a match.
func Message(raw string) (*mailapp.Message, error) {
	parts := strings.SplitN(raw, fieldSep, 7)
	if len(parts) < 6 {
		return nil, &mailapp.MessageNotFoundError{Detail: "could not parse message reply"}
	}
	msg := &mailapp.Message{
		ID:           parts[0],
		Subject:      parts[1],
		Sender:       parts[2],
		DateReceived: parts[3],
		ReadStatus:   Bool(parts[4]),
		Flagged:      Bool(parts[5]),
	}
	if len(parts) > 6 {
		msg.Content = parts[6]
	}
	return msg, nil
}

// Attachments decodes name|mimeType|size|downloaded lines.
func Attachments(raw string) []mailapp.Attachment {
	var attachments []mailapp.Attachment
	for _, line := range lines(raw) {
		parts := strings.Split(line, fieldSep)
		if len(parts) < 4 {
			continue
		}
		attachments = append(attachments, mailapp.Attachment{
			Name:       parts[0],
			MIMEType:   parts[1],
			Size:       Count(parts[2]),
			Downloaded: Bool(parts[3]),
		})
	}
	return attachments
}

// BulkResult decodes the id-per-line reply of a bulk operation and derives
// which of the requested ids the host never found. Order of Skipped follows
// the request order.
func BulkResult(raw string, requested []string) mailapp.BulkResult {
	succeeded := lines(raw)
	seen := make(map[string]bool, len(succeeded))
	for _, id := range succeeded {
		seen[id] = true
	}

	res := mailapp.BulkResult{Succeeded: succeeded}
	for _, id := range requested {
		if !seen[id] {
			res.Skipped = append(res.Skipped, id)
		}
	}
	return res
}

func lines(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
