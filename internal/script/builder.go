package script

import (
	"fmt"
	"strings"
)

// SearchFilter holds the optional predicates of a message search. Nil
// ReadStatus means "either".
type SearchFilter struct {
	SenderContains  string
	SubjectContains string
	ReadStatus      *bool
}

func (f SearchFilter) empty() bool {
	return f.SenderContains == "" && f.SubjectContains == "" && f.ReadStatus == nil
}

// joinLines is the common trailer that joins an AppleScript list of record
// strings with linefeeds and returns the result.
const joinLines = `
    set AppleScript's text item delimiters to linefeed
    set output to resultList as text
    set AppleScript's text item delimiters to ""
    return output`

// msgRecord extracts the summary fields of msg and appends one
// pipe-delimited record to resultList.
const msgRecord = `
        set msgId to id of msg as text
        set msgSubject to subject of msg
        set msgSender to sender of msg
        set msgDate to date received of msg as text
        set msgRead to read status of msg
        set end of resultList to msgId & "|" & msgSubject & "|" & msgSender & "|" & msgDate & "|" & msgRead`

// idList renders pre-validated numeric message ids as a bare AppleScript
// list. Ids must already have passed digit validation; they are the one
// interpolation that is embedded unquoted, because Mail compares ids as
// integers.
func idList(ids []string) string {
	return "{" + strings.Join(ids, ", ") + "}"
}

// ListAccounts enumerates accounts as name|primaryEmail lines.
func ListAccounts() string {
	return `tell application "Mail"
    set resultList to {}
    repeat with acc in accounts
        set accName to name of acc
        set emailAddrs to email addresses of acc
        set primaryEmail to ""
        if (count of emailAddrs) > 0 then
            set primaryEmail to item 1 of emailAddrs
        end if
        set end of resultList to accName & "|" & primaryEmail
    end repeat` + joinLines + `
end tell`
}

// ListMailboxes enumerates the mailboxes of one account as
// name|unreadCount lines.
func ListMailboxes(account string) string {
	return fmt.Sprintf(`tell application "Mail"
    set accountRef to account %s
    set resultList to {}
    repeat with mb in mailboxes of accountRef
        set end of resultList to (name of mb) & "|" & (unread count of mb)
    end repeat`+joinLines+`
end tell`, quoted(account))
}

// SearchMessages composes one of four structurally different programs
// depending on which of limit and filters are present:
//
//   - limit+filters: scan messages one by one with an inline boolean test
//     and exit once the limit is satisfied, so a large mailbox is never
//     materialized just to take its head;
//   - limit only: take a direct bounded slice of the collection;
//   - filters only: a whose-clause, letting Mail filter server-side;
//   - neither: plain full enumeration.
func SearchMessages(account, mailbox string, f SearchFilter, limit int) string {
	accountRef := fmt.Sprintf(`    set accountRef to account %s
    set mailboxRef to mailbox %s of accountRef`, quoted(account), quoted(mailbox))

	switch {
	case limit > 0 && !f.empty():
		return fmt.Sprintf(`tell application "Mail"
%s
    set resultList to {}
    set matchCount to 0
    repeat with msg in (messages of mailboxRef)
        if %s then
            set matchCount to matchCount + 1%s
            if matchCount >= %d then exit repeat
        end if
    end repeat`+joinLines+`
end tell`, accountRef, f.inlineCondition(), msgRecord, limit)

	case limit > 0:
		return fmt.Sprintf(`tell application "Mail"
%s
    set allMessages to messages of mailboxRef
    set msgCount to count of allMessages
    if msgCount > %d then set msgCount to %d
    set resultList to {}
    repeat with i from 1 to msgCount
        set msg to item i of allMessages%s
    end repeat`+joinLines+`
end tell`, accountRef, limit, limit, msgRecord)

	case !f.empty():
		return fmt.Sprintf(`tell application "Mail"
%s
    set matchedMessages to (messages of mailboxRef whose %s)
    set resultList to {}
    repeat with msg in matchedMessages%s
    end repeat`+joinLines+`
end tell`, accountRef, f.whoseClause(), msgRecord)

	default:
		return fmt.Sprintf(`tell application "Mail"
%s
    set resultList to {}
    repeat with msg in messages of mailboxRef%s
    end repeat`+joinLines+`
end tell`, accountRef, msgRecord)
	}
}

// inlineCondition renders the filter as a boolean test over msg for the
// short-circuiting scan.
func (f SearchFilter) inlineCondition() string {
	var checks []string
	if f.SenderContains != "" {
		checks = append(checks, fmt.Sprintf("(sender of msg contains %s)", quoted(f.SenderContains)))
	}
	if f.SubjectContains != "" {
		checks = append(checks, fmt.Sprintf("(subject of msg contains %s)", quoted(f.SubjectContains)))
	}
	if f.ReadStatus != nil {
		checks = append(checks, fmt.Sprintf("(read status of msg is %t)", *f.ReadStatus))
	}
	return strings.Join(checks, " and ")
}

// whoseClause renders the filter as a declarative predicate for Mail's
// collection query facility.
func (f SearchFilter) whoseClause() string {
	var conds []string
	if f.SenderContains != "" {
		conds = append(conds, fmt.Sprintf("sender contains %s", quoted(f.SenderContains)))
	}
	if f.SubjectContains != "" {
		conds = append(conds, fmt.Sprintf("subject contains %s", quoted(f.SubjectContains)))
	}
	if f.ReadStatus != nil {
		conds = append(conds, fmt.Sprintf("read status is %t", *f.ReadStatus))
	}
	return strings.Join(conds, " and ")
}

// GetMessage looks a message up by id. Mail exposes no id-to-location
// index, so the script scans every mailbox of every account and returns on
// first match; the try block swallows "not found in this mailbox" so the
// scan continues. Cost is O(accounts x mailboxes).
func GetMessage(id string, includeContent bool) string {
	contentClause := `set msgContent to ""`
	if includeContent {
		contentClause = "set msgContent to content of msg"
	}

	return fmt.Sprintf(`tell application "Mail"
    repeat with acc in accounts
        repeat with mb in mailboxes of acc
            try
                set msg to first message of mb whose id is %s
                set msgId to id of msg as text
                set msgSubject to subject of msg
                set msgSender to sender of msg
                set msgDate to date received of msg as text
                set msgRead to read status of msg
                set msgFlagged to flagged status of msg
                %s
                return msgId & "|" & msgSubject & "|" & msgSender & "|" & msgDate & "|" & msgRead & "|" & msgFlagged & "|" & msgContent
            end try
        end repeat
    end repeat
    error "Message not found"
end tell`, id, contentClause)
}

// recipientBlocks renders the repeat blocks that attach to/cc/bcc
// recipients to an outgoing message.
func recipientBlocks(to, cc, bcc []string) string {
	return fmt.Sprintf(`        repeat with addr in %s
            make new to recipient with properties {address:addr}
        end repeat
        repeat with addr in %s
            make new cc recipient with properties {address:addr}
        end repeat
        repeat with addr in %s
            make new bcc recipient with properties {address:addr}
        end repeat`, quotedList(to), quotedList(cc), quotedList(bcc))
}

// SendEmail composes and sends a new message.
func SendEmail(subject, body string, to, cc, bcc []string) string {
	return outgoingMessage(subject, body, to, cc, bcc, nil, `        send
    end tell
    return "sent"`)
}

// CreateDraft composes a message and saves it without sending, returning a
// draft_-prefixed id.
func CreateDraft(subject, body string, to, cc, bcc []string) string {
	return outgoingMessage(subject, body, to, cc, bcc, nil, `        save
    end tell
    set msgId to id of theMessage as text
    return "draft_" & msgId`)
}

// SendEmailWithAttachments composes and sends a message with the given
// files attached. Paths must already be validated; they are escaped like
// any other literal.
func SendEmailWithAttachments(subject, body string, to, cc, bcc, paths []string) string {
	attach := make([]string, 0, len(paths))
	for _, p := range paths {
		attach = append(attach, "POSIX file "+quoted(p))
	}
	attachBlock := fmt.Sprintf(`        repeat with filePath in {%s}
            make new attachment with properties {file name:filePath} at after last paragraph
        end repeat
`, strings.Join(attach, ", "))

	return outgoingMessage(subject, body, to, cc, bcc, []string{attachBlock}, `        send
    end tell
    return "sent"`)
}

func outgoingMessage(subject, body string, to, cc, bcc []string, extraBlocks []string, tail string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `tell application "Mail"
    set theMessage to make new outgoing message with properties {subject:%s, content:%s, visible:false}
    tell theMessage
`, quoted(subject), quoted(body))
	b.WriteString(recipientBlocks(to, cc, bcc))
	b.WriteString("\n")
	for _, blk := range extraBlocks {
		b.WriteString(blk)
	}
	b.WriteString(tail)
	b.WriteString("\nend tell")
	return b.String()
}

// bulkScan wraps body in the per-id scan over every mailbox of every
// account used by all bulk operations. Successfully handled ids are
// accumulated and returned one per line, so the caller can tell which
// identifiers the host never found. The try block makes each miss silent.
func bulkScan(ids []string, prelude, body string) string {
	return fmt.Sprintf(`tell application "Mail"
%s    set idList to %s
    set resultList to {}
    repeat with msgId in idList
        repeat with acc in accounts
            repeat with mb in mailboxes of acc
                try
                    set msg to first message of mb whose id is msgId
%s
                    set end of resultList to (msgId as text)
                end try
            end repeat
        end repeat
    end repeat`+joinLines+`
end tell`, prelude, idList(ids), body)
}

// MarkRead sets the read status of each id that can be located.
func MarkRead(ids []string, read bool) string {
	return bulkScan(ids, "", fmt.Sprintf("                    set read status of msg to %t", read))
}

// Flag sets the flag index and flagged status of each id.
func Flag(ids []string, index int, flagged bool) string {
	return bulkScan(ids, "", fmt.Sprintf(`                    set flag index of msg to %d
                    set flagged status of msg to %t`, index, flagged))
}

// Move relocates each id into destination mailbox of account. Gmail-family
// accounts need duplicate-then-delete because direct mailbox reassignment
// does not propagate label semantics for them.
func Move(ids []string, account, destination string, gmailMode bool) string {
	prelude := fmt.Sprintf(`    set accountRef to account %s
    set destMailbox to mailbox %s of accountRef
`, quoted(account), quoted(destination))

	body := "                    set mailbox of msg to destMailbox"
	if gmailMode {
		body = `                    duplicate msg to destMailbox
                    delete msg`
	}
	return bulkScan(ids, prelude, body)
}

// Delete moves each id to the trash.
func Delete(ids []string) string {
	return bulkScan(ids, "", "                    delete msg")
}

// GetAttachments lists the attachments of a message as
// name|mimeType|size|downloaded lines, via the same full scan as
// GetMessage.
func GetAttachments(id string) string {
	return fmt.Sprintf(`tell application "Mail"
    repeat with acc in accounts
        repeat with mb in mailboxes of acc
            try
                set msg to first message of mb whose id is %s
                set attList to mail attachments of msg
                set resultList to {}
                repeat with att in attList
                    set attName to name of att
                    set attType to MIME type of att
                    set attSize to file size of att
                    set attDownloaded to downloaded of att
                    set end of resultList to attName & "|" & attType & "|" & attSize & "|" & attDownloaded
                end repeat`+joinLines+`
            end try
        end repeat
    end repeat
    error "Message not found"
end tell`, id)
}

// SaveAttachments saves attachments of a message into dir and returns the
// count of successful saves. indices are 1-based positions; nil targets
// all attachments. Each save is individually wrapped so one failure does
// not abort the rest.
func SaveAttachments(id, dir string, indices []int) string {
	indexFilter := ""
	if indices != nil {
		strs := make([]string, 0, len(indices))
		for _, i := range indices {
			strs = append(strs, fmt.Sprintf("%d", i))
		}
		indexFilter = fmt.Sprintf("items {%s} of ", strings.Join(strs, ", "))
	}

	return fmt.Sprintf(`tell application "Mail"
    repeat with acc in accounts
        repeat with mb in mailboxes of acc
            try
                set msg to first message of mb whose id is %s
                set attList to %smail attachments of msg
                set saveCount to 0
                repeat with att in attList
                    try
                        set attName to name of att
                        save att in (%s & "/" & attName)
                        set saveCount to saveCount + 1
                    end try
                end repeat
                return saveCount
            end try
        end repeat
    end repeat
    error "Message not found"
end tell`, id, indexFilter, quoted(dir))
}

// Reply creates a reply (or reply-all) to a message, sets its body,
// optionally adds extra recipients, sends it, and returns the new id.
func Reply(id, body string, replyAll bool, extraTo []string) string {
	replyCmd := "reply"
	if replyAll {
		replyCmd = "reply to all"
	}

	extra := ""
	if len(extraTo) > 0 {
		extra = fmt.Sprintf(`
                    repeat with recipientAddr in %s
                        make new to recipient at end of to recipients of replyMsg with properties {address:recipientAddr}
                    end repeat`, quotedList(extraTo))
	}

	return fmt.Sprintf(`tell application "Mail"
    repeat with acc in accounts
        repeat with mb in mailboxes of acc
            try
                set origMsg to first message of mb whose id is %s
                set replyMsg to %s origMsg
                set content of replyMsg to %s%s
                set replyId to id of replyMsg as text
                send replyMsg
                return replyId
            end try
        end repeat
    end repeat
    error "Message not found"
end tell`, id, replyCmd, quoted(body), extra)
}

// Forward forwards a message to the given recipients, prepending body text
// when present, and returns the new id.
func Forward(id, body string, to, cc, bcc []string) string {
	bodyBlock := ""
	if body != "" {
		bodyBlock = fmt.Sprintf(`
                set origContent to content of fwdMsg
                set content of fwdMsg to %s & return & return & origContent`, quoted(body))
	}

	ccBlock := ""
	if len(cc) > 0 {
		ccBlock = fmt.Sprintf(`
                repeat with recipientAddr in %s
                    make new cc recipient at end of cc recipients of fwdMsg with properties {address:recipientAddr}
                end repeat`, quotedList(cc))
	}
	bccBlock := ""
	if len(bcc) > 0 {
		bccBlock = fmt.Sprintf(`
                repeat with recipientAddr in %s
                    make new bcc recipient at end of bcc recipients of fwdMsg with properties {address:recipientAddr}
                end repeat`, quotedList(bcc))
	}

	return fmt.Sprintf(`tell application "Mail"
    repeat with acc in accounts
        repeat with mb in mailboxes of acc
            try
                set origMsg to first message of mb whose id is %s
                set fwdMsg to forward origMsg%s
                repeat with recipientAddr in %s
                    make new to recipient at end of to recipients of fwdMsg with properties {address:recipientAddr}
                end repeat%s%s
                set fwdId to id of fwdMsg as text
                send fwdMsg
                return fwdId
            end try
        end repeat
    end repeat
    error "Message not found"
end tell`, id, bodyBlock, quotedList(to), ccBlock, bccBlock)
}

// CreateMailbox makes a new mailbox in account, nested under parent when
// given. The name must already have passed SanitizeMailboxName.
func CreateMailbox(account, name, parent string) string {
	if parent != "" {
		return fmt.Sprintf(`tell application "Mail"
    set accountRef to account %s
    set parentMailbox to mailbox %s of accountRef
    make new mailbox at parentMailbox with properties {name:%s}
    return "success"
end tell`, quoted(account), quoted(parent), quoted(name))
	}
	return fmt.Sprintf(`tell application "Mail"
    set accountRef to account %s
    make new mailbox at accountRef with properties {name:%s}
    return "success"
end tell`, quoted(account), quoted(name))
}
