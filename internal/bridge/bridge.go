// Package bridge is the operation surface over Mail's scripting interface.
// Each operation is one synchronous sanitize -> build -> execute ->
// classify/decode pipeline; the bridge holds no state between calls besides
// its configuration, and never caches anything the host owns.
package bridge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/felo/mailbridge/internal/mailapp"
	"github.com/felo/mailbridge/internal/parser"
	"github.com/felo/mailbridge/internal/runner"
	"github.com/felo/mailbridge/internal/script"
)

// Runner executes script text. *runner.Runner is the production
// implementation; tests inject fakes.
type Runner interface {
	Run(ctx context.Context, scriptText string) (runner.Result, error)
}

// Options bounds caller input. Zero values fall back to the defaults.
type Options struct {
	// MaxAttachmentSize is the per-file byte limit for outgoing
	// attachments.
	MaxAttachmentSize int64
	// BulkLimit caps the identifier count of destructive bulk operations
	// unless the caller forces past it.
	BulkLimit int
}

const (
	defaultMaxAttachmentSize = 25 * 1024 * 1024
	defaultBulkLimit         = 100
)

// Bridge exposes the typed operation contract consumed by front ends.
type Bridge struct {
	run  Runner
	log  *zap.Logger
	opts Options
}

// New builds a Bridge over the given runner.
func New(run Runner, log *zap.Logger, opts Options) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxAttachmentSize <= 0 {
		opts.MaxAttachmentSize = defaultMaxAttachmentSize
	}
	if opts.BulkLimit <= 0 {
		opts.BulkLimit = defaultBulkLimit
	}
	return &Bridge{run: run, log: log, opts: opts}
}

// execute runs a script and returns its stdout, classifying stderr on a
// non-zero exit.
func (b *Bridge) execute(ctx context.Context, scriptText string) (string, error) {
	res, err := b.run.Run(ctx, scriptText)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		err := mailapp.Classify(res.Stderr)
		b.log.Error("script failed",
			zap.Int("exit_code", res.ExitCode),
			zap.String("stderr", res.Stderr),
			zap.Duration("elapsed", res.Elapsed))
		return "", err
	}
	return res.Stdout, nil
}

// ListAccounts returns all accounts known to the host application.
func (b *Bridge) ListAccounts(ctx context.Context) ([]mailapp.Account, error) {
	out, err := b.execute(ctx, script.ListAccounts())
	if err != nil {
		return nil, err
	}
	return parser.Accounts(out), nil
}

// ListMailboxes returns the mailboxes of one account with their unread
// counts.
func (b *Bridge) ListMailboxes(ctx context.Context, account string) ([]mailapp.Mailbox, error) {
	if account == "" {
		return nil, &mailapp.ValidationError{Reason: "account name required"}
	}
	out, err := b.execute(ctx, script.ListMailboxes(account))
	if err != nil {
		return nil, err
	}
	return parser.Mailboxes(out), nil
}

// SearchQuery describes a message search. Mailbox defaults to INBOX.
type SearchQuery struct {
	Account         string
	Mailbox         string
	SenderContains  string
	SubjectContains string
	ReadStatus      *bool
	Limit           int
}

// SearchMessages returns message summaries matching the query. With both a
// limit and filters the generated program short-circuits host-side once
// the limit is satisfied.
func (b *Bridge) SearchMessages(ctx context.Context, q SearchQuery) ([]mailapp.Message, error) {
	if q.Account == "" {
		return nil, &mailapp.ValidationError{Reason: "account name required"}
	}
	if q.Mailbox == "" {
		q.Mailbox = "INBOX"
	}
	if q.Limit < 0 {
		return nil, &mailapp.ValidationError{Reason: "limit must not be negative"}
	}

	filter := script.SearchFilter{
		SenderContains:  q.SenderContains,
		SubjectContains: q.SubjectContains,
		ReadStatus:      q.ReadStatus,
	}
	out, err := b.execute(ctx, script.SearchMessages(q.Account, q.Mailbox, filter, q.Limit))
	if err != nil {
		return nil, err
	}
	return parser.Messages(out), nil
}

// GetMessage fetches one message by id, optionally including its body.
// Lookup scans every mailbox of every account; there is no id index.
func (b *Bridge) GetMessage(ctx context.Context, id string, includeContent bool) (*mailapp.Message, error) {
	if err := validateMessageID(id); err != nil {
		return nil, err
	}
	out, err := b.execute(ctx, script.GetMessage(id, includeContent))
	if err != nil {
		return nil, err
	}
	return parser.Message(out)
}

// OutgoingMessage is the composition input for send, draft and forward
// operations.
type OutgoingMessage struct {
	Subject string
	Body    string
	To      []string
	CC      []string
	BCC     []string
}

// SendEmail composes and sends a message. A nil error means the host
// confirmed the send.
func (b *Bridge) SendEmail(ctx context.Context, m OutgoingMessage) error {
	if len(m.To) == 0 {
		return &mailapp.ValidationError{Reason: "at least one recipient required"}
	}
	if err := validateAddresses(m.To, m.CC, m.BCC); err != nil {
		return err
	}
	out, err := b.execute(ctx, script.SendEmail(m.Subject, m.Body, m.To, m.CC, m.BCC))
	if err != nil {
		return err
	}
	if out != "sent" {
		return &mailapp.ScriptError{Detail: fmt.Sprintf("unexpected send reply: %q", out)}
	}
	return nil
}

// CreateDraft composes a message and saves it without sending, returning
// the draft id.
func (b *Bridge) CreateDraft(ctx context.Context, m OutgoingMessage) (string, error) {
	if len(m.To) == 0 {
		return "", &mailapp.ValidationError{Reason: "at least one recipient required"}
	}
	if err := validateAddresses(m.To, m.CC, m.BCC); err != nil {
		return "", err
	}
	return b.execute(ctx, script.CreateDraft(m.Subject, m.Body, m.To, m.CC, m.BCC))
}

// SendEmailWithAttachments sends a message with files attached. Every file
// is validated (existence, regular file, size bound, extension policy)
// before any process is executed.
func (b *Bridge) SendEmailWithAttachments(ctx context.Context, m OutgoingMessage, paths []string) error {
	if len(m.To) == 0 {
		return &mailapp.ValidationError{Reason: "at least one recipient required"}
	}
	if err := validateAddresses(m.To, m.CC, m.BCC); err != nil {
		return err
	}
	abs, err := validateAttachmentFiles(paths, b.opts.MaxAttachmentSize)
	if err != nil {
		return err
	}
	out, err := b.execute(ctx, script.SendEmailWithAttachments(m.Subject, m.Body, m.To, m.CC, m.BCC, abs))
	if err != nil {
		return err
	}
	if out != "sent" {
		return &mailapp.ScriptError{Detail: fmt.Sprintf("unexpected send reply: %q", out)}
	}
	return nil
}

// GetAttachments lists the attachments of a message.
func (b *Bridge) GetAttachments(ctx context.Context, id string) ([]mailapp.Attachment, error) {
	if err := validateMessageID(id); err != nil {
		return nil, err
	}
	out, err := b.execute(ctx, script.GetAttachments(id))
	if err != nil {
		return nil, err
	}
	return parser.Attachments(out), nil
}

// SaveAttachments saves attachments of a message into dir and returns the
// number saved. indices are 0-based; nil saves all. Individual save
// failures reduce the count without failing the operation.
func (b *Bridge) SaveAttachments(ctx context.Context, id, dir string, indices []int) (int, error) {
	if err := validateMessageID(id); err != nil {
		return 0, err
	}
	resolved, err := validateSaveDirectory(dir)
	if err != nil {
		return 0, err
	}

	var hostIndices []int
	if indices != nil {
		hostIndices = make([]int, 0, len(indices))
		for _, i := range indices {
			if i < 0 {
				return 0, &mailapp.ValidationError{Reason: fmt.Sprintf("attachment index must not be negative: %d", i)}
			}
			// The script addresses attachments by 1-based position.
			hostIndices = append(hostIndices, i+1)
		}
	}

	out, err := b.execute(ctx, script.SaveAttachments(id, resolved, hostIndices))
	if err != nil {
		return 0, err
	}
	return parser.Count(out), nil
}

// MarkAsRead sets the read status of each listed message, best-effort.
// Identifiers not found anywhere are reported as skipped, not as errors.
func (b *Bridge) MarkAsRead(ctx context.Context, ids []string, read bool) (mailapp.BulkResult, error) {
	if len(ids) == 0 {
		return mailapp.BulkResult{}, nil
	}
	if err := b.validateBulk(ids, false); err != nil {
		return mailapp.BulkResult{}, err
	}
	out, err := b.execute(ctx, script.MarkRead(ids, read))
	if err != nil {
		return mailapp.BulkResult{}, err
	}
	return parser.BulkResult(out, ids), nil
}

// FlagMessages applies a flag color (or clears it with FlagNone) to each
// listed message, best-effort.
func (b *Bridge) FlagMessages(ctx context.Context, ids []string, color mailapp.FlagColor) (mailapp.BulkResult, error) {
	if len(ids) == 0 {
		return mailapp.BulkResult{}, nil
	}
	if _, err := mailapp.ParseFlagColor(string(color)); err != nil {
		return mailapp.BulkResult{}, err
	}
	if err := b.validateBulk(ids, false); err != nil {
		return mailapp.BulkResult{}, err
	}
	out, err := b.execute(ctx, script.Flag(ids, color.Index(), color.Flagged()))
	if err != nil {
		return mailapp.BulkResult{}, err
	}
	return parser.BulkResult(out, ids), nil
}

// MoveOptions controls MoveMessages.
type MoveOptions struct {
	// GmailMode switches to duplicate-then-delete, which Gmail-family
	// accounts need for label semantics to survive the move.
	GmailMode bool
	// Force bypasses the bulk size limit.
	Force bool
}

// MoveMessages relocates each listed message into the destination mailbox
// of the given account, best-effort.
func (b *Bridge) MoveMessages(ctx context.Context, ids []string, account, destination string, opts MoveOptions) (mailapp.BulkResult, error) {
	if len(ids) == 0 {
		return mailapp.BulkResult{}, nil
	}
	if account == "" || destination == "" {
		return mailapp.BulkResult{}, &mailapp.ValidationError{Reason: "account and destination mailbox required"}
	}
	if err := b.validateBulk(ids, opts.Force); err != nil {
		return mailapp.BulkResult{}, err
	}
	out, err := b.execute(ctx, script.Move(ids, account, destination, opts.GmailMode))
	if err != nil {
		return mailapp.BulkResult{}, err
	}
	return parser.BulkResult(out, ids), nil
}

// DeleteOptions controls DeleteMessages.
type DeleteOptions struct {
	// Force bypasses the bulk size limit.
	Force bool
}

// DeleteMessages moves each listed message to the trash, best-effort.
func (b *Bridge) DeleteMessages(ctx context.Context, ids []string, opts DeleteOptions) (mailapp.BulkResult, error) {
	if len(ids) == 0 {
		return mailapp.BulkResult{}, nil
	}
	if err := b.validateBulk(ids, opts.Force); err != nil {
		return mailapp.BulkResult{}, err
	}
	out, err := b.execute(ctx, script.Delete(ids))
	if err != nil {
		return mailapp.BulkResult{}, err
	}
	return parser.BulkResult(out, ids), nil
}

// ReplyOptions controls ReplyToMessage.
type ReplyOptions struct {
	// ReplyAll replies to all original recipients instead of the sender.
	ReplyAll bool
	// To adds extra recipients on top of those the host derives.
	To []string
}

// ReplyToMessage sends a reply to a message and returns the new message
// id.
func (b *Bridge) ReplyToMessage(ctx context.Context, id, body string, opts ReplyOptions) (string, error) {
	if err := validateMessageID(id); err != nil {
		return "", err
	}
	if err := validateAddresses(opts.To); err != nil {
		return "", err
	}
	return b.execute(ctx, script.Reply(id, body, opts.ReplyAll, opts.To))
}

// ForwardMessage forwards a message and returns the new message id. body,
// when present, is prepended above the forwarded content.
func (b *Bridge) ForwardMessage(ctx context.Context, id, body string, to, cc, bcc []string) (string, error) {
	if err := validateMessageID(id); err != nil {
		return "", err
	}
	if len(to) == 0 {
		return "", &mailapp.ValidationError{Reason: "at least one recipient required"}
	}
	if err := validateAddresses(to, cc, bcc); err != nil {
		return "", err
	}
	return b.execute(ctx, script.Forward(id, body, to, cc, bcc))
}

// CreateMailbox makes a new mailbox in the account, nested under parent
// when given.
func (b *Bridge) CreateMailbox(ctx context.Context, account, name, parent string) error {
	if account == "" {
		return &mailapp.ValidationError{Reason: "account name required"}
	}
	safeName := script.SanitizeMailboxName(name)
	if safeName == "" {
		return &mailapp.ValidationError{Reason: fmt.Sprintf("invalid mailbox name: %q", name)}
	}
	out, err := b.execute(ctx, script.CreateMailbox(account, safeName, parent))
	if err != nil {
		return err
	}
	if out != "success" {
		return &mailapp.ScriptError{Detail: fmt.Sprintf("unexpected create mailbox reply: %q", out)}
	}
	return nil
}

// validateBulk checks every id and the bulk size bound.
func (b *Bridge) validateBulk(ids []string, force bool) error {
	if !force && len(ids) > b.opts.BulkLimit {
		return &mailapp.ValidationError{
			Reason: fmt.Sprintf("too many messages for bulk operation (%d > %d); set force to override", len(ids), b.opts.BulkLimit),
		}
	}
	for _, id := range ids {
		if err := validateMessageID(id); err != nil {
			return err
		}
	}
	return nil
}
