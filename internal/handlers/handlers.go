// Package handlers is the thin JSON front end over the bridge's typed
// operation contract. It owns no mail semantics: requests are decoded,
// passed to the bridge, and the typed result or classified error is mapped
// onto HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/felo/mailbridge/internal/audit"
	"github.com/felo/mailbridge/internal/bridge"
	"github.com/felo/mailbridge/internal/mailapp"
)

// Service is the narrow bridge surface the front end consumes.
// *bridge.Bridge satisfies it.
type Service interface {
	ListAccounts(ctx context.Context) ([]mailapp.Account, error)
	ListMailboxes(ctx context.Context, account string) ([]mailapp.Mailbox, error)
	SearchMessages(ctx context.Context, q bridge.SearchQuery) ([]mailapp.Message, error)
	GetMessage(ctx context.Context, id string, includeContent bool) (*mailapp.Message, error)
	SendEmail(ctx context.Context, m bridge.OutgoingMessage) error
	SendEmailWithAttachments(ctx context.Context, m bridge.OutgoingMessage, paths []string) error
	CreateDraft(ctx context.Context, m bridge.OutgoingMessage) (string, error)
	GetAttachments(ctx context.Context, id string) ([]mailapp.Attachment, error)
	SaveAttachments(ctx context.Context, id, dir string, indices []int) (int, error)
	MarkAsRead(ctx context.Context, ids []string, read bool) (mailapp.BulkResult, error)
	FlagMessages(ctx context.Context, ids []string, color mailapp.FlagColor) (mailapp.BulkResult, error)
	MoveMessages(ctx context.Context, ids []string, account, destination string, opts bridge.MoveOptions) (mailapp.BulkResult, error)
	DeleteMessages(ctx context.Context, ids []string, opts bridge.DeleteOptions) (mailapp.BulkResult, error)
	ReplyToMessage(ctx context.Context, id, body string, opts bridge.ReplyOptions) (string, error)
	ForwardMessage(ctx context.Context, id, body string, to, cc, bcc []string) (string, error)
	CreateMailbox(ctx context.Context, account, name, parent string) error
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	svc   Service
	aud   *audit.Log
	log   *zap.Logger
	clock func() time.Time
}

// New creates a new Handlers instance. aud may be nil to disable auditing.
func New(svc Service, aud *audit.Log, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{svc: svc, aud: aud, log: log, clock: time.Now}
}

// Routes mounts every operation on the router.
func (h *Handlers) Routes(r chi.Router) {
	r.Get("/accounts", h.ListAccounts)
	r.Get("/accounts/{account}/mailboxes", h.ListMailboxes)
	r.Post("/mailboxes", h.CreateMailbox)
	r.Get("/messages/search", h.SearchMessages)
	r.Get("/messages/{id}", h.GetMessage)
	r.Get("/messages/{id}/eml", h.ExportEML)
	r.Get("/messages/{id}/attachments", h.GetAttachments)
	r.Post("/messages/{id}/attachments/save", h.SaveAttachments)
	r.Post("/messages/{id}/reply", h.Reply)
	r.Post("/messages/{id}/forward", h.Forward)
	r.Post("/messages/read", h.MarkRead)
	r.Post("/messages/flag", h.Flag)
	r.Post("/messages/move", h.Move)
	r.Post("/messages/delete", h.Delete)
	r.Post("/send", h.Send)
	r.Post("/drafts", h.CreateDraft)
	r.Get("/audit", h.Audit)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var (
		accErr  *mailapp.AccountNotFoundError
		mbErr   *mailapp.MailboxNotFoundError
		msgErr  *mailapp.MessageNotFoundError
		fileErr *mailapp.FileNotFoundError
		valErr  *mailapp.ValidationError
		toErr   *mailapp.TimeoutError
	)
	switch {
	case errors.As(err, &accErr), errors.As(err, &mbErr), errors.As(err, &msgErr), errors.As(err, &fileErr):
		return http.StatusNotFound
	case errors.As(err, &valErr):
		return http.StatusBadRequest
	case errors.As(err, &toErr):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	h.writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// record stores one invocation in the audit log when auditing is on.
func (h *Handlers) record(op string, started time.Time, err error) {
	if h.aud == nil {
		return
	}
	status := "ok"
	detail := ""
	if err != nil {
		status = "error"
		detail = err.Error()
	}
	if _, aerr := h.aud.Record(audit.Entry{
		Operation: op,
		StartedAt: started,
		Duration:  h.clock().Sub(started),
		Status:    status,
		Detail:    detail,
	}); aerr != nil {
		h.log.Warn("failed to record audit entry", zap.Error(aerr))
	}
}

func (h *Handlers) ListAccounts(w http.ResponseWriter, r *http.Request) {
	started := h.clock()
	accounts, err := h.svc.ListAccounts(r.Context())
	h.record("list_accounts", started, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *Handlers) ListMailboxes(w http.ResponseWriter, r *http.Request) {
	started := h.clock()
	account := chi.URLParam(r, "account")
	mailboxes, err := h.svc.ListMailboxes(r.Context(), account)
	h.record("list_mailboxes", started, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"mailboxes": mailboxes})
}

func (h *Handlers) SearchMessages(w http.ResponseWriter, r *http.Request) {
	started := h.clock()
	q := bridge.SearchQuery{
		Account:         r.URL.Query().Get("account"),
		Mailbox:         r.URL.Query().Get("mailbox"),
		SenderContains:  r.URL.Query().Get("sender"),
		SubjectContains: r.URL.Query().Get("subject"),
	}
	if v := r.URL.Query().Get("read"); v != "" {
		read, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, &mailapp.ValidationError{Reason: "read must be true or false"})
			return
		}
		q.ReadStatus = &read
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(w, &mailapp.ValidationError{Reason: "limit must be an integer"})
			return
		}
		q.Limit = limit
	}

	messages, err := h.svc.SearchMessages(r.Context(), q)
	h.record("search_messages", started, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *Handlers) GetMessage(w http.ResponseWriter, r *http.Request) {
	started := h.clock()
	id := chi.URLParam(r, "id")
	includeContent := r.URL.Query().Get("content") != "false"

	msg, err := h.svc.GetMessage(r.Context(), id, includeContent)
	h.record("get_message", started, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, msg)
}

type sendRequest struct {
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	To          []string `json:"to"`
	CC          []string `json:"cc"`
	BCC         []string `json:"bcc"`
	Attachments []string `json:"attachments"`
}

func (h *Handlers) Send(w http.ResponseWriter, r *http.Request) {
	started := h.clock()
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &mailapp.ValidationError{Reason: "invalid request body"})
		return
	}
	m := bridge.OutgoingMessage{Subject: req.Subject, Body: req.Body, To: req.To, CC: req.CC, BCC: req.BCC}

	var err error
	op := "send_email"
	if len(req.Attachments) > 0 {
		op = "send_email_with_attachments"
		err = h.svc.SendEmailWithAttachments(r.Context(), m, req.Attachments)
	} else {
		err = h.svc.SendEmail(r.Context(), m)
	}
	h.record(op, started, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

func (h *Handlers) CreateDraft(w http.ResponseWriter, r *http.Request) {
	started := h.clock()
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &mailapp.ValidationError{Reason: "invalid request body"})
		return
	}
	id, err := h.svc.CreateDraft(r.Context(), bridge.OutgoingMessage{
		Subject: req.Subject, Body: req.Body, To: req.To, CC: req.CC, BCC: req.BCC,
	})
	h.record("create_draft", started, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"draft_id": id})
}

func (h *Handlers) GetAttachments(w http.ResponseWriter, r *http.Request) {
	started := h.clock()
	attachments, err := h.svc.GetAttachments(r.Context(), chi.URLParam(r, "id"))
	h.record("get_attachments", started, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"attachments": attachments})
}

type saveAttachmentsRequest struct {
	Directory string `json:"directory"`
	Indices   []int  `json:"indices"`
}

func (h *Handlers) SaveAttachments(w http.ResponseWriter, r *http.Request) {
	started := h.clock()
	var req saveAttachmentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &mailapp.ValidationError{Reason: "invalid request body"})
		return
	}
	saved, err := h.svc.SaveAttachments(r.Context(), chi.URLParam(r, "id"), req.Directory, req.Indices)
	h.record("save_attachments", started, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"saved": saved})
}

type bulkRequest struct {
	IDs         []string `json:"ids"`
	Read        bool     `json:"read"`
	Color       string   `json:"color"`
	Account     string   `json:"account"`
	Destination string   `json:"destination"`
	GmailMode   bool     `json:"gmail_mode"`
	Force       bool     `json:"force"`
}

func (h *Handlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	started := h.clock()
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &mailapp.ValidationError{Reason: "invalid request body"})
		return
	}
	res, err := h.svc.MarkAsRead(r.Context(), req.IDs, req.Read)
	h.record("mark_as_read", started, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeBulk(w, res)
}

func (h *Handlers) Flag(w http.ResponseWriter, r *http.Request) {
	started := h.clock()
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &mailapp.ValidationError{Reason: "invalid request body"})
		return
	}
	res, err := h.svc.FlagMessages(r.Context(), req.IDs, mailapp.FlagColor(req.Color))
	h.record("flag_message", started, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeBulk(w, res)
}

func (h *Handlers) Move(w http.ResponseWriter, r *http.Request) {
	started := h.clock()
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &mailapp.ValidationError{Reason: "invalid request body"})
		return
	}
	res, err := h.svc.MoveMessages(r.Context(), req.IDs, req.Account, req.Destination,
		bridge.MoveOptions{GmailMode: req.GmailMode, Force: req.Force})
	h.record("move_messages", started, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeBulk(w, res)
}

func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	started := h.clock()
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &mailapp.ValidationError{Reason: "invalid request body"})
		return
	}
	res, err := h.svc.DeleteMessages(r.Context(), req.IDs, bridge.DeleteOptions{Force: req.Force})
	h.record("delete_messages", started, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeBulk(w, res)
}

func (h *Handlers) writeBulk(w http.ResponseWriter, res mailapp.BulkResult) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"count":     res.Count(),
		"succeeded": res.Succeeded,
		"skipped":   res.Skipped,
	})
}

type replyRequest struct {
	Body     string   `json:"body"`
	ReplyAll bool     `json:"reply_all"`
	To       []string `json:"to"`
}

func (h *Handlers) Reply(w http.ResponseWriter, r *http.Request) {
	started := h.clock()
	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &mailapp.ValidationError{Reason: "invalid request body"})
		return
	}
	id, err := h.svc.ReplyToMessage(r.Context(), chi.URLParam(r, "id"), req.Body,
		bridge.ReplyOptions{ReplyAll: req.ReplyAll, To: req.To})
	h.record("reply_to_message", started, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message_id": id})
}

type forwardRequest struct {
	Body string   `json:"body"`
	To   []string `json:"to"`
	CC   []string `json:"cc"`
	BCC  []string `json:"bcc"`
}

func (h *Handlers) Forward(w http.ResponseWriter, r *http.Request) {
	started := h.clock()
	var req forwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &mailapp.ValidationError{Reason: "invalid request body"})
		return
	}
	id, err := h.svc.ForwardMessage(r.Context(), chi.URLParam(r, "id"), req.Body, req.To, req.CC, req.BCC)
	h.record("forward_message", started, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message_id": id})
}

type createMailboxRequest struct {
	Account string `json:"account"`
	Name    string `json:"name"`
	Parent  string `json:"parent"`
}

func (h *Handlers) CreateMailbox(w http.ResponseWriter, r *http.Request) {
	started := h.clock()
	var req createMailboxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &mailapp.ValidationError{Reason: "invalid request body"})
		return
	}
	err := h.svc.CreateMailbox(r.Context(), req.Account, req.Name, req.Parent)
	h.record("create_mailbox", started, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"created": true})
}

func (h *Handlers) Audit(w http.ResponseWriter, r *http.Request) {
	if h.aud == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"entries": []audit.Entry{}})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	entries, err := h.aud.Recent(limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
