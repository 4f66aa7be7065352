package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felo/mailbridge/internal/bridge"
	"github.com/felo/mailbridge/internal/mailapp"
)

// fakeService replays canned bridge results and records what it was asked.
type fakeService struct {
	accounts    []mailapp.Account
	mailboxes   []mailapp.Mailbox
	messages    []mailapp.Message
	message     *mailapp.Message
	attachments []mailapp.Attachment
	bulk        mailapp.BulkResult
	saved       int
	newID       string
	err         error

	lastQuery   bridge.SearchQuery
	lastMessage bridge.OutgoingMessage
	lastIDs     []string
	lastColor   mailapp.FlagColor
	lastMove    bridge.MoveOptions
}

func (f *fakeService) ListAccounts(context.Context) ([]mailapp.Account, error) {
	return f.accounts, f.err
}

func (f *fakeService) ListMailboxes(_ context.Context, account string) ([]mailapp.Mailbox, error) {
	return f.mailboxes, f.err
}

func (f *fakeService) SearchMessages(_ context.Context, q bridge.SearchQuery) ([]mailapp.Message, error) {
	f.lastQuery = q
	return f.messages, f.err
}

func (f *fakeService) GetMessage(_ context.Context, id string, includeContent bool) (*mailapp.Message, error) {
	return f.message, f.err
}

func (f *fakeService) SendEmail(_ context.Context, m bridge.OutgoingMessage) error {
	f.lastMessage = m
	return f.err
}

func (f *fakeService) SendEmailWithAttachments(_ context.Context, m bridge.OutgoingMessage, paths []string) error {
	f.lastMessage = m
	return f.err
}

func (f *fakeService) CreateDraft(_ context.Context, m bridge.OutgoingMessage) (string, error) {
	f.lastMessage = m
	return f.newID, f.err
}

func (f *fakeService) GetAttachments(context.Context, string) ([]mailapp.Attachment, error) {
	return f.attachments, f.err
}

func (f *fakeService) SaveAttachments(_ context.Context, id, dir string, indices []int) (int, error) {
	return f.saved, f.err
}

func (f *fakeService) MarkAsRead(_ context.Context, ids []string, read bool) (mailapp.BulkResult, error) {
	f.lastIDs = ids
	return f.bulk, f.err
}

func (f *fakeService) FlagMessages(_ context.Context, ids []string, color mailapp.FlagColor) (mailapp.BulkResult, error) {
	f.lastIDs = ids
	f.lastColor = color
	return f.bulk, f.err
}

func (f *fakeService) MoveMessages(_ context.Context, ids []string, account, destination string, opts bridge.MoveOptions) (mailapp.BulkResult, error) {
	f.lastIDs = ids
	f.lastMove = opts
	return f.bulk, f.err
}

func (f *fakeService) DeleteMessages(_ context.Context, ids []string, opts bridge.DeleteOptions) (mailapp.BulkResult, error) {
	f.lastIDs = ids
	return f.bulk, f.err
}

func (f *fakeService) ReplyToMessage(_ context.Context, id, body string, opts bridge.ReplyOptions) (string, error) {
	return f.newID, f.err
}

func (f *fakeService) ForwardMessage(_ context.Context, id, body string, to, cc, bcc []string) (string, error) {
	return f.newID, f.err
}

func (f *fakeService) CreateMailbox(_ context.Context, account, name, parent string) error {
	return f.err
}

func newTestRouter(svc *fakeService) chi.Router {
	h := New(svc, nil, nil)
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func doJSON(t *testing.T, r chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestListAccounts(t *testing.T) {
	svc := &fakeService{accounts: []mailapp.Account{{Name: "Work", PrimaryEmail: "me@corp.example"}}}
	rec := doJSON(t, newTestRouter(svc), http.MethodGet, "/accounts", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decodeBody(t, rec)
	accounts := body["accounts"].([]any)
	require.Len(t, accounts, 1)
	assert.Equal(t, "Work", accounts[0].(map[string]any)["name"])
}

func TestListMailboxes(t *testing.T) {
	svc := &fakeService{mailboxes: []mailapp.Mailbox{{Name: "INBOX", UnreadCount: 2}}}
	rec := doJSON(t, newTestRouter(svc), http.MethodGet, "/accounts/Work/mailboxes", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	mailboxes := body["mailboxes"].([]any)
	require.Len(t, mailboxes, 1)
	assert.Equal(t, float64(2), mailboxes[0].(map[string]any)["unread_count"])
}

func TestSearchMessages_ParsesQuery(t *testing.T) {
	svc := &fakeService{}
	rec := doJSON(t, newTestRouter(svc), http.MethodGet,
		"/messages/search?account=Work&mailbox=Archive&sender=acme&subject=invoice&read=false&limit=5", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Work", svc.lastQuery.Account)
	assert.Equal(t, "Archive", svc.lastQuery.Mailbox)
	assert.Equal(t, "acme", svc.lastQuery.SenderContains)
	assert.Equal(t, "invoice", svc.lastQuery.SubjectContains)
	require.NotNil(t, svc.lastQuery.ReadStatus)
	assert.False(t, *svc.lastQuery.ReadStatus)
	assert.Equal(t, 5, svc.lastQuery.Limit)
}

func TestSearchMessages_BadQueryParams(t *testing.T) {
	r := newTestRouter(&fakeService{})

	rec := doJSON(t, r, http.MethodGet, "/messages/search?account=Work&read=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/messages/search?account=Work&limit=lots", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMessage(t *testing.T) {
	svc := &fakeService{message: &mailapp.Message{ID: "101", Subject: "Invoice"}}
	rec := doJSON(t, newTestRouter(svc), http.MethodGet, "/messages/101", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "101", body["id"])
	assert.Equal(t, "Invoice", body["subject"])
}

func TestSend(t *testing.T) {
	svc := &fakeService{}
	rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/send", map[string]any{
		"subject": "Hi",
		"body":    "Body",
		"to":      []string{"a@example.com"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hi", svc.lastMessage.Subject)
	assert.Equal(t, []string{"a@example.com"}, svc.lastMessage.To)
	assert.Equal(t, true, decodeBody(t, rec)["sent"])
}

func TestSend_InvalidBody(t *testing.T) {
	r := newTestRouter(&fakeService{})
	req := httptest.NewRequest(http.MethodPost, "/send", bytes.NewBufferString("not json"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateDraft(t *testing.T) {
	svc := &fakeService{newID: "draft_42"}
	rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/drafts", map[string]any{
		"to": []string{"a@example.com"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "draft_42", decodeBody(t, rec)["draft_id"])
}

func TestMarkRead_WritesBulkResult(t *testing.T) {
	svc := &fakeService{bulk: mailapp.BulkResult{Succeeded: []string{"11"}, Skipped: []string{"22"}}}
	rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/messages/read", map[string]any{
		"ids":  []string{"11", "22"},
		"read": true,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, []any{"11"}, body["succeeded"])
	assert.Equal(t, []any{"22"}, body["skipped"])
	assert.Equal(t, []string{"11", "22"}, svc.lastIDs)
}

func TestFlag_PassesColor(t *testing.T) {
	svc := &fakeService{}
	rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/messages/flag", map[string]any{
		"ids":   []string{"11"},
		"color": "blue",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mailapp.FlagBlue, svc.lastColor)
}

func TestMove_PassesOptions(t *testing.T) {
	svc := &fakeService{}
	rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/messages/move", map[string]any{
		"ids":         []string{"11"},
		"account":     "Gmail",
		"destination": "Archive",
		"gmail_mode":  true,
		"force":       true,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.lastMove.GmailMode)
	assert.True(t, svc.lastMove.Force)
}

func TestReply(t *testing.T) {
	svc := &fakeService{newID: "505"}
	rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/messages/101/reply", map[string]any{
		"body":      "Thanks!",
		"reply_all": true,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "505", decodeBody(t, rec)["message_id"])
}

func TestForward(t *testing.T) {
	svc := &fakeService{newID: "606"}
	rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/messages/101/forward", map[string]any{
		"to": []string{"a@example.com"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "606", decodeBody(t, rec)["message_id"])
}

func TestCreateMailbox(t *testing.T) {
	svc := &fakeService{}
	rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/mailboxes", map[string]any{
		"account": "Work",
		"name":    "Receipts",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["created"])
}

func TestSaveAttachments(t *testing.T) {
	svc := &fakeService{saved: 2}
	rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/messages/101/attachments/save", map[string]any{
		"directory": "/tmp/saves",
		"indices":   []int{0, 2},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeBody(t, rec)["saved"])
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"account not found", &mailapp.AccountNotFoundError{Detail: "raw"}, http.StatusNotFound},
		{"mailbox not found", &mailapp.MailboxNotFoundError{Detail: "raw"}, http.StatusNotFound},
		{"message not found", &mailapp.MessageNotFoundError{Detail: "raw"}, http.StatusNotFound},
		{"file not found", &mailapp.FileNotFoundError{Path: "/x"}, http.StatusNotFound},
		{"validation", &mailapp.ValidationError{Reason: "bad"}, http.StatusBadRequest},
		{"timeout", &mailapp.TimeoutError{}, http.StatusGatewayTimeout},
		{"script failure", &mailapp.ScriptError{Detail: "raw"}, http.StatusBadGateway},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, newTestRouter(&fakeService{err: tc.err}), http.MethodGet, "/accounts", nil)
			assert.Equal(t, tc.want, rec.Code)
			assert.Contains(t, decodeBody(t, rec)["error"], tc.err.Error())
		})
	}
}

func TestAudit_DisabledReturnsEmptyList(t *testing.T) {
	rec := doJSON(t, newTestRouter(&fakeService{}), http.MethodGet, "/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody(t, rec)["entries"])
}
