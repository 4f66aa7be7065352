package handlers

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	netmail "net/mail"
	"strconv"

	"github.com/emersion/go-message/mail"
	"github.com/go-chi/chi/v5"

	"github.com/felo/mailbridge/internal/mailapp"
	"github.com/felo/mailbridge/internal/script"
)

// ExportEML fetches a message and serves it as an RFC 822 file. The host
// reports dates as display strings, so the original date travels in an
// extension header rather than a Date field.
func (h *Handlers) ExportEML(w http.ResponseWriter, r *http.Request) {
	started := h.clock()
	id := chi.URLParam(r, "id")

	msg, err := h.svc.GetMessage(r.Context(), id, true)
	h.record("export_eml", started, err)
	if err != nil {
		h.writeError(w, err)
		return
	}

	data, err := encodeEML(msg)
	if err != nil {
		h.writeError(w, &mailapp.ScriptError{Detail: "failed to encode message", Err: err})
		return
	}

	filename := script.SanitizeFilename(fmt.Sprintf("message-%s.eml", msg.ID))
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Type", "message/rfc822")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Write(data)
}

// encodeEML renders a fetched message as an .eml byte stream.
func encodeEML(msg *mailapp.Message) ([]byte, error) {
	var header mail.Header
	header.SetSubject(msg.Subject)
	header.SetAddressList("From", []*mail.Address{parseSender(msg.Sender)})
	header.Set("X-Mail-Message-Id", msg.ID)
	if msg.DateReceived != "" {
		header.Set("X-Date-Received", msg.DateReceived)
	}

	var buf bytes.Buffer
	body, err := mail.CreateSingleInlineWriter(&buf, header)
	if err != nil {
		return nil, fmt.Errorf("create eml writer: %w", err)
	}
	if _, err := io.WriteString(body, msg.Content); err != nil {
		body.Close()
		return nil, fmt.Errorf("write eml body: %w", err)
	}
	if err := body.Close(); err != nil {
		return nil, fmt.Errorf("close eml body: %w", err)
	}
	return buf.Bytes(), nil
}

// parseSender splits the host's "Name <addr>" sender text. Unparseable
// senders keep the raw text as a display name.
func parseSender(sender string) *mail.Address {
	parsed, err := netmail.ParseAddress(sender)
	if err != nil {
		return &mail.Address{Name: sender}
	}
	return &mail.Address{Name: parsed.Name, Address: parsed.Address}
}
