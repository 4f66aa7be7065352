package bridge

import (
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"github.com/felo/mailbridge/internal/mailapp"
)

// blockedExtensions are execute-oriented attachment types rejected
// regardless of size.
var blockedExtensions = map[string]bool{
	".exe": true,
	".bat": true,
	".cmd": true,
	".com": true,
	".scr": true,
	".pif": true,
	".vbs": true,
	".jar": true,
	".sh":  true,
	".app": true,
	".msi": true,
	".ps1": true,
}

// validateMessageID requires a non-empty decimal token. Mail assigns
// numeric message ids, and the generated scripts embed them unquoted in id
// lists and whose-clauses, so anything else is rejected before a script is
// built.
func validateMessageID(id string) error {
	if id == "" {
		return &mailapp.ValidationError{Reason: "message id required"}
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return &mailapp.ValidationError{Reason: fmt.Sprintf("invalid message id: %q", id)}
		}
	}
	return nil
}

// validateAddresses checks every address in every list with RFC 5322
// parsing.
func validateAddresses(lists ...[]string) error {
	for _, list := range lists {
		for _, addr := range list {
			if !ValidEmail(addr) {
				return &mailapp.ValidationError{Reason: fmt.Sprintf("invalid email address: %q", addr)}
			}
		}
	}
	return nil
}

// ValidEmail reports whether addr parses as a single RFC 5322 address.
func ValidEmail(addr string) bool {
	if strings.TrimSpace(addr) == "" {
		return false
	}
	parsed, err := mail.ParseAddress(addr)
	return err == nil && parsed.Address != ""
}

// ValidAttachmentType reports whether the filename's extension is allowed
// for outgoing attachments.
func ValidAttachmentType(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return !blockedExtensions[ext]
}

// validateAttachmentFiles checks each path and returns the absolute paths
// to embed in the script. All validation happens before any process runs.
func validateAttachmentFiles(paths []string, maxSize int64) ([]string, error) {
	if len(paths) == 0 {
		return nil, &mailapp.ValidationError{Reason: "at least one attachment required"}
	}

	abs := make([]string, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, &mailapp.FileNotFoundError{Path: p}
			}
			return nil, fmt.Errorf("stat attachment %s: %w", p, err)
		}
		if !info.Mode().IsRegular() {
			return nil, &mailapp.ValidationError{Reason: fmt.Sprintf("attachment is not a file: %s", p)}
		}
		if info.Size() > maxSize {
			return nil, &mailapp.ValidationError{
				Reason: fmt.Sprintf("attachment %s exceeds size limit (%d bytes > %d bytes)", filepath.Base(p), info.Size(), maxSize),
			}
		}
		if !ValidAttachmentType(p) {
			return nil, &mailapp.ValidationError{Reason: fmt.Sprintf("attachment type not allowed: %s", filepath.Base(p))}
		}

		a, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve attachment %s: %w", p, err)
		}
		abs = append(abs, a)
	}
	return abs, nil
}

// validateSaveDirectory rejects parent-traversal segments and missing or
// non-directory targets, returning the resolved absolute path.
func validateSaveDirectory(dir string) (string, error) {
	if dir == "" {
		return "", &mailapp.ValidationError{Reason: "save directory required"}
	}
	for _, seg := range strings.Split(filepath.ToSlash(dir), "/") {
		if seg == ".." {
			return "", &mailapp.ValidationError{Reason: "path traversal detected in save directory"}
		}
	}

	resolved, err := filepath.Abs(dir)
	if err != nil {
		return "", &mailapp.ValidationError{Reason: fmt.Sprintf("invalid save directory: %v", err)}
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &mailapp.FileNotFoundError{Path: dir}
		}
		return "", fmt.Errorf("stat save directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return "", &mailapp.ValidationError{Reason: fmt.Sprintf("save path is not a directory: %s", dir)}
	}
	return resolved, nil
}
