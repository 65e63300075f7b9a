// Package extract pulls plain text out of uploaded files.
package extract

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"ai-chatbot-be/pkg/errs"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

const (
	MimePDF  = "application/pdf"
	MimeText = "text/plain"
)

// Result is the raw text of a document and the detected media type.
type Result struct {
	Text     string
	MimeType string
}

// Extract detects the format of data and returns its text.
// Only PDF and UTF-8 text formats are supported.
func Extract(filename string, data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, errs.ErrEmptyDocument
	}

	mtype := mimetype.Detect(data)
	switch {
	case mtype.Is(MimePDF):
		text, err := pdfText(data)
		if err != nil {
			return nil, err
		}
		return finish(text, MimePDF)
	case isText(mtype, filename):
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("%w: text is not utf-8", errs.ErrUnsupportedFormat)
		}
		return finish(string(data), baseMime(mtype))
	default:
		return nil, fmt.Errorf("%w: %s", errs.ErrUnsupportedFormat, mtype.String())
	}
}

func finish(text, mime string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errs.ErrEmptyDocument
	}
	return &Result{Text: text, MimeType: mime}, nil
}

// isText accepts every text/* type; markdown and similar files are sniffed
// as text/plain so the extension is only a fallback for odd detections.
func isText(mtype *mimetype.MIME, filename string) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "text/") {
			return true
		}
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".markdown", ".csv":
		return mtype.Is("application/octet-stream")
	}
	return false
}

func baseMime(mtype *mimetype.MIME) string {
	s := mtype.String()
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	if !strings.HasPrefix(s, "text/") {
		return MimeText
	}
	return s
}

// pdfText reads every page's plain text. The pdf reader panics on some
// malformed inputs, which are reported as unsupported.
func pdfText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: malformed pdf: %v", errs.ErrUnsupportedFormat, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %v", errs.ErrUnsupportedFormat, err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: read pdf text: %v", errs.ErrUnsupportedFormat, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}
