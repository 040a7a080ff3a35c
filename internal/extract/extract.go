package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeZip  = "application/zip"

	// UnsupportedText is the placeholder returned for unknown content types.
	UnsupportedText = "Unsupported file type"
)

// Result is the outcome of a successful extraction. Unsupported is set when
// the content type is not handled; Text then holds UnsupportedText.
type Result struct {
	Text        string
	Unsupported bool
}

// DocumentParseError reports a recognized document whose body could not be parsed.
type DocumentParseError struct {
	MimeType string
	Err      error
}

func (e *DocumentParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.MimeType, e.Err)
}

func (e *DocumentParseError) Unwrap() error { return e.Err }

// Extract dispatches on the declared MIME type. Word text is paragraphs joined
// by newlines; PDF text is each page's text concatenated in page order.
func Extract(ctx context.Context, data []byte, mimeType string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	normalized := NormalizeMimeType(mimeType, data)
	switch normalized {
	case MimeDOCX:
		text, err := extractDOCX(data)
		if err != nil {
			return Result{}, &DocumentParseError{MimeType: normalized, Err: err}
		}
		return Result{Text: text}, nil
	case MimePDF:
		text, err := extractPDF(data)
		if err != nil {
			return Result{}, &DocumentParseError{MimeType: normalized, Err: err}
		}
		return Result{Text: text}, nil
	default:
		return Result{Text: UnsupportedText, Unsupported: true}, nil
	}
}

// NormalizeMimeType lowercases and strips parameters. A zip archive that
// carries word/document.xml is treated as a Word document.
func NormalizeMimeType(mimeType string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	if clean == mimeZip && isWordPackage(data) {
		return MimeDOCX
	}
	return clean
}

func isWordPackage(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	return findEntry(zr, "word/document.xml") != nil
}

func findEntry(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == name {
			return f
		}
	}
	return nil
}

func extractPDF(data []byte) (text string, err error) {
	// The pdf package panics on some malformed object graphs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		buf.WriteString(pageText)
	}
	return buf.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty docx data")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	docFile := findEntry(zr, "word/document.xml")
	if docFile == nil {
		return "", errors.New("word/document.xml not found")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	paragraphs, err := readParagraphs(rc)
	if err != nil {
		return "", err
	}
	return strings.Join(paragraphs, "\n"), nil
}
