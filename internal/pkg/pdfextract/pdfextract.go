package pdfextract

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// ExtractText reads all of r and returns the PDF's plain text. PDFs with no
// extractable text yield an empty string; whether that is acceptable is the
// caller's decision.
func ExtractText(r io.Reader) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read pdf input: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("empty pdf input")
	}

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	text, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	return string(text), nil
}
