package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// ErrNoTextContent is returned when a PDF parses but carries no text layer
// (typically a scanned image)
var ErrNoTextContent = errors.New("no text content in PDF")

// ExtractionError is returned when a payload cannot be turned into text
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("text extraction failed: %s: %v", e.Reason, e.Err)
	}
	return "text extraction failed: " + e.Reason
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extractor pulls the text layer out of PDF documents
type Extractor struct {
	maxPages int
}

// NewExtractor creates a PDF text extractor. maxPages <= 0 means all pages.
func NewExtractor(maxPages int) *Extractor {
	return &Extractor{maxPages: maxPages}
}

// ExtractText returns the document text and the time it took in seconds.
// Text items of a page are joined by a single space, pages by a single space.
func (e *Extractor) ExtractText(data []byte) (text string, duration float64, err error) {
	start := time.Now()

	// ledongthuc/pdf panics on some malformed content streams
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &ExtractionError{Reason: "malformed PDF", Err: fmt.Errorf("%v", r)}
		}
		duration = time.Since(start).Seconds()
	}()

	if len(data) == 0 {
		return "", 0, &ExtractionError{Reason: "empty payload"}
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, &ExtractionError{Reason: "not a readable PDF", Err: err}
	}

	pages := reader.NumPage()
	if e.maxPages > 0 && e.maxPages < pages {
		pages = e.maxPages
	}

	texts := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		pageText, err := extractPage(reader, i)
		if err != nil {
			return "", 0, &ExtractionError{Reason: fmt.Sprintf("page %d", i), Err: err}
		}
		if pageText != "" {
			texts = append(texts, pageText)
		}
	}

	text = strings.Join(texts, " ")
	if strings.TrimSpace(text) == "" {
		return "", 0, &ExtractionError{Reason: "document has no text layer", Err: ErrNoTextContent}
	}
	return text, 0, nil
}

// extractPage joins the text items of one page (1-indexed)
func extractPage(r *pdf.Reader, index int) (string, error) {
	p := r.Page(index)
	if p.V.IsNull() {
		return "", nil
	}

	rows, err := p.GetTextByRow()
	if err != nil {
		return "", err
	}

	var items []string
	for _, row := range rows {
		for _, item := range row.Content {
			if s := strings.TrimSpace(item.S); s != "" {
				items = append(items, s)
			}
		}
	}
	return strings.Join(items, " "), nil
}
