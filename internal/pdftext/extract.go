// Package pdftext extracts and screens the text of uploaded medical reports.
package pdftext

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	ErrUnreadable   = errors.New("error extracting text from PDF")
	ErrTooManyPages = errors.New("PDF exceeds maximum page limit")
	ErrNoText       = errors.New("could not extract text from PDF, please ensure it's not a scanned document")
	ErrNotMedical   = errors.New("uploaded file does not appear to be a medical report")
)

var medicalKeywords = []string{
	"patient", "report", "laboratory", "lab", "test", "result", "reference range",
	"blood", "hemoglobin", "haemoglobin", "glucose", "cholesterol", "creatinine",
	"diagnosis", "specimen", "serum", "plasma", "urine", "mg/dl", "mmol/l",
	"platelet", "wbc", "rbc", "hba1c", "bilirubin", "thyroid", "physician", "clinical",
}

type Extractor struct {
	maxPages int
	minChars int
}

func NewExtractor(maxPages, minChars int) *Extractor {
	return &Extractor{maxPages: maxPages, minChars: minChars}
}

// Extract returns the text of every page of the document in r. It fails when
// the page count exceeds the ceiling, when any page yields no text, or when
// the text does not look like a medical report.
func (e *Extractor) Extract(r io.ReaderAt, size int64) (text string, err error) {
	// The parser panics on some malformed documents.
	defer func() {
		if rec := recover(); rec != nil {
			slog.Warn("PDF parser panicked", "panic", rec)
			text, err = "", fmt.Errorf("%w: %v", ErrUnreadable, rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	pages := reader.NumPage()
	if pages > e.maxPages {
		return "", fmt.Errorf("%w of %d", ErrTooManyPages, e.maxPages)
	}

	var b strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			return "", ErrNoText
		}
		fonts := make(map[string]*pdf.Font)
		for _, name := range page.Fonts() {
			f := page.Font(name)
			fonts[name] = &f
		}
		extracted, err := page.GetPlainText(fonts)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %v", ErrUnreadable, i, err)
		}
		if strings.TrimSpace(extracted) == "" {
			return "", ErrNoText
		}
		b.WriteString(extracted)
		b.WriteString("\n")
	}

	text = b.String()
	if err := e.Validate(text); err != nil {
		return "", err
	}
	slog.Debug("PDF text extracted", "pages", pages, "chars", len(text))
	return text, nil
}

// Validate checks that text is long enough and mentions medical terms.
func (e *Extractor) Validate(text string) error {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < e.minChars {
		return ErrNotMedical
	}
	lower := strings.ToLower(trimmed)
	for _, kw := range medicalKeywords {
		if strings.Contains(lower, kw) {
			return nil
		}
	}
	return ErrNotMedical
}
