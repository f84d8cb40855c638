package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode"

	"lab-dashboard/internal/logger"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// MaxPDFBytes caps in-memory extraction
const MaxPDFBytes = 200 << 20

var ErrNoText = errors.New("no text could be extracted")

// PDFExtractor pulls plain text out of PDF bytes
type PDFExtractor struct {
	// UsePoppler enables pdftotext when the binary is on PATH
	UsePoppler bool
}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{UsePoppler: true}
}

// ExtractionResult contains the result of PDF text extraction
type ExtractionResult struct {
	Text           string
	Pages          int
	Method         string
	QualityScore   float64
	ProcessingTime time.Duration
}

// ExtractText validates the PDF, then tries each extraction method until one
// yields text of acceptable quality
func (e *PDFExtractor) ExtractText(ctx context.Context, content []byte) (*ExtractionResult, error) {
	start := time.Now()

	if len(content) == 0 {
		return nil, fmt.Errorf("empty PDF")
	}
	if len(content) > MaxPDFBytes {
		return nil, fmt.Errorf("pdf too large for in-memory extraction")
	}

	pages, err := pageCount(content)
	if err != nil {
		// pdfcpu is strict; ledongthuc still reads many files it rejects
		logger.Warn("PDF validation failed", "error", err)
	}

	methods := []struct {
		name    string
		extract func(context.Context, []byte) (string, error)
	}{
		{"poppler", e.extractWithPoppler},
		{"go-pdf", extractWithGoPDF},
	}

	var lastErr error
	var best *ExtractionResult

	for _, method := range methods {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := method.extract(ctx, content)
		if err != nil {
			logger.Debug("PDF extraction method failed", "method", method.name, "error", err)
			lastErr = err
			continue
		}

		result := &ExtractionResult{
			Text:           text,
			Pages:          pages,
			Method:         method.name,
			QualityScore:   evaluateTextQuality(text),
			ProcessingTime: time.Since(start),
		}
		logger.Debug("PDF extraction attempt",
			"method", method.name,
			"chars", len([]rune(text)),
			"quality", result.QualityScore)

		if result.QualityScore >= 0.7 {
			return result, nil
		}
		if best == nil || result.QualityScore > best.QualityScore {
			best = result
		}
	}

	if best != nil && best.QualityScore >= 0.3 {
		return best, nil
	}
	if lastErr == nil {
		lastErr = ErrNoText
	}
	return nil, fmt.Errorf("all extraction methods failed: %w", lastErr)
}

func pageCount(content []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(bytes.NewReader(content), conf)
}

// extractWithPoppler uses poppler-utils (pdftotext) for extraction
func (e *PDFExtractor) extractWithPoppler(ctx context.Context, content []byte) (string, error) {
	if !e.UsePoppler {
		return "", fmt.Errorf("pdftotext disabled")
	}
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return "", fmt.Errorf("pdftotext not available")
	}

	extractCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(extractCtx, "pdftotext", "-enc", "UTF-8", "-", "-")
	cmd.Stdin = bytes.NewReader(content)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext failed: %v, stderr: %s", err, stderr.String())
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// extractWithGoPDF uses the Go PDF library for extraction
func extractWithGoPDF(_ context.Context, content []byte) (text string, err error) {
	// the library panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("go-pdf panicked: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to create PDF reader: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(make(map[string]*pdf.Font))
		if err != nil {
			logger.Debug("Failed to extract text from page", "page", i, "error", err)
			continue
		}
		b.WriteString(pageText)
		b.WriteString("\n")
	}

	text = strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// evaluateTextQuality scores extracted text between 0 and 1 by the share of
// readable characters; CJK text counts as readable
func evaluateTextQuality(text string) float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	if len([]rune(text)) < 10 {
		return 0.1
	}

	var readable, corrupted, total int
	for _, r := range text {
		total++
		switch {
		case r == unicode.ReplacementChar:
			corrupted++
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			readable++
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			// neutral
		case unicode.IsControl(r) || unicode.Is(unicode.Co, r):
			corrupted++
		}
	}

	score := float64(readable)/float64(total) - 2*float64(corrupted)/float64(total)
	if total > 100 {
		score += 0.1
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}
