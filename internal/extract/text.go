package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cunning-folk/Document-Processor/internal/config"
	"github.com/cunning-folk/Document-Processor/pkg/logger_i"
	"github.com/dslipak/pdf"
)

// textStrategy reads the PDF's text layer directly.
type textStrategy struct {
	minChars int
	logger   *logger_i.Logger
}

func newTextStrategy() *textStrategy {
	return &textStrategy{
		minChars: config.MinExtractedChars,
		logger:   logger_i.NewLogger("TextExtraction"),
	}
}

func (s *textStrategy) Name() string {
	return "text-extraction"
}

func (s *textStrategy) Attempt(ctx context.Context, buf []byte) (Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return Result{}, fmt.Errorf("failed to open pdf: %w", err)
	}

	numPages := reader.NumPage()
	s.logger.Debug("Text layer extraction", "pages", numPages)

	var pages []string
	for i := 1; i <= numPages; i++ {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		content, err := protectExtract(page)
		if err != nil {
			// Log warning but continue with other pages
			s.logger.Warn("Error parsing page content", "page", i, "error", err)
			continue
		}
		if strings.TrimSpace(content) != "" {
			pages = append(pages, content)
		}
	}

	text := strings.Join(pages, "\n")

	//a text layer that still carries markers was read off ciphertext
	if msg, found := containsEncryptionMarker(text); found {
		return Result{}, NewError(KindEncrypted, msg, nil)
	}
	if len(strings.TrimSpace(text)) < s.minChars {
		return Result{}, fmt.Errorf("insufficient text content: %d chars", len(text))
	}

	return Result{Text: text, PageCount: numPages, Method: s.Name()}, nil
}

// protectExtract guards GetPlainText, which can hang on pathological pages.
func protectExtract(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(config.PageExtractTimeout):
		return "", errors.New("page extraction timeout")
	}
}
