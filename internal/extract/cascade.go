package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cunning-folk/Document-Processor/pkg/logger_i"
	"github.com/lu4p/cat"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Result is a successful extraction.
type Result struct {
	Text      string `json:"text"`
	PageCount int    `json:"page_count"`
	Method    string `json:"method"`
}

// Strategy is one extraction attempt over a raw buffer. The cascade iterates
// an ordered list and stops at the first success.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, buf []byte) (Result, error)
}

type Extractor struct {
	normalizers []Normalizer
	strategies  []Strategy
	logger      *logger_i.Logger
}

func NewExtractor() *Extractor {
	return &Extractor{
		normalizers: defaultNormalizers(),
		strategies:  []Strategy{newTextStrategy(), newOCRStrategy()},
		logger:      logger_i.NewLogger("Extractor"),
	}
}

// Extract recovers plain text from an uploaded document buffer.
func (e *Extractor) Extract(ctx context.Context, buf []byte, filename string) (Result, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt", ".md", ".markdown":
		return Result{Text: string(buf), PageCount: 1, Method: "text-passthrough"}, nil
	case ".docx", ".odt", ".rtf":
		return e.extractOffice(buf, ext)
	case ".pdf":
		return e.extractPDF(ctx, buf)
	default:
		return Result{}, NewError(KindUnprocessable,
			fmt.Sprintf("Unsupported file type %q. Upload a PDF, TXT or MD file.", ext), nil)
	}
}

// extractPDF runs the cascade: encryption pre-check, structural
// normalization, text-layer extraction, then bounded OCR.
func (e *Extractor) extractPDF(ctx context.Context, buf []byte) (Result, error) {
	if msg, found := detectEncryption(buf); found {
		e.logger.Info("Encryption marker found before extraction")
		return Result{}, NewError(KindEncrypted, msg, nil)
	}
	if !hasPDFMagic(buf) {
		return Result{}, NewError(KindStructurallyCorrupt, msgStructurallyCorrupt, nil)
	}

	working, normalized := e.normalize(ctx, buf)

	var lastErr error
	for _, strategy := range e.strategies {
		result, err := strategy.Attempt(ctx, working)
		if err == nil {
			if normalized && result.Method == "text-extraction" {
				result.Method = "normalized-text-extraction"
			}
			if result.PageCount == 0 {
				result.PageCount = pageCount(working)
			}
			e.logger.Info("Extraction succeeded", "method", result.Method, "pages", result.PageCount, "chars", len(result.Text))
			return result, nil
		}

		//encryption detected mid-cascade short-circuits: OCR cannot help
		if IsKind(err, KindEncrypted) {
			return Result{}, err
		}
		e.logger.Debug("Strategy failed", "strategy", strategy.Name(), "error", err)
		lastErr = err
	}

	if lastErr == nil {
		return Result{}, NewError(KindUnprocessable, msgUnprocessable, nil)
	}
	return Result{}, classify(lastErr)
}

// normalize runs the repair chain. The first normalizer producing non-empty
// output wins; total failure falls back to the original buffer.
func (e *Extractor) normalize(ctx context.Context, buf []byte) ([]byte, bool) {
	for _, normalizer := range e.normalizers {
		output, err := normalizer.Normalize(ctx, buf)
		if err != nil {
			e.logger.Debug("Normalizer failed", "normalizer", normalizer.Name(), "error", err)
			continue
		}
		e.logger.Debug("Normalizer succeeded", "normalizer", normalizer.Name(), "bytes", len(output))
		return output, true
	}
	return buf, false
}

func (e *Extractor) extractOffice(buf []byte, ext string) (Result, error) {
	//cat wants a path on disk
	tmpFile, err := os.CreateTemp("", "office-*"+ext)
	if err != nil {
		return Result{}, NewError(KindUnprocessable, msgUnprocessable, err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(buf); err != nil {
		tmpFile.Close()
		return Result{}, NewError(KindUnprocessable, msgUnprocessable, err)
	}
	tmpFile.Close()

	text, err := cat.File(tmpFile.Name())
	if err != nil {
		return Result{}, classify(fmt.Errorf("failed to extract %s: %w", ext, err))
	}
	return Result{Text: text, PageCount: 1, Method: "office-extraction"}, nil
}

// pageCount reads the page count via pdfcpu. Best effort: 0 on failure.
func pageCount(buf []byte) int {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(buf), conf)
	if err != nil {
		return 0
	}
	return pdfCtx.PageCount
}
