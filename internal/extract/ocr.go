package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cunning-folk/Document-Processor/internal/config"
	"github.com/cunning-folk/Document-Processor/pkg/logger_i"
)

var (
	engineInstance *OCREngine
	engineMu       sync.Mutex
)

// OCREngine wraps the tesseract binary. It is a lazily-initialized singleton
// reused across calls; Shutdown releases its scratch space on process exit.
type OCREngine struct {
	binPath string
	workDir string
	logger  *logger_i.Logger
}

func GetOCREngine() (*OCREngine, error) {
	engineMu.Lock()
	defer engineMu.Unlock()

	if engineInstance != nil {
		return engineInstance, nil
	}

	binPath, err := exec.LookPath("tesseract")
	if err != nil {
		return nil, fmt.Errorf("tesseract not available: %w", err)
	}
	workDir, err := os.MkdirTemp("", "ocr-engine-*")
	if err != nil {
		return nil, err
	}

	engineInstance = &OCREngine{
		binPath: binPath,
		workDir: workDir,
		logger:  logger_i.NewLogger("OCREngine"),
	}
	engineInstance.logger.Info("OCR engine initialized", "bin", binPath)
	return engineInstance, nil
}

func (e *OCREngine) Recognize(ctx context.Context, imagePath string) (string, error) {
	execCtx, cancel := context.WithTimeout(ctx, config.ToolExecTimeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, e.binPath, imagePath, "stdout")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("tesseract failed: %w", err)
	}
	return string(output), nil
}

// ShutdownOCREngine tears the singleton down. Wired to the process shutdown
// hook rather than ambient exit events.
func ShutdownOCREngine() {
	engineMu.Lock()
	defer engineMu.Unlock()

	if engineInstance == nil {
		return
	}
	engineInstance.logger.Info("Shutting down OCR engine")
	_ = os.RemoveAll(engineInstance.workDir)
	engineInstance = nil
}

// rasterConverter renders a single PDF page to a PNG.
type rasterConverter struct {
	name string
	bin  string
	//args renders page (1-based) of in into outDir, returning the argv
	args func(in string, page int, outDir string, dpi int) []string
}

func defaultConverters() []rasterConverter {
	return []rasterConverter{
		{
			name: "pdftoppm",
			bin:  "pdftoppm",
			args: func(in string, page int, outDir string, dpi int) []string {
				return []string{
					"-f", strconv.Itoa(page),
					"-l", strconv.Itoa(page),
					"-png",
					"-r", strconv.Itoa(dpi),
					in,
					filepath.Join(outDir, "page"),
				}
			},
		},
		{
			name: "imagemagick",
			bin:  "convert",
			args: func(in string, page int, outDir string, dpi int) []string {
				return []string{
					"-density", strconv.Itoa(dpi),
					fmt.Sprintf("%s[%d]", in, page-1), //zero-based page selector
					filepath.Join(outDir, "page.png"),
				}
			},
		},
	}
}

// ocrStrategy rasterizes a bounded number of pages and recognizes each one.
type ocrStrategy struct {
	converters   []rasterConverter
	maxPages     int
	minPageChars int
	dpi          int
	logger       *logger_i.Logger
}

func newOCRStrategy() *ocrStrategy {
	return &ocrStrategy{
		converters:   defaultConverters(),
		maxPages:     config.MaxOCRPages,
		minPageChars: config.MinOCRPageChars,
		dpi:          config.RasterDPI,
		logger:       logger_i.NewLogger("OCRFallback"),
	}
}

func (s *ocrStrategy) Name() string {
	return "ocr"
}

func (s *ocrStrategy) Attempt(ctx context.Context, buf []byte) (Result, error) {
	engine, err := GetOCREngine()
	if err != nil {
		return Result{}, err
	}

	workDir, err := os.MkdirTemp("", "ocr-*")
	if err != nil {
		return Result{}, err
	}
	defer os.RemoveAll(workDir)

	inPath := filepath.Join(workDir, "in.pdf")
	if err := os.WriteFile(inPath, buf, 0600); err != nil {
		return Result{}, err
	}

	for _, converter := range s.converters {
		if _, err := exec.LookPath(converter.bin); err != nil {
			s.logger.Debug("Converter unavailable", "converter", converter.name)
			continue
		}

		pages, rendered := s.runConverter(ctx, engine, converter, inPath, workDir)
		if len(pages) > 0 {
			return Result{
				Text:      strings.Join(pages, "\n\n"),
				PageCount: rendered,
				Method:    "ocr-" + converter.name,
			}, nil
		}
	}

	return Result{}, NewError(KindUnprocessable,
		"No readable content could be recovered from this document, even with OCR.",
		errors.New("no extractable content"))
}

// runConverter rasterizes page by page until the first failure. A per-page
// failure means no more convertible pages for this converter - the cascade
// falls through to the next one instead of skipping ahead.
func (s *ocrStrategy) runConverter(ctx context.Context, engine *OCREngine, converter rasterConverter, inPath string, workDir string) ([]string, int) {
	var pages []string
	rendered := 0

	for page := 1; page <= s.maxPages; page++ {
		if ctx.Err() != nil {
			break
		}

		pageDir := filepath.Join(workDir, fmt.Sprintf("%s-%d", converter.name, page))
		if err := os.MkdirAll(pageDir, 0750); err != nil {
			break
		}

		execCtx, cancel := context.WithTimeout(ctx, config.ToolExecTimeout)
		cmd := exec.CommandContext(execCtx, converter.bin, converter.args(inPath, page, pageDir, s.dpi)...)
		err := cmd.Run()
		cancel()
		if err != nil {
			s.logger.Debug("Converter stopped", "converter", converter.name, "page", page, "error", err)
			break
		}

		imagePath, found := firstImage(pageDir)
		if !found {
			break
		}
		rendered++

		text, err := engine.Recognize(ctx, imagePath)
		_ = os.RemoveAll(pageDir)
		if err != nil {
			s.logger.Warn("OCR failed on page", "page", page, "error", err)
			continue
		}

		trimmed := strings.TrimSpace(text)
		if len(trimmed) >= s.minPageChars {
			pages = append(pages, trimmed)
		}
	}

	return pages, rendered
}

func firstImage(dir string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".png") {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return "", false
	}
	sort.Strings(names)
	return filepath.Join(dir, names[0]), true
}
