package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/cunning-folk/Document-Processor/pkg/logger_i"
)

type fakeStrategy struct {
	name    string
	calls   int
	attempt func(buf []byte) (Result, error)
}

func (f *fakeStrategy) Name() string {
	return f.name
}

func (f *fakeStrategy) Attempt(ctx context.Context, buf []byte) (Result, error) {
	f.calls++
	return f.attempt(buf)
}

type fakeNormalizer struct {
	name   string
	output []byte
	err    error
}

func (f *fakeNormalizer) Name() string { return f.name }
func (f *fakeNormalizer) Normalize(ctx context.Context, input []byte) ([]byte, error) {
	return f.output, f.err
}

func testExtractor(normalizers []Normalizer, strategies ...Strategy) *Extractor {
	return &Extractor{
		normalizers: normalizers,
		strategies:  strategies,
		logger:      logger_i.NewLogger("test extractor"),
	}
}

func TestExtractPDF_EncryptedFailsBeforeAnyStrategy(t *testing.T) {
	ocr := &fakeStrategy{name: "ocr", attempt: func(buf []byte) (Result, error) {
		return Result{Text: "should never run"}, nil
	}}
	e := testExtractor(nil, ocr)

	buf := []byte("%PDF-1.7\n1 0 obj\n<< /Encrypt 2 0 R >>\nendobj")
	_, err := e.Extract(context.Background(), buf, "locked.pdf")

	if !IsKind(err, KindEncrypted) {
		t.Fatalf("Expected Encrypted error, got %v", err)
	}
	if ocr.calls != 0 {
		t.Errorf("OCR strategy was invoked %d times on an encrypted buffer", ocr.calls)
	}
}

func TestExtractPDF_EncryptedKeepsDetectionMessage(t *testing.T) {
	e := testExtractor(nil)

	buf := []byte("Salted__ciphertextgarbage")
	_, err := e.Extract(context.Background(), buf, "cipher.pdf")

	var extractErr *Error
	if !errors.As(err, &extractErr) {
		t.Fatalf("Expected *Error, got %T", err)
	}
	if extractErr.Message != msgCiphertext {
		t.Errorf("Expected the original detection message, got %q", extractErr.Message)
	}
}

func TestExtractPDF_NoMagicIsStructurallyCorrupt(t *testing.T) {
	e := testExtractor(nil)

	_, err := e.Extract(context.Background(), []byte("this is not a pdf at all"), "broken.pdf")
	if !IsKind(err, KindStructurallyCorrupt) {
		t.Fatalf("Expected StructurallyCorrupt, got %v", err)
	}
}

func TestExtractPDF_CascadeStopsAtFirstSuccess(t *testing.T) {
	first := &fakeStrategy{name: "text-extraction", attempt: func(buf []byte) (Result, error) {
		return Result{}, errors.New("insufficient text content")
	}}
	second := &fakeStrategy{name: "ocr", attempt: func(buf []byte) (Result, error) {
		return Result{Text: "recovered by ocr", PageCount: 3, Method: "ocr-pdftoppm"}, nil
	}}
	e := testExtractor(nil, first, second)

	result, err := e.Extract(context.Background(), []byte("%PDF-1.4 body"), "scan.pdf")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.Method != "ocr-pdftoppm" {
		t.Errorf("Expected ocr method, got %q", result.Method)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Errorf("Expected one call each, got %d and %d", first.calls, second.calls)
	}
}

func TestExtractPDF_MidCascadeEncryptionShortCircuits(t *testing.T) {
	text := &fakeStrategy{name: "text-extraction", attempt: func(buf []byte) (Result, error) {
		return Result{}, NewError(KindEncrypted, msgEncryptedPDF, nil)
	}}
	ocr := &fakeStrategy{name: "ocr", attempt: func(buf []byte) (Result, error) {
		return Result{Text: "nope"}, nil
	}}
	e := testExtractor(nil, text, ocr)

	_, err := e.Extract(context.Background(), []byte("%PDF-1.4 body"), "doc.pdf")
	if !IsKind(err, KindEncrypted) {
		t.Fatalf("Expected Encrypted, got %v", err)
	}
	if ocr.calls != 0 {
		t.Error("OCR ran after encryption was detected by text extraction")
	}
}

func TestExtractPDF_NormalizedMethodTag(t *testing.T) {
	text := &fakeStrategy{name: "text-extraction", attempt: func(buf []byte) (Result, error) {
		return Result{Text: string(buf), PageCount: 1, Method: "text-extraction"}, nil
	}}
	normalizer := &fakeNormalizer{name: "fake-repair", output: []byte("repaired content")}
	e := testExtractor([]Normalizer{normalizer}, text)

	result, err := e.Extract(context.Background(), []byte("%PDF-1.4 body"), "doc.pdf")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.Method != "normalized-text-extraction" {
		t.Errorf("Expected normalized-text-extraction, got %q", result.Method)
	}
	if result.Text != "repaired content" {
		t.Errorf("Strategy should see the normalized buffer, got %q", result.Text)
	}
}

func TestExtractPDF_NormalizationFailureIsNonFatal(t *testing.T) {
	text := &fakeStrategy{name: "text-extraction", attempt: func(buf []byte) (Result, error) {
		return Result{Text: string(buf), PageCount: 1, Method: "text-extraction"}, nil
	}}
	broken := &fakeNormalizer{name: "broken", err: errors.New("tool missing")}
	e := testExtractor([]Normalizer{broken}, text)

	result, err := e.Extract(context.Background(), []byte("%PDF-1.4 original"), "doc.pdf")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.Method != "text-extraction" {
		t.Errorf("Method should not be tagged normalized, got %q", result.Method)
	}
	if result.Text != "%PDF-1.4 original" {
		t.Error("Strategy should see the original buffer when normalization fails")
	}
}

func TestExtract_PlainTextPassthrough(t *testing.T) {
	e := testExtractor(nil)

	result, err := e.Extract(context.Background(), []byte("# heading\n\nbody"), "notes.md")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.Text != "# heading\n\nbody" || result.Method != "text-passthrough" {
		t.Errorf("Unexpected passthrough result: %+v", result)
	}
}

func TestExtract_UnsupportedType(t *testing.T) {
	e := testExtractor(nil)

	_, err := e.Extract(context.Background(), []byte{0x89, 0x50, 0x4e, 0x47}, "image.png")
	if !IsKind(err, KindUnprocessable) {
		t.Fatalf("Expected Unprocessable, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		kind Kind
	}{
		{errors.New("file is encrypted with AES"), KindEncrypted},
		{errors.New("xref table corrupt at offset 42"), KindStructurallyCorrupt},
		{errors.New("malformed object stream"), KindStructurallyCorrupt},
		{errors.New("something odd happened"), KindUnprocessable},
	}

	for _, tt := range tests {
		got := classify(tt.err)
		if got.Kind != tt.kind {
			t.Errorf("classify(%q) = %s; want %s", tt.err, got.Kind, tt.kind)
		}
	}
}

func TestDetectEncryption_BoundedPrefix(t *testing.T) {
	//marker inside the scanned prefix
	buf := append([]byte("%PDF-1.6 "), []byte("/Encrypt 12 0 R")...)
	if _, found := detectEncryption(buf); !found {
		t.Error("Marker inside prefix not detected")
	}

	if _, found := detectEncryption([]byte("%PDF-1.6 clean body")); found {
		t.Error("False positive on a clean buffer")
	}
}
