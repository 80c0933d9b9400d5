package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/cunning-folk/Document-Processor/internal/config"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Normalizer rewrites a PDF through a structure-repair step. A nil error with
// non-empty output wins; any failure is non-fatal to the cascade.
type Normalizer interface {
	Name() string
	Normalize(ctx context.Context, input []byte) ([]byte, error)
}

// toolNormalizer shells out to an external repair tool via temp files.
type toolNormalizer struct {
	name string
	bin  string
	args func(in string, out string) []string
}

func (n *toolNormalizer) Name() string {
	return n.name
}

func (n *toolNormalizer) Normalize(ctx context.Context, input []byte) ([]byte, error) {
	if _, err := exec.LookPath(n.bin); err != nil {
		return nil, fmt.Errorf("%s not available: %w", n.bin, err)
	}

	workDir, err := os.MkdirTemp("", "normalize-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(workDir) //temp files go on success and failure paths alike

	inPath := filepath.Join(workDir, "in.pdf")
	outPath := filepath.Join(workDir, "out.pdf")
	if err := os.WriteFile(inPath, input, 0600); err != nil {
		return nil, err
	}

	execCtx, cancel := context.WithTimeout(ctx, config.ToolExecTimeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, n.bin, n.args(inPath, outPath)...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", n.name, err, truncate(string(output), 200))
	}

	result, err := os.ReadFile(outPath)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, errors.New(n.name + " produced empty output")
	}
	return result, nil
}

// deepRebuild re-embeds fonts, flattens transparency and recompresses streams.
func deepRebuild() Normalizer {
	return &toolNormalizer{
		name: "gs-deep",
		bin:  "gs",
		args: func(in, out string) []string {
			return []string{
				"-o", out,
				"-sDEVICE=pdfwrite",
				"-dPDFSETTINGS=/prepress",
				"-dEmbedAllFonts=true",
				"-dSubsetFonts=true",
				"-dCompressFonts=true",
				"-dNOPAUSE", "-dBATCH", "-dQUIET",
				in,
			}
		},
	}
}

// simpleFlatten is the cheaper rewrite attempted when the deep pass fails.
func simpleFlatten() Normalizer {
	return &toolNormalizer{
		name: "gs-simple",
		bin:  "gs",
		args: func(in, out string) []string {
			return []string{
				"-o", out,
				"-sDEVICE=pdfwrite",
				"-dNOPAUSE", "-dBATCH", "-dQUIET",
				in,
			}
		},
	}
}

// repairLinearize runs qpdf as the decrypt-or-linearize repair step.
func repairLinearize() Normalizer {
	return &toolNormalizer{
		name: "qpdf-repair",
		bin:  "qpdf",
		args: func(in, out string) []string {
			return []string{"--decrypt", "--linearize", in, out}
		},
	}
}

// libraryOptimize rewrites the cross-reference table and streams in-process.
// Last in the chain: it needs no external binary, so it still runs on hosts
// without the tool chain installed.
type libraryOptimize struct{}

func (libraryOptimize) Name() string {
	return "pdfcpu-optimize"
}

func (libraryOptimize) Normalize(ctx context.Context, input []byte) ([]byte, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	var out bytes.Buffer
	if err := api.Optimize(bytes.NewReader(input), &out, conf); err != nil {
		return nil, fmt.Errorf("pdfcpu optimize: %w", err)
	}
	if out.Len() == 0 {
		return nil, errors.New("pdfcpu optimize produced empty output")
	}
	return out.Bytes(), nil
}

func defaultNormalizers() []Normalizer {
	return []Normalizer{
		deepRebuild(),
		simpleFlatten(),
		repairLinearize(),
		libraryOptimize{},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
