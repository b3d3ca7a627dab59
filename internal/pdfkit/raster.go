package pdfkit

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// Rasterizer renders one page of a PDF to PNG.
type Rasterizer interface {
	RenderPage(ctx context.Context, pdf []byte, page, dpi int) ([]byte, error)
}

// Pdftoppm shells out to poppler's pdftoppm.
type Pdftoppm struct {
	Path string
}

func NewPdftoppm(path string) *Pdftoppm {
	if path == "" {
		path = "pdftoppm"
	}
	return &Pdftoppm{Path: path}
}

func (p *Pdftoppm) RenderPage(ctx context.Context, pdf []byte, page, dpi int) ([]byte, error) {
	dir, err := os.MkdirTemp("", "pdfe-render-")
	if err != nil {
		return nil, fmt.Errorf("creating render dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("writing render input: %w", err)
	}
	outRoot := filepath.Join(dir, "page")
	n := strconv.Itoa(page)

	cmd := exec.CommandContext(ctx, p.Path,
		"-png", "-singlefile",
		"-r", strconv.Itoa(dpi),
		"-f", n, "-l", n,
		in, outRoot)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm page %d: %w: %s", page, err, bytes.TrimSpace(stderr.Bytes()))
	}
	png, err := os.ReadFile(outRoot + ".png")
	if err != nil {
		return nil, fmt.Errorf("reading rendered page %d: %w", page, err)
	}
	return png, nil
}
