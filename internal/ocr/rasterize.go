package ocr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/beabigegg/Translate-Tool/internal/logger"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

// DefaultDPI is the resolution scanned pages are rasterized at.
const DefaultDPI = 200

// Rasterizer turns PDF pages into PNG images with poppler's pdftoppm.
type Rasterizer struct {
	DPI     int
	WorkDir string
}

// NewRasterizer creates a rasterizer; a non-positive dpi uses DefaultDPI.
func NewRasterizer(dpi int, workDir string) *Rasterizer {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &Rasterizer{DPI: dpi, WorkDir: workDir}
}

// PopplerAvailable reports whether pdftoppm is on the PATH.
func PopplerAvailable() bool {
	_, err := exec.LookPath("pdftoppm")
	return err == nil
}

// RenderPage returns page pageNum (1-based) of pdfPath as PNG data.
func (r *Rasterizer) RenderPage(ctx context.Context, pdfPath string, pageNum int) ([]byte, error) {
	if !PopplerAvailable() {
		return nil, types.NewAppErrorWithDetails(types.ErrMissingCapability, "pdftoppm not found",
			"install poppler-utils to OCR scanned PDFs", nil)
	}

	tmp, err := os.MkdirTemp(r.WorkDir, "pdf2img_*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	prefix := filepath.Join(tmp, "page")
	page := strconv.Itoa(pageNum)
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-f", page, "-l", page,
		"-png",
		"-r", strconv.Itoa(r.DPI),
		"-singlefile",
		pdfPath, prefix)
	hideWindow(cmd)

	logger.Debug("rasterizing page",
		logger.String("pdf", filepath.Base(pdfPath)),
		logger.Int("page", pageNum),
		logger.Int("dpi", r.DPI))
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w, output: %s", err, string(output))
	}
	return os.ReadFile(prefix + ".png")
}
