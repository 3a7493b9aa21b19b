package fontfit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"github.com/mattn/go-runewidth"
	pdffont "github.com/pdfcpu/pdfcpu/pkg/font"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
)

// Measurer reports the advance width of text at a font size, in points.
type Measurer interface {
	Width(text string, size float64) float64
}

// metricsSize is the size used when querying integer-size metrics; the
// result is scaled to the requested size.
const metricsSize = 1000

// CoreMeasurer uses the AFM metrics of a PDF core font. Runes outside
// Latin-1 have no core metrics and are estimated, as is all text when
// FontName is not a core font.
type CoreMeasurer struct {
	FontName string
}

// Width implements Measurer.
func (m CoreMeasurer) Width(text string, size float64) float64 {
	if !pdffont.IsCoreFont(m.FontName) {
		return EstimateMeasurer{}.Width(text, size)
	}
	// core metrics are indexed by Latin-1 byte
	var sb strings.Builder
	var width float64
	flush := func() {
		if sb.Len() > 0 {
			width += pdffont.TextWidth(sb.String(), m.FontName, metricsSize) * size / metricsSize
			sb.Reset()
		}
	}
	for _, r := range text {
		if r < 256 {
			sb.WriteByte(byte(r))
			continue
		}
		flush()
		width += EstimateMeasurer{}.Width(string(r), size)
	}
	flush()
	return width
}

// EstimateMeasurer approximates widths from East Asian cell widths: one
// cell is half an em.
type EstimateMeasurer struct{}

// Width implements Measurer.
func (EstimateMeasurer) Width(text string, size float64) float64 {
	return float64(runewidth.StringWidth(text)) * size * 0.5
}

// FaceMeasurer measures with a parsed TrueType or OpenType font program.
type FaceMeasurer struct {
	newFace func(size float64) (font.Face, error)

	mu    sync.Mutex
	faces map[float64]font.Face
}

// Width implements Measurer. Sizes that cannot produce a face fall back to
// the estimate.
func (m *FaceMeasurer) Width(text string, size float64) float64 {
	face, err := m.face(size)
	if err != nil {
		return EstimateMeasurer{}.Width(text, size)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	adv := font.MeasureString(face, text)
	return float64(adv) / 64
}

func (m *FaceMeasurer) face(size float64) (font.Face, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.faces[size]; ok {
		return f, nil
	}
	f, err := m.newFace(size)
	if err != nil {
		return nil, err
	}
	m.faces[size] = f
	return f, nil
}

// LoadFaceMeasurer parses a .ttf or .otf file. TrueType files go through
// freetype; files it rejects (CFF outlines) are parsed as OpenType.
func LoadFaceMeasurer(path string) (*FaceMeasurer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", filepath.Base(path), err)
	}
	m := &FaceMeasurer{faces: make(map[float64]font.Face)}

	if strings.ToLower(filepath.Ext(path)) != ".otf" {
		if tt, err := truetype.Parse(data); err == nil {
			m.newFace = func(size float64) (font.Face, error) {
				return truetype.NewFace(tt, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingNone}), nil
			}
			return m, nil
		}
	}

	otf, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", filepath.Base(path), err)
	}
	m.newFace = func(size float64) (font.Face, error) {
		return opentype.NewFace(otf, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingNone})
	}
	return m, nil
}

// MeasurerFor returns the best measurer available for f.
func MeasurerFor(f Font) Measurer {
	if f.Core() {
		return CoreMeasurer{FontName: f.Family}
	}
	m, err := LoadFaceMeasurer(f.File)
	if err != nil {
		return EstimateMeasurer{}
	}
	return m
}
