package pdf

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/image/draw"

	"github.com/beabigegg/Translate-Tool/internal/config"
	"github.com/beabigegg/Translate-Tool/internal/fontfit"
	"github.com/beabigegg/Translate-Tool/internal/logger"
	"github.com/beabigegg/Translate-Tool/internal/render"
	ttypes "github.com/beabigegg/Translate-Tool/internal/types"
)

// maskScale is the pixel density of mask images per point. The image is
// stamped at 1/maskScale so it covers the box exactly.
const maskScale = 4

// StampOptions control how placements are drawn onto a page.
type StampOptions struct {
	DrawMask  bool
	MaskColor string
	TextColor string
	// LineSpacing must match the planner's so text starts at the box top.
	LineSpacing float64
}

// DefaultStampOptions returns white masks and black text.
func DefaultStampOptions() StampOptions {
	return StampOptions{
		DrawMask:    true,
		MaskColor:   "#FFFFFF",
		TextColor:   "#000000",
		LineSpacing: fontfit.DefaultParams().LineSpacing,
	}
}

// StampOptionsFromConfig maps the render and font sections.
func StampOptionsFromConfig(cfg *config.Config) StampOptions {
	opts := DefaultStampOptions()
	if cfg == nil {
		return opts
	}
	opts.DrawMask = cfg.Render.DrawMask
	if cfg.Render.MaskColor != "" {
		opts.MaskColor = cfg.Render.MaskColor
	}
	if cfg.Render.TextColor != "" {
		opts.TextColor = cfg.Render.TextColor
	}
	opts.LineSpacing = fontfit.ParamsFromConfig(cfg.Font).LineSpacing
	return opts
}

// ParseHexColor parses "#RRGGBB" or "#RGB".
func ParseHexColor(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// maskPNG renders a solid rectangle of w x h points.
func maskPNG(w, h float64, c color.RGBA) ([]byte, error) {
	pw := int(math.Max(1, math.Ceil(w*maskScale)))
	ph := int(math.Max(1, math.Ceil(h*maskScale)))
	img := image.NewRGBA(image.Rect(0, 0, pw, ph))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// maskWatermark covers the native box x0,y0,x1,y1 with a solid image.
func maskWatermark(x0, y0, x1, y1 float64, c color.RGBA) (*model.Watermark, error) {
	data, err := maskPNG(x1-x0, y1-y0, c)
	if err != nil {
		return nil, err
	}
	desc := fmt.Sprintf("position:bl, offset:%.2f %.2f, scalefactor:%g abs, rotation:0, opacity:1",
		x0, y0, 1.0/maskScale)
	return api.ImageWatermarkForReader(bytes.NewReader(data), desc, true, false, types.POINTS)
}

// textWatermark stamps the placement's lines with their first baseline at
// the top of the box. Right aligned text ends at the right edge.
func textWatermark(pl render.Placement, pageHeight float64, fontName string, opts StampOptions) (*model.Watermark, error) {
	x0, y0, x1, y1 := pl.Native(pageHeight)
	size := int(math.Floor(pl.Size))
	if size < 1 {
		size = 1
	}
	lines := pl.Lines
	if len(lines) == 0 {
		lines = []string{pl.Text}
	}

	dy := y1 - fontfit.BlockHeight(len(lines), float64(size), opts.LineSpacing)
	if dy < y0 {
		dy = y0
	}
	dx, align := x0, "l"
	if pl.Align == render.AlignRight {
		align = "r"
		if x := x1 - pl.Width; x > x0 {
			dx = x
		}
	}

	desc := fmt.Sprintf("fontname:%s, points:%d, position:bl, offset:%.2f %.2f, scalefactor:1 abs, rotation:0, fillcolor:%s, opacity:1, aligntext:%s",
		fontName, size, dx, dy, opts.TextColor, align)
	return api.TextWatermark(strings.Join(lines, "\n"), desc, true, false, types.POINTS)
}

var userFonts = struct {
	sync.Mutex
	names map[string]string
}{names: make(map[string]string)}

// InstallFont makes a TrueType file available to pdfcpu and returns the
// name to stamp with. Installed fonts are remembered per process.
func InstallFont(path string) (string, error) {
	userFonts.Lock()
	defer userFonts.Unlock()
	if name, ok := userFonts.names[path]; ok {
		return name, nil
	}
	if _, err := os.Stat(path); err != nil {
		return "", ttypes.NewAppErrorWithDetails(ttypes.ErrFontUnavailable, "font file not found", path, err)
	}
	// loads the pdfcpu configuration, which locates the user font directory
	model.NewDefaultConfiguration()
	if err := api.InstallFonts([]string{path}); err != nil {
		return "", ttypes.NewAppErrorWithDetails(ttypes.ErrFontUnavailable, "pdfcpu could not install font", path, err)
	}
	name := postScriptName(path)
	if !font.IsUserFont(name) {
		return "", ttypes.NewAppErrorWithDetails(ttypes.ErrFontUnavailable, "installed font is not registered", name, nil)
	}
	userFonts.names[path] = name
	logger.Debug("font installed", logger.String("file", filepath.Base(path)), logger.String("name", name))
	return name, nil
}

// postScriptName reads the PostScript name pdfcpu registers a font under,
// falling back to the file's base name.
func postScriptName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	data, err := os.ReadFile(path)
	if err != nil {
		return base
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return base
	}
	if name := f.Name(truetype.NameIDPostscriptName); name != "" {
		return name
	}
	return base
}

// stampFont returns the pdfcpu font name for f, falling back to the core
// default when a font file cannot be installed.
func stampFont(f fontfit.Font, log logger.Logger) string {
	if f.Core() {
		return f.Family
	}
	name, err := InstallFont(f.File)
	if err != nil {
		log.Warn("font unavailable for stamping, using core font",
			logger.String("family", f.Family),
			logger.String("fallback", fontfit.DefaultFamily),
			logger.String("code", string(ttypes.ErrFontUnavailable)),
			logger.Err(err))
		return fontfit.DefaultFamily
	}
	return name
}
