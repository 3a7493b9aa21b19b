package layout

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/beabigegg/Translate-Tool/internal/geometry"
)

// Glyph is one positioned run of text as reported by an extractor,
// already converted to internal coordinates.
type Glyph struct {
	Text     string
	BBox     geometry.BoundingBox
	FontName string
	FontSize float64
}

// Line is a horizontal run of glyphs that reads as one unit.
type Line struct {
	Glyphs []Glyph
	BBox   geometry.BoundingBox
	Text   string
}

// DominantFontSize is the size carrying the most characters of the line.
func (l Line) DominantFontSize() float64 {
	weights := make(map[float64]int)
	best, bestWeight := 0.0, -1
	for _, g := range l.Glyphs {
		size := math.Round(g.FontSize*10) / 10
		weights[size] += len([]rune(g.Text))
		if w := weights[size]; w > bestWeight || (w == bestWeight && size > best) {
			best, bestWeight = size, w
		}
	}
	return best
}

// DominantFont is the font name carrying the most characters of the line.
func (l Line) DominantFont() string {
	weights := make(map[string]int)
	best, bestWeight := "", -1
	for _, g := range l.Glyphs {
		weights[g.FontName] += len([]rune(g.Text))
		if w := weights[g.FontName]; w > bestWeight {
			best, bestWeight = g.FontName, w
		}
	}
	return best
}

// LineGrouper assembles glyphs into lines. Glyphs whose baselines are
// within Tolerance share a row; a row is split where the horizontal gap
// exceeds GapFactor font sizes, which keeps adjacent columns apart.
type LineGrouper struct {
	// Tolerance in points; zero means half the glyph height.
	Tolerance   float64
	GapFactor   float64
	SpaceFactor float64
}

// DefaultLineGrouper returns the grouping used by the parsers.
func DefaultLineGrouper() LineGrouper {
	return LineGrouper{GapFactor: 2.5, SpaceFactor: 0.2}
}

// Group returns lines top to bottom, left to right.
func (g LineGrouper) Group(glyphs []Glyph) []Line {
	var sorted []Glyph
	for _, gl := range glyphs {
		if gl.Text != "" {
			sorted = append(sorted, gl)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].BBox.Y1 != sorted[j].BBox.Y1 {
			return sorted[i].BBox.Y1 < sorted[j].BBox.Y1
		}
		return sorted[i].BBox.X0 < sorted[j].BBox.X0
	})

	var rows [][]Glyph
	row := []Glyph{sorted[0]}
	baseline := sorted[0].BBox.Y1
	for _, gl := range sorted[1:] {
		if math.Abs(gl.BBox.Y1-baseline) <= g.tolerance(gl, row[0]) {
			row = append(row, gl)
			continue
		}
		rows = append(rows, row)
		row = []Glyph{gl}
		baseline = gl.BBox.Y1
	}
	rows = append(rows, row)

	var lines []Line
	for _, r := range rows {
		sort.SliceStable(r, func(i, j int) bool { return r[i].BBox.X0 < r[j].BBox.X0 })
		for _, seg := range g.split(r) {
			if line, ok := g.build(seg); ok {
				lines = append(lines, line)
			}
		}
	}
	return lines
}

func (g LineGrouper) tolerance(a, b Glyph) float64 {
	if g.Tolerance > 0 {
		return g.Tolerance
	}
	return math.Max(a.BBox.Height(), b.BBox.Height()) / 2
}

func (g LineGrouper) split(row []Glyph) [][]Glyph {
	if g.GapFactor <= 0 {
		return [][]Glyph{row}
	}
	var segs [][]Glyph
	start := 0
	lastEnd := row[0].BBox.X1
	for i := 1; i < len(row); i++ {
		gl := row[i]
		if isBlank(gl.Text) {
			continue
		}
		size := math.Max(gl.FontSize, 1)
		if gl.BBox.X0-lastEnd > g.GapFactor*size {
			segs = append(segs, row[start:i])
			start = i
		}
		lastEnd = math.Max(lastEnd, gl.BBox.X1)
	}
	return append(segs, row[start:])
}

func (g LineGrouper) build(glyphs []Glyph) (Line, bool) {
	var sb strings.Builder
	var boxes []geometry.BoundingBox
	var kept []Glyph
	prevEnd := math.Inf(-1)
	for _, gl := range glyphs {
		if isBlank(gl.Text) {
			sb.WriteByte(' ')
			continue
		}
		size := math.Max(gl.FontSize, 1)
		if sb.Len() > 0 && gl.BBox.X0-prevEnd > g.SpaceFactor*size {
			sb.WriteByte(' ')
		}
		sb.WriteString(gl.Text)
		prevEnd = gl.BBox.X1
		boxes = append(boxes, gl.BBox)
		kept = append(kept, gl)
	}
	bbox, ok := geometry.Merge(boxes)
	if !ok {
		return Line{}, false
	}
	return Line{Glyphs: kept, BBox: bbox, Text: strings.Join(strings.Fields(sb.String()), " ")}, true
}

func isBlank(s string) bool {
	return strings.TrimFunc(s, unicode.IsSpace) == ""
}
