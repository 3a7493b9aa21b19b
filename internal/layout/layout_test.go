package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beabigegg/Translate-Tool/internal/config"
	"github.com/beabigegg/Translate-Tool/internal/document"
	"github.com/beabigegg/Translate-Tool/internal/geometry"
)

const pageHeight = 792.0

func letter() Page { return Page{Width: 612, Height: pageHeight} }

func TestClassifyRules(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	table := geometry.New(72, 300, 540, 500)
	page := Page{Width: 612, Height: pageHeight, Tables: []geometry.BoundingBox{table}}

	tests := []struct {
		name  string
		block Block
		want  document.ElementType
	}{
		{"top edge at zero", Block{Text: "Annual report", BBox: geometry.New(72, 0, 300, 12), FontSize: 10}, document.TypeHeader},
		{"header wins over title", Block{Text: "Big", BBox: geometry.New(72, 20, 300, 48), FontSize: 24}, document.TypeHeader},
		{"bottom edge at page height", Block{Text: "Confidential", BBox: geometry.New(72, 780, 300, pageHeight), FontSize: 8}, document.TypeFooter},
		{"page number in footer", Block{Text: "12", BBox: geometry.New(300, 770, 312, pageHeight), FontSize: 8}, document.TypePageNumber},
		{"inside table", Block{Text: "cell", BBox: geometry.New(80, 320, 200, 332), FontSize: 30}, document.TypeTableCell},
		{"half outside table", Block{Text: "edge", BBox: geometry.New(0, 290, 100, 310), FontSize: 10}, document.TypeText},
		{"large font", Block{Text: "Introduction", BBox: geometry.New(72, 100, 300, 120), FontSize: 18}, document.TypeTitle},
		{"body", Block{Text: "Body text", BBox: geometry.New(72, 140, 300, 152), FontSize: 10}, document.TypeText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.block, page))
		})
	}
}

func TestClassifyUsesConfiguredMargins(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HeaderMargin = 10
	cfg.TitleFontSize = 30
	c := NewClassifier(cfg)

	b := Block{Text: "Chapter", BBox: geometry.New(72, 20, 300, 44), FontSize: 24}
	assert.Equal(t, document.TypeText, c.Classify(b, letter()))
}

func TestInsertRuleTakesPrecedence(t *testing.T) {
	c := NewClassifier(DefaultConfig())
	c.InsertRule(0, Rule{Name: "caption", Match: func(_ Config, b Block, _ Page) (document.ElementType, bool) {
		if len(b.Text) > 7 && b.Text[:7] == "Figure " {
			return document.TypeCaption, true
		}
		return "", false
	}})

	assert.Equal(t, "caption", c.Rules()[0].Name)
	assert.Len(t, c.Rules(), 5)
	b := Block{Text: "Figure 3: results", BBox: geometry.New(72, 5, 300, 15), FontSize: 9}
	assert.Equal(t, document.TypeCaption, c.Classify(b, letter()))
}

func TestConfigFromSettings(t *testing.T) {
	cfg := ConfigFromSettings(config.LayoutConfig{HeaderMargin: 36, TitleFontSize: 20})
	assert.Equal(t, 36.0, cfg.HeaderMargin)
	assert.Equal(t, 50.0, cfg.FooterMargin)
	assert.Equal(t, 20.0, cfg.TitleFontSize)
	assert.Equal(t, 0.5, cfg.TableOverlapThreshold)
}

func TestShouldTranslate(t *testing.T) {
	assert.False(t, ShouldTranslate(document.TypeHeader, true))
	assert.False(t, ShouldTranslate(document.TypePageNumber, true))
	assert.True(t, ShouldTranslate(document.TypeFooter, false))
	assert.True(t, ShouldTranslate(document.TypeTableCell, true))
}

func TestIsPageNumber(t *testing.T) {
	for _, s := range []string{"7", " 12 ", "Page 3", "page 3 of 10", "p. 4", "3 / 10", "4 of 9", "- 5 -", "[6]", "第3页", "第 3 頁", "xiv", "IV"} {
		assert.True(t, IsPageNumber(s), s)
	}
	for _, s := range []string{"", "Confidential", "Chapter 3", "civil", "2024 annual report", "v2.1"} {
		assert.False(t, IsPageNumber(s), s)
	}
}

func glyph(text string, x0, y0, x1, y1 float64) Glyph {
	return Glyph{Text: text, BBox: geometry.New(x0, y0, x1, y1), FontName: "Helvetica", FontSize: 10}
}

func TestLineGrouperJoinsWordsAndSplitsColumns(t *testing.T) {
	glyphs := []Glyph{
		glyph("world", 110, 100.5, 135, 110.5),
		glyph("Hello", 72, 100, 100, 110),
		glyph("Right", 320, 100, 350, 110),
		glyph("column", 353, 100, 390, 110),
		glyph("Next", 72, 120, 95, 130),
	}

	lines := DefaultLineGrouper().Group(glyphs)
	require.Len(t, lines, 3)
	assert.Equal(t, "Hello world", lines[0].Text)
	assert.Equal(t, geometry.New(72, 100, 135, 110.5), lines[0].BBox)
	assert.Equal(t, "Right column", lines[1].Text)
	assert.Equal(t, "Next", lines[2].Text)
}

func TestLineGrouperHandlesSpacesAndEmptyInput(t *testing.T) {
	assert.Nil(t, DefaultLineGrouper().Group(nil))

	lines := DefaultLineGrouper().Group([]Glyph{
		glyph("a", 72, 100, 77, 110),
		glyph(" ", 77, 100, 80, 110),
		glyph("b", 80, 100, 85, 110),
		glyph("  ", 400, 200, 410, 210),
	})
	require.Len(t, lines, 1)
	assert.Equal(t, "a b", lines[0].Text)
}

func TestDominantFont(t *testing.T) {
	l := Line{Glyphs: []Glyph{
		{Text: "Title", FontName: "Times-Bold", FontSize: 18},
		{Text: "x", FontName: "Times", FontSize: 9},
	}}
	assert.Equal(t, 18.0, l.DominantFontSize())
	assert.Equal(t, "Times-Bold", l.DominantFont())
}

func TestRuledTableDetector(t *testing.T) {
	var rects []geometry.BoundingBox
	// 3 horizontal rules and 3 vertical rules forming a 2x2 grid
	for _, y := range []float64{300, 350, 400} {
		rects = append(rects, geometry.New(100, y, 400, y+1))
	}
	for _, x := range []float64{100, 250, 399} {
		rects = append(rects, geometry.New(x, 300, x+1, 401))
	}
	// an underline elsewhere on the page
	rects = append(rects, geometry.New(72, 600, 200, 600.5))
	// a single framed box
	rects = append(rects, geometry.New(72, 650, 300, 700))
	// page background
	rects = append(rects, geometry.New(0, 0, 612, pageHeight))

	tables := NewRuledTableDetector().DetectTables(rects, 612, pageHeight)
	require.Len(t, tables, 1)
	assert.Equal(t, geometry.New(100, 300, 400, 401), tables[0])
}

func TestRuledTableDetectorCells(t *testing.T) {
	rects := []geometry.BoundingBox{
		geometry.New(100, 100, 200, 130),
		geometry.New(200, 100, 300, 130),
		geometry.New(100, 130, 200, 160),
		geometry.New(200, 130, 300, 160),
	}
	tables := NewRuledTableDetector().DetectTables(rects, 612, pageHeight)
	require.Len(t, tables, 1)
	assert.Equal(t, geometry.New(100, 100, 300, 160), tables[0])

	assert.Empty(t, NewRuledTableDetector().DetectTables(nil, 612, pageHeight))
}
