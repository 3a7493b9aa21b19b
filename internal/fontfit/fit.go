package fontfit

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/beabigegg/Translate-Tool/internal/config"
	"github.com/beabigegg/Translate-Tool/internal/geometry"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

// Params are the fit loop settings.
type Params struct {
	MinSize      float64
	MaxSize      float64
	ScaleFactor  float64
	ShrinkFactor float64
	LineSpacing  float64
}

// DefaultParams returns the built-in fit settings.
func DefaultParams() Params {
	return Params{MinSize: 6, MaxSize: 72, ScaleFactor: 0.75, ShrinkFactor: 0.9, LineSpacing: 1.2}
}

// ParamsFromConfig maps the font section of the config; zero values keep
// the defaults.
func ParamsFromConfig(fc config.FontConfig) Params {
	p := DefaultParams()
	if fc.MinSize > 0 {
		p.MinSize = fc.MinSize
	}
	if fc.MaxSize > 0 {
		p.MaxSize = fc.MaxSize
	}
	if fc.ScaleFactor > 0 {
		p.ScaleFactor = fc.ScaleFactor
	}
	if fc.ShrinkFactor > 0 && fc.ShrinkFactor < 1 {
		p.ShrinkFactor = fc.ShrinkFactor
	}
	if fc.LineSpacing > 0 {
		p.LineSpacing = fc.LineSpacing
	}
	return p
}

// MaxSteps bounds the number of sizes the fit loop can try.
func MaxSteps(p Params) int {
	if p.MaxSize <= p.MinSize || p.ShrinkFactor <= 0 || p.ShrinkFactor >= 1 {
		return 1
	}
	return int(math.Ceil(math.Log(p.MinSize/p.MaxSize)/math.Log(p.ShrinkFactor))) + 1
}

// Result is the outcome of a fit.
type Result struct {
	Size  float64
	Lines []string
	// Width is the widest line at Size.
	Width    float64
	Overflow bool
	// Steps lists every size tried, in order; it never increases.
	Steps []float64
}

// Err returns a TextOverflow error when the text did not fit at the
// minimum size.
func (r Result) Err() error {
	if !r.Overflow {
		return nil
	}
	return types.NewAppErrorWithDetails(types.ErrTextOverflow, "text exceeds its box at the minimum font size",
		fmt.Sprintf("size=%.2f width=%.2f", r.Size, r.Width), nil)
}

func (p Params) initial(box geometry.BoundingBox) float64 {
	size := box.Height() * p.ScaleFactor
	return math.Min(math.Max(size, p.MinSize), p.MaxSize)
}

func (p Params) shrink(size float64) float64 {
	return math.Max(size*p.ShrinkFactor, p.MinSize)
}

// Fit places text on a single line. The size starts at the box height
// times ScaleFactor, clamped to [MinSize, MaxSize], and shrinks by
// ShrinkFactor while the text is wider than the box.
func Fit(text string, box geometry.BoundingBox, m Measurer, p Params) Result {
	size := p.initial(box)
	res := Result{Lines: []string{text}}
	for step := 0; step < MaxSteps(p)+1; step++ {
		res.Steps = append(res.Steps, size)
		res.Size = size
		res.Width = m.Width(text, size)
		if res.Width <= box.Width()+geometry.Epsilon {
			return res
		}
		if size <= p.MinSize {
			break
		}
		size = p.shrink(size)
	}
	res.Overflow = true
	return res
}

// FitWrapped wraps text into lines no wider than the box and shrinks until
// the lines fit the box height at LineSpacing.
func FitWrapped(text string, box geometry.BoundingBox, m Measurer, p Params) Result {
	size := p.initial(box)
	var res Result
	for step := 0; step < MaxSteps(p)+1; step++ {
		lines := Wrap(text, box.Width(), size, m)
		res = Result{Size: size, Lines: lines, Steps: append(res.Steps, size)}
		fitsWidth := true
		for _, l := range lines {
			w := m.Width(l, size)
			res.Width = math.Max(res.Width, w)
			if w > box.Width()+geometry.Epsilon {
				fitsWidth = false
			}
		}
		if fitsWidth && BlockHeight(len(lines), size, p.LineSpacing) <= box.Height()+geometry.Epsilon {
			return res
		}
		if size <= p.MinSize {
			break
		}
		size = p.shrink(size)
	}
	res.Overflow = true
	return res
}

// BlockHeight is the height of n lines at size: the first line takes one
// size, every further line LineSpacing sizes.
func BlockHeight(n int, size, lineSpacing float64) float64 {
	if n <= 0 {
		return 0
	}
	return size + float64(n-1)*size*lineSpacing
}

// Wrap breaks text into lines that fit maxWidth at size. Words are kept
// whole where possible; ideographs break anywhere; a word wider than the
// line is split by rune.
func Wrap(text string, maxWidth, size float64, m Measurer) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		lines = append(lines, wrapParagraph(para, maxWidth, size, m)...)
	}
	return lines
}

func wrapParagraph(text string, maxWidth, size float64, m Measurer) []string {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return []string{""}
	}
	var lines []string
	cur := ""
	for _, tok := range tokens {
		candidate := cur + tok
		if cur == "" {
			candidate = strings.TrimLeft(tok, " ")
		}
		if m.Width(candidate, size) <= maxWidth {
			cur = candidate
			continue
		}
		if cur != "" {
			lines = append(lines, strings.TrimRight(cur, " "))
			cur = ""
		}
		word := strings.TrimLeft(tok, " ")
		if m.Width(word, size) <= maxWidth {
			cur = word
			continue
		}
		// split an over-long word by rune
		for _, r := range word {
			next := cur + string(r)
			if cur != "" && m.Width(next, size) > maxWidth {
				lines = append(lines, cur)
				next = string(r)
			}
			cur = next
		}
	}
	if cur != "" {
		lines = append(lines, strings.TrimRight(cur, " "))
	}
	return lines
}

// tokenize splits text into break opportunities. A token carries its
// leading spaces; every ideograph is a token of its own.
func tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder
	inWord := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
		inWord = false
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if inWord {
				flush()
			}
			cur.WriteRune(' ')
		case breaksAnywhere(r):
			cur.WriteRune(r)
			flush()
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if strings.TrimSpace(cur.String()) != "" {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

func breaksAnywhere(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Thai) ||
		(r >= 0x3000 && r <= 0x303F) || (r >= 0xFF00 && r <= 0xFFEF)
}
