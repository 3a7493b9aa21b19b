package parser

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/beabigegg/Translate-Tool/internal/document"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

var numberLike = regexp.MustCompile(`^[-+]?\d+([.,]\d+)*[.%]?$`)

// Normalize returns text in NFC with control characters removed.
func Normalize(text string) string {
	text = norm.NFC.String(text)
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == '\u200b' || r == '\ufeff' {
			return -1
		}
		return r
	}, text)
}

// NeedsTranslation reports whether text carries enough letters to be worth
// translating. Numbers, punctuation and very short fragments are kept as is.
func NeedsTranslation(text string) bool {
	s := strings.TrimSpace(text)
	if s == "" || numberLike.MatchString(s) {
		return false
	}
	letters := 0
	for _, r := range s {
		switch {
		case unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul):
			// one ideograph carries a word
			letters += 3
		case unicode.IsLetter(r):
			letters++
		}
	}
	return letters >= 3
}

// TextParser reads plain text and Markdown files. Paragraphs are separated
// by blank lines; the whole file is one page without geometry.
type TextParser struct{}

// NewTextParser creates a plain text parser.
func NewTextParser() *TextParser { return &TextParser{} }

// Extensions implements Parser.
func (p *TextParser) Extensions() []string { return []string{".txt", ".md", ".markdown"} }

// Parse implements Parser.
func (p *TextParser) Parse(ctx context.Context, path string, opts Options) (*document.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewAppError(types.ErrFileNotFound, "file not found: "+path, err)
		}
		return nil, types.NewAppError(types.ErrExtractionUnavailable, "cannot read "+filepath.Base(path), err)
	}

	doc := document.New(path, "text")
	if ctx.Err() != nil {
		doc.Stopped = true
		return doc, nil
	}

	content := PageContent{Info: document.PageInfo{Width: DefaultPageWidth, Height: DefaultPageHeight}}
	for _, para := range SplitParagraphs(Normalize(string(data))) {
		block := RawBlock{Text: para}
		if strings.HasPrefix(para, "#") {
			block.Type = document.TypeTitle
			block.Text = strings.TrimSpace(strings.TrimLeft(para, "#"))
		} else if isListItem(para) {
			block.Type = document.TypeListItem
		}
		content.Blocks = append(content.Blocks, block)
	}

	a := NewAssembler(opts)
	a.AddPage(doc, content)
	a.Finish(doc)
	doc.Metadata.HasTextLayer = len(doc.Elements) > 0
	return doc, nil
}

// SplitParagraphs splits text at blank lines and joins wrapped lines.
func SplitParagraphs(text string) []string {
	var out []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, " "))
			cur = nil
		}
	}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		// headings and list items stand alone
		if strings.HasPrefix(line, "#") || isListItem(line) {
			flush()
			out = append(out, line)
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return out
}

var listMarker = regexp.MustCompile(`^([-*•]|\d+[.)])\s+`)

func isListItem(line string) bool { return listMarker.MatchString(line) }
