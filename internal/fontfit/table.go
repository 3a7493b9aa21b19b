// Package fontfit selects a font for a target language and fits translated
// text into a bounding box by shrinking the font size.
package fontfit

import (
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"github.com/beabigegg/Translate-Tool/internal/config"
	"github.com/beabigegg/Translate-Tool/internal/logger"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

// DefaultFamily is a PDF core font and needs no file.
const DefaultFamily = "Helvetica"

// scriptFamilies maps ISO 15924 script codes to the family used for them.
var scriptFamilies = map[string]string{
	"Hans": "NotoSansSC",
	"Hant": "NotoSansTC",
	"Jpan": "NotoSansJP",
	"Kore": "NotoSansKR",
	"Thai": "NotoSansThai",
	"Arab": "NotoSansArabic",
	"Hebr": "NotoSansHebrew",
	"Deva": "NotoSansDevanagari",
	"Cyrl": "NotoSans",
	"Grek": "NotoSans",
}

// coreFonts are the standard 14 PDF fonts.
var coreFonts = map[string]bool{
	"Helvetica": true, "Helvetica-Bold": true, "Helvetica-Oblique": true, "Helvetica-BoldOblique": true,
	"Times-Roman": true, "Times-Bold": true, "Times-Italic": true, "Times-BoldItalic": true,
	"Courier": true, "Courier-Bold": true, "Courier-Oblique": true, "Courier-BoldOblique": true,
	"Symbol": true, "ZapfDingbats": true,
}

// IsCoreFont reports whether family is one of the standard 14 PDF fonts.
func IsCoreFont(family string) bool { return coreFonts[family] }

// Font is a resolved font choice.
type Font struct {
	Family string
	// File is the font program path; empty for core fonts.
	File string
	// Fallback is set when the preferred family was unavailable.
	Fallback bool
}

// Core reports whether the font is a PDF core font.
func (f Font) Core() bool { return f.File == "" }

// Table resolves target languages to fonts.
type Table struct {
	defaultFamily string
	families      map[string]string
	files         map[string]string
	dirs          []string
	log           logger.Logger

	indexOnce sync.Once
	index     map[string]string
}

// NewTable builds a font table from configuration.
func NewTable(cfg config.FontConfig) *Table {
	t := &Table{
		defaultFamily: cfg.DefaultFamily,
		families:      make(map[string]string),
		files:         make(map[string]string),
		dirs:          cfg.Dirs,
		log:           logger.Named("fontfit"),
	}
	if t.defaultFamily == "" {
		t.defaultFamily = DefaultFamily
	}
	for lang, family := range cfg.Families {
		t.families[strings.ToLower(lang)] = family
	}
	for family, file := range cfg.Files {
		t.files[strings.ToLower(family)] = file
	}
	return t
}

// Script returns the script code a language tag is written in.
func Script(lang string) (string, error) {
	tag, err := language.Parse(lang)
	if err != nil {
		return "", err
	}
	script, _ := tag.Script()
	return script.String(), nil
}

// FamilyFor returns the family for lang. Unknown tags resolve to the
// default family together with a FontUnavailable error.
func (t *Table) FamilyFor(lang string) (string, error) {
	key := strings.ToLower(strings.ReplaceAll(lang, "_", "-"))
	if family, ok := t.families[key]; ok {
		return family, nil
	}
	script, err := Script(key)
	if err != nil {
		return t.defaultFamily, types.NewAppErrorWithDetails(types.ErrFontUnavailable,
			"unknown language tag, using default font", lang, err)
	}
	if family, ok := scriptFamilies[script]; ok {
		return family, nil
	}
	return t.defaultFamily, nil
}

// Resolve returns a usable font for lang. It never fails: a family whose
// file cannot be found falls back to the default core font and the
// problem is logged.
func (t *Table) Resolve(lang string) Font {
	family, err := t.FamilyFor(lang)
	if err != nil {
		t.log.Warn("font lookup failed", logger.String("lang", lang), logger.Err(err))
	}
	if IsCoreFont(family) {
		return Font{Family: family, Fallback: err != nil}
	}
	if file := t.FindFile(family); file != "" {
		return Font{Family: family, File: file, Fallback: err != nil}
	}

	t.log.Warn("font file not found, falling back",
		logger.String("lang", lang),
		logger.String("family", family),
		logger.String("code", string(types.ErrFontUnavailable)))
	fallback := Font{Family: DefaultFamily, Fallback: true}
	if !IsCoreFont(t.defaultFamily) {
		if file := t.FindFile(t.defaultFamily); file != "" {
			fallback = Font{Family: t.defaultFamily, File: file, Fallback: true}
		}
	} else {
		fallback.Family = t.defaultFamily
	}
	return fallback
}

// FindFile returns the font file for family, or "" when none is found.
// An explicit mapping in the config wins over searching the font dirs.
func (t *Table) FindFile(family string) string {
	if file, ok := t.files[strings.ToLower(family)]; ok {
		return file
	}
	t.indexOnce.Do(t.buildIndex)
	base := strings.ToLower(family)
	for _, candidate := range []string{base + "-regular", base, base + "-vf"} {
		if path, ok := t.index[candidate]; ok {
			return path
		}
	}
	return ""
}

func (t *Table) buildIndex() {
	t.index = make(map[string]string)
	for _, dir := range t.dirs {
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if ext != ".ttf" && ext != ".otf" {
				return nil
			}
			name := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
			if _, seen := t.index[name]; !seen {
				t.index[name] = path
			}
			return nil
		})
	}
	t.log.Debug("font index built", logger.Int("fonts", len(t.index)))
}
