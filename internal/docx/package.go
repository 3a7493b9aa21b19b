package docx

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/beabigegg/Translate-Tool/internal/ooxml"
)

const (
	partDocument = "word/document.xml"
	partStyles   = "word/styles.xml"
	partCore     = ooxml.PartCore
)

// pkg is a Word package.
type pkg struct {
	*ooxml.Package
}

func readPackage(path string) (*pkg, error) {
	p, err := ooxml.Open(path, partDocument)
	if err != nil {
		return nil, err
	}
	return &pkg{p}, nil
}

// textParts returns the body, header and footer parts in scan order.
func (p *pkg) textParts() []string {
	out := []string{partDocument}
	var extra []string
	for _, name := range p.Names() {
		base := filepath.Base(name)
		if !strings.HasPrefix(name, "word/") || !strings.HasSuffix(base, ".xml") {
			continue
		}
		if strings.HasPrefix(base, "header") || strings.HasPrefix(base, "footer") {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}
