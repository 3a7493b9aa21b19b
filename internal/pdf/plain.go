package pdf

import (
	"context"
	"os"
	"path/filepath"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/beabigegg/Translate-Tool/internal/document"
	"github.com/beabigegg/Translate-Tool/internal/logger"
	"github.com/beabigegg/Translate-Tool/internal/parser"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

// PlainTextParser is the last resort for PDFs the layout parser cannot
// read. The file is first rewritten by pdfcpu in relaxed validation mode,
// which repairs broken cross-reference tables, and the copy is then read
// as plain text per page. Elements carry no geometry, so the result only
// suits inline output.
type PlainTextParser struct {
	// WorkDir holds the repaired copy; empty uses the system temp dir.
	WorkDir string
}

// NewPlainTextParser creates the fallback parser.
func NewPlainTextParser(workDir string) *PlainTextParser {
	return &PlainTextParser{WorkDir: workDir}
}

// Extensions implements parser.Parser.
func (p *PlainTextParser) Extensions() []string { return []string{".pdf"} }

// Parse implements parser.Parser.
func (p *PlainTextParser) Parse(ctx context.Context, path string, opts parser.Options) (*document.Document, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewAppError(types.ErrFileNotFound, "file not found: "+path, err)
		}
		return nil, types.NewAppError(types.ErrExtractionUnavailable, "cannot access "+filepath.Base(path), err)
	}

	tmp, err := os.MkdirTemp(p.WorkDir, "pdfplain_*")
	if err != nil {
		return nil, types.NewAppError(types.ErrInternal, "failed to create work directory", err)
	}
	defer os.RemoveAll(tmp)

	source := path
	repaired := filepath.Join(tmp, "repaired.pdf")
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.OptimizeFile(path, repaired, conf); err != nil {
		logger.Warn("pdfcpu could not repair the file, reading it as is",
			logger.String("file", filepath.Base(path)),
			logger.Err(err))
	} else {
		source = repaired
	}

	f, r, err := open(source)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc := document.New(path, SourceType)
	readInfo(r, &doc.Metadata)
	parser.NewAssembler(opts).WithTableDetector(nil).Assemble(ctx, doc, &plainSource{r: r})
	doc.AddWarning("text extracted without layout information")
	return doc, nil
}

type plainSource struct {
	r *pdf.Reader
}

func (s *plainSource) PageCount() int { return s.r.NumPage() }

func (s *plainSource) Page(i int) (parser.PageContent, error) {
	page := s.r.Page(i + 1)
	info, _, _ := pageInfo(page, i)
	content := parser.PageContent{Info: info}
	if page.V.IsNull() {
		return content, nil
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return content, err
	}
	for _, para := range parser.SplitParagraphs(text) {
		if garbled(para) {
			continue
		}
		content.Blocks = append(content.Blocks, parser.RawBlock{Text: parser.Normalize(para), Type: document.TypeText})
	}
	return content, nil
}
