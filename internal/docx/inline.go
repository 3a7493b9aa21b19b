package docx

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/beabigegg/Translate-Tool/internal/document"
	"github.com/beabigegg/Translate-Tool/internal/logger"
	"github.com/beabigegg/Translate-Tool/internal/ooxml"
	"github.com/beabigegg/Translate-Tool/internal/render"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

// InsertFontSize is the point size of inserted translation runs.
const InsertFontSize = 10

// grey marks content that was kept but not translated.
const grey = "808080"

// InlineRenderer writes bilingual Word output. A Word source is copied
// with every translation inserted as an italic paragraph right after its
// original. Any other source becomes a new document with a heading per
// page, each original paragraph followed by its translation.
type InlineRenderer struct {
	FontSize float64
	Italic   bool
	log      logger.Logger
}

// NewInlineRenderer creates an inline DOCX renderer.
func NewInlineRenderer() *InlineRenderer {
	return &InlineRenderer{FontSize: InsertFontSize, Italic: true, log: logger.Named("docx")}
}

// Modes implements render.Renderer.
func (r *InlineRenderer) Modes() []render.Mode { return []render.Mode{render.ModeInline} }

// Render implements render.Renderer.
func (r *InlineRenderer) Render(ctx context.Context, doc *document.Document, lookup render.Lookup, outputPath string, opts render.Options) (*render.Result, error) {
	format, err := render.FormatFromPath(outputPath)
	if err != nil {
		return nil, err
	}
	if err := render.Validate(render.ModeInline, format, doc.SourceType); err != nil {
		return nil, err
	}
	if format != render.FormatDOCX {
		return nil, types.NewAppErrorWithDetails(types.ErrUnsupportedOutputMode,
			fmt.Sprintf("cannot render %s as %s", render.ModeInline, format), "this renderer writes .docx files", nil)
	}
	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, types.NewAppError(types.ErrRender, "failed to create output directory", err)
		}
	}

	res := &render.Result{OutputPath: outputPath, Mode: render.ModeInline}
	var pk *pkg
	if doc.SourceType == SourceType {
		src, err := readPackage(doc.SourcePath)
		if err != nil {
			res.Warnings = append(res.Warnings, "source document unavailable, writing a new document: "+err.Error())
			r.log.Warn("cannot reopen source document", logger.String("source", doc.SourcePath), logger.Err(err))
		} else if err := r.splice(ctx, doc, src, lookup, opts, res); err != nil {
			return nil, err
		} else {
			pk = src
		}
	}
	if pk == nil {
		pk = r.build(ctx, doc, lookup, opts, res)
	}

	if err := pk.Write(outputPath); err != nil {
		return nil, types.NewAppError(types.ErrRender, "failed to write output file", err)
	}
	r.log.Info("docx written",
		logger.String("output", outputPath),
		logger.Int("pages", res.Pages),
		logger.Int("translated", res.Placed),
		logger.Int("missing", res.Missing),
		logger.Bool("stopped", res.Stopped))
	return res, nil
}

type insertion struct {
	at  int64
	xml string
}

// splice inserts translation paragraphs into the source package. Source
// paragraphs are matched to elements by part and paragraph index, and the
// text must still agree so an edited source never gets a stray translation.
func (r *InlineRenderer) splice(ctx context.Context, doc *document.Document, pk *pkg, lookup render.Lookup, opts render.Options, res *render.Result) error {
	byPos := make(map[paragraphKey]*document.Element, len(doc.Elements))
	for _, e := range doc.Elements {
		if key, ok := elementKey(e); ok {
			byPos[key] = e
		}
	}

	for _, part := range pk.textParts() {
		if ctx.Err() != nil {
			res.Stopped = true
			res.Warnings = append(res.Warnings, "rendering stopped before "+part)
			break
		}
		data := pk.Part(part)
		paras, err := scanParagraphs(part, data)
		if err != nil {
			return types.NewAppErrorWithDetails(types.ErrRender, "malformed source part", part, err)
		}

		var ins []insertion
		for i, para := range paras {
			if para.inserted() {
				continue
			}
			e := byPos[paragraphKey{part: part, index: i}]
			if e == nil || !e.ShouldTranslate {
				continue
			}
			if strings.TrimSpace(e.Content) != paragraphText(para) {
				res.Warnings = append(res.Warnings, fmt.Sprintf("%s paragraph %d changed since parsing, not translated", part, i))
				continue
			}
			if text, ok := res.InlineText(e, lookup, opts); ok {
				ins = append(ins, insertion{at: para.End, xml: r.translationXML(text)})
			}
		}
		if len(ins) == 0 {
			continue
		}
		// text box paragraphs close before the paragraph that anchors them
		sort.SliceStable(ins, func(i, j int) bool { return ins[i].at < ins[j].at })

		var b bytes.Buffer
		b.Grow(len(data) + len(ins)*256)
		last := int64(0)
		for _, in := range ins {
			b.Write(data[last:in.at])
			b.WriteString(in.xml)
			last = in.at
		}
		b.Write(data[last:])
		pk.Set(part, b.Bytes())
	}
	if !res.Stopped {
		res.Pages = len(doc.Pages)
	}
	return nil
}

type paragraphKey struct {
	part  string
	index int
}

// elementKey reads the source position of e. The index is a float64 once
// the document has been through JSON.
func elementKey(e *document.Element) (paragraphKey, bool) {
	part, _ := e.Metadata[metaPart].(string)
	if part == "" {
		return paragraphKey{}, false
	}
	switch v := e.Metadata[metaIndex].(type) {
	case int:
		return paragraphKey{part, v}, true
	case float64:
		return paragraphKey{part, int(v)}, true
	}
	return paragraphKey{}, false
}

// build creates a new package holding the document page by page.
func (r *InlineRenderer) build(ctx context.Context, doc *document.Document, lookup render.Lookup, opts render.Options, res *render.Result) *pkg {
	var body strings.Builder
	ordered := doc.ElementsInReadingOrder()

	for _, page := range doc.Pages {
		if ctx.Err() != nil {
			res.Stopped = true
			res.Warnings = append(res.Warnings, fmt.Sprintf("rendering stopped after %d of %d pages", res.Pages, len(doc.Pages)))
			break
		}
		body.WriteString(headingXML(fmt.Sprintf("-- Page %d --", page.PageNum+1)))
		for _, e := range ordered {
			if e.PageNum != page.PageNum {
				continue
			}
			original := strings.TrimSpace(e.Content)
			if original == "" {
				continue
			}
			if !e.ShouldTranslate {
				body.WriteString(paragraphXML(original, runProps{color: grey}))
				continue
			}
			body.WriteString(paragraphXML(original, runProps{}))
			if text, ok := res.InlineText(e, lookup, opts); ok {
				body.WriteString(r.translationXML(text))
			}
		}
		res.Pages++
	}

	pk := &pkg{ooxml.New()}
	pk.Set("[Content_Types].xml", []byte(contentTypesXML))
	pk.Set("_rels/.rels", []byte(rootRelsXML))
	pk.Set("word/_rels/document.xml.rels", []byte(documentRelsXML))
	pk.Set(partDocument, []byte(xml.Header+`<w:document xmlns:w="`+wordNS+`"><w:body>`+body.String()+sectionXML+`</w:body></w:document>`))
	pk.Set(partStyles, []byte(stylesXMLPart))
	pk.Set(partCore, []byte(ooxml.CoreXML(doc.Metadata.Title)))
	return pk
}

func (r *InlineRenderer) translationXML(text string) string {
	return paragraphXML(text+InsertMarker, runProps{italic: r.Italic, size: r.FontSize})
}

type runProps struct {
	italic bool
	size   float64
	color  string
}

func (p runProps) xml() string {
	var b strings.Builder
	if p.italic {
		b.WriteString("<w:i/>")
	}
	if p.color != "" {
		b.WriteString(`<w:color w:val="` + p.color + `"/>`)
	}
	if p.size > 0 {
		// half points
		fmt.Fprintf(&b, `<w:sz w:val="%d"/>`, int(p.size*2+0.5))
	}
	if b.Len() == 0 {
		return ""
	}
	return "<w:rPr>" + b.String() + "</w:rPr>"
}

// paragraphXML writes text as one run; newlines become w:br.
func paragraphXML(text string, props runProps) string {
	var b strings.Builder
	b.WriteString("<w:p><w:r>")
	b.WriteString(props.xml())
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteString("<w:br/>")
		}
		b.WriteString(`<w:t xml:space="preserve">`)
		b.WriteString(ooxml.Escape(line))
		b.WriteString("</w:t>")
	}
	b.WriteString("</w:r></w:p>")
	return b.String()
}

func headingXML(text string) string {
	return `<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t xml:space="preserve">` + ooxml.Escape(text) + `</w:t></w:r></w:p>`
}

const contentTypesXML = xml.Header + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>` +
	`</Types>`

const rootRelsXML = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
	`</Relationships>`

const documentRelsXML = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
	`</Relationships>`

const stylesXMLPart = xml.Header + `<w:styles xmlns:w="` + wordNS + `">` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/>` +
	`<w:pPr><w:keepNext/><w:spacing w:before="240" w:after="120"/></w:pPr><w:rPr><w:b/><w:sz w:val="32"/></w:rPr></w:style>` +
	`</w:styles>`

// US Letter in twentieths of a point.
const sectionXML = `<w:sectPr><w:pgSz w:w="12240" w:h="15840"/>` +
	`<w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="720" w:footer="720" w:gutter="0"/></w:sectPr>`
