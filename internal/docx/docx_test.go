package docx

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beabigegg/Translate-Tool/internal/document"
	"github.com/beabigegg/Translate-Tool/internal/parser"
	"github.com/beabigegg/Translate-Tool/internal/render"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

func writeDocx(t *testing.T, dir, name string, parts map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for part, content := range parts {
		w, err := zw.Create(part)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

const sampleBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"
 xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006"
 xmlns:wps="http://schemas.microsoft.com/office/word/2010/wordprocessingShape"><w:body>
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Annual Report</w:t></w:r></w:p>
<w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr><w:r><w:t xml:space="preserve">First </w:t></w:r><w:r><w:t>paragraph</w:t><w:tab/><w:t>text.</w:t></w:r></w:p>
<w:tbl><w:tr><w:tc><w:p><w:r><w:t>Cell one</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Cell two</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
<w:p><w:r><w:t>Anchor text</w:t></w:r><w:r><mc:AlternateContent><mc:Choice Requires="wps"><w:drawing><wps:txbx><w:txbxContent><w:p><w:r><w:t>Box text</w:t></w:r></w:p></w:txbxContent></wps:txbx></w:drawing></mc:Choice><mc:Fallback><w:pict><w:txbxContent><w:p><w:r><w:t>Box text</w:t></w:r></w:p></w:txbxContent></w:pict></mc:Fallback></mc:AlternateContent></w:r></w:p>
<w:p><w:r><w:rPr><w:i/></w:rPr><w:t>Old translation` + InsertMarker + `</w:t></w:r></w:p>
<w:p/>
<w:sectPr/></w:body></w:document>`

const sampleStyles = `<?xml version="1.0" encoding="UTF-8"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:style w:type="paragraph" w:styleId="Normal"><w:name w:val="Normal"/></w:style>
<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/></w:style>
</w:styles>`

const sampleHeader = `<?xml version="1.0" encoding="UTF-8"?>
<w:hdr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:p><w:r><w:t>Company Confidential</w:t></w:r></w:p></w:hdr>`

const sampleCore = `<?xml version="1.0" encoding="UTF-8"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
 xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/">
<dc:title>Sample Doc</dc:title><dc:creator>Jane</dc:creator><dc:subject>Finance</dc:subject>
<dcterms:created>2024-01-02T00:00:00Z</dcterms:created></cp:coreProperties>`

func sampleDocx(t *testing.T, dir string) string {
	return writeDocx(t, dir, "sample.docx", map[string]string{
		"[Content_Types].xml": contentTypesXML,
		"word/document.xml":   sampleBody,
		"word/styles.xml":     sampleStyles,
		"word/header1.xml":    sampleHeader,
		"docProps/core.xml":   sampleCore,
	})
}

func contents(doc *document.Document) []string {
	var out []string
	for _, e := range doc.Elements {
		out = append(out, e.Content)
	}
	return out
}

func TestParser(t *testing.T) {
	doc, err := NewParser().Parse(context.Background(), sampleDocx(t, t.TempDir()), parser.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, SourceType, doc.SourceType)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, parser.DefaultPageWidth, doc.Pages[0].Width)
	assert.Equal(t, "Sample Doc", doc.Metadata.Title)
	assert.Equal(t, "Jane", doc.Metadata.Author)
	assert.Equal(t, "Finance", doc.Metadata.Subject)
	assert.Equal(t, "2024-01-02T00:00:00Z", doc.Metadata.CreationDate)
	assert.True(t, doc.Metadata.HasTextLayer)

	assert.Equal(t, []string{
		"Annual Report",
		"First paragraph text.",
		"Cell one",
		"Cell two",
		"Anchor text",
		"Box text",
		"Company Confidential",
	}, contents(doc))

	byText := make(map[string]*document.Element)
	for _, e := range doc.Elements {
		assert.Nil(t, e.BBox)
		byText[e.Content] = e
	}
	assert.Equal(t, document.TypeTitle, byText["Annual Report"].Type)
	assert.Equal(t, "heading 1", byText["Annual Report"].Metadata["style"])
	assert.Equal(t, 0, byText["Annual Report"].Metadata[metaIndex])
	assert.Equal(t, "word/header1.xml", byText["Company Confidential"].Metadata[metaPart])
	assert.Equal(t, document.TypeText, byText["First paragraph text."].Type)

	cell := byText["Cell two"]
	assert.Equal(t, document.TypeTableCell, cell.Type)
	assert.Equal(t, true, cell.Metadata["in_table"])
	assert.Equal(t, 1, cell.Metadata["row"])
	assert.Equal(t, 2, cell.Metadata["col"])

	assert.Equal(t, "TextBox", byText["Box text"].Metadata["context"])

	head := byText["Company Confidential"]
	assert.Equal(t, document.TypeHeader, head.Type)
	assert.False(t, head.ShouldTranslate)
	assert.NoError(t, doc.Validate())
}

func TestParserErrors(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	_, err := NewParser().Parse(ctx, filepath.Join(dir, "none.docx"), parser.DefaultOptions())
	assert.True(t, types.IsCode(err, types.ErrFileNotFound))

	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hello"), 0644))
	_, err = NewParser().Parse(ctx, txt, parser.DefaultOptions())
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))

	junk := filepath.Join(dir, "junk.docx")
	require.NoError(t, os.WriteFile(junk, []byte("not a zip"), 0644))
	_, err = NewParser().Parse(ctx, junk, parser.DefaultOptions())
	assert.True(t, types.IsCode(err, types.ErrExtractionUnavailable))

	noBody := writeDocx(t, dir, "empty.docx", map[string]string{"word/styles.xml": sampleStyles})
	_, err = NewParser().Parse(ctx, noBody, parser.DefaultOptions())
	assert.True(t, types.IsCode(err, types.ErrExtractionUnavailable))
}

func TestElementType(t *testing.T) {
	styles := map[string]string{"Cap": "Caption", "LP": "List Paragraph", "T": "Title"}
	tests := []struct {
		para paragraph
		want document.ElementType
	}{
		{paragraph{Part: partDocument}, document.TypeText},
		{paragraph{Part: partDocument, StyleID: "T"}, document.TypeTitle},
		{paragraph{Part: partDocument, StyleID: "Cap"}, document.TypeCaption},
		{paragraph{Part: partDocument, StyleID: "LP"}, document.TypeListItem},
		{paragraph{Part: partDocument, StyleID: "Heading2"}, document.TypeTitle},
		{paragraph{Part: partDocument, Table: true, StyleID: "T"}, document.TypeTableCell},
		{paragraph{Part: "word/footer2.xml"}, document.TypeFooter},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, elementType(tt.para, styles), tt.para.StyleID)
	}
}

func TestScanParagraphOffsets(t *testing.T) {
	data := []byte(`<w:body xmlns:w="` + wordNS + `"><w:p><w:r><w:t>a</w:t><w:br/><w:t>b</w:t></w:r></w:p><w:p/></w:body>`)
	paras, err := scanParagraphs(partDocument, data)
	require.NoError(t, err)
	require.Len(t, paras, 2)
	assert.Equal(t, "a\nb", paras[0].Text)
	assert.Equal(t, "<w:p>", string(data[paras[0].Start:paras[0].Start+5]))
	assert.Equal(t, "</w:p>", string(data[paras[0].End-6:paras[0].End]))
	assert.Equal(t, "<w:p/>", string(data[paras[1].Start:paras[1].End]))
}

var sampleTranslations = map[string]string{
	"Annual Report":         "Rapport annuel",
	"First paragraph text.": "Premier paragraphe.",
	"Cell one":              "Cellule un",
	"Box text":              "Texte encadré",
}

func TestInlineRendererSplicesIntoSource(t *testing.T) {
	dir := t.TempDir()
	doc, err := NewParser().Parse(context.Background(), sampleDocx(t, dir), parser.DefaultOptions())
	require.NoError(t, err)

	out := filepath.Join(dir, "out", "sample_fr.docx")
	res, err := NewInlineRenderer().Render(context.Background(), doc, render.TranslationLookup(sampleTranslations), out,
		render.Options{Mode: render.ModeInline, TargetLang: "fr"})
	require.NoError(t, err)
	assert.Equal(t, render.ModeInline, res.Mode)
	assert.Equal(t, 4, res.Placed)
	assert.Equal(t, 2, res.Missing)
	assert.Equal(t, 1, res.Pages)
	assert.False(t, res.Stopped)

	pk, err := readPackage(out)
	require.NoError(t, err)
	paras, err := scanParagraphs(partDocument, pk.Part(partDocument))
	require.NoError(t, err)
	var texts []string
	for _, p := range paras {
		texts = append(texts, p.Text)
	}
	assert.Equal(t, []string{
		"Annual Report",
		"Rapport annuel" + InsertMarker,
		"First paragraph text.",
		"Premier paragraphe." + InsertMarker,
		"Cell one",
		"Cellule un" + InsertMarker,
		"Cell two",
		"Anchor text",
		"Box text",
		"Texte encadré" + InsertMarker,
		"Old translation" + InsertMarker,
		"",
	}, texts)
	assert.Equal(t, sampleHeader, string(pk.Part("word/header1.xml")), "untranslated parts are kept byte for byte")

	again, err := NewParser().Parse(context.Background(), out, parser.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, contents(doc), contents(again), "inserted translations are not extracted again")
}

func TestInlineRendererBuildsNewDocument(t *testing.T) {
	dir := t.TempDir()
	doc := document.New(filepath.Join(dir, "scan.pdf"), "pdf")
	doc.Metadata.Title = "Scan & Co"
	doc.Pages = []document.PageInfo{{PageNum: 0, Width: 612, Height: 792}, {PageNum: 1, Width: 612, Height: 792}}
	doc.Elements = []*document.Element{
		{ID: "a", Content: "Hello", Type: document.TypeText, PageNum: 0, ShouldTranslate: true},
		{ID: "b", Content: "Running head", Type: document.TypeHeader, PageNum: 0},
		{ID: "c", Content: "World", Type: document.TypeText, PageNum: 1, ShouldTranslate: true},
	}

	out := filepath.Join(dir, "scan_fr.docx")
	res, err := NewInlineRenderer().Render(context.Background(), doc, render.TranslationLookup(map[string]string{"Hello": "Bonjour"}), out,
		render.Options{Mode: render.ModeInline, TargetLang: "fr", ShowMissing: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 1, res.Placed)
	assert.Equal(t, 1, res.Missing)

	pk, err := readPackage(out)
	require.NoError(t, err)
	paras, err := scanParagraphs(partDocument, pk.Part(partDocument))
	require.NoError(t, err)
	var texts []string
	for _, p := range paras {
		texts = append(texts, p.Text)
	}
	assert.Equal(t, []string{
		"-- Page 1 --",
		"Hello",
		"Bonjour" + InsertMarker,
		"Running head",
		"-- Page 2 --",
		"World",
		"[Translation missing] World" + InsertMarker,
	}, texts)

	parsed, err := NewParser().Parse(context.Background(), out, parser.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "Scan & Co", parsed.Metadata.Title)
	assert.Equal(t, []string{"-- Page 1 --", "Hello", "Running head", "-- Page 2 --", "World"}, contents(parsed))
	assert.Equal(t, document.TypeTitle, parsed.Elements[0].Type)
}

func TestInlineRendererRejectsOtherFormats(t *testing.T) {
	dir := t.TempDir()
	doc := document.New(filepath.Join(dir, "a.pdf"), "pdf")
	lookup := render.TranslationLookup(nil)

	for _, name := range []string{"out.pdf", "out.md"} {
		out := filepath.Join(dir, name)
		_, err := NewInlineRenderer().Render(context.Background(), doc, lookup, out, render.Options{TargetLang: "fr"})
		assert.True(t, types.IsCode(err, types.ErrUnsupportedOutputMode), name)
		assert.NoFileExists(t, out)
	}
}

func TestInlineRendererStopsWhenCancelled(t *testing.T) {
	dir := t.TempDir()
	doc := document.New(filepath.Join(dir, "a.pdf"), "pdf")
	doc.Pages = []document.PageInfo{{PageNum: 0, Width: 612, Height: 792}}
	doc.Elements = []*document.Element{{ID: "a", Content: "Hello", PageNum: 0, Type: document.TypeText, ShouldTranslate: true}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := filepath.Join(dir, "a.docx")
	res, err := NewInlineRenderer().Render(ctx, doc, render.TranslationLookup(nil), out, render.Options{TargetLang: "fr"})
	require.NoError(t, err)
	assert.True(t, res.Stopped)
	assert.Equal(t, 0, res.Pages)
	assert.NotEmpty(t, res.Warnings)
	assert.FileExists(t, out)
}

func TestInlineRendererKeepsHeaderSharingBodyText(t *testing.T) {
	dir := t.TempDir()
	src := writeDocx(t, dir, "memo.docx", map[string]string{
		"[Content_Types].xml": contentTypesXML,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Memo</w:t></w:r></w:p><w:p><w:r><w:t>Confidential</w:t></w:r></w:p></w:body></w:document>`,
		"word/header1.xml": `<?xml version="1.0" encoding="UTF-8"?>
<w:hdr xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:p><w:r><w:t>Confidential</w:t></w:r></w:p></w:hdr>`,
	})
	opts := parser.DefaultOptions()
	require.True(t, opts.SkipHeaderFooter)
	doc, err := NewParser().Parse(context.Background(), src, opts)
	require.NoError(t, err)

	// positions survive a save and load
	saved := filepath.Join(dir, "memo.json")
	require.NoError(t, doc.Save(saved))
	doc, err = document.Load(saved)
	require.NoError(t, err)

	out := filepath.Join(dir, "memo_de.docx")
	res, err := NewInlineRenderer().Render(context.Background(), doc,
		render.TranslationLookup(map[string]string{"Memo": "Notiz", "Confidential": "Vertraulich"}), out,
		render.Options{Mode: render.ModeInline, TargetLang: "de"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Placed)

	pk, err := readPackage(out)
	require.NoError(t, err)
	assert.Contains(t, string(pk.Part(partDocument)), "Vertraulich")
	assert.NotContains(t, string(pk.Part("word/header1.xml")), "Vertraulich")
}

func TestInlineRendererSkipsChangedSource(t *testing.T) {
	dir := t.TempDir()
	path := sampleDocx(t, dir)
	doc, err := NewParser().Parse(context.Background(), path, parser.DefaultOptions())
	require.NoError(t, err)

	// the first paragraph was edited after parsing
	for _, e := range doc.Elements {
		if e.Content == "Annual Report" {
			e.Content = "Quarterly Report"
		}
	}
	out := filepath.Join(dir, "sample_fr.docx")
	res, err := NewInlineRenderer().Render(context.Background(), doc,
		render.TranslationLookup(map[string]string{"Quarterly Report": "Rapport trimestriel"}), out,
		render.Options{Mode: render.ModeInline, TargetLang: "fr"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Placed)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "changed since parsing")

	pk, err := readPackage(out)
	require.NoError(t, err)
	assert.NotContains(t, string(pk.Part(partDocument)), "Rapport trimestriel")
}

func TestInlineRendererCountsUnchangedTranslations(t *testing.T) {
	dir := t.TempDir()
	doc := document.New(filepath.Join(dir, "a.pdf"), "pdf")
	doc.Pages = []document.PageInfo{{PageNum: 0, Width: 612, Height: 792}}
	doc.Elements = []*document.Element{
		{ID: "a", Content: "Hello", PageNum: 0, Type: document.TypeText, ShouldTranslate: true},
		{ID: "b", Content: "ISO 9001", PageNum: 0, Type: document.TypeText, ShouldTranslate: true},
	}

	out := filepath.Join(dir, "a.docx")
	res, err := NewInlineRenderer().Render(context.Background(), doc,
		render.TranslationLookup(map[string]string{"Hello": "Hallo", "ISO 9001": "ISO 9001"}), out,
		render.Options{Mode: render.ModeInline, TargetLang: "de"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Placed)
	assert.Equal(t, 1, res.Unchanged)
	assert.Equal(t, 0, res.Missing)

	pk, err := readPackage(out)
	require.NoError(t, err)
	paras, err := scanParagraphs(partDocument, pk.Part(partDocument))
	require.NoError(t, err)
	var inserted int
	for _, p := range paras {
		if p.inserted() {
			inserted++
		}
	}
	assert.Equal(t, 1, inserted)
}
