package pipeline

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beabigegg/Translate-Tool/internal/config"
	"github.com/beabigegg/Translate-Tool/internal/document"
	"github.com/beabigegg/Translate-Tool/internal/parser"
	"github.com/beabigegg/Translate-Tool/internal/render"
	"github.com/beabigegg/Translate-Tool/internal/results"
	"github.com/beabigegg/Translate-Tool/internal/translator"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

const notes = "# Project Notes\n\nHello world\n\n42\n"

var notesTranslations = translator.MapTranslator{
	"Project Notes": "專案筆記",
	"Hello world":   "你好世界",
}

func testPipeline(t *testing.T, tr translator.Translator) *Pipeline {
	t.Helper()
	cfg := config.Default()
	cfg.Pipeline.EnableOCR = false
	cfg.Pipeline.WorkDir = t.TempDir()
	return New(cfg, tr)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// fakeParser counts its calls and returns a fixed document or error.
type fakeParser struct {
	mu    sync.Mutex
	calls int
	err   error
	texts []string
}

func (f *fakeParser) Extensions() []string { return []string{".fake"} }

func (f *fakeParser) Parse(ctx context.Context, path string, opts parser.Options) (*document.Document, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	doc := document.New(path, "text")
	doc.Pages = []document.PageInfo{{Width: 612, Height: 792}}
	for i, text := range f.texts {
		doc.Elements = append(doc.Elements, &document.Element{
			ID:              "e" + string(rune('a'+i)),
			Content:         text,
			Type:            document.TypeText,
			ShouldTranslate: true,
		})
	}
	doc.Metadata.PageCount = 1
	doc.Metadata.HasTextLayer = true
	return doc, nil
}

func (f *fakeParser) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestParseText(t *testing.T) {
	p := testPipeline(t, notesTranslations)
	path := writeFile(t, t.TempDir(), "notes.txt", notes)

	doc, err := p.Parse(context.Background(), path, p.ParseOptions())
	require.NoError(t, err)
	assert.Equal(t, "text", doc.SourceType)
	require.Len(t, doc.Elements, 3)
	assert.Equal(t, document.TypeTitle, doc.Elements[0].Type)
	assert.Equal(t, "Project Notes", doc.Elements[0].Content)
	assert.Empty(t, doc.Warnings)
}

func TestParseUnsupportedExtension(t *testing.T) {
	p := testPipeline(t, notesTranslations)
	path := writeFile(t, t.TempDir(), "slides.odp", "x")

	_, err := p.Parse(context.Background(), path, p.ParseOptions())
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))
	assert.NotContains(t, p.SupportedExtensions(), ".odp")
	for _, ext := range []string{".docx", ".pptx", ".xlsx"} {
		assert.Contains(t, p.SupportedExtensions(), ext)
	}
}

func TestParseFallsBackToNextParser(t *testing.T) {
	p := testPipeline(t, notesTranslations)
	first := &fakeParser{err: types.NewAppError(types.ErrExtractionUnavailable, "encrypted", nil)}
	second := &fakeParser{texts: []string{"Recovered text"}}
	p.RegisterParser("first", first)
	p.RegisterParser("second", second)
	path := writeFile(t, t.TempDir(), "in.fake", "x")

	doc, err := p.Parse(context.Background(), path, p.ParseOptions())
	require.NoError(t, err)
	require.Len(t, doc.Elements, 1)
	require.Len(t, doc.Warnings, 1)
	assert.Contains(t, doc.Warnings[0], "fallback from first")
	assert.Equal(t, 1, first.callCount())
	assert.Equal(t, 1, second.callCount())
}

func TestParseStopsOnHardErrors(t *testing.T) {
	p := testPipeline(t, notesTranslations)
	first := &fakeParser{err: types.NewAppError(types.ErrInvalidInput, "not a document", nil)}
	second := &fakeParser{texts: []string{"never read"}}
	p.RegisterParser("first", first)
	p.RegisterParser("second", second)
	path := writeFile(t, t.TempDir(), "in.fake", "x")

	_, err := p.Parse(context.Background(), path, p.ParseOptions())
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))
	assert.Equal(t, 0, second.callCount())
}

func TestParseAllParsersUnavailable(t *testing.T) {
	p := testPipeline(t, notesTranslations)
	p.RegisterParser("first", &fakeParser{err: types.NewAppError(types.ErrExtractionUnavailable, "broken", nil)})
	p.RegisterParser("second", &fakeParser{err: types.NewAppError(types.ErrMissingCapability, "no engine", nil)})
	path := writeFile(t, t.TempDir(), "in.fake", "x")

	_, err := p.Parse(context.Background(), path, p.ParseOptions())
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrMissingCapability))
}

func TestTranslatePassesThroughNumbers(t *testing.T) {
	p := testPipeline(t, notesTranslations)
	path := writeFile(t, t.TempDir(), "notes.txt", notes)
	doc, err := p.Parse(context.Background(), path, p.ParseOptions())
	require.NoError(t, err)

	tr, err := p.Translate(context.Background(), doc, "zh-TW")
	require.NoError(t, err)
	assert.Equal(t, 2, tr.Requested)
	assert.Equal(t, 2, tr.Translated)
	assert.Equal(t, 1, tr.Passthrough)
	assert.Equal(t, 0, tr.Failed)
	assert.Equal(t, "42", tr.Translations["42"])
	assert.Equal(t, "你好世界", tr.Translations["Hello world"])
	_, ok := doc.Elements[1].Translation()
	assert.False(t, ok, "document must not be modified")
}

func TestTranslateCountsFailures(t *testing.T) {
	p := testPipeline(t, translator.MapTranslator{"Hello world": "Bonjour le monde"})
	path := writeFile(t, t.TempDir(), "notes.txt", notes)
	doc, err := p.Parse(context.Background(), path, p.ParseOptions())
	require.NoError(t, err)

	tr, err := p.Translate(context.Background(), doc, "fr")
	require.NoError(t, err)
	assert.Equal(t, 1, tr.Translated)
	assert.Equal(t, 1, tr.Failed)
	_, ok := tr.Translations["Project Notes"]
	assert.False(t, ok)
}

func TestTranslateLimits(t *testing.T) {
	p := testPipeline(t, notesTranslations)
	path := writeFile(t, t.TempDir(), "notes.txt", notes)
	doc, err := p.Parse(context.Background(), path, p.ParseOptions())
	require.NoError(t, err)

	p.cfg.Pipeline.MaxSegments = 1
	_, err = p.Translate(context.Background(), doc, "zh-TW")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))

	p.cfg.Pipeline.MaxSegments = 0
	p.cfg.Pipeline.MaxTextLength = 5
	_, err = p.Translate(context.Background(), doc, "zh-TW")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))
}

func TestTranslateWithoutTranslator(t *testing.T) {
	p := testPipeline(t, nil)
	doc := document.New("empty.txt", "text")

	_, err := p.Translate(context.Background(), doc, "ja")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrConfig))
}

func TestTranslateStopsWhenCancelled(t *testing.T) {
	p := testPipeline(t, notesTranslations)
	path := writeFile(t, t.TempDir(), "notes.txt", notes)
	doc, err := p.Parse(context.Background(), path, p.ParseOptions())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr, err := p.Translate(ctx, doc, "zh-TW")
	require.NoError(t, err)
	assert.True(t, tr.Stopped)
	assert.Equal(t, 0, tr.Translated)
}

func TestProcessMultipleTargets(t *testing.T) {
	p := testPipeline(t, notesTranslations)
	dir := t.TempDir()
	input := writeFile(t, dir, "notes.txt", notes)
	outDir := filepath.Join(dir, "out")

	var mu sync.Mutex
	var statuses []types.Status
	p.SetProgress(func(s types.Status) {
		mu.Lock()
		statuses = append(statuses, s)
		mu.Unlock()
	})

	res, err := p.Process(context.Background(), Job{
		Input:     input,
		Targets:   []string{"zh-TW", "ja"},
		Mode:      render.ModeInline,
		OutputDir: outDir,
	})
	require.NoError(t, err)
	assert.False(t, res.Stopped)
	require.Len(t, res.Outputs, 2)
	assert.Equal(t, filepath.Join(outDir, "notes_translated_zh_TW.md"), res.Outputs[0].Path)
	assert.Equal(t, filepath.Join(outDir, "notes_translated_ja.md"), res.Outputs[1].Path)

	for _, out := range res.Outputs {
		data, err := os.ReadFile(out.Path)
		require.NoError(t, err)
		text := string(data)
		assert.Contains(t, text, "### Project Notes\n\n*專案筆記*")
		assert.Contains(t, text, "Hello world\n\n*你好世界*")
		assert.Equal(t, 2, out.Render.Placed)
		assert.Equal(t, 1, out.Render.Unchanged, "42 is kept as is")
		assert.Equal(t, 0, out.Render.Missing)
	}

	require.NotEmpty(t, statuses)
	assert.Equal(t, types.PhaseParsing, statuses[0].Phase)
	last := statuses[len(statuses)-1]
	assert.Equal(t, types.PhaseComplete, last.Phase)
	assert.Equal(t, 100, last.Progress)
}

func TestProcessRejectsInlinePDFBeforeParsing(t *testing.T) {
	p := testPipeline(t, notesTranslations)
	fake := &fakeParser{texts: []string{"Hello world"}}
	p.RegisterParser("fake", fake)
	dir := t.TempDir()
	input := writeFile(t, dir, "in.fake", "x")
	output := filepath.Join(dir, "out.pdf")

	_, err := p.Process(context.Background(), Job{
		Input:   input,
		Targets: []string{"fr"},
		Mode:    render.ModeInline,
		Output:  output,
	})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrUnsupportedOutputMode))
	assert.Equal(t, 0, fake.callCount())
	assert.NoFileExists(t, output)
}

func TestProcessRejectsOverlayForText(t *testing.T) {
	p := testPipeline(t, notesTranslations)
	dir := t.TempDir()
	input := writeFile(t, dir, "notes.txt", notes)
	output := filepath.Join(dir, "notes.pdf")

	_, err := p.Process(context.Background(), Job{
		Input:   input,
		Targets: []string{"fr"},
		Mode:    render.ModeOverlay,
		Output:  output,
	})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrUnsupportedOutputMode))
	assert.NoFileExists(t, output)
}

// plainPDFParser stands in for the plain text fallback: PDF elements
// without positions.
type plainPDFParser struct{ fakeParser }

func (f *plainPDFParser) Extensions() []string { return []string{".pdf"} }

func (f *plainPDFParser) Parse(ctx context.Context, path string, opts parser.Options) (*document.Document, error) {
	doc, err := f.fakeParser.Parse(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	doc.SourceType = "pdf"
	return doc, nil
}

func TestProcessRejectsOverlayWithoutPositions(t *testing.T) {
	p := testPipeline(t, notesTranslations)
	plain := &plainPDFParser{fakeParser{texts: []string{"Hello world"}}}
	p.chains[".pdf"] = []stage{{name: "pdf-plain", parser: plain}}
	var phases []types.Phase
	p.SetProgress(func(s types.Status) { phases = append(phases, s.Phase) })

	dir := t.TempDir()
	input := writeFile(t, dir, "scan.pdf", "x")
	output := filepath.Join(dir, "scan_fr.pdf")
	_, err := p.Process(context.Background(), Job{
		Input:   input,
		Targets: []string{"fr"},
		Mode:    render.ModeOverlay,
		Output:  output,
	})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrUnsupportedOutputMode))
	assert.Equal(t, 1, plain.callCount())
	assert.NotContains(t, phases, types.PhaseTranslating)
	assert.NoFileExists(t, output)
}

func writeWorkbook(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for part, content := range map[string]string{
		"xl/workbook.xml": `<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"
 xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><sheets><sheet name="Notes" sheetId="1" r:id="rId1"/></sheets></workbook>`,
		"xl/_rels/workbook.xml.rels": `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.xml"/></Relationships>`,
		"xl/worksheets/sheet1.xml": `<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>
<row r="1"><c r="A1" t="inlineStr"><is><t>Hello world</t></is></c><c r="B1" t="inlineStr"><is><t>42</t></is></c></row></sheetData></worksheet>`,
	} {
		w, err := zw.Create(part)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

func TestProcessWorkbookKeepsFormat(t *testing.T) {
	p := testPipeline(t, notesTranslations)
	dir := t.TempDir()
	input := writeWorkbook(t, dir, "book.xlsx")

	res, err := p.Process(context.Background(), Job{
		Input:   input,
		Targets: []string{"zh-TW"},
		Mode:    render.ModeInline,
	})
	require.NoError(t, err)
	require.Len(t, res.Outputs, 1)
	out := res.Outputs[0]
	assert.Equal(t, filepath.Join(dir, "book_translated.xlsx"), out.Path)
	assert.Equal(t, 1, out.Render.Placed)
	assert.Equal(t, 1, out.Render.Unchanged)

	doc, err := p.Parse(context.Background(), out.Path, p.ParseOptions())
	require.NoError(t, err)
	require.Len(t, doc.Elements, 2)
	assert.Equal(t, "Hello world", doc.Elements[0].Content)
}

func TestProcessRejectsSlidesFromWorkbook(t *testing.T) {
	p := testPipeline(t, notesTranslations)
	dir := t.TempDir()
	input := writeWorkbook(t, dir, "book.xlsx")
	output := filepath.Join(dir, "book.pptx")

	_, err := p.Process(context.Background(), Job{
		Input:   input,
		Targets: []string{"fr"},
		Mode:    render.ModeInline,
		Output:  output,
	})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrUnsupportedOutputMode))
	assert.NoFileExists(t, output)
}

func TestProcessInputErrors(t *testing.T) {
	p := testPipeline(t, notesTranslations)
	dir := t.TempDir()

	_, err := p.Process(context.Background(), Job{Input: filepath.Join(dir, "missing.txt"), Targets: []string{"fr"}})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrFileNotFound))

	input := writeFile(t, dir, "notes.txt", notes)
	_, err = p.Process(context.Background(), Job{Input: input})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))
}

func TestProcessStopsWhenCancelled(t *testing.T) {
	p := testPipeline(t, notesTranslations)
	dir := t.TempDir()
	input := writeFile(t, dir, "notes.txt", notes)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := p.Process(ctx, Job{Input: input, Targets: []string{"fr"}, Mode: render.ModeInline})
	require.NoError(t, err)
	assert.True(t, res.Stopped)
	assert.Empty(t, res.Outputs)
	assert.NoFileExists(t, filepath.Join(dir, "notes_translated.md"))
}

func TestProcessWritesJobRecord(t *testing.T) {
	p := testPipeline(t, notesTranslations)
	manager, err := results.NewManager(t.TempDir())
	require.NoError(t, err)
	p.SetResults(manager)
	dir := t.TempDir()
	input := writeFile(t, dir, "notes.txt", notes)

	_, err = p.Process(context.Background(), Job{Input: input, Targets: []string{"zh-TW", "ja"}, Mode: render.ModeInline})
	require.NoError(t, err)

	recs, err := manager.List()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, results.StatusComplete, rec.Status)
	assert.Equal(t, "text", rec.SourceType)
	assert.Equal(t, "inline", rec.Mode)
	assert.Equal(t, 3, rec.Elements)
	assert.Len(t, rec.Outputs, 2)
	assert.Equal(t, 4, rec.Translated)

	_, err = p.Process(context.Background(), Job{Input: input, Targets: []string{"fr"}, Mode: render.ModeOverlay, Output: filepath.Join(dir, "x.pdf")})
	require.Error(t, err)
	rec, err = manager.Load(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, results.StatusError, rec.Status)
	assert.NotEmpty(t, rec.ErrorMessage)
}

func TestOutputPaths(t *testing.T) {
	in := filepath.Join("in", "report.pdf")

	paths, err := OutputPaths(Job{Input: in, Targets: []string{"zh-TW"}, Mode: render.ModeOverlay})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("in", "report_translated.pdf")}, paths)

	paths, err = OutputPaths(Job{Input: in, Targets: []string{"zh-TW"}, Mode: render.ModeInline, OutputDir: "out"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("out", "report_translated.docx")}, paths)

	paths, err = OutputPaths(Job{Input: in, Targets: []string{"zh-TW", "ja"}, Output: filepath.Join("out", "x.docx")})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("out", "x_zh_TW.docx"), filepath.Join("out", "x_ja.docx")}, paths)

	_, err = OutputPaths(Job{Input: in, Targets: []string{"ja", "ja"}, Mode: render.ModeOverlay})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))

	_, err = OutputPaths(Job{Input: in, Targets: []string{"ja"}, Output: "out.html"})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrUnsupportedOutputMode))
}

func TestDefaultFormat(t *testing.T) {
	assert.Equal(t, render.FormatPDF, DefaultFormat(render.ModeSideBySide, "a.pdf"))
	assert.Equal(t, render.FormatDOCX, DefaultFormat(render.ModeInline, "a.pdf"))
	assert.Equal(t, render.FormatDOCX, DefaultFormat(render.ModeInline, "a.docx"))
	assert.Equal(t, render.FormatMarkdown, DefaultFormat(render.ModeInline, "a.txt"))
	assert.Equal(t, render.FormatPPTX, DefaultFormat(render.ModeInline, "a.pptx"))
	assert.Equal(t, render.FormatXLSX, DefaultFormat(render.ModeInline, "a.XLSX"))
	assert.Equal(t, render.FormatPDF, DefaultFormat(render.ModeOverlay, "a.xlsx"))
}

func TestRunBatch(t *testing.T) {
	p := testPipeline(t, notesTranslations)
	dir := t.TempDir()
	var jobs []Job
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		jobs = append(jobs, Job{Input: writeFile(t, dir, name, notes), Targets: []string{"ja"}, Mode: render.ModeInline})
	}
	jobs = append(jobs, Job{Input: filepath.Join(dir, "missing.txt"), Targets: []string{"ja"}, Mode: render.ModeInline})

	items := p.RunBatch(context.Background(), jobs, 2)
	require.Len(t, items, 4)
	for i, it := range items[:3] {
		require.NoError(t, it.Err)
		assert.Equal(t, jobs[i].Input, it.Result.Input)
		require.Len(t, it.Result.Outputs, 1)
		assert.FileExists(t, it.Result.Outputs[0].Path)
	}
	require.Error(t, items[3].Err)
	assert.True(t, types.IsCode(items[3].Err, types.ErrFileNotFound))
}

func TestRunBatchCancelled(t *testing.T) {
	p := testPipeline(t, notesTranslations)
	dir := t.TempDir()
	jobs := []Job{
		{Input: writeFile(t, dir, "a.txt", notes), Targets: []string{"ja"}, Mode: render.ModeInline},
		{Input: writeFile(t, dir, "b.txt", notes), Targets: []string{"ja"}, Mode: render.ModeInline},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	items := p.RunBatch(ctx, jobs, 0)
	require.Len(t, items, 2)
	for _, it := range items {
		require.NoError(t, it.Err)
		assert.True(t, it.Result.Stopped)
	}
}
