package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/beabigegg/Translate-Tool/internal/document"
	"github.com/beabigegg/Translate-Tool/internal/logger"
	"github.com/beabigegg/Translate-Tool/internal/render"
	"github.com/beabigegg/Translate-Tool/internal/results"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

// Job translates one input file into one or more languages.
type Job struct {
	Input   string
	Targets []string
	// Mode defaults to the configured render mode.
	Mode render.Mode
	// Format picks the output format; empty derives it from the mode and
	// the input.
	Format render.Format
	// Output is an explicit output path. With several targets each output
	// gets a _<lang> suffix.
	Output    string
	OutputDir string
}

// Output is one written file.
type Output struct {
	TargetLang string
	Path       string
	Translate  *TranslateResult
	Render     *render.Result
}

// JobResult is the outcome of a job. Stopped means the job was cancelled
// and Outputs holds what was written before that.
type JobResult struct {
	Input    string
	Document *document.Document
	Outputs  []Output
	Stopped  bool
	Warnings []string
}

// Process parses the input once, then translates and renders it for each
// target language. Output paths and the mode are validated before the
// input is parsed.
func (p *Pipeline) Process(ctx context.Context, job Job) (res *JobResult, err error) {
	res = &JobResult{Input: job.Input}
	rec := p.startRecord(job)
	defer func() { p.finishRecord(rec, res, err) }()

	if len(job.Targets) == 0 {
		return res, types.NewAppError(types.ErrInvalidInput, "no target language given", nil)
	}
	if job.Mode == "" {
		mode, err := render.ParseMode(p.cfg.Render.Mode)
		if err != nil {
			return res, err
		}
		job.Mode = mode
	}
	paths, err := OutputPaths(job)
	if err != nil {
		return res, err
	}
	if err := p.precheck(job, paths); err != nil {
		return res, err
	}
	if rec != nil {
		rec.Mode = string(job.Mode)
	}

	total := len(job.Targets)
	p.emit(types.PhaseParsing, 0, 0, total, "parsing "+filepath.Base(job.Input))
	doc, err := p.Parse(ctx, job.Input, p.parseOpts)
	if err != nil {
		p.emitError(err)
		return res, err
	}
	res.Document = doc
	res.Warnings = append(res.Warnings, doc.Warnings...)
	if doc.Stopped {
		res.Stopped = true
		p.emit(types.PhaseStopped, 10, 0, total, "stopped while parsing")
		return res, nil
	}
	// a fallback parser may have produced text without positions
	if err := render.CheckPlaceable(doc, job.Mode); err != nil {
		p.emitError(err)
		return res, err
	}

	for i, lang := range job.Targets {
		if ctx.Err() != nil {
			res.Stopped = true
			break
		}
		base := 10 + 90*i/total
		p.emit(types.PhaseTranslating, base, i, total, "translating to "+lang)
		tr, err := p.Translate(ctx, doc, lang)
		if err != nil {
			p.emitError(err)
			return res, err
		}
		if tr.Stopped {
			res.Stopped = true
			break
		}

		p.emit(types.PhaseRendering, base+45/total, i, total, "rendering "+filepath.Base(paths[i]))
		rr, err := p.Render(ctx, doc, tr.Translations, paths[i], job.Mode, lang)
		if err != nil {
			p.emitError(err)
			return res, err
		}
		res.Outputs = append(res.Outputs, Output{TargetLang: lang, Path: paths[i], Translate: tr, Render: rr})
		res.Warnings = append(res.Warnings, rr.Warnings...)
		p.log.Info("output written",
			logger.String("output", paths[i]),
			logger.String("targetLang", lang),
			logger.Int("translated", tr.Translated),
			logger.Int("missing", rr.Missing))
		if rr.Stopped {
			res.Stopped = true
			break
		}
	}

	if res.Stopped {
		p.emit(types.PhaseStopped, 100, len(res.Outputs), total, "stopped")
	} else {
		p.emit(types.PhaseComplete, 100, total, total, "done")
	}
	return res, nil
}

// precheck validates every output against the mode before any work is
// done, using the source type the input extension implies.
func (p *Pipeline) precheck(job Job, paths []string) error {
	if _, err := os.Stat(job.Input); err != nil {
		if os.IsNotExist(err) {
			return types.NewAppError(types.ErrFileNotFound, "file not found: "+job.Input, err)
		}
		return types.NewAppError(types.ErrInvalidInput, "cannot access "+job.Input, err)
	}
	st := sourceTypeOf(job.Input)
	for _, path := range paths {
		format, err := render.FormatFromPath(path)
		if err != nil {
			return err
		}
		if err := render.Validate(job.Mode, format, st); err != nil {
			return err
		}
	}
	return nil
}

func sourceTypeOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "pdf"
	case ".docx":
		return "docx"
	case ".pptx":
		return "pptx"
	case ".xlsx":
		return "xlsx"
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff":
		return "image"
	}
	return "text"
}

// DefaultFormat is the output format used when a job names none: pdf for
// the fixed-page modes, Markdown for inline text input, the source format
// for presentations and workbooks and docx otherwise.
func DefaultFormat(mode render.Mode, input string) render.Format {
	if mode == render.ModeOverlay || mode == render.ModeSideBySide {
		return render.FormatPDF
	}
	switch sourceTypeOf(input) {
	case "text":
		return render.FormatMarkdown
	case "pptx":
		return render.FormatPPTX
	case "xlsx":
		return render.FormatXLSX
	}
	return render.FormatDOCX
}

// OutputPaths returns one output path per target. Without an explicit
// Output the file is <stem>_translated.<ext> next to the input or in
// OutputDir; several targets add a _<lang> suffix.
func OutputPaths(job Job) ([]string, error) {
	if len(job.Targets) == 0 {
		return nil, nil
	}
	var dir, stem, ext string
	if job.Output != "" {
		dir = filepath.Dir(job.Output)
		ext = filepath.Ext(job.Output)
		stem = strings.TrimSuffix(filepath.Base(job.Output), ext)
		if _, err := render.FormatFromPath(job.Output); err != nil {
			return nil, err
		}
	} else {
		format := job.Format
		if format == "" {
			format = DefaultFormat(job.Mode, job.Input)
		}
		dir = job.OutputDir
		if dir == "" {
			dir = filepath.Dir(job.Input)
		}
		base := filepath.Base(job.Input)
		stem = strings.TrimSuffix(base, filepath.Ext(base)) + "_translated"
		ext = "." + string(format)
	}

	paths := make([]string, len(job.Targets))
	for i, lang := range job.Targets {
		name := stem
		if len(job.Targets) > 1 {
			name += "_" + langSuffix(lang)
		}
		paths[i] = filepath.Join(dir, name+ext)
	}
	if len(job.Targets) > 1 {
		seen := make(map[string]bool, len(paths))
		for _, path := range paths {
			if seen[path] {
				return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "duplicate target language", path, nil)
			}
			seen[path] = true
		}
	}
	return paths, nil
}

func langSuffix(lang string) string {
	return strings.NewReplacer(" ", "_", "-", "_").Replace(strings.TrimSpace(lang))
}

func (p *Pipeline) emit(phase types.Phase, progress, current, total int, msg string) {
	if p.progress == nil {
		return
	}
	if progress > 100 {
		progress = 100
	}
	p.progress(types.Status{Phase: phase, Progress: progress, Message: msg, Current: current, Total: total})
}

func (p *Pipeline) emitError(err error) {
	if p.progress == nil {
		return
	}
	p.progress(types.Status{Phase: types.PhaseError, Message: "failed", Error: err.Error()})
}

func (p *Pipeline) startRecord(job Job) *results.JobRecord {
	if p.results == nil {
		return nil
	}
	rec, err := results.NewRecord(job.Input)
	if err != nil {
		return nil
	}
	rec.Targets = job.Targets
	if err := p.results.Save(rec); err != nil {
		p.log.Warn("failed to save job record", logger.String("input", job.Input), logger.Err(err))
	}
	return rec
}

func (p *Pipeline) finishRecord(rec *results.JobRecord, res *JobResult, err error) {
	if rec == nil {
		return
	}
	switch {
	case err != nil:
		rec.Status = results.StatusError
		rec.ErrorMessage = err.Error()
	case res.Stopped:
		rec.Status = results.StatusStopped
	default:
		rec.Status = results.StatusComplete
	}
	if doc := res.Document; doc != nil {
		rec.SourceType = doc.SourceType
		rec.Title = doc.Metadata.Title
		rec.Elements = len(doc.Elements)
	}
	rec.Translated, rec.Missing = 0, 0
	for _, out := range res.Outputs {
		rec.Outputs[out.TargetLang] = out.Path
		rec.Translated += out.Translate.Translated
		rec.Missing += out.Render.Missing
	}
	if err := p.results.Save(rec); err != nil {
		p.log.Warn("failed to save job record", logger.String("input", res.Input), logger.Err(err))
	}
}
