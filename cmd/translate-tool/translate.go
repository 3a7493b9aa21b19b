package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/beabigegg/Translate-Tool/internal/config"
	"github.com/beabigegg/Translate-Tool/internal/logger"
	"github.com/beabigegg/Translate-Tool/internal/pipeline"
	"github.com/beabigegg/Translate-Tool/internal/render"
	"github.com/beabigegg/Translate-Tool/internal/results"
	"github.com/beabigegg/Translate-Tool/internal/translator"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

type translateFlags struct {
	targets    []string
	mode       string
	output     string
	outputDir  string
	format     string
	workers    int
	noRecord   bool
	resultsDir string
}

func (a *app) translateCommand() *cobra.Command {
	var f translateFlags
	cmd := &cobra.Command{
		Use:   "translate <input>...",
		Short: "Translate documents into one or more languages",
		Example: `  translate-tool translate report.pdf -t zh-TW
  translate-tool translate report.pdf -t zh-TW,ja -m side_by_side
  translate-tool translate notes.docx -t de -m inline -o notes_de.docx
  translate-tool translate budget.xlsx -t ja
  translate-tool translate a.pdf b.pdf c.pdf -t fr --output-dir out`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTranslate(cmd, args, f)
		},
	}
	fl := cmd.Flags()
	fl.StringSliceVarP(&f.targets, "target", "t", nil, "target languages, comma separated (required)")
	fl.StringVarP(&f.mode, "mode", "m", "", "layout mode: inline, overlay, side_by_side (default from config)")
	fl.StringVarP(&f.output, "output", "o", "", "output file; only with a single input")
	fl.StringVar(&f.outputDir, "output-dir", "", "directory for outputs (default next to the input)")
	fl.StringVar(&f.format, "format", "", "output format: pdf, docx, md, pptx, xlsx (default from mode and input)")
	fl.IntVar(&f.workers, "workers", 0, "documents processed in parallel (default pipeline.concurrency)")
	fl.BoolVar(&f.noRecord, "no-record", false, "do not keep a job record")
	fl.StringVar(&f.resultsDir, "results-dir", "", "job record directory (default $HOME/translate-tool-results)")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func (a *app) runTranslate(cmd *cobra.Command, inputs []string, f translateFlags) error {
	ctx := cmd.Context()
	if f.output != "" && len(inputs) > 1 {
		return types.NewAppError(types.ErrInvalidInput, "--output needs a single input; use --output-dir", nil)
	}

	var mode render.Mode
	if f.mode != "" {
		m, err := render.ParseMode(f.mode)
		if err != nil {
			return err
		}
		mode = m
	}
	var format render.Format
	if f.format != "" {
		ff, err := render.FormatFromPath("out." + f.format)
		if err != nil {
			return err
		}
		format = ff
	}

	tr, flush, err := newTranslator(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer flush()

	p := pipeline.New(a.cfg, tr)
	if !a.debug {
		p.SetProgress(progressPrinter(cmd.ErrOrStderr()))
	}
	if !f.noRecord {
		m, err := results.NewManager(f.resultsDir)
		if err != nil {
			logger.Warn("job records disabled", logger.Err(err))
		} else {
			p.SetResults(m)
		}
	}

	jobs := make([]pipeline.Job, len(inputs))
	for i, input := range inputs {
		jobs[i] = pipeline.Job{
			Input:     input,
			Targets:   f.targets,
			Mode:      mode,
			Format:    format,
			Output:    f.output,
			OutputDir: f.outputDir,
		}
	}

	out := cmd.OutOrStdout()
	if len(jobs) == 1 {
		res, err := p.Process(ctx, jobs[0])
		if err != nil {
			return err
		}
		printJobResult(out, cmd.ErrOrStderr(), res)
		return nil
	}

	var failed int
	for _, it := range p.RunBatch(ctx, jobs, f.workers) {
		if it.Err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", filepath.Base(it.Job.Input), it.Err)
			continue
		}
		printJobResult(out, cmd.ErrOrStderr(), it.Result)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(jobs))
	}
	return nil
}

// newTranslator builds the chat translator, behind the translation cache
// when one is configured. flush saves the cache.
func newTranslator(ctx context.Context, cfg *config.Config) (translator.Translator, func(), error) {
	chat, err := translator.NewChatTranslator(ctx, translator.ConfigFromSettings(cfg.Translator))
	if err != nil {
		return nil, nil, err
	}
	path := cfg.Translator.CacheFile
	if path == "" {
		return chat, func() {}, nil
	}
	cache := translator.NewCache(path)
	if err := cache.Load(); err != nil {
		logger.Warn("ignoring unreadable translation cache", logger.String("path", path), logger.Err(err))
	}
	flush := func() {
		if err := cache.Save(); err != nil {
			logger.Error("failed to save translation cache", err, logger.String("path", path))
		}
	}
	return translator.WithCache(chat, cache), flush, nil
}

func printJobResult(out, errOut io.Writer, res *pipeline.JobResult) {
	name := filepath.Base(res.Input)
	for _, o := range res.Outputs {
		fmt.Fprintf(out, "%s [%s] -> %s (translated %d, missing %d",
			name, o.TargetLang, o.Path, o.Translate.Translated, o.Render.Missing)
		if o.Render.Overflowed > 0 {
			fmt.Fprintf(out, ", overflowed %d", o.Render.Overflowed)
		}
		if o.Render.Skipped > 0 {
			fmt.Fprintf(out, ", not drawn %d", o.Render.Skipped)
		}
		fmt.Fprintln(out, ")")
	}
	printWarnings(errOut, res.Warnings)
	if res.Stopped {
		fmt.Fprintf(out, "%s: stopped, %d output(s) written\n", name, len(res.Outputs))
	}
}
