package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/beabigegg/Translate-Tool/internal/document"
	"github.com/beabigegg/Translate-Tool/internal/pipeline"
	"github.com/beabigegg/Translate-Tool/internal/render"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

func (a *app) renderCommand() *cobra.Command {
	var mode, target string
	cmd := &cobra.Command{
		Use:   "render <doc.json> <translations.json> <output>",
		Short: "Render a parsed document with existing translations",
		Long: `render writes a document saved by "parse" with translations taken from a
JSON object that maps original text to its translation. The original file
named in the document must still exist for the pdf modes and for docx,
pptx and xlsx inline output.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := document.Load(args[0])
			if err != nil {
				return types.NewAppError(types.ErrInvalidInput, "failed to load document", err)
			}
			translations, err := loadTranslations(args[1])
			if err != nil {
				return err
			}
			name := a.cfg.Render.Mode
			if mode != "" {
				name = mode
			}
			m, err := render.ParseMode(name)
			if err != nil {
				return err
			}

			p := pipeline.New(a.cfg, nil)
			res, err := p.Render(cmd.Context(), doc, translations, args[2], m, target)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d pages, placed %d, missing %d, overflowed %d, unchanged %d\n",
				res.OutputPath, res.Pages, res.Placed, res.Missing, res.Overflowed, res.Unchanged)
			printWarnings(cmd.ErrOrStderr(), res.Warnings)
			return nil
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "layout mode (default from config)")
	cmd.Flags().StringVarP(&target, "target", "t", "", "target language, used for font selection")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func loadTranslations(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewAppError(types.ErrFileNotFound, "file not found: "+path, err)
		}
		return nil, types.NewAppError(types.ErrInvalidInput, "cannot read "+path, err)
	}
	var out map[string]string
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "translations must be a JSON object of strings", path, err)
	}
	return out, nil
}
