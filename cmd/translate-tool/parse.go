package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/beabigegg/Translate-Tool/internal/document"
	"github.com/beabigegg/Translate-Tool/internal/pipeline"
	"github.com/beabigegg/Translate-Tool/internal/types"
)

func (a *app) parseCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "parse <input>",
		Short: "Extract a document into its JSON form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			p := pipeline.New(a.cfg, nil)
			doc, err := p.Parse(cmd.Context(), input, p.ParseOptions())
			if err != nil {
				return err
			}
			if output == "" {
				output = strings.TrimSuffix(input, filepath.Ext(input)) + ".json"
			}
			if err := doc.Save(output); err != nil {
				return types.NewAppError(types.ErrInternal, "failed to write document", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d pages, %d elements (text layer: %t)\n",
				filepath.Base(input), len(doc.Pages), len(doc.Elements), doc.Metadata.HasTextLayer)
			fmt.Fprintf(out, "  %s\n", formatStats(doc.Stats()))
			fmt.Fprintf(out, "written to %s\n", output)
			printWarnings(cmd.ErrOrStderr(), doc.Warnings)
			if doc.Stopped {
				fmt.Fprintln(out, "stopped before the last page")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output JSON path (default <input>.json)")
	return cmd
}

func formatStats(stats map[document.ElementType]int) string {
	keys := make([]string, 0, len(stats))
	for t := range stats {
		keys = append(keys, string(t))
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, stats[document.ElementType(k)])
	}
	return strings.Join(parts, " ")
}
