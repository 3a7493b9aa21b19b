package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beabigegg/Translate-Tool/internal/fontfit"
)

func (a *app) fontsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fonts <lang>...",
		Short: "Show the font chosen for each target language",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := fontfit.NewTable(a.cfg.Font)
			out := cmd.OutOrStdout()
			for _, lang := range args {
				script, err := fontfit.Script(lang)
				if err != nil {
					fmt.Fprintf(out, "%-8s  %v\n", lang, err)
					continue
				}
				f := table.Resolve(lang)
				file := f.File
				if f.Core() {
					file = "(PDF core font)"
				}
				note := ""
				if f.Fallback {
					note = "  fallback"
				}
				fmt.Fprintf(out, "%-8s  %-5s  %-20s  %s%s\n", lang, script, f.Family, file, note)
			}
			return nil
		},
	}
}
