package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/beabigegg/Translate-Tool/internal/results"
)

func (a *app) jobsCommand() *cobra.Command {
	var dir string
	var incomplete bool
	var remove []string
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recorded translation jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := results.NewManager(dir)
			if err != nil {
				return err
			}
			for _, id := range remove {
				if !m.Exists(id) {
					return fmt.Errorf("no job record %s", id)
				}
				if err := m.Delete(id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			}
			if len(remove) > 0 {
				return nil
			}

			var recs []*results.JobRecord
			if incomplete {
				recs, err = m.Incomplete()
			} else {
				recs, err = m.List()
			}
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no jobs recorded in "+m.BaseDir())
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tFILE\tMODE\tTARGETS\tSTATUS\tUPDATED")
			for _, r := range recs {
				status := string(r.Status)
				if r.ErrorMessage != "" {
					status += ": " + r.ErrorMessage
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s (%d done)\t%s\t%s\n",
					r.ID, r.SourceFileName, r.Mode, strings.Join(r.Targets, ","), len(r.Outputs),
					status, r.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&dir, "results-dir", "", "job record directory (default $HOME/translate-tool-results)")
	cmd.Flags().BoolVar(&incomplete, "incomplete", false, "only jobs that did not complete")
	cmd.Flags().StringSliceVar(&remove, "delete", nil, "delete the given job records")
	return cmd
}

