// Package runs implements the subcommand that lists recorded pipeline runs.
package runs

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nicheflow/nicheflow/internal/conf"
	"github.com/nicheflow/nicheflow/internal/datastore"
)

// Command creates the runs command.
func Command(settings *conf.Settings) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := datastore.New(settings)
			if err := store.Open(); err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recorded runs.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTARTED\tEXTENT\tSTAGES\tROWS\tAUC")
			for i := range runs {
				r := &runs[i]
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					r.ID,
					r.StartedAt.Format("2006-01-02 15:04:05"),
					r.Extent(),
					stageSummary(r),
					r.Rows,
					metricString(r.AUC))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", viper.GetInt("runs.limit"), "Maximum number of runs to list (0 for all)")
	return cmd
}

func stageSummary(r *datastore.PipelineRun) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s",
		r.OccurrenceStage, r.CovariateStage, r.ProcessStage, r.ModelStage, r.MapStage)
}

func metricString(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
}
