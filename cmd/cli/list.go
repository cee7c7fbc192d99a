package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var listRunsFor uint

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List automations, or the recent runs of one automation",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		defer w.Flush()

		if listRunsFor > 0 {
			runs, err := a.Service.ListRuns(cmd.Context(), listRunsFor, 20)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "RUN\tSTATUS\tSTARTED\tAWARDED\tARTICLE\tMESSAGE")
			for _, r := range runs {
				article := "-"
				if r.ArticleID != nil {
					article = fmt.Sprint(*r.ArticleID)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", r.RunID, r.Status, r.StartedAt.Format(time.RFC3339), r.UsersAwarded, article, r.Message)
			}
			return nil
		}

		list, err := a.Service.List(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "ID\tNAME\tSERVICE\tSTATE\tFREQUENCY\tNEXT RUN\tLAST RUN")
		for _, au := range list {
			last := "never"
			if au.LastRunAt != nil {
				last = au.LastRunAt.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", au.ID, au.Name, au.ServiceName, au.State, au.Frequency, au.NextRunAt.Format(time.RFC3339), last)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().UintVar(&listRunsFor, "runs", 0, "show recent runs of this automation id")
	rootCmd.AddCommand(listCmd)
}
