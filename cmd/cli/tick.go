package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Execute every due automation once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		sum, err := a.Dispatcher.Tick(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "due=%d succeeded=%d failed=%d users_awarded=%d articles_created=%d\n",
			sum.Due, sum.Succeeded, sum.Failed, sum.UsersAwarded, sum.ArticlesCreated)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tickCmd)
}
