package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var execCmd = &cobra.Command{
	Use:   "exec <automation-id>",
	Short: "Execute one automation now, regardless of its schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil || id == 0 {
			return fmt.Errorf("invalid automation id %q", args[0])
		}
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		res, err := a.Service.RunNow(cmd.Context(), uint(id))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch {
		case !res.Success:
			fmt.Fprintf(out, "failed: %s\n", res.ErrorMessage)
		case res.Article != nil:
			fmt.Fprintf(out, "ok: article %d %q\n", res.Article.ID, res.Article.Title)
		default:
			fmt.Fprintf(out, "ok: users_awarded=%d\n", res.UsersAwarded)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(execCmd)
}
