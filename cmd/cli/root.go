package cli

import (
	"fmt"
	"os"

	"automations/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile string

	// populated by PersistentPreRunE
	cfg    *config.Config
	logger *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "automationctl",
	Short: "Run and inspect scheduled automations",
	Long: `automationctl drives the scheduled automations engine: it can run the
scheduler with the admin API, fire a single tick, execute one automation
by id, or list automations and their recent runs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		if err := config.Setup(cfgFile); err != nil {
			return err
		}
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		l, err := config.InitLogger(loaded)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		cfg, logger = loaded, l
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ExecuteCommand runs a single subcommand with the process arguments as its
// flags, so cmd/server and cmd/migrate share the cobra tree.
func ExecuteCommand(name string) {
	rootCmd.SetArgs(commandArgs(name, os.Args[1:]))
	Execute()
}

func commandArgs(name string, args []string) []string {
	return append([]string{name}, args...)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yml)")
}
