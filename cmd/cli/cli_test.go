package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandArgs(t *testing.T) {
	assert.Equal(t, []string{"run"}, commandArgs("run", nil))
	assert.Equal(t, []string{"migrate", "-c", "prod.yml", "--seed"}, commandArgs("migrate", []string{"-c", "prod.yml", "--seed"}))
}

func TestCommandTree(t *testing.T) {
	for _, name := range []string{"run", "tick", "exec", "list", "migrate", "version"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}

	flag := rootCmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "c", flag.Shorthand)

	migrate := runCmd.Flags().Lookup("migrate")
	require.NotNil(t, migrate)
	assert.Equal(t, "true", migrate.DefValue)
	require.NotNil(t, migrateCmd.Flags().Lookup("seed"))
}

func TestVersionSkipsConfig(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(commandArgs("version", []string{"--config", filepath.Join(t.TempDir(), "missing.yml")}))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Version: "+Version)
}

func TestPersistentPreRun_LoadsConfigFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  tick_interval: 15s\nlog:\n  level: warn\n"), 0644))

	prev := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = prev })

	require.NoError(t, rootCmd.PersistentPreRunE(tickCmd, nil))
	require.NotNil(t, cfg)
	assert.Equal(t, 15*time.Second, cfg.Scheduler.TickInterval)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
}

func TestPersistentPreRun_MissingExplicitConfig(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	prev := cfgFile
	cfgFile = filepath.Join(t.TempDir(), "nope.yml")
	t.Cleanup(func() { cfgFile = prev })

	assert.Error(t, rootCmd.PersistentPreRunE(tickCmd, nil))
}
