package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bobarin/viralforge/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "viralforge",
	Short: "Turn a product topic into a short-form viral video",
	Long: `viralforge runs a six-stage creative pipeline (trends, concept, scenes,
audio, optimization, final plan), renders the plan through video, speech and
media clients, and writes a run directory with the plan, the generation log
and per-scene metadata.

Every client without credentials runs in mock mode, so the whole pipeline
works offline.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "TOML config file (env vars override it)")
	rootCmd.PersistentFlags().StringP("format", "f", formatText, "output format: text, json or yaml")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
}

func initConfig() {
	viper.SetEnvPrefix("VIRALFORGE")
	// VIRALFORGE_RUN_PLATFORM for run.platform
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// loadConfig reads the service configuration: defaults, then the --config
// TOML file, then the environment.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetString("config"))
}
