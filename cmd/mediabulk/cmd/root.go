package cmd

import (
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/technostationary/mediabulk/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "mediabulk",
	Short: "Bulk product media uploader",
	Long: color.New(color.FgCyan, color.Bold).Sprint(`
                     _ _       _           _ _
  _ __ ___   ___  __| (_) __ _| |__  _   _| | | __
 | '_ ' _ \ / _ \/ _' | |/ _' | '_ \| | | | | |/ /
 | | | | | |  __/ (_| | | (_| | |_) | |_| | |   <
 |_| |_| |_|\___|\__,_|_|\__,_|_.__/ \__,_|_|_|\_\
`) + `
Bulk product media uploader - match image files to a product
manifest and push them to the store's media gallery.

Matching runs a ranked strategy cascade (exact, normalized,
partial, fuzzy, ref) so supplier filenames land on the right
products without manual renaming.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A local .env is optional; real deployments set the token
		// in the environment directly.
		_ = godotenv.Load()
	},
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		color.Red("Error: %v", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.mediabulk/config.yaml)")

	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(configCmd)
}

// loadSettings resolves the effective settings for a command run.
func loadSettings() (*config.Settings, error) {
	if configPath != "" {
		return config.LoadFrom(configPath)
	}
	return config.Load()
}
