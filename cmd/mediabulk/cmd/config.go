package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/technostationary/mediabulk/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Initialize, view, and modify configuration settings.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file with default settings.`,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display all configuration settings.`,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Long:  `Set a specific configuration value.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Get a configuration value",
	Long:  `Get a specific configuration value.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	header := color.New(color.FgCyan, color.Bold)
	success := color.New(color.FgGreen)

	header.Println("\n  INITIALIZING CONFIGURATION")
	fmt.Println("  " + strings.Repeat("─", 40))
	fmt.Println()

	if config.Exists() {
		path, _ := config.GetConfigPath()
		color.Yellow("  Configuration file already exists: %s", path)
		fmt.Println()
		return nil
	}

	if err := config.Init(); err != nil {
		return err
	}

	path, _ := config.GetConfigPath()
	success.Printf("  ✓ Created configuration file: %s\n", path)
	fmt.Println()

	color.Yellow("  Next steps:")
	fmt.Println("    1. Set the store base URL:")
	fmt.Println("       mediabulk config set endpoint.base_url https://shop.example.com")
	fmt.Println()
	fmt.Println("    2. Export your access token:")
	fmt.Println("       export MAGENTO_ACCESS_TOKEN=your_token_here")
	fmt.Println()
	fmt.Println("    3. Preview a run:")
	fmt.Println("       mediabulk match manifest.csv ./images")
	fmt.Println()

	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	header := color.New(color.FgCyan, color.Bold)

	header.Println("\n  CURRENT CONFIGURATION")
	fmt.Println("  " + strings.Repeat("─", 40))
	fmt.Println()

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	if config.Exists() {
		path, _ := config.GetConfigPath()
		color.Yellow("  Config file: %s\n\n", path)
	} else {
		color.Yellow("  Using default configuration (no config file)\n\n")
	}

	data, _ := yaml.Marshal(settings)
	fmt.Println("  " + strings.ReplaceAll(string(data), "\n", "\n  "))

	header.Println("  ENVIRONMENT")
	fmt.Println("  " + strings.Repeat("─", 40))
	fmt.Println()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Variable", "Status"})
	table.SetBorder(false)
	table.SetHeaderColor(
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
	)

	status := color.RedString("not set")
	if os.Getenv(settings.Endpoint.TokenEnv) != "" {
		status = color.GreenString("set")
	}
	table.Append([]string{"Access token (" + settings.Endpoint.TokenEnv + ")", status})
	table.Render()
	fmt.Println()

	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if err := config.Set(args[0], args[1]); err != nil {
		return err
	}
	color.Green("  ✓ Set %s = %s", args[0], args[1])
	fmt.Println()
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	value, err := config.Get(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("  %s = %s\n", args[0], value)
	fmt.Println()
	return nil
}
