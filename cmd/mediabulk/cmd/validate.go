package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/technostationary/mediabulk/internal/intake"
)

var validateCmd = &cobra.Command{
	Use:   "validate [images-dir]",
	Short: "Check which images would be accepted",
	Long: `Scan an image directory and report each file's detected type,
size and whether it passes the intake rules.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	header := color.New(color.FgCyan, color.Bold)
	success := color.New(color.FgGreen)

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	header.Println("\n  VALIDATING IMAGE DIRECTORY")
	fmt.Println("  " + strings.Repeat("─", 40))
	fmt.Println()

	files, rejected, err := intake.ScanDir(args[0], intake.Options{
		AllowedTypes:  settings.Upload.AllowedTypes,
		MaxFileBytes:  settings.Upload.MaxFileBytes,
		AllowOversize: settings.Upload.ProcessImages,
	})
	if err != nil {
		return err
	}

	if len(files) == 0 && len(rejected) == 0 {
		color.Yellow("  No image files found in %s\n", args[0])
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"File", "Type", "Size", "Status"})
	table.SetBorder(false)
	table.SetHeaderColor(
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
	)

	for _, f := range files {
		table.Append([]string{
			f.OriginalName, f.DeclaredType, formatBytes(f.SizeBytes),
			color.GreenString("accepted"),
		})
	}
	for _, r := range rejected {
		table.Append([]string{
			r.Name, "-", "-",
			color.RedString(string(r.Err.Kind)),
		})
	}
	table.Render()
	fmt.Println()

	success.Printf("  ✓ %d files accepted\n", len(files))
	if len(rejected) > 0 {
		color.Red("  ✗ %d files rejected\n", len(rejected))
		for _, r := range rejected {
			fmt.Printf("    %s: %s\n", r.Name, r.Err.Msg)
		}
	}
	fmt.Println()

	return nil
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
