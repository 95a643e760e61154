package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/technostationary/mediabulk/internal/orchestrator"
	"github.com/technostationary/mediabulk/pkg/models"
)

var (
	matchFuzzyThreshold float64
	matchRefOnly        bool
)

var matchCmd = &cobra.Command{
	Use:   "match [manifest] [images-dir]",
	Short: "Preview manifest-to-image matching",
	Long: `Parse the manifest, scan the image directory and show which
image would land on which product. No uploads are performed.`,
	Args: cobra.ExactArgs(2),
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().Float64VarP(&matchFuzzyThreshold, "fuzzy-threshold", "t", 0, "Override the fuzzy similarity threshold (0.5-1.0)")
	matchCmd.Flags().BoolVar(&matchRefOnly, "ref-only", false, "Match on the ref column only (legacy mode)")
}

func runMatch(cmd *cobra.Command, args []string) error {
	header := color.New(color.FgCyan, color.Bold)

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if matchFuzzyThreshold != 0 {
		settings.Thresholds.FuzzyThreshold = matchFuzzyThreshold
	}
	if matchRefOnly {
		settings.Strategies.Exact = false
		settings.Strategies.Normalized = false
		settings.Strategies.Partial = false
		settings.Strategies.Fuzzy = false
		settings.Strategies.Ref = true
	}

	header.Println("\n  MATCH PREVIEW")
	fmt.Println("  " + strings.Repeat("─", 40))
	fmt.Println()

	man, rejected, result, err := orchestrator.New(settings, nil).Prepare(args[0], args[1])
	if err != nil {
		return err
	}

	color.Yellow("  %d manifest rows, %d candidate images\n\n",
		len(man.Rows), len(result.Matches)+len(result.UnmatchedFiles))

	if len(result.Matches) > 0 {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"SKU", "File", "Upload As", "Strategy", "Score", "Main"})
		table.SetBorder(false)
		table.SetHeaderColor(
			tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
			tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
			tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
			tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
			tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
			tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
		)

		for _, m := range result.Matches {
			main := ""
			if m.IsMainImage {
				main = color.GreenString("✓")
			}
			table.Append([]string{
				m.SKU,
				m.File.OriginalName,
				m.FinalName,
				strategyLabel(m.Strategy),
				fmt.Sprintf("%.2f", m.Similarity),
				main,
			})
		}
		table.Render()
		fmt.Println()
	}

	if len(result.UnmatchedRows) > 0 {
		color.Yellow("  Unmatched rows:")
		for _, row := range result.UnmatchedRows {
			fmt.Printf("    %s (wants %q, row %d)\n", row.SKU, row.Image, row.SourceRowIndex)
		}
		fmt.Println()
	}
	if len(result.UnmatchedFiles) > 0 {
		color.Yellow("  Unmatched files:")
		for _, f := range result.UnmatchedFiles {
			fmt.Printf("    %s\n", f.OriginalName)
		}
		fmt.Println()
	}
	if len(rejected) > 0 {
		color.Red("  Rejected files:")
		for _, r := range rejected {
			fmt.Printf("    %s: %s\n", r.Name, r.Err.Msg)
		}
		fmt.Println()
	}

	stats := result.Stats
	color.Green("  ✓ %d matches across %d products (avg score %.2f)\n",
		len(result.Matches), stats.UniqueProducts, stats.AverageSimilarity)
	if stats.MultipleImagesProducts > 0 {
		fmt.Printf("    %d products carry more than one image\n", stats.MultipleImagesProducts)
	}
	for _, s := range []models.Strategy{
		models.StrategyExact, models.StrategyNormalized, models.StrategyPartial,
		models.StrategyFuzzy, models.StrategyRef,
	} {
		if n := stats.ByStrategy[s]; n > 0 {
			fmt.Printf("    %-10s %d\n", s, n)
		}
	}
	if man.Skipped > 0 {
		fmt.Printf("    %d manifest rows skipped (missing sku or image)\n", man.Skipped)
	}
	fmt.Println()

	return nil
}

func strategyLabel(s models.Strategy) string {
	switch s {
	case models.StrategyExact, models.StrategyNormalized:
		return color.GreenString(string(s))
	case models.StrategyPartial:
		return color.CyanString(string(s))
	default:
		return color.YellowString(string(s))
	}
}
