package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/technostationary/mediabulk/internal/orchestrator"
	"github.com/technostationary/mediabulk/internal/report"
	"github.com/technostationary/mediabulk/internal/transport/magento"
	"github.com/technostationary/mediabulk/pkg/models"
)

var (
	uploadDryRun     bool
	uploadReportPath string
	uploadBatchSize  int
	uploadBaseURL    string
)

var uploadCmd = &cobra.Command{
	Use:   "upload [manifest] [images-dir]",
	Short: "Match images and upload them to the store",
	Long: `Run the full pipeline: parse the manifest, match images,
optionally recompress them and push each one to the product's
media gallery. Ctrl-C stops scheduling new items; in-flight
uploads finish first.`,
	Args: cobra.ExactArgs(2),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().BoolVar(&uploadDryRun, "dry-run", false, "Run matching and processing without uploading")
	uploadCmd.Flags().StringVarP(&uploadReportPath, "report", "r", "", "Write a run report (.json or .csv)")
	uploadCmd.Flags().IntVarP(&uploadBatchSize, "batch", "b", 0, "Override the number of parallel uploads")
	uploadCmd.Flags().StringVar(&uploadBaseURL, "base-url", "", "Override the store base URL")
}

func runUpload(cmd *cobra.Command, args []string) error {
	header := color.New(color.FgCyan, color.Bold)
	success := color.New(color.FgGreen)

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if uploadBatchSize > 0 {
		settings.Upload.BatchSize = uploadBatchSize
	}
	if uploadBaseURL != "" {
		settings.Endpoint.BaseURL = uploadBaseURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := magento.NewClient(magento.Config{
		BaseURL:   settings.Endpoint.BaseURL,
		TokenEnv:  settings.Endpoint.TokenEnv,
		StoreCode: settings.Endpoint.StoreCode,
		Timeout:   time.Duration(settings.Endpoint.TimeoutSeconds) * time.Second,
	})
	if !uploadDryRun {
		if err := client.Connect(ctx); err != nil {
			return err
		}
	}

	if uploadDryRun {
		header.Println("\n  BULK UPLOAD (DRY RUN)")
	} else {
		header.Println("\n  BULK UPLOAD")
	}
	fmt.Println("  " + strings.Repeat("─", 40))
	fmt.Println()

	var bar *progressbar.ProgressBar
	sink := func(ev models.ProgressEvent) bool {
		if bar == nil && ev.Total > 0 {
			bar = progressbar.NewOptions(ev.Total,
				progressbar.OptionSetDescription("  Uploading"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        color.GreenString("█"),
					SaucerHead:    color.GreenString("█"),
					SaucerPadding: "░",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionShowCount(),
			)
		}
		if bar != nil {
			bar.Set(ev.Current)
		}
		return ctx.Err() != nil
	}

	run, err := orchestrator.New(settings, client).Run(ctx, orchestrator.RunOptions{
		ManifestPath: args[0],
		ImagesDir:    args[1],
		DryRun:       uploadDryRun,
		OnProgress:   sink,
	})
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println()

	if len(run.Results) > 0 {
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"SKU", "File", "Status", "Attempts", "Detail"})
		table.SetBorder(false)
		table.SetHeaderColor(
			tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
			tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
			tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
			tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
			tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
		)

		for _, r := range run.Results {
			status := color.GreenString("uploaded")
			detail := r.RemoteID
			if r.Status == models.UploadError {
				status = color.RedString(string(r.Kind))
				detail = r.Message
				if len(detail) > 60 {
					detail = detail[:57] + "..."
				}
			}
			table.Append([]string{
				r.Match.SKU, r.Match.FinalName, status,
				fmt.Sprintf("%d", r.Attempts), detail,
			})
		}
		table.Render()
		fmt.Println()
	}

	summary := run.Summary
	if summary.Uploaded > 0 {
		success.Printf("  ✓ Uploaded %d of %d matched images\n", summary.Uploaded, summary.Matched)
	}
	if summary.Failed > 0 {
		color.Red("  ✗ %d uploads failed\n", summary.Failed)
	}
	if summary.Skipped > 0 {
		color.Yellow("  %d rows or files skipped before matching\n", summary.Skipped)
	}
	if run.Cancelled {
		color.Yellow("  Run cancelled: %d of %d items were attempted\n", len(run.Results), summary.Matched)
	}
	fmt.Printf("  Run %s finished in %s\n", summary.RunID,
		summary.CompletedAt.Sub(summary.StartedAt).Round(time.Millisecond))
	fmt.Println()

	if uploadReportPath != "" {
		if err := report.Write(uploadReportPath, report.FromRun(run)); err != nil {
			return err
		}
		success.Printf("  ✓ Report written to %s\n\n", uploadReportPath)
	}

	return runExitError(run)
}

// runExitError maps a finished run onto the command's exit status: zero
// only when every matched item was attempted and succeeded.
func runExitError(run *orchestrator.RunResult) error {
	if run.Summary.Failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", run.Summary.Failed, run.Summary.Matched)
	}
	if unattempted := run.Summary.Matched - len(run.Results); run.Cancelled && unattempted > 0 {
		return fmt.Errorf("cancelled with %d of %d items not attempted", unattempted, run.Summary.Matched)
	}
	return nil
}
