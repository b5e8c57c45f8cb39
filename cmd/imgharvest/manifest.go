package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"imgharvest/pkg/manifest"
	"imgharvest/pkg/ui"
)

var showFailures bool

// manifestCmd represents the manifest command
var manifestCmd = &cobra.Command{
	Use:   "manifest <path>",
	Short: "Summarize a run manifest",
	Long: `Read a manifest.json or manifest.yaml written by 'imgharvest harvest --manifest'
and print the harvest outcome and download tallies.`,
	Example: `  imgharvest manifest profilePhotos/manifest.json --failures`,
	Args:    cobra.ExactArgs(1),
	RunE:    runManifest,
}

func init() {
	rootCmd.AddCommand(manifestCmd)
	manifestCmd.Flags().BoolVar(&showFailures, "failures", false, "list skipped and failed items")
}

func runManifest(cmd *cobra.Command, args []string) error {
	m, err := manifest.Load(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ui.PrintHighlight("Run " + m.RunID)
	fmt.Fprintf(out, "  Search URL: %s\n", m.SearchURL)
	fmt.Fprintf(out, "  Harvest: %s after %d iterations, %d unique images\n", m.HarvestState, m.Iterations, m.Discovered)
	fmt.Fprintf(out, "  Downloads: %d stored, %d skipped, %d failed (target %d)\n", m.Succeeded, m.Skipped, m.Failed, m.TargetCount)
	if !m.FinishedAt.IsZero() {
		fmt.Fprintf(out, "  Duration: %s\n", m.FinishedAt.Sub(m.StartedAt).Round(time.Millisecond))
	}

	if showFailures {
		for _, item := range m.Items {
			if item.Status == "stored" {
				continue
			}
			detail := item.Error
			if detail == "" && item.StatusCode != 0 {
				detail = fmt.Sprintf("status %d", item.StatusCode)
			}
			fmt.Fprintf(out, "  %03d %-7s %s %s\n", item.Index, item.Status, item.URL, detail)
		}
	}
	return nil
}
