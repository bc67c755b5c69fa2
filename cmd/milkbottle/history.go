// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/milkbottle/internal/history"
	"github.com/pdiddy/milkbottle/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent conversions from the history ledger",
	Long: `History lists recorded conversion attempts, newest first. Every extract
and batch run records one entry per file in <output_dir>/history.db.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().String("output-dir", "", "base directory holding history.db (default milked)")
	historyCmd.Flags().String("status", "", "filter by status: converted, skipped, failed, cancelled")
	historyCmd.Flags().Int("limit", 20, "maximum entries to show")
	historyCmd.Flags().Bool("json", false, "output entries as JSON")

	pdfmilkerCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, map[string]string{"output-dir": "pdfmilker.output_dir"}); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.History.Disabled {
		return fmt.Errorf("history is disabled in the configuration")
	}

	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	filter := history.Filter{Status: types.ConversionStatus(status), Limit: limit}
	switch filter.Status {
	case "", types.ConversionDone, types.ConversionSkipped, types.ConversionFailed, types.ConversionCancelled:
	default:
		return fmt.Errorf("unknown status %q", status)
	}

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(cmd.Context(), filter)
	if err != nil {
		return err
	}
	return formatHistory(cmd.OutOrStdout(), entries, jsonOutput)
}

func formatHistory(w io.Writer, entries []history.Entry, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No conversions recorded.")
		return nil
	}

	fmt.Fprintf(w, "%-19s  %-9s  %-30s  %-9s  %-5s  %-5s  %s\n",
		"Started", "Status", "Slug", "Backend", "Score", "Pages", "Duration")
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, e := range entries {
		slug := e.Slug
		if len(slug) > 30 {
			slug = slug[:27] + "..."
		}
		score := "-"
		if e.Status == types.ConversionDone {
			score = fmt.Sprintf("%.2f", e.QualityScore)
		}
		backend := e.Backend
		if backend == "" {
			backend = "-"
		}
		fmt.Fprintf(w, "%-19s  %-9s  %-30s  %-9s  %-5s  %-5d  %s\n",
			e.StartedAt.Local().Format("2006-01-02 15:04:05"), e.Status, slug, backend,
			score, e.Pages, e.Duration.Round(time.Millisecond))
		if e.Error != "" {
			fmt.Fprintf(w, "    error: %s\n", e.Error)
		}
	}

	fmt.Fprintf(w, "\n%d entries\n", len(entries))
	return nil
}
