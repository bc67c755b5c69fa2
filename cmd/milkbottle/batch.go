// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/milkbottle/internal/batch"
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir|pdf...>",
	Short: "Convert many PDFs in parallel",
	Long: `Batch collects PDFs from the given files and directories and converts
them with a bounded pool of workers. One file's failure never stops the
others. Interrupting the run marks the files not yet started as cancelled.
A summary is printed at the end and the command exits 1 when any file failed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	addConversionFlags(batchCmd)
	addBatchFlags(batchCmd)
	pdfmilkerCmd.AddCommand(batchCmd)
}

func addBatchFlags(cmd *cobra.Command) {
	cmd.Flags().Int("workers", 0, "number of parallel workers (default min(NumCPU, 4))")
	cmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	cmd.Flags().Bool("no-progress", false, "hide the progress bar")
	cmd.Flags().Bool("report", false, "write batch-report.yaml to the output directory")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return milkBatch(ctx, cmd, args)
}

// milkBatch runs the batch over args; cancelling ctx stops new files.
func milkBatch(ctx context.Context, cmd *cobra.Command, args []string) error {
	keys := map[string]string{"workers": "pdfmilker.workers"}
	for k, v := range conversionFlags {
		keys[k] = v
	}
	if err := bindFlags(cmd, keys); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	recursive, _ := cmd.Flags().GetBool("recursive")
	noProgress, _ := cmd.Flags().GetBool("no-progress")
	writeReport, _ := cmd.Flags().GetBool("report")

	paths, err := batch.Collect(args, recursive)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No PDF files found.")
		return nil
	}

	// Status lines would tear the progress bar, so they go to the log.
	status := cmd.OutOrStdout()
	opts := batch.Options{Workers: cfg.Workers, Logger: logger}
	if !noProgress {
		opts.Progress = cmd.ErrOrStderr()
		status = &logWriter{logger: logger}
	}

	milker, closeLedger, err := newMilker(cfg, status, paths)
	if err != nil {
		return err
	}
	defer closeLedger()

	logger.Info("starting batch", zap.Int("files", len(paths)), zap.Int("workers", cfg.Workers))
	summary := batch.Run(ctx, milker, paths, opts)
	summary.Print(cmd.OutOrStdout())

	if writeReport {
		path, err := batch.WriteReport(cfg.OutputDir, summary)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", path)
	}
	if summary.HasFailures() {
		return fmt.Errorf("%d file(s) failed", summary.Failed)
	}
	if summary.Cancelled > 0 {
		return fmt.Errorf("batch interrupted: %d file(s) cancelled", summary.Cancelled)
	}
	return nil
}

// logWriter turns status lines into debug log entries.
type logWriter struct {
	logger *zap.Logger
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.logger.Debug(strings.TrimRight(string(p), "\r\n"))
	return len(p), nil
}
