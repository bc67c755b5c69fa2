// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/pdiddy/milkbottle/internal/batch"
	"github.com/pdiddy/milkbottle/pkg/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract <pdf...>",
	Short: "Convert PDF files to structured Markdown one at a time",
	Long: `Extract converts each PDF in turn and writes markdown/<slug>.md and
metadata/<slug>.yaml under the output directory. Files whose Markdown already
exists are skipped unless --overwrite is set or the source has changed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	addConversionFlags(extractCmd)
	pdfmilkerCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return extract(ctx, cmd, args)
}

// extract converts args one at a time until ctx is cancelled.
func extract(ctx context.Context, cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, conversionFlags); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	paths, err := batch.Collect(args, false)
	if err != nil {
		return err
	}

	milker, closeLedger, err := newMilker(cfg, cmd.OutOrStdout(), paths)
	if err != nil {
		return err
	}
	defer closeLedger()

	failed := 0
	for _, p := range paths {
		res := milker.MilkFile(ctx, p)
		if res.Status == types.ConversionFailed {
			failed++
		}
		if res.Status == types.ConversionCancelled {
			return ctx.Err()
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed extraction", failed)
	}
	return nil
}
