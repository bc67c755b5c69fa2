// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/milkbottle/internal/convert"
	"github.com/pdiddy/milkbottle/internal/history"
	"github.com/pdiddy/milkbottle/pkg/types"
)

var pdfmilkerCmd = &cobra.Command{
	Use:   "pdfmilker",
	Short: "Extract structured Markdown from scientific PDFs",
	Long: `pdfmilker converts PDF papers into Markdown with YAML frontmatter,
metadata sidecars, and a quality score. Extraction runs locally (pdfcpu or
pdftotext) or is delegated to a Grobid service or the Mathpix API. The auto
backend tries each configured backend until one scores above min_quality.`,
}

// conversionFlags maps the flags shared by extract and batch to config keys.
var conversionFlags = map[string]string{
	"backend":     "pdfmilker.backend",
	"output-dir":  "pdfmilker.output_dir",
	"overwrite":   "pdfmilker.overwrite",
	"math-mode":   "pdfmilker.math_mode",
	"json":        "pdfmilker.write_json",
	"min-quality": "pdfmilker.min_quality",
}

// addConversionFlags registers the flags shared by extract and batch. Their
// defaults live in viper, so zero values here never mask a config file.
func addConversionFlags(cmd *cobra.Command) {
	cmd.Flags().String("backend", "", "extraction backend: auto, local, pdftotext, grobid, or mathpix (default auto)")
	cmd.Flags().String("output-dir", "", "base directory for outputs (default milked)")
	cmd.Flags().Bool("overwrite", false, "re-extract PDFs whose Markdown already exists")
	cmd.Flags().String("math-mode", "", "math rendering: latex or unicode (default latex)")
	cmd.Flags().Bool("json", false, "also write the full document as JSON")
	cmd.Flags().Float64("min-quality", 0, "score below which auto tries the next backend (default 0.5)")
}

// newMilker builds the configured backend and ledger. The returned close
// function releases the ledger.
func newMilker(cfg types.PDFMilkerConfig, status io.Writer, paths []string) (*convert.Milker, func(), error) {
	backend, err := convert.NewBackend(cfg, convert.Deps{Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	if chain, ok := backend.(*convert.Chain); ok {
		names := make([]string, 0, len(chain.Backends()))
		for _, b := range chain.Backends() {
			names = append(names, b.Name())
		}
		logger.Debug("auto backend", zap.Strings("chain", names), zap.Float64("min quality", cfg.MinQuality))
	}

	opts := []convert.Option{
		convert.WithLogger(logger),
		convert.WithStatusWriter(status),
		convert.WithSlugs(convert.UniqueSlugs(paths)),
	}
	closeFn := func() {}
	if !cfg.History.Disabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, convert.WithLedger(store))
		closeFn = func() {
			if err := store.Close(); err != nil {
				logger.Warn("closing history", zap.Error(err))
			}
		}
	}
	return convert.NewMilker(backend, cfg, opts...), closeFn, nil
}

func init() {
	rootCmd.AddCommand(pdfmilkerCmd)
}
