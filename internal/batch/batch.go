// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package batch milks many PDFs with a bounded worker pool and summarises
// the run.
package batch

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/schollz/progressbar/v2"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/milkbottle/internal/convert"
	"github.com/pdiddy/milkbottle/internal/quality"
	"github.com/pdiddy/milkbottle/pkg/types"
)

// ReportFile is the batch report name under the output directory.
const ReportFile = "batch-report.yaml"

// Milker converts one PDF. *convert.Milker implements it.
type Milker interface {
	MilkFile(ctx context.Context, path string) convert.Result
}

// Options controls a batch run.
type Options struct {
	// Workers bounds parallelism; values below 1 mean one worker.
	Workers int
	// Progress receives a progress bar when non-nil.
	Progress io.Writer
	Logger   *zap.Logger
}

// Summary holds the outcome of a batch run. Results follow input order.
type Summary struct {
	Converted int
	Skipped   int
	Failed    int
	Cancelled int
	// MeanScore is the average quality score over converted files.
	MeanScore float64
	Results   []convert.Result
	Elapsed   time.Duration
}

// Total returns the number of files processed.
func (s Summary) Total() int {
	return s.Converted + s.Skipped + s.Failed + s.Cancelled
}

// HasFailures reports whether any file failed.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// Print writes the one-line summary followed by each failure.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed, %d cancelled (total: %d) in %s\n",
		s.Converted, s.Skipped, s.Failed, s.Cancelled, s.Total(), s.Elapsed.Round(time.Millisecond))
	if s.Converted > 0 {
		fmt.Fprintf(w, "Mean quality: %.3f (%s)\n", s.MeanScore, quality.Grade(s.MeanScore))
	}
	for _, r := range s.Results {
		if r.Status == types.ConversionFailed {
			fmt.Fprintf(w, "  failed: %s: %v\n", r.Path, r.Err)
		}
	}
}

// Run milks paths with up to opts.Workers files in flight. One file's
// failure never stops the others. After ctx is cancelled, files not yet
// started are reported as cancelled.
func Run(ctx context.Context, m Milker, paths []string, opts Options) Summary {
	start := time.Now()
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := max(opts.Workers, 1)

	var bar *progressbar.ProgressBar
	if opts.Progress != nil && len(paths) > 0 {
		bar = progressbar.NewOptions(len(paths),
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetDescription("milking"),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionSetWidth(30),
		)
	}

	results := make([]convert.Result, len(paths))
	var g errgroup.Group
	g.SetLimit(workers)

	for i, p := range paths {
		if ctx.Err() != nil {
			results[i] = cancelled(p, ctx.Err())
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = cancelled(p, ctx.Err())
			} else {
				results[i] = m.MilkFile(ctx, p)
			}
			if bar != nil {
				bar.Add(1)
			}
			return nil
		})
	}
	g.Wait()
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(opts.Progress)
	}

	s := Summary{Results: results, Elapsed: time.Since(start)}
	var scoreSum float64
	for _, r := range results {
		switch r.Status {
		case types.ConversionDone:
			s.Converted++
			scoreSum += r.Score
		case types.ConversionSkipped:
			s.Skipped++
		case types.ConversionCancelled:
			s.Cancelled++
		default:
			s.Failed++
		}
	}
	if s.Converted > 0 {
		s.MeanScore = math.Round(scoreSum/float64(s.Converted)*1000) / 1000
	}
	logger.Info("batch finished",
		zap.Int("total", s.Total()),
		zap.Int("converted", s.Converted),
		zap.Int("failed", s.Failed),
		zap.Int("workers", workers),
		zap.Duration("elapsed", s.Elapsed),
	)
	return s
}

func cancelled(path string, err error) convert.Result {
	return convert.Result{
		Path:   path,
		Slug:   convert.Slug(path),
		Status: types.ConversionCancelled,
		Err:    err,
	}
}

// Collect expands inputs into a sorted, de-duplicated list of PDF paths.
// Directories contribute their .pdf files, recursively when asked. Hidden
// files and directories are skipped.
func Collect(inputs []string, recursive bool) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", in, err)
		}
		if !info.IsDir() {
			if !isPDF(in) {
				return nil, fmt.Errorf("input %s: not a .pdf file", in)
			}
			add(in)
			continue
		}

		err = filepath.WalkDir(in, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if p != in && hidden(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if p != in && !recursive {
					return filepath.SkipDir
				}
				return nil
			}
			if isPDF(p) {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", in, err)
		}
	}
	sort.Strings(out)
	return out, nil
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

type report struct {
	GeneratedAt string       `yaml:"generated_at"`
	Elapsed     string       `yaml:"elapsed"`
	Total       int          `yaml:"total"`
	Converted   int          `yaml:"converted"`
	Skipped     int          `yaml:"skipped"`
	Failed      int          `yaml:"failed"`
	Cancelled   int          `yaml:"cancelled"`
	MeanScore   float64      `yaml:"mean_score"`
	Files       []reportFile `yaml:"files"`
}

type reportFile struct {
	Path       string  `yaml:"path"`
	Slug       string  `yaml:"slug"`
	Status     string  `yaml:"status"`
	Backend    string  `yaml:"backend,omitempty"`
	Score      float64 `yaml:"score,omitempty"`
	Grade      string  `yaml:"grade,omitempty"`
	Output     string  `yaml:"output,omitempty"`
	Error      string  `yaml:"error,omitempty"`
	DurationMs int64   `yaml:"duration_ms"`
}

// WriteReport writes the summary as YAML to dir/batch-report.yaml and
// returns the path.
func WriteReport(dir string, s Summary) (string, error) {
	r := report{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Elapsed:     s.Elapsed.Round(time.Millisecond).String(),
		Total:       s.Total(),
		Converted:   s.Converted,
		Skipped:     s.Skipped,
		Failed:      s.Failed,
		Cancelled:   s.Cancelled,
		MeanScore:   s.MeanScore,
	}
	for _, res := range s.Results {
		f := reportFile{
			Path:       res.Path,
			Slug:       res.Slug,
			Status:     string(res.Status),
			Backend:    res.Backend,
			Score:      res.Score,
			Grade:      string(res.Grade),
			Output:     res.OutputPath,
			DurationMs: res.Duration.Milliseconds(),
		}
		if res.Err != nil {
			f.Error = res.Err.Error()
		}
		r.Files = append(r.Files, f)
	}

	data, err := yaml.Marshal(&r)
	if err != nil {
		return "", fmt.Errorf("marshaling batch report: %w", err)
	}
	path := filepath.Join(dir, ReportFile)
	if err := convert.WriteFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}
