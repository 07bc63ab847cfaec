package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/devicedetect/pkg/detection"
	"github.com/dmitrymomot/devicedetect/pkg/matcher"
)

func newBenchmarkCommand(a *app) *cobra.Command {
	var (
		file        string
		workers     int
		repeat      int
		resultCache bool
	)
	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Measure detection time over a file of User-Agents",
		Long: `Match every User-Agent in --file (one per line, "-" for stdin) from
--workers concurrent goroutines and report the average detection time.

The result cache is off unless --result-cache is given, so repeated passes
measure the matcher rather than cache hits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if workers < 1 {
				return fmt.Errorf("workers must be at least 1, got %d", workers)
			}
			if repeat < 1 {
				return fmt.Errorf("repeat must be at least 1, got %d", repeat)
			}
			uas, err := readInputFile(cmd, file)
			if err != nil {
				return err
			}
			if len(uas) == 0 {
				return fmt.Errorf("no user agents in %s", file)
			}

			return a.withProvider(cmd, func(ctx context.Context, p *detection.Provider) error {
				res, err := runBenchmark(ctx, p, uas, workers, repeat)
				if err != nil {
					return err
				}
				res.resultCache = resultCache
				if err := res.print(cmd.OutOrStdout()); err != nil {
					return err
				}
				return printCacheStats(cmd, p.DataSet())
			}, func(cfg *detection.Config) {
				if !resultCache {
					cfg.ResultCacheSize = 0
					cfg.Redis.URL = ""
				}
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "File of User-Agents, one per line (\"-\" for stdin)")
	cmd.Flags().IntVarP(&workers, "workers", "w", runtime.NumCPU(), "Concurrent workers")
	cmd.Flags().IntVarP(&repeat, "repeat", "r", 1, "Passes over the file")
	cmd.Flags().BoolVar(&resultCache, "result-cache", false, "Keep the configured result cache enabled")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readInputFile(cmd *cobra.Command, path string) ([]string, error) {
	if path == "-" {
		return readLines(cmd.InOrStdin())
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readLines(f)
}

type benchmarkResult struct {
	detections  int
	workers     int
	resultCache bool
	wall        time.Duration
	detecting   time.Duration
	methods     map[matcher.Method]int
}

// runBenchmark splits uas round-robin between workers. Each worker tallies
// locally and the tallies are merged once all workers finish.
func runBenchmark(ctx context.Context, p *detection.Provider, uas []string, workers, repeat int) (benchmarkResult, error) {
	type tally struct {
		detections int
		detecting  time.Duration
		methods    map[matcher.Method]int
	}
	tallies := make([]tally, workers)

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := range workers {
		g.Go(func() error {
			wctx := context.WithValue(gctx, workerKey{}, w)
			t := tally{methods: make(map[matcher.Method]int)}
			for range repeat {
				for i := w; i < len(uas); i += workers {
					if err := gctx.Err(); err != nil {
						return err
					}
					m, err := p.Match(wctx, uas[i])
					if err != nil {
						return fmt.Errorf("worker %d: %q: %w", w, uas[i], err)
					}
					t.detections++
					t.detecting += m.Elapsed()
					t.methods[m.Method()]++
				}
			}
			tallies[w] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return benchmarkResult{}, err
	}

	res := benchmarkResult{
		workers: workers,
		wall:    time.Since(start),
		methods: make(map[matcher.Method]int),
	}
	for _, t := range tallies {
		res.detections += t.detections
		res.detecting += t.detecting
		for m, n := range t.methods {
			res.methods[m] += n
		}
	}
	return res, nil
}

func (r benchmarkResult) average() time.Duration {
	if r.detections == 0 {
		return 0
	}
	return r.detecting / time.Duration(r.detections)
}

func (r benchmarkResult) print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)
	fmt.Fprintf(tw, "detections:\t%d\n", r.detections)
	fmt.Fprintf(tw, "workers:\t%d\n", r.workers)
	fmt.Fprintf(tw, "result cache:\t%s\n", onOff(r.resultCache))
	fmt.Fprintf(tw, "wall time:\t%s\n", r.wall.Round(time.Microsecond))
	fmt.Fprintf(tw, "average detection time:\t%s\n", r.average())
	if r.wall > 0 {
		fmt.Fprintf(tw, "detections per second:\t%.0f\n", float64(r.detections)/r.wall.Seconds())
	}
	for _, m := range []matcher.Method{matcher.MethodExact, matcher.MethodClosest, matcher.MethodNone} {
		fmt.Fprintf(tw, "  %s:\t%d\n", m, r.methods[m])
	}
	return tw.Flush()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
