package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"mercator-hq/ruleengine/pkg/cli"
	"mercator-hq/ruleengine/pkg/rule/eval"
)

var benchFlags struct {
	data        string
	dataFile    string
	count       int
	concurrency int
	metrics     bool
	progress    bool
}

var benchCmd = &cobra.Command{
	Use:   "bench <name>",
	Short: "Evaluate a stored rule concurrently and report throughput",
	Long: `Evaluate a stored rule many times from concurrent workers against
one record, then print throughput and latency percentiles.

With the registry enabled the rule is decoded once and shared by every
worker; without it each evaluation loads and decodes the rule again.

Examples:
  rulectl bench senior-sales --data '{"age": 35, "department": "Sales"}'
  rulectl bench senior-sales --data-file employee.json -n 100000 -w 8 --metrics`,
	Args: cobra.ExactArgs(1),
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().StringVarP(&benchFlags.data, "data", "d", "", "record as a JSON object")
	benchCmd.Flags().StringVar(&benchFlags.dataFile, "data-file", "", "file holding the record as a JSON object")
	benchCmd.Flags().IntVarP(&benchFlags.count, "count", "n", 10000, "total evaluations")
	benchCmd.Flags().IntVarP(&benchFlags.concurrency, "concurrency", "w", 4, "concurrent workers")
	benchCmd.Flags().BoolVar(&benchFlags.metrics, "metrics", false, "print collected metrics in Prometheus text format")
	benchCmd.Flags().BoolVar(&benchFlags.progress, "progress", false, "show a progress bar")
}

type benchResults struct {
	total     int
	matched   int64
	failed    int64
	duration  time.Duration
	latencies []time.Duration
	firstErr  error
}

func runBench(cmd *cobra.Command, args []string) error {
	if benchFlags.count < 1 || benchFlags.concurrency < 1 {
		return errors.New("--count and --concurrency must be positive")
	}
	record, err := readRecord(benchFlags.data, benchFlags.dataFile)
	if err != nil {
		return err
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		// Fail fast on a missing rule instead of once per evaluation
		if _, err := a.engine.Get(ctx, args[0]); err != nil {
			return err
		}

		var progress cli.ProgressReporter
		if benchFlags.progress {
			progress = cli.NewProgressReporter(cmd.ErrOrStderr(), "evals")
		}
		results := runLoad(ctx, a, args[0], record, progress)

		out := cmd.OutOrStdout()
		displayBenchResults(out, results)
		if benchFlags.metrics {
			fmt.Fprintln(out)
			if err := writeMetrics(out, a.metrics.Registry()); err != nil {
				return err
			}
		}
		if results.failed > 0 {
			return fmt.Errorf("%d evaluations failed, first error: %w", results.failed, results.firstErr)
		}
		return nil
	})
}

func runLoad(ctx context.Context, a *app, name string, record eval.Context, progress cli.ProgressReporter) *benchResults {
	results := &benchResults{
		total:     benchFlags.count,
		latencies: make([]time.Duration, benchFlags.count),
	}
	if progress != nil {
		progress.Start(int64(results.total))
	}

	var (
		next    int64 = -1
		done    int64
		errOnce sync.Once
		wg      sync.WaitGroup
	)
	start := time.Now()
	for w := 0; w < benchFlags.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := atomic.AddInt64(&next, 1)
				if i >= int64(results.total) || ctx.Err() != nil {
					return
				}

				evalStart := time.Now()
				res, err := a.engine.Evaluate(ctx, name, record)
				results.latencies[i] = time.Since(evalStart)

				switch {
				case err != nil:
					atomic.AddInt64(&results.failed, 1)
					errOnce.Do(func() { results.firstErr = err })
				case res.Matched:
					atomic.AddInt64(&results.matched, 1)
				}

				n := atomic.AddInt64(&done, 1)
				if progress != nil && n%1000 == 0 {
					progress.Update(n)
				}
			}
		}()
	}
	wg.Wait()
	results.duration = time.Since(start)

	if progress != nil {
		progress.Finish()
	}
	return results
}

func displayBenchResults(w io.Writer, results *benchResults) {
	fmt.Fprintln(w, "Results:")
	fmt.Fprintln(w, "--------")
	fmt.Fprintf(w, "Evaluations:     %d total, %d matched, %d failed\n",
		results.total, results.matched, results.failed)
	fmt.Fprintf(w, "Workers:         %d\n", benchFlags.concurrency)
	fmt.Fprintf(w, "Duration:        %s\n", results.duration.Round(time.Microsecond))
	if secs := results.duration.Seconds(); secs > 0 {
		fmt.Fprintf(w, "Throughput:      %.0f evals/s\n", float64(results.total)/secs)
	}

	min, mean, median, p95, p99, max := calculatePercentiles(results.latencies)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Latency:")
	fmt.Fprintf(w, "  Min:     %s\n", min)
	fmt.Fprintf(w, "  Mean:    %s\n", mean)
	fmt.Fprintf(w, "  Median:  %s\n", median)
	fmt.Fprintf(w, "  p95:     %s\n", p95)
	fmt.Fprintf(w, "  p99:     %s\n", p99)
	fmt.Fprintf(w, "  Max:     %s\n", max)
}

func calculatePercentiles(latencies []time.Duration) (min, mean, median, p95, p99, max time.Duration) {
	if len(latencies) == 0 {
		return
	}

	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	min = sorted[0]
	max = sorted[len(sorted)-1]

	var sum time.Duration
	for _, lat := range sorted {
		sum += lat
	}
	mean = sum / time.Duration(len(sorted))

	median = sorted[len(sorted)/2]
	p95 = sorted[int(float64(len(sorted)-1)*0.95)]
	p99 = sorted[int(float64(len(sorted)-1)*0.99)]

	return
}

// writeMetrics prints the rule engine metrics in Prometheus text format.
func writeMetrics(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	if len(families) == 0 {
		_, err := fmt.Fprintln(w, "# metrics disabled (telemetry.metrics.enabled: false)")
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
