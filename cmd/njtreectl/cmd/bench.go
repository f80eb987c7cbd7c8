package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/panjo/njtree/internal/runner"
	"github.com/panjo/njtree/pkg/parallel"
)

var (
	benchInput     string
	benchProcesses string
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Sweep process counts on the same input and report timings",
	Long: `bench repeats a join on the same distance matrix across a comma-separated
list of process counts and prints one "Benchmark Output" line per run, so
scaling behavior can be compared at a glance.`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().StringVarP(&benchInput, "input", "i", "", "input distance matrix path (required)")
	benchCmd.Flags().StringVarP(&benchProcesses, "processes", "p", "1", "comma-separated list of process counts, e.g. 1,2,4,8")

	_ = benchCmd.MarkFlagRequired("input")
}

func runBench(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	counts, err := parseProcessCounts(benchProcesses)
	if err != nil {
		return err
	}

	logger := GetLogger()

	for _, p := range counts {
		result, err := runner.Run(ctx, runner.Options{
			InputPath: benchInput,
			Processes: p,
			Pool:      parallel.DefaultPoolConfig(),
			Logger:    logger,
		})
		if err != nil {
			return fmt.Errorf("run with p=%d failed: %w", p, err)
		}

		fmt.Printf("Benchmark Output: %d, %d, %g, %g\n", result.N, result.P, result.TotalSeconds, result.MPISeconds)
	}

	return nil
}

func parseProcessCounts(spec string) ([]int, error) {
	parts := strings.Split(spec, ",")
	counts := make([]int, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid process count %q", p)
		}
		counts = append(counts, n)
	}

	if len(counts) == 0 {
		return nil, fmt.Errorf("no process counts given")
	}

	return counts, nil
}
