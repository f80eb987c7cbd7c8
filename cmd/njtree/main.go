// Command njtree computes a Neighbor-Joining tree from an N×N pairwise
// distance matrix and prints it in parenthesized form.
//
// Usage:
//
//	njtree -i <input_path> [-o <output_path>] [-p <processes>] [-lengths] [-h|-?]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/panjo/njtree/internal/runner"
	apperrors "github.com/panjo/njtree/pkg/errors"
	"github.com/panjo/njtree/pkg/parallel"
	"github.com/panjo/njtree/pkg/utils"
)

func main() {
	var (
		input     string
		output    string
		processes int
		lengths   bool
		help      bool
		helpQm    bool
	)

	flag.StringVar(&input, "i", "", "input distance matrix path")
	flag.StringVar(&input, "input", "", "input distance matrix path")
	flag.StringVar(&output, "o", "", "output path (default: stdout)")
	flag.StringVar(&output, "output", "", "output path (default: stdout)")
	flag.IntVar(&processes, "p", runtime.GOMAXPROCS(0), "number of logical ranks")
	flag.IntVar(&processes, "processes", runtime.GOMAXPROCS(0), "number of logical ranks")
	flag.BoolVar(&lengths, "lengths", false, "emit :length branch-length annotations")
	flag.BoolVar(&help, "h", false, "print usage")
	flag.BoolVar(&helpQm, "?", false, "print usage")
	flag.Parse()

	if help || helpQm {
		printUsage()
		os.Exit(0)
	}

	if input == "" {
		fmt.Fprintln(os.Stderr, "njtree: -i/-input is required")
		printUsage()
		os.Exit(1)
	}

	var out *os.File
	if output == "" {
		fmt.Fprintln(os.Stderr, "njtree: no -o/-output given, writing to stdout")
		out = os.Stdout
	} else {
		f, err := os.Create(output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "njtree: failed to open output: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	logger := utils.NewDefaultLogger(utils.LevelInfo, os.Stderr)

	result, err := runner.Run(context.Background(), runner.Options{
		InputPath:   input,
		Processes:   processes,
		EmitLengths: lengths,
		Pool:        parallel.DefaultPoolConfig().WithWorkers(processes),
		Logger:      logger,
	})
	if err != nil {
		logger.Error("run failed: %v (code=%s, rank=%d)", err, apperrors.GetErrorCode(err), apperrors.GetRank(err))
		os.Exit(1)
	}

	fmt.Fprintf(out, "TreeScore: %g\n", result.TreeScore)
	fmt.Fprintf(out, "total_seconds: %g\n", result.TotalSeconds)
	fmt.Fprintf(out, "mpi_seconds: %g\n", result.MPISeconds)
	fmt.Fprintf(out, "Benchmark Output: %d, %d, %g, %g\n", result.N, result.P, result.TotalSeconds, result.MPISeconds)
	fmt.Fprintln(out, "Neighbor-Joining Tree:")
	fmt.Fprintln(out, result.Newick)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: njtree -i <input_path> [-o <output_path>] [-p <processes>] [-lengths] [-h|-?]")
	flag.PrintDefaults()
}
