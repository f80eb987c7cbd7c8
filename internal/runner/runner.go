// Package runner orchestrates a complete join run: loads the distance
// matrix, spawns one goroutine per logical rank, drives each rank's NJ
// engine through the collective substrate, and assembles the result rank 0
// produces into a BenchmarkResult.
package runner

import (
	"context"
	"runtime"
	"sync"

	"github.com/panjo/njtree/internal/collective"
	"github.com/panjo/njtree/internal/matrix"
	"github.com/panjo/njtree/internal/nj"
	"github.com/panjo/njtree/internal/tree"
	"github.com/panjo/njtree/pkg/parallel"
	"github.com/panjo/njtree/pkg/utils"
)

// BenchmarkResult is the one-run-per-row artifact emitted on stdout,
// persisted via internal/repository, or uploaded via internal/storage.
type BenchmarkResult struct {
	N            int     `json:"n"`
	P            int     `json:"p"`
	TreeScore    float64 `json:"tree_score"`
	TotalSeconds float64 `json:"total_seconds"`
	MPISeconds   float64 `json:"mpi_seconds"`
	Newick       string  `json:"newick"`
}

// Options configures a single run.
type Options struct {
	InputPath   string
	Processes   int // 0 means GOMAXPROCS
	EmitLengths bool
	Pool        parallel.PoolConfig
	Logger      utils.Logger
}

// Run loads the matrix at opts.InputPath, partitions it across
// opts.Processes ranks, and drives the distributed join to completion.
func Run(ctx context.Context, opts Options) (*BenchmarkResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = &utils.NullLogger{}
	}

	p := opts.Processes
	if p <= 0 {
		p = runtime.GOMAXPROCS(0)
	}

	timer := utils.NewTimer("njtree-run", utils.WithLogger(logger))
	total := timer.Start("total")
	defer total.Stop()

	tokens, n, err := matrix.Load(opts.InputPath)
	if err != nil {
		return nil, err
	}

	mpi := timer.StartChild("total", "mpi")
	groups := collective.NewLocalGroup(p)

	type rankOutcome struct {
		result *nj.Result
		err    error
	}
	outcomes := make([]rankOutcome, p)

	var wg sync.WaitGroup
	for r := 0; r < p; r++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			res, err := runRank(ctx, tokens, n, rank, p, groups[rank], logger, opts.Pool)
			if err != nil {
				groups[rank].Abort(err)
			}
			outcomes[rank] = rankOutcome{result: res, err: err}
		}(r)
	}
	wg.Wait()
	mpi.Stop()

	for _, o := range outcomes {
		if o.err != nil {
			return nil, o.err
		}
	}

	rank0 := outcomes[0].result
	newick := tree.Serialize(rank0.Root, opts.EmitLengths)

	return &BenchmarkResult{
		N:            n,
		P:            p,
		TreeScore:    rank0.Score,
		TotalSeconds: total.Stop().Seconds(),
		MPISeconds:   timer.GetDuration("mpi").Seconds(),
		Newick:       newick,
	}, nil
}

func runRank(ctx context.Context, tokens []float64, n, rank, p int, group collective.Group, logger utils.Logger, pool parallel.PoolConfig) (*nj.Result, error) {
	partition, err := matrix.NewPartition(tokens, n, rank, p)
	if err != nil {
		return nil, err
	}

	rankLogger := utils.NewRankLogger(logger, rank)
	engine := nj.NewEngine(partition, group, rankLogger, pool)
	return engine.Run(ctx)
}
