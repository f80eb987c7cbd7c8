// Package nj implements the distributed Neighbor-Joining iteration: each
// rank holds a column-partitioned slice of the working distance matrix and
// the engine drives rounds of column-sum computation, minimum search, and
// matrix update through the collective substrate until two clusters remain.
package nj

import (
	"context"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/panjo/njtree/internal/collective"
	"github.com/panjo/njtree/internal/matrix"
	"github.com/panjo/njtree/internal/tree"
	"github.com/panjo/njtree/pkg/collections"
	apperrors "github.com/panjo/njtree/pkg/errors"
	"github.com/panjo/njtree/pkg/parallel"
	"github.com/panjo/njtree/pkg/utils"
)

var tracer = otel.Tracer("njtree/nj")

// Result is a single rank's outcome of a full join run. Root is only
// meaningful (non-nil) on rank 0, which alone keeps the tree; Score is the
// same on every rank because it is accumulated from broadcast distances.
type Result struct {
	Score      float64
	Root       *tree.Node
	Iterations int
}

// Engine runs the join across one rank of a group.
type Engine struct {
	partition *matrix.Partition
	group     collective.Group
	logger    utils.Logger
	pool      parallel.PoolConfig
	bufPool   *collections.SlicePool[float64]
}

// NewEngine builds an Engine for one rank. partition is the rank's column
// slab, group its collective handle, logger a rank-tagged logger (see
// utils.NewRankLogger), and pool the intra-rank worker pool configuration
// used to parallelize the column-sum and minimum-search steps.
func NewEngine(partition *matrix.Partition, group collective.Group, logger utils.Logger, pool parallel.PoolConfig) *Engine {
	return &Engine{
		partition: partition,
		group:     group,
		logger:    logger,
		pool:      pool,
		bufPool:   collections.NewSlicePool[float64](partition.K()),
	}
}

// localMin is one rank's (or one chunk's) best candidate for the join pair.
type localMin struct {
	i, j int
	q    float64
}

// Run drives this rank through every iteration of the join, down to the
// terminal two-cluster join, and returns the accumulated tree score and (on
// rank 0) the root of the resulting tree.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	ctx, span := tracer.Start(ctx, "nj.run", trace.WithAttributes(
		attribute.Int("njtree.rank", e.group.Rank()),
		attribute.Int("njtree.n", e.partition.N),
		attribute.Int("njtree.p", e.group.Size()),
	))
	defer span.End()

	n := e.partition.N
	rank := e.group.Rank()
	k := e.partition.K()

	valid := collections.NewBitset(n)
	valid.SetAll()
	clusters := n

	R := make([]float64, n)

	var slots *tree.Slots
	if rank == 0 {
		slots = tree.NewSlots(n)
	}

	var score float64
	iterations := 0

	for clusters >= 3 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := e.iteration(ctx, clusters, valid, R, slots, &score, k); err != nil {
			return nil, err
		}
		clusters--
		iterations++
	}

	if err := e.terminalJoin(ctx, valid, R, slots, &score); err != nil {
		return nil, err
	}

	var root *tree.Node
	if rank == 0 {
		root = slots.Get(lowestValid(valid, n))
	}

	e.logger.Debug("join complete", "rank", rank, "iterations", iterations, "score", score)
	return &Result{Score: score, Root: root, Iterations: iterations}, nil
}

// iteration performs one full round of the algorithm: column sums, minimum
// search, global selection, matrix update, and (rank 0 only) tree
// bookkeeping. clusters is the cluster count as it stands at the start of
// this round.
func (e *Engine) iteration(ctx context.Context, clusters int, valid *collections.Bitset, R []float64, slots *tree.Slots, score *float64, k int) error {
	ctx, span := tracer.Start(ctx, "nj.iteration", trace.WithAttributes(
		attribute.Int("njtree.clusters", clusters),
	))
	defer span.End()

	p := e.partition
	rank := e.group.Rank()

	// Step 1: local column sums over owned, active columns.
	e.columnSums(ctx, p, valid, R, clusters)

	// Step 2: all-gather R across ranks.
	fullR, err := e.group.AllGather(R[p.Start:p.End])
	if err != nil {
		return apperrors.Wrap(apperrors.CodeCollectiveFailure, rank, "all-gather of R failed", err)
	}
	copy(R, fullR)

	// Step 3: local minimum search over owned, active columns.
	local := e.localMinimum(ctx, p, valid, R)

	// Step 4: all-gather every rank's local minimum Q.
	minima, err := e.group.AllGatherScalars(local.q)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeCollectiveFailure, rank, "all-gather of minima failed", err)
	}

	// Step 5: global selection of the winning rank, ties broken toward the
	// lowest rank.
	w := 0
	best := math.Inf(1)
	for r, q := range minima {
		if q < best {
			best = q
			w = r
		}
	}

	// Step 6: broadcast the winning pair and its raw distance.
	var localI, localJ int
	if rank == w {
		localI, localJ = local.i, local.j
	}
	iStar, jStar, err := e.group.BroadcastPair(w, localI, localJ)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeCollectiveFailure, rank, "broadcast of join pair failed", err)
	}

	var localDStar float64
	if rank == w {
		localDStar = p.At(iStar, jStar)
	}
	dStar, err := e.group.BroadcastFloat(w, localDStar)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeCollectiveFailure, rank, "broadcast of join distance failed", err)
	}

	// Step 7: invalidate i*; every rank maintains its own copy of V.
	valid.Clear(iStar)

	// Step 8: update column j* via exchange buffer + gather.
	if err := e.updateColumn(p, valid, R, iStar, jStar, dStar, k); err != nil {
		return err
	}

	// Step 9: rank-0 tree bookkeeping.
	if rank == 0 {
		dik := 0.5 * (dStar + R[iStar] - R[jStar])
		djk := dStar - dik
		slots.Merge(iStar, jStar, dik, djk)
	}

	// Step 10: score accumulation.
	*score += dStar

	// Step 11: barrier.
	if err := e.group.Barrier(); err != nil {
		return apperrors.Wrap(apperrors.CodeCollectiveFailure, rank, "post-iteration barrier failed", err)
	}

	return nil
}

// columnSums computes R[j] = sum(D[i][j] for active i != j) / (clusters-2)
// for every owned, active column j, fanning the work out across the rank's
// worker pool.
func (e *Engine) columnSums(ctx context.Context, p *matrix.Partition, valid *collections.Bitset, R []float64, clusters int) {
	owned := ownedActiveColumns(p, valid)
	if len(owned) == 0 {
		return
	}

	proc := parallel.NewChunkProcessor[int, struct{}](e.pool)
	divisor := float64(clusters - 2)
	proc.ProcessChunks(ctx, owned,
		func(ctx context.Context, chunk []int, workerID int) struct{} {
			for _, j := range chunk {
				var sum float64
				for i := 0; i < p.N; i++ {
					if i == j || !valid.Test(i) {
						continue
					}
					sum += p.At(i, j)
				}
				R[j] = sum / divisor
			}
			return struct{}{}
		},
		func(results []struct{}) struct{} { return struct{}{} },
	)
}

// localMinimum finds this rank's best (i*, j*) candidate across its owned,
// active columns, breaking ties toward the smaller j and then the smaller i.
func (e *Engine) localMinimum(ctx context.Context, p *matrix.Partition, valid *collections.Bitset, R []float64) localMin {
	owned := ownedActiveColumns(p, valid)
	if len(owned) == 0 {
		return localMin{i: -1, j: -1, q: math.Inf(1)}
	}

	proc := parallel.NewChunkProcessor[int, localMin](e.pool)
	return proc.ProcessChunks(ctx, owned,
		func(ctx context.Context, chunk []int, workerID int) localMin {
			best := localMin{i: -1, j: -1, q: math.Inf(1)}
			for _, j := range chunk {
				for i := j + 1; i < p.N; i++ {
					if !valid.Test(i) {
						continue
					}
					q := p.At(i, j) - R[i] - R[j]
					if q < best.q {
						best = localMin{i: i, j: j, q: q}
					}
				}
			}
			return best
		},
		func(results []localMin) localMin {
			best := localMin{i: -1, j: -1, q: math.Inf(1)}
			for _, r := range results {
				if r.q < best.q {
					best = r
				}
			}
			return best
		},
	)
}

// updateColumn applies the neighbor-joining distance update for the merged
// cluster j*: each rank computes its contribution to column j*'s new
// values, the owner of j* gathers and writes them, and every rank updates
// row j* within its own owned columns.
func (e *Engine) updateColumn(p *matrix.Partition, valid *collections.Bitset, R []float64, iStar, jStar int, dStar float64, k int) error {
	bufPtr := e.bufPool.Get()
	defer e.bufPool.Put(bufPtr)
	if cap(*bufPtr) < p.K() {
		*bufPtr = make([]float64, p.K())
	} else {
		*bufPtr = (*bufPtr)[:p.K()]
	}
	buf := *bufPtr

	for j := p.Start; j < p.End; j++ {
		idx := j - p.Start
		if valid.Test(j) {
			newVal := 0.5 * (p.At(iStar, j) + p.At(jStar, j) - dStar)
			buf[idx] = newVal
			p.Set(jStar, j, newVal)
		} else {
			buf[idx] = p.At(jStar, j)
		}
	}

	owner := matrix.WhoOwns(jStar, k)
	full, err := e.group.Gather(owner, buf)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeCollectiveFailure, e.group.Rank(), "gather of updated column failed", err)
	}

	if e.group.Rank() == owner {
		for i := 0; i < p.N; i++ {
			if valid.Test(i) {
				p.Set(i, jStar, full[i])
			}
		}
	}
	return nil
}

// terminalJoin handles the final two-cluster join: the owner of the higher
// remaining index reads the raw distance between the two survivors, folds
// it into the score, and broadcasts both so every rank's score matches
// exactly.
func (e *Engine) terminalJoin(ctx context.Context, valid *collections.Bitset, R []float64, slots *tree.Slots, score *float64) error {
	_, span := tracer.Start(ctx, "nj.terminal_join")
	defer span.End()

	p := e.partition
	rank := e.group.Rank()

	li, lj := -1, -1
	for i := 0; i < p.N; i++ {
		if valid.Test(i) {
			if li == -1 {
				li = i
			} else {
				lj = i
				break
			}
		}
	}
	if li == -1 || lj == -1 {
		return apperrors.NewRank(apperrors.CodeCollectiveFailure, rank, "terminal join found fewer than two surviving clusters")
	}

	owner := matrix.WhoOwns(lj, p.K())
	var localDStar, localScore float64
	if rank == owner {
		localDStar = p.At(li, lj)
		localScore = *score + localDStar
	}
	dStar, err := e.group.BroadcastFloat(owner, localDStar)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeCollectiveFailure, rank, "broadcast of terminal distance failed", err)
	}
	newScore, err := e.group.BroadcastFloat(owner, localScore)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeCollectiveFailure, rank, "broadcast of terminal score failed", err)
	}
	*score = newScore

	if rank == 0 {
		dik := 0.5 * (dStar + R[li] - R[lj])
		djk := dStar - dik
		slots.Merge(li, lj, dik, djk)
	}

	valid.Clear(li)
	return nil
}

// ownedActiveColumns returns, in ascending order, the global column indices
// owned by p that are currently active in valid.
func ownedActiveColumns(p *matrix.Partition, valid *collections.Bitset) []int {
	out := make([]int, 0, p.K())
	for j := p.Start; j < p.End; j++ {
		if valid.Test(j) {
			out = append(out, j)
		}
	}
	return out
}

// lowestValid returns the smallest index still set in valid, used to locate
// the surviving root slot after the terminal join clears one side.
func lowestValid(valid *collections.Bitset, n int) int {
	for i := 0; i < n; i++ {
		if valid.Test(i) {
			return i
		}
	}
	return 0
}
