// Package collective implements the bulk-synchronous collective-communication
// substrate the NJ iteration engine runs on: all-gather, all-gather of
// scalars, broadcast, gather, and a barrier, plus a wall-clock reading.
//
// The only implementation provided is LocalGroup, which runs every rank as a
// goroutine within one OS process, coordinated by a shared barrier. Group is
// an interface so a networked implementation could satisfy the same contract
// without any change to internal/nj.
package collective

import (
	"sync"
	"time"

	apperrors "github.com/panjo/njtree/pkg/errors"
)

// Group is the per-rank handle onto the collective substrate.
type Group interface {
	// Rank returns this handle's rank, 0..Size()-1.
	Rank() int
	// Size returns the number of ranks in the group (P).
	Size() int
	// AllGather exchanges each rank's equal-length contribution and returns
	// the concatenation ordered by rank (rank 0's slice first).
	AllGather(local []float64) ([]float64, error)
	// AllGatherScalars exchanges one scalar per rank and returns the full
	// vector ordered by rank.
	AllGatherScalars(local float64) ([]float64, error)
	// BroadcastPair broadcasts a pair of ints from root to every rank.
	BroadcastPair(root int, a, b int) (int, int, error)
	// BroadcastFloat broadcasts a scalar from root to every rank.
	BroadcastFloat(root int, v float64) (float64, error)
	// Gather collects each rank's equal-length contribution at root.
	// Returns nil on non-root ranks.
	Gather(root int, local []float64) ([]float64, error)
	// Barrier blocks until every rank has called Barrier.
	Barrier() error
	// Abort cancels the group; every rank currently (or subsequently)
	// blocked in a collective call returns CodeCollectiveFailure wrapping err.
	Abort(err error)
	// Now returns a wall-clock reading, used for timing the run.
	Now() time.Time
}

// groupState is the barrier-and-exchange core shared by every rank's handle.
type groupState struct {
	mu         sync.Mutex
	cond       *sync.Cond
	size       int
	generation int
	arrived    int
	data       []interface{}
	snapshot   []interface{}
	aborted    bool
	abortErr   error
}

func newGroupState(size int) *groupState {
	s := &groupState{
		size: size,
		data: make([]interface{}, size),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// exchange is the single barrier+rendezvous primitive every collective
// builds on: each rank stores its contribution at its own slot, waits for
// every rank to arrive, then every rank observes the same snapshot.
func (s *groupState) exchange(rank int, value interface{}) ([]interface{}, error) {
	s.mu.Lock()
	if s.aborted {
		err := s.abortErr
		s.mu.Unlock()
		return nil, err
	}

	gen := s.generation
	s.data[rank] = value
	s.arrived++

	if s.arrived == s.size {
		snapshot := make([]interface{}, s.size)
		copy(snapshot, s.data)
		s.snapshot = snapshot
		s.arrived = 0
		s.generation++
		s.cond.Broadcast()
		s.mu.Unlock()
		return snapshot, nil
	}

	for s.generation == gen && !s.aborted {
		s.cond.Wait()
	}
	defer s.mu.Unlock()
	if s.aborted {
		return nil, s.abortErr
	}
	return s.snapshot, nil
}

func (s *groupState) abort(rank int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted {
		return
	}
	s.aborted = true
	s.abortErr = apperrors.Wrap(apperrors.CodeCollectiveFailure, rank, "collective group aborted", err)
	s.cond.Broadcast()
}

// LocalGroup is a Group backed by an in-process goroutine barrier.
type LocalGroup struct {
	rank  int
	state *groupState
}

// NewLocalGroup builds size LocalGroup handles, one per rank, all sharing
// the same barrier state.
func NewLocalGroup(size int) []*LocalGroup {
	state := newGroupState(size)
	groups := make([]*LocalGroup, size)
	for r := 0; r < size; r++ {
		groups[r] = &LocalGroup{rank: r, state: state}
	}
	return groups
}

// Rank returns this handle's rank.
func (g *LocalGroup) Rank() int { return g.rank }

// Size returns the number of ranks in the group.
func (g *LocalGroup) Size() int { return g.state.size }

// AllGather exchanges each rank's equal-length contribution.
func (g *LocalGroup) AllGather(local []float64) ([]float64, error) {
	snapshot, err := g.state.exchange(g.rank, local)
	if err != nil {
		return nil, err
	}
	var total int
	for _, v := range snapshot {
		total += len(v.([]float64))
	}
	out := make([]float64, 0, total)
	for _, v := range snapshot {
		out = append(out, v.([]float64)...)
	}
	return out, nil
}

// AllGatherScalars exchanges one scalar per rank.
func (g *LocalGroup) AllGatherScalars(local float64) ([]float64, error) {
	snapshot, err := g.state.exchange(g.rank, local)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(snapshot))
	for i, v := range snapshot {
		out[i] = v.(float64)
	}
	return out, nil
}

type pair struct{ a, b int }

// BroadcastPair broadcasts a pair of ints from root.
func (g *LocalGroup) BroadcastPair(root int, a, b int) (int, int, error) {
	var contribution interface{}
	if g.rank == root {
		contribution = pair{a, b}
	}
	snapshot, err := g.state.exchange(g.rank, contribution)
	if err != nil {
		return 0, 0, err
	}
	p := snapshot[root].(pair)
	return p.a, p.b, nil
}

// BroadcastFloat broadcasts a scalar from root.
func (g *LocalGroup) BroadcastFloat(root int, v float64) (float64, error) {
	var contribution interface{}
	if g.rank == root {
		contribution = v
	}
	snapshot, err := g.state.exchange(g.rank, contribution)
	if err != nil {
		return 0, err
	}
	return snapshot[root].(float64), nil
}

// Gather collects each rank's equal-length contribution at root.
func (g *LocalGroup) Gather(root int, local []float64) ([]float64, error) {
	snapshot, err := g.state.exchange(g.rank, local)
	if err != nil {
		return nil, err
	}
	if g.rank != root {
		return nil, nil
	}
	var total int
	for _, v := range snapshot {
		total += len(v.([]float64))
	}
	out := make([]float64, 0, total)
	for _, v := range snapshot {
		out = append(out, v.([]float64)...)
	}
	return out, nil
}

// Barrier blocks until every rank has called Barrier.
func (g *LocalGroup) Barrier() error {
	_, err := g.state.exchange(g.rank, nil)
	return err
}

// Abort cancels the group for every rank.
func (g *LocalGroup) Abort(err error) {
	g.state.abort(g.rank, err)
}

// Now returns the current wall-clock time.
func (g *LocalGroup) Now() time.Time {
	return time.Now()
}
