// Package matrix loads the N×N pairwise distance matrix and partitions its
// columns across the ranks of a collective group.
package matrix

import (
	"bufio"
	"io"
	"math"
	"os"
	"strconv"

	apperrors "github.com/panjo/njtree/pkg/errors"
)

// Load reads the whole file at path and parses it into the flat,
// column-major token slice describing the logical N×N matrix.
//
// internal/runner calls Load once per run and hands the resulting tokens and
// N directly to every rank's goroutine; N is not broadcast through the
// collective group.
func Load(path string) (tokens []float64, n int, err error) {
	f, openErr := os.Open(path)
	if openErr != nil {
		return nil, 0, apperrors.Wrap(apperrors.CodeIOError, 0, "failed to open matrix file", openErr)
	}
	defer f.Close()

	return Parse(f)
}

// Parse tokenizes r as whitespace-separated floating point numbers and
// validates that the token count is a perfect square, returning the
// column-major token slice and the inferred N.
func Parse(r io.Reader) (tokens []float64, n int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	scanner.Split(bufio.ScanWords)

	for scanner.Scan() {
		tok := scanner.Text()
		v, parseErr := strconv.ParseFloat(tok, 64)
		if parseErr != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, 0, apperrors.Wrap(apperrors.CodeMalformedInput, 0,
				"token is not a finite number: "+tok, parseErr)
		}
		tokens = append(tokens, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, apperrors.Wrap(apperrors.CodeIOError, 0, "failed to read matrix file", err)
	}

	ts := len(tokens)
	n = int(math.Sqrt(float64(ts)))
	if n*n != ts {
		return nil, 0, apperrors.NewRank(apperrors.CodeShapeMismatch, 0,
			"token count is not a perfect square: "+strconv.Itoa(ts))
	}

	return tokens, n, nil
}

// Partition is a single rank's column-partitioned view of the logical N×N
// distance matrix: columns [Start, End) stored column-major, local[i +
// (j-Start)*N] for global row i, global column j.
type Partition struct {
	Rank  int
	P     int
	N     int
	Start int
	End   int
	Local []float64
}

// K returns the number of columns this partition owns.
func (p *Partition) K() int { return p.End - p.Start }

// Owns reports whether global column j belongs to this partition.
func (p *Partition) Owns(j int) bool { return j >= p.Start && j < p.End }

// At returns D[i][j] for a column j owned by this partition.
func (p *Partition) At(i, j int) float64 {
	return p.Local[i+(j-p.Start)*p.N]
}

// Set stores D[i][j] for a column j owned by this partition.
func (p *Partition) Set(i, j int, v float64) {
	p.Local[i+(j-p.Start)*p.N] = v
}

// WhoOwns returns the rank owning global column j under a uniform K-column
// partition.
func WhoOwns(j, k int) int { return j / k }

// NewPartition builds the rank's local slab by copying its owned columns out
// of the shared column-major token slice produced by Parse/Load.
//
// Returns CodePartitioning if n is not evenly divisible by p; the error's
// message includes the largest divisor of n not exceeding p as a diagnostic
// hint (only meaningful when reported from rank 0).
func NewPartition(tokens []float64, n, rank, p int) (*Partition, error) {
	if p <= 0 || n%p != 0 {
		hint := LargestDivisorAtMost(n, p)
		return nil, apperrors.NewRank(apperrors.CodePartitioning, rank,
			"N is not evenly divisible by P; largest divisor of N not exceeding P is "+strconv.Itoa(hint))
	}

	k := n / p
	start := rank * k
	end := start + k

	local := make([]float64, k*n)
	for j := start; j < end; j++ {
		for i := 0; i < n; i++ {
			local[i+(j-start)*n] = tokens[i+j*n]
		}
	}

	return &Partition{Rank: rank, P: p, N: n, Start: start, End: end, Local: local}, nil
}

// LargestDivisorAtMost returns the largest divisor of n that does not exceed
// p, used as a diagnostic hint when N mod P != 0. Returns 1 if n <= 0.
func LargestDivisorAtMost(n, p int) int {
	if n <= 0 {
		return 1
	}
	if p > n {
		p = n
	}
	for d := p; d >= 1; d-- {
		if n%d == 0 {
			return d
		}
	}
	return 1
}
