package collective

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalGroup_AllGather(t *testing.T) {
	groups := NewLocalGroup(3)
	results := make([][]float64, 3)

	var wg sync.WaitGroup
	for r := 0; r < 3; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			local := []float64{float64(r), float64(r) * 10}
			out, err := groups[r].AllGather(local)
			require.NoError(t, err)
			results[r] = out
		}(r)
	}
	wg.Wait()

	expected := []float64{0, 0, 1, 10, 2, 20}
	for r := 0; r < 3; r++ {
		assert.Equal(t, expected, results[r])
	}
}

func TestLocalGroup_AllGatherScalars(t *testing.T) {
	groups := NewLocalGroup(4)
	results := make([][]float64, 4)

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			out, err := groups[r].AllGatherScalars(float64(r) * 1.5)
			require.NoError(t, err)
			results[r] = out
		}(r)
	}
	wg.Wait()

	expected := []float64{0, 1.5, 3, 4.5}
	for r := 0; r < 4; r++ {
		assert.Equal(t, expected, results[r])
	}
}

func TestLocalGroup_BroadcastPairAndFloat(t *testing.T) {
	groups := NewLocalGroup(3)
	pairs := make([][2]int, 3)
	floats := make([]float64, 3)

	var wg sync.WaitGroup
	for r := 0; r < 3; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			a, b, err := groups[r].BroadcastPair(1, 7, 3)
			require.NoError(t, err)
			pairs[r] = [2]int{a, b}

			f, err := groups[r].BroadcastFloat(1, 42.5)
			require.NoError(t, err)
			floats[r] = f
		}(r)
	}
	wg.Wait()

	for r := 0; r < 3; r++ {
		assert.Equal(t, [2]int{7, 3}, pairs[r])
		assert.Equal(t, 42.5, floats[r])
	}
}

func TestLocalGroup_Gather(t *testing.T) {
	groups := NewLocalGroup(2)
	results := make([][]float64, 2)

	var wg sync.WaitGroup
	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			out, err := groups[r].Gather(0, []float64{float64(r)})
			require.NoError(t, err)
			results[r] = out
		}(r)
	}
	wg.Wait()

	assert.Equal(t, []float64{0, 1}, results[0])
	assert.Nil(t, results[1])
}

func TestLocalGroup_Barrier(t *testing.T) {
	groups := NewLocalGroup(2)
	var wg sync.WaitGroup
	done := make(chan struct{}, 2)

	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			if r == 0 {
				time.Sleep(10 * time.Millisecond)
			}
			err := groups[r].Barrier()
			require.NoError(t, err)
			done <- struct{}{}
		}(r)
	}
	wg.Wait()
	close(done)

	count := 0
	for range done {
		count++
	}
	assert.Equal(t, 2, count)
}

func TestLocalGroup_Abort(t *testing.T) {
	groups := NewLocalGroup(2)
	var wg sync.WaitGroup
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := groups[0].AllGatherScalars(1.0)
		errs[0] = err
	}()

	time.Sleep(10 * time.Millisecond)
	groups[1].Abort(assert.AnError)
	wg.Wait()

	require.Error(t, errs[0])
}
