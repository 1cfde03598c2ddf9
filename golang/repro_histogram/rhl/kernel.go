package rhl

import (
	"sync"

	"github.com/pkg/errors"
)

//launchConfig fixes the parallel decomposition of one build: how many
//partitions are launched and how many workers run inside each one.
type launchConfig struct {
	partitions int
	workers    int
}

//buildFailure collects the first worker failure of one build.
type buildFailure struct {
	mu  sync.Mutex
	err error
}

func (f *buildFailure) record(err error) {
	f.mu.Lock()
	if f.err == nil {
		f.err = err
	}
	f.mu.Unlock()
}

func (f *buildFailure) first() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

//taskBuildPartition processes one partition's share of the flat
//(row, feature slot) iteration space of a single node build. The space
//has len(rows)*RowStride entries; worker g of partition p starts at
//index p*workers+g and strides by partitions*workers, so the whole
//space is covered exactly once regardless of the decomposition.
type taskBuildPartition[T Floats] struct {
	matrix  *EllpackMatrix
	rows    []int
	pairs   []GradientPair[T]
	factor  RoundingFactor[T]
	dst     *Histogram[T]
	cfg     launchConfig
	part    int
	staging []GradientPair[T] // nil selects direct global accumulation
	failure *buildFailure
}

func (t *taskBuildPartition[T]) Execute() {
	if t.staging == nil {
		t.runPhase(func(worker int) {
			t.accumulate(worker, t.dst.AtomicAdd)
		})
		return
	}
	t.runPhase(t.zeroStaging)
	t.runPhase(func(worker int) {
		t.accumulate(worker, func(bin int, pair GradientPair[T]) {
			atomicAddPair(&t.staging[bin], pair)
		})
	})
	t.runPhase(t.mergeStaging)
}

//runPhase runs one phase on every worker of the partition. The join is
//the barrier: no worker enters the next phase before every worker has
//left the current one.
func (t *taskBuildPartition[T]) runPhase(phase func(worker int)) {
	var wg sync.WaitGroup
	wg.Add(t.cfg.workers)
	for g := 0; g < t.cfg.workers; g++ {
		go func(worker int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					t.failure.record(errors.Errorf("histogram worker failed: %v", r))
				}
			}()
			phase(worker)
		}(g)
	}
	wg.Wait()
}

//accumulate walks the partition's strided subset of the iteration
//space, skips missing-value cells and feeds truncated pairs to add.
func (t *taskBuildPartition[T]) accumulate(worker int, add func(bin int, pair GradientPair[T])) {
	stride := t.matrix.RowStride
	total := len(t.rows) * stride
	step := t.cfg.partitions * t.cfg.workers
	bins := t.matrix.binData()
	for idx := t.part*t.cfg.workers + worker; idx < total; idx += step {
		row := t.rows[idx/stride]
		bin := int(bins[row*stride+idx%stride])
		if bin == t.matrix.NumBins {
			continue
		}
		add(bin, t.factor.Truncate(t.pairs[row]))
	}
}

//zeroStaging clears the partition staging buffer before any row is
//accumulated into it.
func (t *taskBuildPartition[T]) zeroStaging(worker int) {
	for bin := worker; bin < len(t.staging); bin += t.cfg.workers {
		t.staging[bin] = GradientPair[T]{}
	}
}

//mergeStaging folds the partition's staging buffer into the shared
//histogram. Staged partial sums pass through the truncation grid once
//more, so the merge adds values from the same grid as the direct path.
func (t *taskBuildPartition[T]) mergeStaging(worker int) {
	for bin := worker; bin < len(t.staging); bin += t.cfg.workers {
		t.dst.AtomicAdd(bin, t.factor.Truncate(t.staging[bin]))
	}
}
