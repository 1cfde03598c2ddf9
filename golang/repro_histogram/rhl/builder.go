package rhl

import (
	"github.com/pkg/errors"
)

//Launch geometry defaults. The shared-bytes budget mirrors the classic
//48 KiB per-partition fast-memory limit of the hardware this core is
//modeled on.
const (
	DefaultWorkersPerPartition     = 8
	DefaultMaxPartitions           = 64
	DefaultSharedBytesPerPartition = 48 << 10
)

//HistogramBuilder sizes the work decomposition of node builds, decides
//between staged and direct accumulation and launches the kernel.
type HistogramBuilder[T Floats] struct {
	//WorkersPerPartition is the number of workers sharing one staging buffer.
	WorkersPerPartition int
	//MaxPartitions caps how many partitions one build launches.
	MaxPartitions int
	//SharedBytesPerPartition is the fast-memory budget a staging buffer must fit in.
	SharedBytesPerPartition int
	//ThreadsNum bounds the partition pool breadth; 0 runs every partition concurrently.
	ThreadsNum int
	//ForceGlobalMemory skips staging even when the buffer would fit.
	ForceGlobalMemory bool
}

//NewHistogramBuilder returns a builder with the default launch geometry.
func NewHistogramBuilder[T Floats]() *HistogramBuilder[T] {
	return &HistogramBuilder[T]{
		WorkersPerPartition:     DefaultWorkersPerPartition,
		MaxPartitions:           DefaultMaxPartitions,
		SharedBytesPerPartition: DefaultSharedBytesPerPartition,
	}
}

//UseStaging reports whether Build will take the staged path for a
//matrix with nBins bins.
func (b *HistogramBuilder[T]) UseStaging(nBins int) bool {
	return !b.ForceGlobalMemory && b.stagingFits(nBins)
}

func (b *HistogramBuilder[T]) stagingFits(nBins int) bool {
	var zero T
	pairBytes := 16
	if _, narrow := any(zero).(float32); narrow {
		pairBytes = 8
	}
	return nBins*pairBytes <= b.SharedBytesPerPartition
}

//Build adds the histogram of one node's row set into dst, which the
//caller must have zero-initialized. The staging decision follows the
//builder's own heuristic.
func (b *HistogramBuilder[T]) Build(matrix *EllpackMatrix, pairs []GradientPair[T], rows []int, dst *Histogram[T], factor RoundingFactor[T]) error {
	return b.BuildWithStaging(matrix, pairs, rows, dst, factor, !b.ForceGlobalMemory)
}

//BuildWithStaging is Build with the staging decision in the caller's
//hands. A requested staging buffer that would exceed the fast-memory
//budget falls back to direct accumulation instead of failing; the two
//paths produce bit-identical histograms.
func (b *HistogramBuilder[T]) BuildWithStaging(matrix *EllpackMatrix, pairs []GradientPair[T], rows []int, dst *Histogram[T], factor RoundingFactor[T], useStaging bool) error {
	if err := b.validate(matrix, pairs, rows, dst); err != nil {
		return err
	}
	total := len(rows) * matrix.RowStride
	if total == 0 {
		return nil
	}
	useStaging = useStaging && b.stagingFits(matrix.NumBins)

	cfg := b.decompose(total)
	failure := &buildFailure{}

	threads := b.ThreadsNum
	if threads <= 0 {
		threads = cfg.partitions
	}
	taskPool := NewPool(threads)
	for part := 0; part < cfg.partitions; part++ {
		task := &taskBuildPartition[T]{
			matrix:  matrix,
			rows:    rows,
			pairs:   pairs,
			factor:  factor,
			dst:     dst,
			cfg:     cfg,
			part:    part,
			failure: failure,
		}
		if useStaging {
			task.staging = make([]GradientPair[T], matrix.NumBins)
		}
		taskPool.AddTask(task)
	}
	taskPool.Close()
	taskPool.WaitAll()

	return errors.Wrap(failure.first(), "histogram build")
}

func (b *HistogramBuilder[T]) validate(matrix *EllpackMatrix, pairs []GradientPair[T], rows []int, dst *Histogram[T]) error {
	if b.WorkersPerPartition < 1 || b.MaxPartitions < 1 {
		return errors.Errorf("invalid launch geometry: %d workers per partition, %d max partitions",
			b.WorkersPerPartition, b.MaxPartitions)
	}
	if dst.NumBins() != matrix.NumBins {
		return errors.Errorf("histogram has %d bins, matrix has %d", dst.NumBins(), matrix.NumBins)
	}
	if len(pairs) != matrix.NumRows {
		return errors.Errorf("%d gradient pairs for %d matrix rows", len(pairs), matrix.NumRows)
	}
	for _, row := range rows {
		if row < 0 || row >= matrix.NumRows {
			return errors.Errorf("row index %d outside [0, %d)", row, matrix.NumRows)
		}
	}
	return nil
}

//decompose picks the partition count for a flat iteration space of the
//given size: enough partitions to give every worker work, capped so
//tiny nodes do not pay full launch overhead.
func (b *HistogramBuilder[T]) decompose(total int) launchConfig {
	partitions := (total + b.WorkersPerPartition - 1) / b.WorkersPerPartition
	if partitions > b.MaxPartitions {
		partitions = b.MaxPartitions
	}
	if partitions < 1 {
		partitions = 1
	}
	return launchConfig{partitions: partitions, workers: b.WorkersPerPartition}
}

//BuildGradientHistogram builds one node's histogram with the default
//launch geometry. useStaging may be fixed by the caller or taken from
//the builder heuristic via HistogramBuilder.Build.
func BuildGradientHistogram[T Floats](matrix *EllpackMatrix, pairs []GradientPair[T], rows []int, dst *Histogram[T], factor RoundingFactor[T], useStaging bool) error {
	return NewHistogramBuilder[T]().BuildWithStaging(matrix, pairs, rows, dst, factor, useStaging)
}
