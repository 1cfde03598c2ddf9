package rhl

import (
	"math"
	"sync/atomic"
	"unsafe"
)

//Histogram is a dense array of per-bin gradient pair accumulators for
//one tree node. The caller allocates it zeroed, exactly one build call
//fills it, split evaluation consumes it afterwards.
type Histogram[T Floats] struct {
	bins []GradientPair[T]
}

//NewHistogram allocates a zeroed histogram with nBins bins.
func NewHistogram[T Floats](nBins int) *Histogram[T] {
	return &Histogram[T]{bins: make([]GradientPair[T], nBins)}
}

//NumBins returns the number of bins.
func (h *Histogram[T]) NumBins() int {
	return len(h.bins)
}

//At returns the accumulated pair of one bin.
func (h *Histogram[T]) At(bin int) GradientPair[T] {
	return h.bins[bin]
}

//Reset zeroes every accumulator so the buffer can host another build.
func (h *Histogram[T]) Reset() {
	for i := range h.bins {
		h.bins[i] = GradientPair[T]{}
	}
}

//AtomicAdd folds pair into the accumulator of bin. Safe for concurrent
//use by any number of workers; addends must already be truncated.
func (h *Histogram[T]) AtomicAdd(bin int, pair GradientPair[T]) {
	atomicAddPair(&h.bins[bin], pair)
}

func atomicAddPair[T Floats](dst *GradientPair[T], pair GradientPair[T]) {
	atomicAddFloat(&dst.Grad, pair.Grad)
	atomicAddFloat(&dst.Hess, pair.Hess)
}

//atomicAddFloat is the software counterpart of a hardware atomic float
//add: a compare-and-swap loop over the IEEE-754 bit pattern.
func atomicAddFloat[T Floats](addr *T, delta T) {
	switch p := any(addr).(type) {
	case *float32:
		bits := (*uint32)(unsafe.Pointer(p))
		d := float32(delta)
		for {
			old := atomic.LoadUint32(bits)
			next := math.Float32bits(math.Float32frombits(old) + d)
			if atomic.CompareAndSwapUint32(bits, old, next) {
				return
			}
		}
	case *float64:
		bits := (*uint64)(unsafe.Pointer(p))
		d := float64(delta)
		for {
			old := atomic.LoadUint64(bits)
			next := math.Float64bits(math.Float64frombits(old) + d)
			if atomic.CompareAndSwapUint64(bits, old, next) {
				return
			}
		}
	}
}
