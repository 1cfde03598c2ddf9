package rhl

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

//EllpackMatrix stores one bin index per (row, feature slot) in a dense
//row-major int32 tensor of shape (NumRows, RowStride). Bin indices are
//cumulative across features, so every feature owns a disjoint range of
//the global [0, NumBins) space. A stored index equal to NumBins marks a
//missing value and contributes nothing to any histogram.
type EllpackMatrix struct {
	bins      *tensor.Dense
	NumRows   int
	RowStride int
	NumBins   int
}

//BinIndex returns the global bin index of one (row, feature slot) cell.
func (m *EllpackMatrix) BinIndex(row, slot int) int {
	element, err := m.bins.At(row, slot)
	HandleError(err)
	return int(element.(int32))
}

//IsMissing reports whether a bin index is the missing-value sentinel.
func (m *EllpackMatrix) IsMissing(bin int) bool {
	return bin == m.NumBins
}

//binData exposes the raw backing slice for the kernel hot loop.
func (m *EllpackMatrix) binData() []int32 {
	return m.bins.Data().([]int32)
}

//NewEllpackFromBins builds a matrix from explicit per-row bin indices.
//Rows shorter than rowStride are padded with the missing sentinel.
func NewEllpackFromBins(rows [][]int, rowStride, nBins int) *EllpackMatrix {
	if rowStride <= 0 {
		panicf("row stride must be positive, got %d", rowStride)
	}
	bins := tensor.New(tensor.WithShape(len(rows), rowStride), tensor.Of(tensor.Int32))
	for p, row := range rows {
		if len(row) > rowStride {
			panicf("row %d has %d slots, stride is %d", p, len(row), rowStride)
		}
		for q := 0; q < rowStride; q++ {
			bin := nBins
			if q < len(row) {
				bin = row[q]
			}
			if bin < 0 || bin > nBins {
				panicf("bin index %d of row %d is outside [0, %d]", bin, p, nBins)
			}
			HandleError(bins.SetAt(int32(bin), p, q))
		}
	}
	return &EllpackMatrix{bins: bins, NumRows: len(rows), RowStride: rowStride, NumBins: nBins}
}

//NewEllpackFromDense quantizes a dense feature matrix into bin indices,
//using up to maxBinsPerFeature quantile cuts per column. NaN cells map
//to the missing sentinel.
func NewEllpackFromDense(features *mat.Dense, maxBinsPerFeature int) *EllpackMatrix {
	h, w := features.Dims()
	if maxBinsPerFeature < 1 {
		panicf("need at least one bin per feature, got %d", maxBinsPerFeature)
	}

	cuts := make([][]float64, w)
	offsets := make([]int, w+1)
	for q := 0; q < w; q++ {
		column := make([]float64, 0, h)
		for p := 0; p < h; p++ {
			if v := features.At(p, q); !math.IsNaN(v) {
				column = append(column, v)
			}
		}
		cuts[q] = featureCuts(column, maxBinsPerFeature)
		offsets[q+1] = offsets[q] + len(cuts[q])
	}
	nBins := offsets[w]

	bins := tensor.New(tensor.WithShape(h, w), tensor.Of(tensor.Int32))
	for p := 0; p < h; p++ {
		for q := 0; q < w; q++ {
			bin := nBins
			if v := features.At(p, q); !math.IsNaN(v) {
				bin = offsets[q] + binFor(cuts[q], v)
			}
			HandleError(bins.SetAt(int32(bin), p, q))
		}
	}
	return &EllpackMatrix{bins: bins, NumRows: h, RowStride: w, NumBins: nBins}
}

//featureCuts returns ascending inclusive upper bounds for one column.
//Each distinct value gets its own bin while the budget allows,
//otherwise evenly spaced quantiles of the sorted column are taken.
func featureCuts(values []float64, maxBins int) []float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	distinct := sorted[:1]
	for _, v := range sorted[1:] {
		if v != distinct[len(distinct)-1] {
			distinct = append(distinct, v)
		}
	}
	if len(distinct) <= maxBins {
		return append([]float64(nil), distinct...)
	}

	cuts := make([]float64, 0, maxBins)
	for b := 1; b <= maxBins; b++ {
		v := sorted[b*len(sorted)/maxBins-1]
		if len(cuts) == 0 || v != cuts[len(cuts)-1] {
			cuts = append(cuts, v)
		}
	}
	return cuts
}

//binFor locates the first cut not below v; values beyond the last cut
//clamp into the last bin.
func binFor(cuts []float64, v float64) int {
	bin := sort.SearchFloat64s(cuts, v)
	if bin == len(cuts) {
		bin--
	}
	return bin
}
