// SPDX-License-Identifier: Apache-2.0

package main

/*
#cgo CFLAGS: -I.
#include <stdlib.h>
*/
import "C"

import (
	"errors"
	"io"
	"log"
	"sync"
	"unsafe"

	rhl "github.com/tarstars/reproducible_boosting/golang/repro_histogram/rhl"
)

var (
	handleMu   sync.Mutex
	nextHandle uint64 = 1
	matrices          = make(map[uint64]*rhl.EllpackMatrix)

	lastErrorMu sync.Mutex
	lastError   string

	logSilenceOnce sync.Once
)

func setLastError(err error) {
	lastErrorMu.Lock()
	defer lastErrorMu.Unlock()
	if err != nil {
		lastError = err.Error()
	} else {
		lastError = ""
	}
}

//export GetLastError
func GetLastError() *C.char {
	lastErrorMu.Lock()
	defer lastErrorMu.Unlock()
	return C.CString(lastError)
}

func storeMatrix(m *rhl.EllpackMatrix) uint64 {
	handleMu.Lock()
	defer handleMu.Unlock()
	handle := nextHandle
	matrices[handle] = m
	nextHandle++
	return handle
}

func fetchMatrix(handle uint64) (*rhl.EllpackMatrix, error) {
	handleMu.Lock()
	defer handleMu.Unlock()
	matrix, ok := matrices[handle]
	if !ok {
		return nil, errors.New("invalid matrix handle")
	}
	return matrix, nil
}

//export FreeMatrix
func FreeMatrix(handle C.ulonglong) {
	handleMu.Lock()
	defer handleMu.Unlock()
	delete(matrices, uint64(handle))
}

func sliceFromPtr(ptr *C.double, length int) ([]float64, error) {
	if length < 0 {
		return nil, errors.New("negative length")
	}
	if length == 0 {
		return nil, nil
	}
	if ptr == nil {
		return nil, errors.New("null pointer for non-empty slice")
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(ptr)), length), nil
}

func pairsFromPtrs(gradPtr, hessPtr *C.double, n int) ([]rhl.GradientPair[float64], error) {
	grads, err := sliceFromPtr(gradPtr, n)
	if err != nil {
		return nil, err
	}
	hessians, err := sliceFromPtr(hessPtr, n)
	if err != nil {
		return nil, err
	}
	pairs := make([]rhl.GradientPair[float64], n)
	for i := range pairs {
		pairs[i] = rhl.GradientPair[float64]{Grad: grads[i], Hess: hessians[i]}
	}
	return pairs, nil
}

//export RegisterQuantizedMatrix
func RegisterQuantizedMatrix(
	binsPtr *C.longlong,
	rows C.int,
	rowStride C.int,
	nBins C.int,
) C.ulonglong {
	setLastError(nil)
	logSilenceOnce.Do(func() {
		log.SetOutput(io.Discard)
	})

	r, stride, bins := int(rows), int(rowStride), int(nBins)
	if r < 0 || stride <= 0 || bins <= 0 {
		setLastError(errors.New("invalid matrix dimensions"))
		return 0
	}
	if binsPtr == nil && r > 0 {
		setLastError(errors.New("null bin index pointer"))
		return 0
	}

	src := unsafe.Slice((*int64)(unsafe.Pointer(binsPtr)), r*stride)
	rowBins := make([][]int, r)
	for p := 0; p < r; p++ {
		rowBins[p] = make([]int, stride)
		for q := 0; q < stride; q++ {
			rowBins[p][q] = int(src[p*stride+q])
		}
	}
	matrix := rhl.NewEllpackFromBins(rowBins, stride, bins)
	return C.ulonglong(storeMatrix(matrix))
}

//export RoundingFactorFromGradients
func RoundingFactorFromGradients(
	gradPtr *C.double,
	hessPtr *C.double,
	n C.int,
	outGradFactor *C.double,
	outHessFactor *C.double,
) C.int {
	setLastError(nil)

	pairs, err := pairsFromPtrs(gradPtr, hessPtr, int(n))
	if err != nil {
		setLastError(err)
		return 1
	}
	if outGradFactor == nil || outHessFactor == nil {
		setLastError(errors.New("null output pointer"))
		return 2
	}

	factor := rhl.ComputeRoundingFactor(pairs)
	*outGradFactor = C.double(factor.Grad)
	*outHessFactor = C.double(factor.Hess)
	return 0
}

//export BuildHistogram
func BuildHistogram(
	matrixHandle C.ulonglong,
	gradPtr *C.double,
	hessPtr *C.double,
	nPairs C.int,
	rowsPtr *C.longlong,
	nRows C.int,
	gradFactor C.double,
	hessFactor C.double,
	useStaging C.int,
	threadsNum C.int,
	outPtr *C.double,
) C.int {
	setLastError(nil)

	matrix, err := fetchMatrix(uint64(matrixHandle))
	if err != nil {
		setLastError(err)
		return 1
	}

	pairs, err := pairsFromPtrs(gradPtr, hessPtr, int(nPairs))
	if err != nil {
		setLastError(err)
		return 2
	}

	rows := make([]int, int(nRows))
	if len(rows) > 0 {
		if rowsPtr == nil {
			setLastError(errors.New("null row set pointer"))
			return 3
		}
		src := unsafe.Slice((*int64)(unsafe.Pointer(rowsPtr)), len(rows))
		for i := range rows {
			rows[i] = int(src[i])
		}
	}

	if outPtr == nil {
		setLastError(errors.New("null output pointer"))
		return 4
	}

	builder := rhl.NewHistogramBuilder[float64]()
	builder.ThreadsNum = int(threadsNum)

	hist := rhl.NewHistogram[float64](matrix.NumBins)
	factor := rhl.RoundingFactor[float64]{Grad: float64(gradFactor), Hess: float64(hessFactor)}
	if err := builder.BuildWithStaging(matrix, pairs, rows, hist, factor, useStaging != 0); err != nil {
		setLastError(err)
		return 5
	}

	out := unsafe.Slice((*float64)(unsafe.Pointer(outPtr)), 2*matrix.NumBins)
	for bin := 0; bin < matrix.NumBins; bin++ {
		pair := hist.At(bin)
		out[2*bin] = pair.Grad
		out[2*bin+1] = pair.Hess
	}
	return 0
}

func main() {}
