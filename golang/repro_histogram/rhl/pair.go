package rhl

import (
	"gonum.org/v1/gonum/mat"
)

//Floats constrains the two statistic precisions supported by the
//histogram core: float32 for throughput, float64 for accuracy.
type Floats interface {
	float32 | float64
}

//GradientPair carries the first and second derivative of the loss for
//one training row in one boosting round.
type GradientPair[T Floats] struct {
	Grad T
	Hess T
}

//Add returns the component-wise sum of two pairs.
func (p GradientPair[T]) Add(other GradientPair[T]) GradientPair[T] {
	return GradientPair[T]{Grad: p.Grad + other.Grad, Hess: p.Hess + other.Hess}
}

//SignParts splits the pair into its positive part and the absolute
//value of its negative part, per component. Summing the two parts
//separately gives a cancellation-free bound on any partial sum, which
//is what the rounding factor computation needs.
func (p GradientPair[T]) SignParts() (pos, neg GradientPair[T]) {
	if p.Grad > 0 {
		pos.Grad = p.Grad
	} else {
		neg.Grad = -p.Grad
	}
	if p.Hess > 0 {
		pos.Hess = p.Hess
	} else {
		neg.Hess = -p.Hess
	}
	return
}

//PairsFromDense converts an (n x 2) dense matrix with gradient in the
//first column and hessian in the second into a pair slice.
func PairsFromDense(src *mat.Dense) []GradientPair[float64] {
	h, w := src.Dims()
	if w != 2 {
		panicf("gradient matrix must have 2 columns, got %d", w)
	}
	pairs := make([]GradientPair[float64], h)
	for p := 0; p < h; p++ {
		pairs[p] = GradientPair[float64]{Grad: src.At(p, 0), Hess: src.At(p, 1)}
	}
	return pairs
}
