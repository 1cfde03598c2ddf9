package rhl

import (
	"math"

	"github.com/chewxy/math32"
)

//RoundingFactor holds one power-of-two scale per statistic. Every
//truncation in one boosting round uses the same factor; the shared grid
//is what makes the accumulated sums independent of addition order.
type RoundingFactor[T Floats] struct {
	Grad T
	Hess T
}

//machineEpsilon returns the distance between 1 and the next
//representable value of T.
func machineEpsilon[T Floats]() T {
	var zero T
	switch any(zero).(type) {
	case float32:
		return T(0x1p-23)
	default:
		return T(0x1p-52)
	}
}

func frexp[T Floats](x T) (frac T, exp int) {
	switch v := any(x).(type) {
	case float32:
		f, e := math32.Frexp(v)
		return T(f), e
	default:
		f, e := math.Frexp(float64(x))
		return T(f), e
	}
}

func ldexp[T Floats](frac T, exp int) T {
	switch v := any(frac).(type) {
	case float32:
		return T(math32.Ldexp(v, exp))
	default:
		return T(math.Ldexp(float64(frac), exp))
	}
}

//scaleBound returns the smallest power of two not below delta by
//extracting the IEEE-754 binary exponent and rebuilding a pure power of
//two from it. A zero delta maps to a zero scale, so an all-zero round
//keeps adding exact zeros instead of dividing by zero upstream.
func scaleBound[T Floats](delta T) T {
	if delta == 0 {
		return 0
	}
	_, exp := frexp(delta)
	return ldexp[T](1, exp)
}

//ComputeRoundingFactor derives the shared truncation scale for one
//boosting round from the full per-row gradient pair array. Positive and
//negative components are summed separately so opposite signs cannot
//cancel inside the bound; each one-sided maximum is then inflated by
//the worst-case summation error 1/(1 - 2*n*eps) and rounded up to a
//power of two. This deliberately bounds by the one-sided sums rather
//than max|v|*n, trading tightness for insensitivity to outliers.
func ComputeRoundingFactor[T Floats](pairs []GradientPair[T]) RoundingFactor[T] {
	var positive, negative GradientPair[T]
	for _, pair := range pairs {
		pos, neg := pair.SignParts()
		positive = positive.Add(pos)
		negative = negative.Add(neg)
	}

	maxGrad := positive.Grad
	if negative.Grad > maxGrad {
		maxGrad = negative.Grad
	}
	maxHess := positive.Hess
	if negative.Hess > maxHess {
		maxHess = negative.Hess
	}

	beta := 1 - 2*T(len(pairs))*machineEpsilon[T]()

	return RoundingFactor[T]{
		Grad: scaleBound(maxGrad / beta),
		Hess: scaleBound(maxHess / beta),
	}
}

//TruncateWithRoundingFactor snaps value onto the uniform grid induced
//by factor. Adding the factor to the magnitude pushes the low-order
//mantissa bits of value out of representation; subtracting it back
//leaves the truncated remainder. The magnitude is truncated rather
//than the signed value: factor+value lands in a lower binade for
//negative inputs, which would put them on a grid twice as fine and
//make the staged merge re-truncation lossy. Values truncated with the
//same factor sum to the same result under any ordering, and partial
//sums of such values are fixed points of further truncation.
func TruncateWithRoundingFactor[T Floats](factor, value T) T {
	if value < 0 {
		return -((factor - value) - factor)
	}
	return (factor + value) - factor
}

//Truncate applies the per-statistic truncation grid to one pair.
func (rf RoundingFactor[T]) Truncate(p GradientPair[T]) GradientPair[T] {
	return GradientPair[T]{
		Grad: TruncateWithRoundingFactor(rf.Grad, p.Grad),
		Hess: TruncateWithRoundingFactor(rf.Hess, p.Hess),
	}
}
