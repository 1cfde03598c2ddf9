package rhl

import (
	"math"
	"math/rand"
	"testing"
)

func isPowerOfTwo(v float64) bool {
	frac, _ := math.Frexp(v)
	return frac == 0.5
}

func randomPairs(rnd *rand.Rand, n int) []GradientPair[float64] {
	pairs := make([]GradientPair[float64], n)
	for i := range pairs {
		pairs[i] = GradientPair[float64]{
			Grad: rnd.NormFloat64() * 3,
			Hess: rnd.Float64(),
		}
	}
	return pairs
}

func TestSignParts(t *testing.T) {
	pos, neg := GradientPair[float64]{Grad: -2.5, Hess: 0.75}.SignParts()
	if pos.Grad != 0 || pos.Hess != 0.75 {
		t.Fatalf("unexpected positive part: %+v", pos)
	}
	if neg.Grad != 2.5 || neg.Hess != 0 {
		t.Fatalf("unexpected negative part: %+v", neg)
	}
}

func TestRoundingFactorIsPowerOfTwoAboveBound(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	pairs := randomPairs(rnd, 1000)

	var positive, negative GradientPair[float64]
	for _, pair := range pairs {
		pos, neg := pair.SignParts()
		positive = positive.Add(pos)
		negative = negative.Add(neg)
	}

	factor := ComputeRoundingFactor(pairs)
	if !isPowerOfTwo(factor.Grad) || !isPowerOfTwo(factor.Hess) {
		t.Fatalf("rounding factor is not a power of two: %+v", factor)
	}
	if factor.Grad < positive.Grad || factor.Grad < negative.Grad {
		t.Fatalf("gradient factor %v below one-sided bound max(%v, %v)", factor.Grad, positive.Grad, negative.Grad)
	}
	if factor.Hess < positive.Hess || factor.Hess < negative.Hess {
		t.Fatalf("hessian factor %v below one-sided bound max(%v, %v)", factor.Hess, positive.Hess, negative.Hess)
	}
}

func TestRoundingFactorAllZeros(t *testing.T) {
	pairs := make([]GradientPair[float64], 128)
	factor := ComputeRoundingFactor(pairs)
	if factor.Grad != 0 || factor.Hess != 0 {
		t.Fatalf("expected zero factor for zero gradients, got %+v", factor)
	}
	if math.IsNaN(factor.Grad) || math.IsInf(factor.Grad, 0) {
		t.Fatalf("degenerate gradient factor: %v", factor.Grad)
	}
	if TruncateWithRoundingFactor(factor.Grad, 0.0) != 0 {
		t.Fatal("truncating zero with a zero factor should stay zero")
	}
}

func TestRoundingFactorFloat32(t *testing.T) {
	pairs := []GradientPair[float32]{
		{Grad: 0.3, Hess: 1},
		{Grad: -1.7, Hess: 0.25},
		{Grad: 5.5, Hess: 0.5},
	}
	factor := ComputeRoundingFactor(pairs)
	if !isPowerOfTwo(float64(factor.Grad)) || !isPowerOfTwo(float64(factor.Hess)) {
		t.Fatalf("float32 rounding factor is not a power of two: %+v", factor)
	}
	if factor.Grad < 5.8 {
		t.Fatalf("gradient factor %v below the positive sum", factor.Grad)
	}
}

//Truncation is magnitude-symmetric and partial sums of truncated
//values are fixed points of truncation, so the staged merge pass can
//re-truncate without perturbing anything.
func TestTruncationGridIsSignSymmetric(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	pairs := randomPairs(rnd, 300)
	factor := ComputeRoundingFactor(pairs)

	var partial float64
	for _, pair := range pairs {
		v := TruncateWithRoundingFactor(factor.Grad, pair.Grad)
		neg := TruncateWithRoundingFactor(factor.Grad, -pair.Grad)
		if math.Float64bits(neg) != math.Float64bits(-v) {
			t.Fatalf("truncation not sign-symmetric for %v: %x vs %x",
				pair.Grad, math.Float64bits(neg), math.Float64bits(-v))
		}
		partial += v
		again := TruncateWithRoundingFactor(factor.Grad, partial)
		if math.Float64bits(again) != math.Float64bits(partial) {
			t.Fatalf("partial sum %v moved under re-truncation to %v", partial, again)
		}
	}
}

//Summing truncated addends must give the same bits in every order;
//that is the property the whole histogram build rests on.
func TestTruncatedSumIsOrderIndependent(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	pairs := randomPairs(rnd, 500)
	factor := ComputeRoundingFactor(pairs)

	truncated := make([]float64, len(pairs))
	for i, pair := range pairs {
		truncated[i] = TruncateWithRoundingFactor(factor.Grad, pair.Grad)
	}

	var reference float64
	for _, v := range truncated {
		reference += v
	}

	for trial := 0; trial < 20; trial++ {
		shuffled := append([]float64(nil), truncated...)
		rnd.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		var total float64
		for _, v := range shuffled {
			total += v
		}
		if math.Float64bits(total) != math.Float64bits(reference) {
			t.Fatalf("trial %d: reordered sum %x differs from reference %x",
				trial, math.Float64bits(total), math.Float64bits(reference))
		}
	}
}
