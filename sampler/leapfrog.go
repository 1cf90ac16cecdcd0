package sampler

import (
	"math"
)

// Leapfrog advances (pos, mom) by one symplectic step of size eps under a
// diagonal metric (the estimated posterior variances: position velocity is
// metric_i * mom_i). grad must hold the gradient at pos on entry; on a nil
// error return, pos/mom/grad hold the new state and the new log density is
// returned. On error the buffers are left mid-step and must be discarded.
func Leapfrog(t Target, pos, mom, grad, metric []float64, eps float64) (float64, error) {
	for i := range mom {
		mom[i] += 0.5 * eps * grad[i]
	}
	for i := range pos {
		pos[i] += eps * metric[i] * mom[i]
	}

	lp, err := t.LogDensity(pos, grad)
	if err != nil {
		return 0, err
	}

	for i := range mom {
		mom[i] += 0.5 * eps * grad[i]
	}
	return lp, nil
}

// kinetic is the momentum term of the Hamiltonian under the diagonal metric.
func kinetic(mom, metric []float64) float64 {
	k := 0.0
	for i, p := range mom {
		k += 0.5 * p * p * metric[i]
	}
	return k
}

// gradNorm is the L2 norm of a gradient vector.
func gradNorm(grad []float64) float64 {
	s := 0.0
	for _, g := range grad {
		s += g * g
	}
	return math.Sqrt(s)
}

// logAddExp computes log(exp(a) + exp(b)) without overflow.
func logAddExp(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	if a > b {
		return a + math.Log1p(math.Exp(b-a))
	}
	return b + math.Log1p(math.Exp(a-b))
}
