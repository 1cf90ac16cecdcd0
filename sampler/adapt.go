package sampler

import (
	"math"

	"github.com/statium/shrample/buffer"
	"github.com/statium/shrample/rand"
)

// DualAveraging tunes the log step size toward a target acceptance
// statistic (Nesterov dual averaging as used for HMC warmup). Mutable during
// warmup only; the chain freezes Final() at warmup end.
type DualAveraging struct {
	Delta float64 // Target acceptance statistic

	mu        float64
	logEps    float64
	logEpsBar float64
	hBar      float64
	count     int

	gamma float64
	t0    float64
	kappa float64
}

// NewDualAveraging starts adaptation from the given initial step size.
func NewDualAveraging(eps0, delta float64) *DualAveraging {
	da := &DualAveraging{
		Delta: delta,
		gamma: 0.05,
		t0:    10.0,
		kappa: 0.75,
	}
	da.Restart(eps0)
	return da
}

// Restart re-centers adaptation on a new step size (used after each metric
// refresh, since a new metric changes the stable step-size scale).
func (da *DualAveraging) Restart(eps0 float64) {
	da.mu = math.Log(10.0 * eps0)
	da.logEps = math.Log(eps0)
	da.logEpsBar = math.Log(eps0)
	da.hBar = 0.0
	da.count = 0
}

// Update consumes one iteration's acceptance statistic.
func (da *DualAveraging) Update(accept float64) {
	da.count++
	n := float64(da.count)

	frac := 1.0 / (n + da.t0)
	da.hBar = (1.0-frac)*da.hBar + frac*(da.Delta-accept)

	da.logEps = da.mu - math.Sqrt(n)/da.gamma*da.hBar

	w := math.Pow(n, -da.kappa)
	da.logEpsBar = w*da.logEps + (1.0-w)*da.logEpsBar
}

// StepSize is the current (noisy) step size to use for the next iteration.
func (da *DualAveraging) StepSize() float64 {
	return math.Exp(da.logEps)
}

// Final is the smoothed step size to freeze for the sampling phase.
func (da *DualAveraging) Final() float64 {
	return math.Exp(da.logEpsBar)
}

// MetricAdapter estimates a diagonal mass matrix from a moving window of
// warmup draws, one circular buffer per parameter dimension.
type MetricAdapter struct {
	wins []*buffer.CircularFloat
}

// NewMetricAdapter creates windows of the given size for every dimension.
func NewMetricAdapter(dim int, window int) *MetricAdapter {
	ma := &MetricAdapter{
		wins: make([]*buffer.CircularFloat, dim),
	}
	for i := range ma.wins {
		ma.wins[i] = buffer.NewCircularFloat(window)
	}
	return ma
}

// Add records one warmup position.
func (ma *MetricAdapter) Add(pos []float64) {
	for i, w := range ma.wins {
		w.Add(pos[i])
	}
}

// Estimate writes regularized per-dimension variances into metric and
// returns true, or returns false (metric untouched) while any window is
// still filling. The regularization pulls toward a small constant so early
// noisy estimates cannot collapse a dimension.
func (ma *MetricAdapter) Estimate(metric []float64) bool {
	for _, w := range ma.wins {
		if !w.Full() {
			return false
		}
	}

	for i, w := range ma.wins {
		n := float64(w.Count)
		v := w.Variance()
		metric[i] = (n/(n+5.0))*v + 1e-3*(5.0/(n+5.0))
	}
	return true
}

// findReasonableStepSize doubles/halves an initial step size until one
// leapfrog step's acceptance probability crosses 1/2, starting from the
// current point. Keeps warmup from wasting iterations on a wildly wrong
// initial scale.
func findReasonableStepSize(t Target, gen *rand.Generator, metric []float64, start *point) float64 {
	eps := 1.0

	p := start.clone()
	for i := range p.mom {
		p.mom[i] = gen.NormFloat64() / math.Sqrt(metric[i])
	}
	h0 := p.logp - kinetic(p.mom, metric)

	step := func(eps float64) (float64, bool) {
		q := p.clone()
		lp, err := Leapfrog(t, q.pos, q.mom, q.grad, metric, eps)
		if err != nil {
			return math.Inf(-1), false
		}
		return lp - kinetic(q.mom, metric) - h0, true
	}

	e, ok := step(eps)
	dbl := ok && e > math.Log(0.5)

	for i := 0; i < 50; i++ {
		if dbl {
			eps *= 2.0
		} else {
			eps *= 0.5
		}

		e, ok = step(eps)
		if dbl != (ok && e > math.Log(0.5)) {
			break
		}
	}

	if dbl {
		// Crossed from above: the last doubling overshot
		eps *= 0.5
	}
	return eps
}
