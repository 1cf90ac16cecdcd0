package sampler

import (
	"math"

	"github.com/statium/shrample/rand"
)

// divergenceThreshold is the energy error (in nats, relative to the
// trajectory's starting Hamiltonian) beyond which a leapfrog step is flagged
// as a divergent transition.
const divergenceThreshold = 1000.0

// point is one phase-space state: position, momentum, gradient, log density.
type point struct {
	pos  []float64
	mom  []float64
	grad []float64
	logp float64
}

func newPoint(dim int) *point {
	return &point{
		pos:  make([]float64, dim),
		mom:  make([]float64, dim),
		grad: make([]float64, dim),
	}
}

func (p *point) copyFrom(o *point) {
	copy(p.pos, o.pos)
	copy(p.mom, o.mom)
	copy(p.grad, o.grad)
	p.logp = o.logp
}

func (p *point) clone() *point {
	c := newPoint(len(p.pos))
	c.copyFrom(p)
	return c
}

// nuts builds No-U-Turn trajectories for one chain. Not safe for concurrent
// use: chains own their instance.
type nuts struct {
	target   Target
	gen      *rand.Generator
	metric   []float64 // Diagonal of the estimated posterior covariance
	maxDepth int
}

// subtree is the result of growing a trajectory segment of 2^depth leapfrog
// steps in one direction. lo and hi are the segment's endpoints in
// trajectory-time order (lo earliest), regardless of growth direction.
type subtree struct {
	lo, hi   *point
	prop     *point  // Multinomial proposal drawn from the segment
	logW     float64 // log sum of the segment's state weights
	sumAcc   float64 // Sum of per-step acceptance statistics
	steps    int     // Leapfrog steps actually computed
	stop     bool    // Segment ended in a divergence or internal U-turn
	diverged bool
}

// transition is one full NUTS iteration from a current point.
type transition struct {
	depth     int
	divergent bool
	saturated bool
	accept    float64
	steps     int
}

// uTurn reports whether the trajectory segment spanning lo..hi has curved
// back on itself: the endpoint velocities projected on the end-to-end
// displacement must both stay positive to keep going.
func uTurn(lo, hi *point, metric []float64) bool {
	sLo, sHi := 0.0, 0.0
	for i := range metric {
		d := hi.pos[i] - lo.pos[i]
		sLo += d * metric[i] * lo.mom[i]
		sHi += d * metric[i] * hi.mom[i]
	}
	return sLo < 0.0 || sHi < 0.0
}

// buildTree grows 2^depth leapfrog steps from the given endpoint in
// direction dir (+1 forward, -1 backward). h0 is the Hamiltonian at the
// trajectory start; all weights and divergence checks are relative to it.
func (s *nuts) buildTree(depth int, from *point, dir float64, eps float64, h0 float64) *subtree {
	if depth == 0 {
		p := from.clone()
		lp, err := Leapfrog(s.target, p.pos, p.mom, p.grad, s.metric, dir*eps)
		if err != nil {
			// Non-finite density: reject the point outright and end the
			// trajectory here, flagged as divergent.
			return &subtree{steps: 1, stop: true, diverged: true, logW: math.Inf(-1)}
		}
		p.logp = lp

		h := lp - kinetic(p.mom, s.metric)
		e := h - h0
		if math.IsNaN(e) || e < -divergenceThreshold {
			return &subtree{steps: 1, stop: true, diverged: true, logW: math.Inf(-1)}
		}

		acc := 1.0
		if e < 0.0 {
			acc = math.Exp(e)
		}

		return &subtree{
			lo:     p,
			hi:     p,
			prop:   p,
			logW:   e,
			sumAcc: acc,
			steps:  1,
		}
	}

	first := s.buildTree(depth-1, from, dir, eps, h0)
	if first.stop {
		return first
	}

	fromNext := first.hi
	if dir < 0 {
		fromNext = first.lo
	}

	second := s.buildTree(depth-1, fromNext, dir, eps, h0)
	first.steps += second.steps
	first.sumAcc += second.sumAcc
	if second.stop {
		first.stop = true
		first.diverged = first.diverged || second.diverged
		return first
	}

	// Multinomial merge: the proposal moves to the new half with probability
	// proportional to its total weight.
	totalW := logAddExp(first.logW, second.logW)
	if math.Log(s.gen.Float64()) < second.logW-totalW {
		first.prop = second.prop
	}
	first.logW = totalW

	if dir > 0 {
		first.hi = second.hi
	} else {
		first.lo = second.lo
	}

	if uTurn(first.lo, first.hi, s.metric) {
		first.stop = true
	}

	return first
}

// transition runs one NUTS update in place on cur: momentum refresh, then
// binary doubling with biased progressive sampling until a U-turn, a
// divergence, or the depth cap. cur always holds a valid point on return.
func (s *nuts) transition(cur *point, eps float64) *transition {
	for i := range cur.mom {
		cur.mom[i] = s.gen.NormFloat64() / math.Sqrt(s.metric[i])
	}
	h0 := cur.logp - kinetic(cur.mom, s.metric)

	minus := cur.clone()
	plus := cur.clone()
	prop := cur.clone()
	logW := 0.0 // Initial point has energy error zero

	tr := &transition{}
	stopped := false

	for tr.depth < s.maxDepth {
		dir := 1.0
		from := plus
		if s.gen.Float64() < 0.5 {
			dir = -1.0
			from = minus
		}

		st := s.buildTree(tr.depth, from, dir, eps, h0)
		tr.steps += st.steps
		tr.accept += st.sumAcc
		if st.diverged {
			tr.divergent = true
		}
		if st.stop {
			stopped = true
			break
		}

		// Biased progressive sampling: favor the fresh half of the doubled
		// trajectory so the chain keeps moving outward.
		if math.Log(s.gen.Float64()) < st.logW-logW {
			prop.copyFrom(st.prop)
		}
		logW = logAddExp(logW, st.logW)

		if dir > 0 {
			plus = st.hi
		} else {
			minus = st.lo
		}

		tr.depth++

		if uTurn(minus, plus, s.metric) {
			stopped = true
			break
		}
	}

	if !stopped && tr.depth >= s.maxDepth {
		tr.saturated = true
	}
	if tr.steps > 0 {
		tr.accept /= float64(tr.steps)
	}

	cur.copyFrom(prop)
	return tr
}
