package sampler

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/statium/shrample/rand"
)

// Chain runs warmup adaptation followed by sampling for one independent
// chain. Chains never share mutable state: each owns its target evaluator,
// its generator, its adaptation state, and its draw sequence.
type Chain struct {
	Target Target
	Gen    *rand.Generator
	Cfg    Config

	Draws       []Draw    // Post-warmup draws; exactly Cfg.Samples after Run
	Divergences int       // Divergent transitions during sampling
	Saturations int       // Max-tree-depth hits during sampling
	StepSize    float64   // Frozen step size after warmup
	Metric      []float64 // Frozen mass-matrix diagonal after warmup

	cur *point
}

// seedStride separates per-chain seeds derived from the base seed.
const seedStride = 1000003

// NewChain validates the config and finds a finite starting point (uniform
// in [-2,2) per unconstrained coordinate, redrawn until the density is
// finite).
func NewChain(t Target, gen *rand.Generator, cfg Config) (*Chain, error) {
	if t == nil {
		return nil, errors.Errorf("No target supplied")
	}
	if gen == nil {
		return nil, errors.Errorf("No generator supplied")
	}
	if err := cfg.Check(); err != nil {
		return nil, errors.Wrap(err, "Invalid chain config")
	}

	dim := t.Dim()
	if dim < 1 {
		return nil, errors.Errorf("Target has dimension %d", dim)
	}

	c := &Chain{
		Target: t,
		Gen:    gen,
		Cfg:    cfg,
		Metric: make([]float64, dim),
		cur:    newPoint(dim),
	}
	for i := range c.Metric {
		c.Metric[i] = 1.0
	}

	const initRetries = 100
	found := false
	for try := 0; try < initRetries; try++ {
		for i := range c.cur.pos {
			c.cur.pos[i] = 4.0*gen.Float64() - 2.0
		}
		lp, err := t.LogDensity(c.cur.pos, c.cur.grad)
		if err == nil {
			c.cur.logp = lp
			found = true
			break
		}
	}
	if !found {
		return nil, errors.Errorf("Could not find a finite starting point in %d tries", initRetries)
	}

	return c, nil
}

// Run executes warmup then sampling. After a nil return, Draws holds
// exactly Cfg.Samples entries and StepSize/Metric are frozen.
func (c *Chain) Run() error {
	dim := c.Target.Dim()
	s := &nuts{
		target:   c.Target,
		gen:      c.Gen,
		metric:   c.Metric,
		maxDepth: c.Cfg.MaxTreeDepth,
	}

	// Warmup schedule: a settle phase adapting only the step size, then
	// window collection with metric refreshes at 50% and 85%, each followed
	// by a dual-averaging restart.
	warmup := c.Cfg.Warmup
	settle := warmup * 15 / 100
	refresh1 := warmup * 50 / 100
	refresh2 := warmup * 85 / 100

	window := warmup / 4
	if window < 20 {
		window = 20
	}
	ma := NewMetricAdapter(dim, window)

	eps := findReasonableStepSize(c.Target, c.Gen, c.Metric, c.cur)
	da := NewDualAveraging(eps, c.Cfg.AdaptDelta)

	for i := 0; i < warmup; i++ {
		tr := s.transition(c.cur, da.StepSize())
		da.Update(tr.accept)

		if i >= settle {
			ma.Add(c.cur.pos)
		}
		if (i == refresh1 || i == refresh2) && ma.Estimate(c.Metric) {
			da.Restart(da.StepSize())
		}
	}

	c.StepSize = da.Final()

	for i := 0; i < c.Cfg.Samples; i++ {
		tr := s.transition(c.cur, c.StepSize)

		if tr.divergent {
			c.Divergences++
		}
		if tr.saturated {
			c.Saturations++
		}

		pos := make([]float64, dim)
		copy(pos, c.cur.pos)
		c.Draws = append(c.Draws, Draw{
			Pos:        pos,
			LogDensity: c.cur.logp,
			GradNorm:   gradNorm(c.cur.grad),
			StepSize:   c.StepSize,
			TreeDepth:  tr.depth,
			Divergent:  tr.divergent,
			Saturated:  tr.saturated,
			AcceptStat: tr.accept,
		})
	}

	return nil
}

// RunChains runs cfg.Chains independent chains in parallel and waits for
// them all. The factory is called once per chain index so every chain gets
// its own evaluator scratch space; chain i seeds its generator with
// cfg.Seed + seedStride*i, so a run is reproducible given the base seed.
func RunChains(factory func(chain int) (Target, error), cfg Config) ([]*Chain, error) {
	if factory == nil {
		return nil, errors.Errorf("No target factory supplied")
	}
	if err := cfg.Check(); err != nil {
		return nil, errors.Wrap(err, "Invalid run config")
	}

	chains := make([]*Chain, cfg.Chains)
	for i := range chains {
		t, err := factory(i)
		if err != nil {
			return nil, errors.Wrapf(err, "Target factory failed for chain %d", i)
		}

		gen, err := rand.NewGenerator(cfg.Seed + seedStride*int64(i))
		if err != nil {
			return nil, errors.Wrapf(err, "Generator failed for chain %d", i)
		}

		ch, err := NewChain(t, gen, cfg)
		if err != nil {
			return nil, errors.Wrapf(err, "Could not init chain %d", i)
		}
		chains[i] = ch
	}

	var wg sync.WaitGroup
	errs := make([]error, cfg.Chains)

	for i, ch := range chains {
		wg.Add(1)
		go func(idx int, c *Chain) {
			defer wg.Done()
			errs[idx] = c.Run()
		}(i, ch)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, errors.Wrapf(err, "Chain %d failed", i)
		}
	}

	return chains, nil
}
