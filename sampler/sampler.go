package sampler

import (
	"github.com/pkg/errors"
)

// Target is a differentiable log density over an unconstrained parameter
// space. Implementations signal overflow/NaN with an error, which the
// sampler treats as zero acceptance probability for the offending point
// (the run never aborts on one bad proposal). A Target may keep scratch
// buffers: each chain must get its own instance.
type Target interface {
	Dim() int
	LogDensity(x []float64, grad []float64) (float64, error)
}

// A Draw is one accepted point plus per-iteration bookkeeping. Draws are
// append-only while a chain runs and read-only afterward.
type Draw struct {
	Pos        []float64 // Unconstrained parameter values
	LogDensity float64   // Log posterior at Pos
	GradNorm   float64   // L2 norm of the gradient at Pos
	StepSize   float64   // Integrator step size used for this transition
	TreeDepth  int       // Depth the trajectory reached
	Divergent  bool      // True if the trajectory hit an energy-error divergence
	Saturated  bool      // True if the trajectory hit the max tree depth
	AcceptStat float64   // Mean Metropolis acceptance statistic over the trajectory
}

// Config holds everything needed to run a set of chains.
type Config struct {
	Warmup       int     // Adaptation iterations (discarded)
	Samples      int     // Post-warmup draws kept per chain
	Chains       int     // Independent chain count
	AdaptDelta   float64 // Target acceptance statistic for step-size adaptation
	MaxTreeDepth int     // Cap on trajectory doublings per iteration
	Seed         int64   // Base random seed; chain i derives its own from this
}

// DefaultConfig matches the usual engine defaults: 4 chains, 1000+1000
// iterations, 0.8 target acceptance, depth cap 10.
func DefaultConfig() Config {
	return Config{
		Warmup:       1000,
		Samples:      1000,
		Chains:       4,
		AdaptDelta:   0.8,
		MaxTreeDepth: 10,
		Seed:         1,
	}
}

// Check returns an error if there is a problem with the config
func (c Config) Check() error {
	if c.Warmup < 1 {
		return errors.Errorf("Warmup iteration count must be positive (got %d)", c.Warmup)
	}
	if c.Samples < 1 {
		return errors.Errorf("Sampling iteration count must be positive (got %d)", c.Samples)
	}
	if c.Chains < 1 {
		return errors.Errorf("Chain count must be positive (got %d)", c.Chains)
	}
	if c.AdaptDelta <= 0.0 || c.AdaptDelta >= 1.0 {
		return errors.Errorf("Adapt target must be in (0,1) (got %f)", c.AdaptDelta)
	}
	if c.MaxTreeDepth < 1 || c.MaxTreeDepth > 20 {
		return errors.Errorf("Max tree depth must be in [1,20] (got %d)", c.MaxTreeDepth)
	}
	return nil
}
