package sampler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/stat"

	"github.com/statium/shrample/rand"
)

func TestConfigCheck(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(DefaultConfig().Check())

	bad := DefaultConfig()
	bad.Warmup = 0
	assert.Error(bad.Check())

	bad = DefaultConfig()
	bad.Samples = -5
	assert.Error(bad.Check())

	bad = DefaultConfig()
	bad.Chains = 0
	assert.Error(bad.Check())

	bad = DefaultConfig()
	bad.AdaptDelta = 1.0
	assert.Error(bad.Check())

	bad = DefaultConfig()
	bad.MaxTreeDepth = 0
	assert.Error(bad.Check())

	bad = DefaultConfig()
	bad.MaxTreeDepth = 25
	assert.Error(bad.Check())
}

func TestUTurn(t *testing.T) {
	assert := assert.New(t)

	metric := []float64{1.0, 1.0}

	lo := newPoint(2)
	hi := newPoint(2)
	hi.pos = []float64{1.0, 0.0}

	// Both momenta pointing outward: keep going
	lo.mom = []float64{1.0, 0.0}
	hi.mom = []float64{1.0, 0.0}
	assert.False(uTurn(lo, hi, metric))

	// Forward end turned around
	hi.mom = []float64{-1.0, 0.0}
	assert.True(uTurn(lo, hi, metric))

	// Backward end chasing inward
	hi.mom = []float64{1.0, 0.0}
	lo.mom = []float64{-1.0, 0.0}
	assert.True(uTurn(lo, hi, metric))
}

func TestNUTSStandardNormal(t *testing.T) {
	assert := assert.New(t)

	gen, err := rand.NewGenerator(7)
	assert.NoError(err)

	cfg := Config{
		Warmup:       300,
		Samples:      1200,
		Chains:       1,
		AdaptDelta:   0.8,
		MaxTreeDepth: 10,
		Seed:         7,
	}

	ch, err := NewChain(&stdNormal{dim: 3}, gen, cfg)
	assert.NoError(err)
	assert.NoError(ch.Run())

	// Exactly the configured number of draws
	assert.Equal(cfg.Samples, len(ch.Draws))

	// A standard normal is easy: no divergences, moments recovered
	assert.Equal(0, ch.Divergences)

	vals := make([]float64, cfg.Samples)
	for d := 0; d < 3; d++ {
		for i, dr := range ch.Draws {
			vals[i] = dr.Pos[d]
		}
		assert.InDelta(0.0, stat.Mean(vals, nil), 0.15)
		assert.InDelta(1.0, stat.Variance(vals, nil), 0.3)
	}

	// Bookkeeping is filled in
	for _, dr := range ch.Draws {
		assert.True(dr.StepSize > 0.0)
		assert.True(dr.TreeDepth >= 0)
		assert.False(math.IsNaN(dr.LogDensity))
		assert.True(dr.GradNorm >= 0.0)
		assert.True(dr.AcceptStat >= 0.0 && dr.AcceptStat <= 1.0)
	}
}

// narrowRegion errors outside a tiny ball, exercising the non-finite
// rejection path: the run must complete anyway.
type narrowRegion struct{}

func (n *narrowRegion) Dim() int { return 2 }

func (n *narrowRegion) LogDensity(x []float64, grad []float64) (float64, error) {
	r2 := x[0]*x[0] + x[1]*x[1]
	if r2 > 9.0 {
		return 0, errNonFiniteTest
	}
	if grad != nil {
		grad[0] = -x[0]
		grad[1] = -x[1]
	}
	return -0.5 * r2, nil
}

var errNonFiniteTest = assert.AnError

func TestNonFiniteRejectionKeepsRunning(t *testing.T) {
	assert := assert.New(t)

	gen, err := rand.NewGenerator(11)
	assert.NoError(err)

	cfg := Config{
		Warmup:       100,
		Samples:      200,
		Chains:       1,
		AdaptDelta:   0.8,
		MaxTreeDepth: 8,
		Seed:         11,
	}

	ch, err := NewChain(&narrowRegion{}, gen, cfg)
	assert.NoError(err)
	assert.NoError(ch.Run())
	assert.Equal(cfg.Samples, len(ch.Draws))

	// Every retained draw is inside the finite region
	for _, dr := range ch.Draws {
		assert.True(dr.Pos[0]*dr.Pos[0]+dr.Pos[1]*dr.Pos[1] <= 9.0)
	}
}

func TestMaxDepthSaturationRecorded(t *testing.T) {
	assert := assert.New(t)

	gen, err := rand.NewGenerator(13)
	assert.NoError(err)

	// Depth cap of 1 on a smooth target: trajectories want to run longer,
	// so saturation must be recorded (and never treated as fatal).
	cfg := Config{
		Warmup:       100,
		Samples:      200,
		Chains:       1,
		AdaptDelta:   0.9,
		MaxTreeDepth: 1,
		Seed:         13,
	}

	ch, err := NewChain(&stdNormal{dim: 5}, gen, cfg)
	assert.NoError(err)
	assert.NoError(ch.Run())
	assert.Equal(cfg.Samples, len(ch.Draws))
	assert.Greater(ch.Saturations, 0)
}
