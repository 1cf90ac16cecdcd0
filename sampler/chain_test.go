package sampler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	tassert "github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/stat"

	"github.com/statium/shrample/model"
)

// targetFactory wraps a posterior so every chain gets its own scratch space.
func targetFactory(t *testing.T, d *model.Dataset, s *model.Spec) (func(int) (Target, error), *model.Posterior) {
	t.Helper()

	post, err := model.NewPosterior(d, s)
	if err != nil {
		t.Fatalf("posterior: %v", err)
	}
	return func(int) (Target, error) { return post.Clone(), nil }, post
}

// pooledMean averages one parameter across all chains' draws.
func pooledMean(chains []*Chain, idx int) float64 {
	vals := make([]float64, 0, len(chains)*len(chains[0].Draws))
	for _, ch := range chains {
		for _, d := range ch.Draws {
			vals = append(vals, d.Pos[idx])
		}
	}
	return stat.Mean(vals, nil)
}

func totalDivergences(chains []*Chain) int {
	n := 0
	for _, ch := range chains {
		n += ch.Divergences
	}
	return n
}

func TestRidgeRecoversKnownCoefficients(t *testing.T) {
	assert := assert.New(t)

	truth := []float64{1.0, -0.5, 0.0}
	d, err := model.NewSyntheticDataset(100, truth, 0.0, 0.2, 42)
	assert.NoError(err)

	factory, post := targetFactory(t, d, model.NewSpec(model.Ridge, 1.0))

	cfg := Config{
		Warmup:       400,
		Samples:      600,
		Chains:       2,
		AdaptDelta:   0.8,
		MaxTreeDepth: 10,
		Seed:         1,
	}

	chains, err := RunChains(factory, cfg)
	assert.NoError(err)
	assert.Len(chains, 2)

	for _, ch := range chains {
		assert.Equal(cfg.Samples, len(ch.Draws))
	}

	sp := post.Space
	for j, want := range truth {
		assert.InDelta(want, pooledMean(chains, sp.Beta(j)), 0.15, "b[%d]", j+1)
	}

	// A well-scaled ridge posterior at the default target needs none
	assert.Equal(0, totalDivergences(chains))

	// Residual scale recovered on the constrained scale
	sigmas := make([]float64, 0)
	for _, ch := range chains {
		for _, dr := range ch.Draws {
			sigmas = append(sigmas, math.Exp(dr.Pos[sp.LogSigma()]))
		}
	}
	assert.InDelta(0.2, stat.Mean(sigmas, nil), 0.06)
}

func TestWeakPriorMatchesOLS(t *testing.T) {
	assert := assert.New(t)

	d, err := model.NewSyntheticDataset(100, []float64{0.8, -0.3, 0.1}, 0.5, 0.25, 17)
	assert.NoError(err)

	olsA, olsB, err := d.OLS()
	assert.NoError(err)

	factory, post := targetFactory(t, d, model.NewSpec(model.Ridge, 100.0))

	cfg := Config{
		Warmup:       400,
		Samples:      600,
		Chains:       2,
		AdaptDelta:   0.8,
		MaxTreeDepth: 10,
		Seed:         3,
	}

	chains, err := RunChains(factory, cfg)
	assert.NoError(err)

	sp := post.Space
	assert.InDelta(olsA, pooledMean(chains, sp.Intercept()), 0.05)
	for j := range olsB {
		assert.InDelta(olsB[j], pooledMean(chains, sp.Beta(j)), 0.05, "b[%d]", j+1)
	}
}

func TestSmallTauShrinksCoefficients(t *testing.T) {
	assert := assert.New(t)

	d, err := model.NewSyntheticDataset(100, []float64{1.0, -0.5, 0.0}, 0.0, 0.2, 42)
	assert.NoError(err)

	cfg := Config{
		Warmup:       400,
		Samples:      600,
		Chains:       2,
		AdaptDelta:   0.8,
		MaxTreeDepth: 10,
		Seed:         5,
	}

	run := func(tau float64) ([]float64, *model.ParamSpace) {
		factory, post := targetFactory(t, d, model.NewSpec(model.Ridge, tau))
		chains, err := RunChains(factory, cfg)
		assert.NoError(err)

		means := make([]float64, d.K)
		for j := 0; j < d.K; j++ {
			means[j] = pooledMean(chains, post.Space.Beta(j))
		}
		return means, post.Space
	}

	wide, _ := run(100.0)
	narrow, _ := run(0.01)

	// The true-nonzero coefficients must shrink toward zero under the
	// tight prior (the true-zero one is noise either way).
	for _, j := range []int{0, 1} {
		assert.Less(math.Abs(narrow[j]), math.Abs(wide[j]), "b[%d]", j+1)
	}
	// And the shrinkage is severe, not marginal
	assert.Less(math.Abs(narrow[0]), 0.5*math.Abs(wide[0]))
}

func TestRHatAcrossChains(t *testing.T) {
	assert := assert.New(t)

	d, err := model.NewSyntheticDataset(80, []float64{0.6, -0.4}, 0.2, 0.3, 23)
	assert.NoError(err)

	factory, _ := targetFactory(t, d, model.NewSpec(model.Ridge, 1.0))

	cfg := Config{
		Warmup:       300,
		Samples:      400,
		Chains:       4,
		AdaptDelta:   0.8,
		MaxTreeDepth: 10,
		Seed:         9,
	}

	chains, err := RunChains(factory, cfg)
	assert.NoError(err)

	ds, err := NewDiagnosticSuite(chains)
	assert.NoError(err)

	for p, r := range ds.RHat {
		assert.Less(r, 1.1, "parameter %d", p)
	}
	for p, e := range ds.ESS {
		assert.Greater(e, 50.0, "parameter %d", p)
	}
	assert.Greater(ds.MeanAccept, 0.5)
}

func TestDivergenceAcceptanceTradeoff(t *testing.T) {
	assert := assert.New(t)

	// Horseshoe with estimated tau over mostly-zero coefficients is the
	// classic funnel geometry: big steps fall off the cliff.
	d, err := model.NewSyntheticDataset(40, []float64{0.8, 0.0, 0.0, 0.0, 0.0}, 0.0, 0.5, 31)
	assert.NoError(err)

	run := func(delta float64) int {
		factory, _ := targetFactory(t, d, model.NewSpecEstimated(model.Horseshoe))
		chains, err := RunChains(factory, Config{
			Warmup:       300,
			Samples:      400,
			Chains:       2,
			AdaptDelta:   delta,
			MaxTreeDepth: 10,
			Seed:         7,
		})
		assert.NoError(err)
		return totalDivergences(chains)
	}

	divLoose := run(0.55)
	divTight := run(0.99)

	assert.Greater(divLoose, 0)
	assert.GreaterOrEqual(divLoose, divTight)
}

func TestRunChainsReproducible(t *testing.T) {
	assert := assert.New(t)

	d, err := model.NewSyntheticDataset(50, []float64{0.5, -0.5}, 0.0, 0.3, 77)
	assert.NoError(err)

	cfg := Config{
		Warmup:       100,
		Samples:      150,
		Chains:       2,
		AdaptDelta:   0.8,
		MaxTreeDepth: 10,
		Seed:         123,
	}

	factory1, _ := targetFactory(t, d, model.NewSpec(model.Lasso, 0.5))
	chains1, err := RunChains(factory1, cfg)
	assert.NoError(err)

	factory2, _ := targetFactory(t, d, model.NewSpec(model.Lasso, 0.5))
	chains2, err := RunChains(factory2, cfg)
	assert.NoError(err)

	for c := range chains1 {
		for i := range chains1[c].Draws {
			assert.Equal(chains1[c].Draws[i].Pos, chains2[c].Draws[i].Pos)
		}
	}

	// A different seed diverges from the first run
	cfg.Seed = 124
	factory3, _ := targetFactory(t, d, model.NewSpec(model.Lasso, 0.5))
	chains3, err := RunChains(factory3, cfg)
	assert.NoError(err)
	assert.NotEqual(chains1[0].Draws[0].Pos, chains3[0].Draws[0].Pos)
}

func TestRunChainsValidation(t *testing.T) {
	assert := assert.New(t)

	_, err := RunChains(nil, DefaultConfig())
	assert.Error(err)

	d, err := model.NewSyntheticDataset(30, []float64{0.5}, 0.0, 0.3, 1)
	assert.NoError(err)
	factory, _ := targetFactory(t, d, model.NewSpec(model.Ridge, 1.0))

	bad := DefaultConfig()
	bad.Samples = 0
	_, err = RunChains(factory, bad)
	assert.Error(err)

	bad = DefaultConfig()
	bad.Chains = -1
	_, err = RunChains(factory, bad)
	assert.Error(err)

	// Factory failures surface before any sampling
	boom := func(int) (Target, error) { return nil, tassert.AnError }
	_, err = RunChains(boom, DefaultConfig())
	assert.Error(err)
}

func TestDrawCountsExact(t *testing.T) {
	assert := assert.New(t)

	d, err := model.NewSyntheticDataset(30, []float64{0.5}, 0.0, 0.3, 2)
	assert.NoError(err)

	for _, samples := range []int{1, 37, 250} {
		for _, nchains := range []int{1, 3} {
			factory, _ := targetFactory(t, d, model.NewSpec(model.Ridge, 1.0))
			chains, err := RunChains(factory, Config{
				Warmup:       50,
				Samples:      samples,
				Chains:       nchains,
				AdaptDelta:   0.8,
				MaxTreeDepth: 8,
				Seed:         4,
			})
			assert.NoError(err)
			assert.Len(chains, nchains)
			for _, ch := range chains {
				assert.Equal(samples, len(ch.Draws))
			}
		}
	}
}
