package sampler

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// DiagnosticSuite holds the post-run convergence diagnostics computed over
// the chains' draw sequences. Computing a suite never modifies the draws.
type DiagnosticSuite struct {
	ESS         []float64 // Effective sample size per parameter (all chains pooled)
	RHat        []float64 // Split potential scale reduction per parameter
	Divergences int       // Total divergent transitions across chains
	Saturations int       // Total max-tree-depth hits across chains
	MeanAccept  float64   // Mean acceptance statistic across all draws
}

// NewDiagnosticSuite computes all diagnostics for a set of finished chains.
func NewDiagnosticSuite(chains []*Chain) (*DiagnosticSuite, error) {
	if len(chains) < 1 {
		return nil, errors.Errorf("Can not diagnose 0 chains")
	}

	n := len(chains[0].Draws)
	if n < 4 {
		return nil, errors.Errorf("Need at least 4 draws per chain (got %d)", n)
	}
	dim := len(chains[0].Draws[0].Pos)

	for i, ch := range chains {
		if len(ch.Draws) != n {
			return nil, errors.Errorf("Chain %d has %d draws, chain 0 has %d", i, len(ch.Draws), n)
		}
		if len(ch.Draws[0].Pos) != dim {
			return nil, errors.Errorf("Chain %d has dim %d, chain 0 has %d", i, len(ch.Draws[0].Pos), dim)
		}
	}

	ds := &DiagnosticSuite{
		ESS:  make([]float64, dim),
		RHat: make([]float64, dim),
	}

	accSum, accCount := 0.0, 0
	for _, ch := range chains {
		ds.Divergences += ch.Divergences
		ds.Saturations += ch.Saturations
		for _, d := range ch.Draws {
			accSum += d.AcceptStat
			accCount++
		}
	}
	ds.MeanAccept = accSum / float64(accCount)

	seq := make([]float64, n)
	for p := 0; p < dim; p++ {
		seqs := make([][]float64, 0, len(chains))
		for _, ch := range chains {
			for i, d := range ch.Draws {
				seq[i] = d.Pos[p]
			}
			cp := make([]float64, n)
			copy(cp, seq)
			seqs = append(seqs, cp)
		}

		ds.RHat[p] = splitRHat(seqs)
		ds.ESS[p] = effectiveSampleSize(seqs)
	}

	return ds, nil
}

// splitRHat computes the split potential scale reduction statistic: each
// chain is halved, then between-half variance is compared to within-half
// variance. Values near 1 indicate the halves agree.
func splitRHat(seqs [][]float64) float64 {
	n2 := len(seqs[0]) / 2

	means := make([]float64, 0, 2*len(seqs))
	vars := make([]float64, 0, 2*len(seqs))
	for _, s := range seqs {
		for _, half := range [][]float64{s[:n2], s[len(s)-n2:]} {
			means = append(means, stat.Mean(half, nil))
			vars = append(vars, stat.Variance(half, nil))
		}
	}

	w := stat.Mean(vars, nil)
	b := float64(n2) * stat.Variance(means, nil)

	if w <= 0.0 {
		// Degenerate (constant) sequences
		return 1.0
	}

	varPlus := float64(n2-1)/float64(n2)*w + b/float64(n2)
	return math.Sqrt(varPlus / w)
}

// effectiveSampleSize estimates pooled ESS from chain autocovariances using
// Geyer's initial monotone positive sequence to truncate the lag sum.
func effectiveSampleSize(seqs [][]float64) float64 {
	m := len(seqs)
	n := len(seqs[0])

	means := make([]float64, m)
	vars := make([]float64, m)
	for i, s := range seqs {
		means[i] = stat.Mean(s, nil)
		vars[i] = stat.Variance(s, nil)
	}

	w := stat.Mean(vars, nil)
	b := 0.0
	if m > 1 {
		b = float64(n) * stat.Variance(means, nil)
	}
	varPlus := float64(n-1)/float64(n)*w + b/float64(n)
	if varPlus <= 0.0 {
		return float64(m * n)
	}

	// Mean autocovariance across chains at the given lag (biased estimator)
	acov := func(lag int) float64 {
		total := 0.0
		for i, s := range seqs {
			sum := 0.0
			for t := 0; t < n-lag; t++ {
				sum += (s[t] - means[i]) * (s[t+lag] - means[i])
			}
			total += sum / float64(n)
		}
		return total / float64(m)
	}

	// Sum paired correlations until a pair turns non-positive, enforcing
	// monotone decrease.
	tau := 1.0
	prev := math.Inf(1)
	for lag := 1; lag+1 < n; lag += 2 {
		rho1 := 1.0 - (w-acov(lag))/varPlus
		rho2 := 1.0 - (w-acov(lag+1))/varPlus
		pair := rho1 + rho2
		if pair <= 0.0 {
			break
		}
		if pair > prev {
			pair = prev
		}
		prev = pair
		tau += 2.0 * pair
	}

	ess := float64(m*n) / tau
	if ess > float64(m*n) {
		ess = float64(m * n)
	}
	return ess
}
