package model

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrNonFinite is reported when a proposed point produces an infinite or
// undefined log density or gradient (overflow in the exponential terms of
// the scale transforms is the usual culprit). The sampler must treat the
// point as having zero acceptance probability, never abort the run.
var ErrNonFinite = errors.New("Non-finite log density")

const halfLog2Pi = 0.9189385332046727 // 0.5 * log(2*pi)

// Posterior evaluates the log posterior density and its gradient for one
// (dataset, spec) pair over the unconstrained parameter space. All prior
// gradients are closed form; this file is the only place model-specific math
// lives, so the sampler stays generic over variants.
//
// A Posterior carries scratch buffers and is NOT safe for concurrent use:
// every chain gets its own copy via Clone.
type Posterior struct {
	Data  *Dataset
	Spec  *Spec
	Space *ParamSpace

	resid *mat.VecDense // scratch: y - a - X*b
	xtr   *mat.VecDense // scratch: X^T * resid
}

// NewPosterior validates the inputs and builds an evaluator.
func NewPosterior(d *Dataset, s *Spec) (*Posterior, error) {
	if d == nil {
		return nil, errors.Errorf("No dataset supplied")
	}
	if s == nil {
		return nil, errors.Errorf("No model spec supplied")
	}
	if err := d.Check(); err != nil {
		return nil, errors.Wrap(err, "Invalid dataset for posterior")
	}
	if err := s.Check(); err != nil {
		return nil, errors.Wrap(err, "Invalid spec for posterior")
	}

	return &Posterior{
		Data:  d,
		Spec:  s,
		Space: NewParamSpace(s, d.K),
		resid: mat.NewVecDense(d.N, nil),
		xtr:   mat.NewVecDense(d.K, nil),
	}, nil
}

// Clone returns an evaluator with its own scratch space. The dataset and
// spec are shared (both are read-only after construction).
func (p *Posterior) Clone() *Posterior {
	return &Posterior{
		Data:  p.Data,
		Spec:  p.Spec,
		Space: p.Space,
		resid: mat.NewVecDense(p.Data.N, nil),
		xtr:   mat.NewVecDense(p.Data.K, nil),
	}
}

// Dim returns the size of the unconstrained parameter vector.
func (p *Posterior) Dim() int {
	return p.Space.Dim
}

// LogDensity returns the log posterior at the unconstrained point x and, if
// grad is non-nil, writes the gradient into it (len must equal Dim). A
// non-finite result returns ErrNonFinite.
func (p *Posterior) LogDensity(x []float64, grad []float64) (float64, error) {
	if len(x) != p.Space.Dim {
		return 0, errors.Errorf("Point has dim %d, expected %d", len(x), p.Space.Dim)
	}
	if grad != nil && len(grad) != p.Space.Dim {
		return 0, errors.Errorf("Gradient has dim %d, expected %d", len(grad), p.Space.Dim)
	}
	if grad != nil {
		for i := range grad {
			grad[i] = 0.0
		}
	}

	sp := p.Space
	n := p.Data.N

	a := x[sp.Intercept()]
	b := x[1 : 1+sp.K]
	ls := x[sp.LogSigma()]
	sigma := math.Exp(ls)
	sig2 := sigma * sigma

	tau := p.Spec.FixedTau
	if p.Spec.EstimateTau {
		tau = math.Exp(x[sp.LogTau()])
	}

	// Gaussian likelihood: y ~ Normal(a + X*b, sigma)
	p.resid.MulVec(p.Data.X, mat.NewVecDense(sp.K, b))
	rss, rsum := 0.0, 0.0
	for i := 0; i < n; i++ {
		r := p.Data.Y[i] - a - p.resid.AtVec(i)
		p.resid.SetVec(i, r)
		rss += r * r
		rsum += r
	}

	lp := -float64(n)*(halfLog2Pi+ls) - rss/(2.0*sig2)
	if grad != nil {
		grad[sp.Intercept()] = rsum / sig2
		p.xtr.MulVec(p.Data.X.T(), p.resid)
		for j := 0; j < sp.K; j++ {
			grad[sp.Beta(j)] = p.xtr.AtVec(j) / sig2
		}
		grad[sp.LogSigma()] = -float64(n) + rss/sig2
	}

	// Residual scale: sigma ~ half-Cauchy(0, SigmaScale), log-space Jacobian
	hlp, hg := halfCauchyLogJac(ls, p.Spec.SigmaScale)
	lp += hlp
	if grad != nil {
		grad[sp.LogSigma()] += hg
	}

	// Global scale hyperprior when tau is estimated
	if p.Spec.EstimateTau {
		hlp, hg = halfCauchyLogJac(x[sp.LogTau()], p.Spec.TauScale)
		lp += hlp
		if grad != nil {
			grad[sp.LogTau()] += hg
		}
	}

	// Coefficient prior, by family
	switch p.Spec.Family {
	case Ridge:
		tau2 := tau * tau
		for j := 0; j < sp.K; j++ {
			bj := b[j]
			lp += -halfLog2Pi - math.Log(tau) - bj*bj/(2.0*tau2)
			if grad != nil {
				grad[sp.Beta(j)] += -bj / tau2
				if p.Spec.EstimateTau {
					grad[sp.LogTau()] += -1.0 + bj*bj/tau2
				}
			}
		}

	case Lasso:
		for j := 0; j < sp.K; j++ {
			ab := math.Abs(b[j])
			lp += -math.Log(2.0*tau) - ab/tau
			if grad != nil {
				// Sign discontinuity at zero: a continuous chain never
				// lands exactly on it, so sign(0)=0 is harmless.
				grad[sp.Beta(j)] += -sign(b[j]) / tau
				if p.Spec.EstimateTau {
					grad[sp.LogTau()] += -1.0 + ab/tau
				}
			}
		}

	case Horseshoe:
		for j := 0; j < sp.K; j++ {
			bj := b[j]
			llj := x[sp.LogLambda(j)]
			lambda := math.Exp(llj)
			s := lambda * tau
			s2 := s * s

			lp += -halfLog2Pi - math.Log(s) - bj*bj/(2.0*s2)
			if grad != nil {
				grad[sp.Beta(j)] += -bj / s2
				g := -1.0 + bj*bj/s2
				grad[sp.LogLambda(j)] += g
				if p.Spec.EstimateTau {
					grad[sp.LogTau()] += g
				}
			}

			// Local scale: lambda_j ~ half-Cauchy(0, 1), log-space Jacobian
			hlp, hg = halfCauchyLogJac(llj, 1.0)
			lp += hlp
			if grad != nil {
				grad[sp.LogLambda(j)] += hg
			}
		}
	}

	if !finite(lp) {
		return 0, errors.Wrapf(ErrNonFinite, "at log density (sigma=%g tau=%g)", sigma, tau)
	}
	if grad != nil {
		for i, g := range grad {
			if !finite(g) {
				return 0, errors.Wrapf(ErrNonFinite, "at gradient component %d", i)
			}
		}
	}

	return lp, nil
}

// halfCauchyLogJac returns the log density of v = exp(lv) under a
// half-Cauchy(0, scale) prior plus the log-Jacobian of the transform, and
// the derivative of that sum with respect to lv.
func halfCauchyLogJac(lv float64, scale float64) (float64, float64) {
	v := math.Exp(lv)
	z := v / scale
	z2 := z * z

	lp := math.Log(2.0/(math.Pi*scale)) - math.Log1p(z2) + lv
	dlv := -2.0*z2/(1.0+z2) + 1.0

	return lp, dlv
}

func sign(v float64) float64 {
	if v > 0.0 {
		return 1.0
	}
	if v < 0.0 {
		return -1.0
	}
	return 0.0
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
