package model

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// PriorFamily selects the shrinkage prior placed on the coefficient vector.
type PriorFamily int

// Supported prior families
const (
	Ridge     PriorFamily = iota // b_k ~ Normal(0, tau)
	Lasso                        // b_k ~ Laplace(0, tau)
	Horseshoe                    // b_k ~ Normal(0, lambda_k * tau), lambda_k ~ half-Cauchy(0, 1)
)

func (f PriorFamily) String() string {
	switch f {
	case Ridge:
		return "ridge"
	case Lasso:
		return "lasso"
	case Horseshoe:
		return "horseshoe"
	default:
		return fmt.Sprintf("PriorFamily(%d)", int(f))
	}
}

// ParsePriorFamily maps a name (as passed on the command line) to a family.
func ParsePriorFamily(s string) (PriorFamily, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ridge", "normal":
		return Ridge, nil
	case "lasso", "laplace":
		return Lasso, nil
	case "horseshoe", "hs":
		return Horseshoe, nil
	}
	return Ridge, errors.Errorf("Unknown prior family %q", s)
}

// Spec fully describes one model variant: the coefficient prior family and
// whether the global scale tau is fixed by the caller or estimated under a
// half-Cauchy hyperprior. The half-Cauchy scales are configuration defaults
// (the tau/sigma hyperpriors are deliberately weakly informative).
type Spec struct {
	Family      PriorFamily
	EstimateTau bool    // When false, FixedTau is used as a constant
	FixedTau    float64 // Global coefficient scale when EstimateTau is false
	TauScale    float64 // half-Cauchy scale for estimated tau (default 1)
	SigmaScale  float64 // half-Cauchy scale for the residual sd (default 5)
}

// NewSpec returns a spec for the given family with a fixed global scale.
func NewSpec(family PriorFamily, fixedTau float64) *Spec {
	return &Spec{
		Family:     family,
		FixedTau:   fixedTau,
		TauScale:   1.0,
		SigmaScale: 5.0,
	}
}

// NewSpecEstimated returns a spec for the given family with tau estimated
// under a half-Cauchy(0, 1) hyperprior.
func NewSpecEstimated(family PriorFamily) *Spec {
	return &Spec{
		Family:      family,
		EstimateTau: true,
		TauScale:    1.0,
		SigmaScale:  5.0,
	}
}

// Check returns an error if there is a problem with the spec
func (s *Spec) Check() error {
	if s.Family != Ridge && s.Family != Lasso && s.Family != Horseshoe {
		return errors.Errorf("Unknown prior family %v", s.Family)
	}
	if !s.EstimateTau && s.FixedTau <= 0.0 {
		return errors.Errorf("Fixed tau must be positive (got %f)", s.FixedTau)
	}
	if s.EstimateTau && s.TauScale <= 0.0 {
		return errors.Errorf("Tau hyperprior scale must be positive (got %f)", s.TauScale)
	}
	if s.SigmaScale <= 0.0 {
		return errors.Errorf("Sigma prior scale must be positive (got %f)", s.SigmaScale)
	}
	return nil
}

// ParamSpace is the fixed unconstrained parameter layout for one model
// variant: intercept, coefficients, log sigma, then optionally log tau and
// (horseshoe only) per-coefficient log lambdas. Positive parameters live in
// log space so the sampler works on all of R^dim; the evaluator adds the
// matching Jacobian terms.
type ParamSpace struct {
	K           int
	Family      PriorFamily
	EstimateTau bool
	Dim         int
}

// NewParamSpace builds the layout for a spec and predictor count.
func NewParamSpace(s *Spec, k int) *ParamSpace {
	dim := 1 + k + 1 // a, b, log sigma
	if s.EstimateTau {
		dim++
	}
	if s.Family == Horseshoe {
		dim += k
	}

	return &ParamSpace{
		K:           k,
		Family:      s.Family,
		EstimateTau: s.EstimateTau,
		Dim:         dim,
	}
}

// Intercept is the index of a
func (p *ParamSpace) Intercept() int { return 0 }

// Beta is the index of b[j] for j in [0, K)
func (p *ParamSpace) Beta(j int) int { return 1 + j }

// LogSigma is the index of log(sigma)
func (p *ParamSpace) LogSigma() int { return 1 + p.K }

// LogTau is the index of log(tau); only valid when EstimateTau is set
func (p *ParamSpace) LogTau() int { return 2 + p.K }

// LogLambda is the index of log(lambda[j]); only valid for horseshoe specs
func (p *ParamSpace) LogLambda(j int) int {
	base := 2 + p.K
	if p.EstimateTau {
		base++
	}
	return base + j
}

// Names returns display names for every parameter, on the constrained scale
func (p *ParamSpace) Names() []string {
	names := make([]string, p.Dim)
	names[p.Intercept()] = "a"
	for j := 0; j < p.K; j++ {
		names[p.Beta(j)] = fmt.Sprintf("b[%d]", j+1)
	}
	names[p.LogSigma()] = "sigma"
	if p.EstimateTau {
		names[p.LogTau()] = "tau"
	}
	if p.Family == Horseshoe {
		for j := 0; j < p.K; j++ {
			names[p.LogLambda(j)] = fmt.Sprintf("lambda[%d]", j+1)
		}
	}
	return names
}

// Constrain maps an unconstrained point to the constrained scale (exp on
// every log-transformed coordinate). The input is not modified.
func (p *ParamSpace) Constrain(x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)

	out[p.LogSigma()] = math.Exp(x[p.LogSigma()])
	if p.EstimateTau {
		out[p.LogTau()] = math.Exp(x[p.LogTau()])
	}
	if p.Family == Horseshoe {
		for j := 0; j < p.K; j++ {
			out[p.LogLambda(j)] = math.Exp(x[p.LogLambda(j)])
		}
	}

	return out
}
