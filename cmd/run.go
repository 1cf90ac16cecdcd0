package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/statium/shrample/model"
	"github.com/statium/shrample/sampler"
)

// runSample is the whole fitting workflow: load data, build the posterior,
// run the chains, and report posterior summaries plus diagnostics.
func runSample(sp *startupParams) error {
	dataset, err := loadDataset(sp)
	if err != nil {
		return err
	}
	sp.log.Info().
		Str("dataset", dataset.Name).
		Int("rows", dataset.N).
		Int("predictors", dataset.K).
		Msg("dataset ready")

	spec, err := buildSpec(sp)
	if err != nil {
		return err
	}

	post, err := model.NewPosterior(dataset, spec)
	if err != nil {
		return errors.Wrap(err, "Could not build posterior")
	}

	cfg := sampler.Config{
		Warmup:       sp.warmup,
		Samples:      sp.samples,
		Chains:       sp.chains,
		AdaptDelta:   sp.adaptDelta,
		MaxTreeDepth: sp.maxDepth,
		Seed:         sp.randomSeed,
	}
	if err := cfg.Check(); err != nil {
		return err
	}

	var mon monitor
	if len(sp.monitorAddr) > 0 {
		if err := mon.Start(sp.monitorAddr); err != nil {
			return err
		}
		defer mon.Stop()
		mon.Warmup.Set(int64(cfg.Warmup))
		mon.Samples.Set(int64(cfg.Samples))
		mon.Chains.Set(int64(cfg.Chains))
	}

	sp.log.Info().
		Str("family", spec.Family.String()).
		Bool("estimate_tau", spec.EstimateTau).
		Float64("adapt_delta", cfg.AdaptDelta).
		Int64("seed", cfg.Seed).
		Msg("sampling")

	start := time.Now()
	chains, err := sampler.RunChains(func(int) (sampler.Target, error) {
		return post.Clone(), nil
	}, cfg)
	if err != nil {
		return errors.Wrap(err, "Sampling failed")
	}
	elapsed := time.Since(start)

	diag, err := sampler.NewDiagnosticSuite(chains)
	if err != nil {
		return errors.Wrap(err, "Could not compute diagnostics")
	}

	if mon.info != nil {
		mon.RunTime.Set(elapsed.Seconds())
		mon.TotalDraws.Set(int64(cfg.Chains * cfg.Samples))
		mon.Divergences.Set(int64(diag.Divergences))
		mon.Saturations.Set(int64(diag.Saturations))
	}

	sp.log.Info().
		Dur("elapsed", elapsed).
		Float64("mean_accept", diag.MeanAccept).
		Msg("sampling done")
	if diag.Divergences > 0 {
		sp.log.Warn().
			Int("divergences", diag.Divergences).
			Msg("divergent transitions detected - consider raising adapt-delta")
	}
	if diag.Saturations > 0 {
		sp.log.Warn().
			Int("saturations", diag.Saturations).
			Msg("max tree depth hit - consider raising max-depth")
	}

	printSummary(post, chains, diag)
	printOLS(dataset, sp)

	return nil
}

// loadDataset builds the dataset from the CSV file or the synthetic
// generator, per flags.
func loadDataset(sp *startupParams) (*model.Dataset, error) {
	if sp.synthetic {
		coefs, err := parseCoefs(sp.synthCoefs)
		if err != nil {
			return nil, err
		}
		return model.NewSyntheticDataset(sp.synthN, coefs, 0.0, sp.synthNoise, uint64(sp.randomSeed))
	}

	if len(sp.dataFile) < 1 {
		return nil, errors.Errorf("No dataset: specify --data or --synthetic")
	}
	return model.NewDatasetFromFile(
		model.CSVReader{Response: sp.responseCol},
		sp.dataFile,
		sp.standardize,
	)
}

func buildSpec(sp *startupParams) (*model.Spec, error) {
	family, err := model.ParsePriorFamily(sp.familyName)
	if err != nil {
		return nil, err
	}

	if sp.estimateTau {
		return model.NewSpecEstimated(family), nil
	}
	return model.NewSpec(family, sp.fixedTau), nil
}

func parseCoefs(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	coefs := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "Bad synthetic coefficient %q", p)
		}
		coefs = append(coefs, v)
	}
	if len(coefs) < 1 {
		return nil, errors.Errorf("No synthetic coefficients in %q", s)
	}
	return coefs, nil
}

// printSummary writes the per-parameter posterior table on the constrained
// scale (sigma/tau/lambda back-transformed from log space).
func printSummary(post *model.Posterior, chains []*sampler.Chain, diag *sampler.DiagnosticSuite) {
	names := post.Space.Names()
	dim := post.Dim()

	total := 0
	for _, ch := range chains {
		total += len(ch.Draws)
	}

	vals := make([][]float64, dim)
	for p := range vals {
		vals[p] = make([]float64, 0, total)
	}
	for _, ch := range chains {
		for _, dr := range ch.Draws {
			con := post.Space.Constrain(dr.Pos)
			for p, v := range con {
				vals[p] = append(vals[p], v)
			}
		}
	}

	fmt.Printf("--------------------------------------------------------\n")
	fmt.Printf("%-12s %9s %9s %9s %7s\n", "param", "mean", "sd", "ess", "rhat")
	for p := 0; p < dim; p++ {
		mean := stat.Mean(vals[p], nil)
		sd := stat.StdDev(vals[p], nil)
		fmt.Printf("%-12s %9.4f %9.4f %9.1f %7.3f\n", names[p], mean, sd, diag.ESS[p], diag.RHat[p])
	}
	fmt.Printf("--------------------------------------------------------\n")
	fmt.Printf("Draws: %d  Divergences: %d  Depth saturations: %d  Mean accept: %.3f\n",
		total, diag.Divergences, diag.Saturations, diag.MeanAccept)
}

// printOLS writes the classical least-squares fit next to the posterior so
// the shrinkage is visible at a glance.
func printOLS(d *model.Dataset, sp *startupParams) {
	a, b, err := d.OLS()
	if err != nil {
		sp.log.Warn().Err(err).Msg("could not compute OLS reference")
		return
	}

	fmt.Printf("OLS reference: a=%8.4f", a)
	for j, v := range b {
		fmt.Printf("  b[%d]=%8.4f", j+1, v)
	}
	fmt.Printf("\n")
}
