package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// startupParams collects every command-line option plus the run's loggers.
type startupParams struct {
	dataFile    string
	responseCol string
	standardize bool

	synthetic  bool
	synthN     int
	synthCoefs string
	synthNoise float64

	familyName  string
	fixedTau    float64
	estimateTau bool

	warmup     int
	samples    int
	chains     int
	adaptDelta float64
	maxDepth   int
	randomSeed int64

	monitorAddr string
	verbose     bool

	log zerolog.Logger
}

var sp = &startupParams{}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "shrample",
	Short: "Bayesian shrinkage regression sampling (HMC/NUTS)",
	Long: `shrample fits Bayesian linear regression with shrinkage priors via a
No-U-Turn HMC sampler. Among other features:

  - Ridge (normal), lasso (Laplace), and horseshoe coefficient priors
  - A fixed or estimated global scale tau
  - Dual-averaging step size and diagonal mass matrix warmup adaptation
  - Multiple parallel chains with ESS / split R-hat diagnostics
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		level := zerolog.InfoLevel
		if sp.verbose {
			level = zerolog.DebugLevel
		}
		sp.log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).
			With().Timestamp().Logger()

		return runSample(sp)
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	pf := rootCmd.PersistentFlags()

	pf.StringVarP(&sp.dataFile, "data", "d", "", "CSV dataset file to read")
	pf.StringVarP(&sp.responseCol, "response", "y", "lpsa", "Response column name in the CSV")
	pf.BoolVar(&sp.standardize, "standardize", true, "Standardize design matrix columns")

	pf.BoolVar(&sp.synthetic, "synthetic", false, "Use a synthetic dataset instead of a file")
	pf.IntVar(&sp.synthN, "synthetic-n", 100, "Synthetic observation count")
	pf.StringVar(&sp.synthCoefs, "synthetic-coefs", "1.0,-0.5,0.0", "Synthetic generating coefficients (comma separated)")
	pf.Float64Var(&sp.synthNoise, "synthetic-noise", 0.2, "Synthetic noise standard deviation")

	pf.StringVarP(&sp.familyName, "family", "f", "ridge", "Coefficient prior family (ridge|lasso|horseshoe)")
	pf.Float64VarP(&sp.fixedTau, "tau", "t", 1.0, "Fixed global coefficient scale")
	pf.BoolVar(&sp.estimateTau, "estimate-tau", false, "Estimate tau under a half-Cauchy hyperprior instead of fixing it")

	pf.IntVarP(&sp.warmup, "warmup", "w", 1000, "Warmup (adaptation) iterations per chain")
	pf.IntVarP(&sp.samples, "samples", "n", 1000, "Sampling iterations per chain")
	pf.IntVarP(&sp.chains, "chains", "c", 4, "Independent chain count")
	pf.Float64Var(&sp.adaptDelta, "adapt-delta", 0.8, "Target acceptance statistic for step-size adaptation")
	pf.IntVar(&sp.maxDepth, "max-depth", 10, "Max trajectory doublings per iteration")
	pf.Int64VarP(&sp.randomSeed, "seed", "r", 1, "Random seed to use")

	pf.StringVar(&sp.monitorAddr, "monitor", "", "Address for the HTTP progress monitor (empty disables)")
	pf.BoolVarP(&sp.verbose, "verbose", "v", false, "Verbose logging (default is much more parsimonious)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
