package model

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Dataset is the immutable regression input: a response vector and a design
// matrix whose columns are expected to be standardized before sampling.
type Dataset struct {
	Name string     // Dataset name (file stem for file-based datasets)
	Y    []float64  // Response vector, length N
	X    *mat.Dense // Design matrix, N x K
	N    int        // Observation count
	K    int        // Predictor count
}

// NewDataset creates a dataset and validates its dimensions.
func NewDataset(y []float64, x *mat.Dense) (*Dataset, error) {
	if x == nil {
		return nil, errors.Errorf("No design matrix supplied")
	}

	r, c := x.Dims()
	d := &Dataset{
		Y: y,
		X: x,
		N: r,
		K: c,
	}

	if err := d.Check(); err != nil {
		return nil, err
	}

	return d, nil
}

// Check returns an error if there is a problem with the dataset
func (d *Dataset) Check() error {
	if d.X == nil {
		return errors.Errorf("Dataset %s has no design matrix", d.Name)
	}

	r, c := d.X.Dims()
	if r != d.N || c != d.K {
		return errors.Errorf("Dataset %s claims %dx%d but X is %dx%d", d.Name, d.N, d.K, r, c)
	}
	if len(d.Y) != d.N {
		return errors.Errorf("Dataset %s has %d rows but %d responses", d.Name, d.N, len(d.Y))
	}
	if d.N < 2 {
		return errors.Errorf("Dataset %s has %d rows - need at least 2", d.Name, d.N)
	}
	if d.K < 1 {
		return errors.Errorf("Dataset %s has no predictors", d.Name)
	}

	for i, v := range d.Y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Errorf("Dataset %s has non-finite response at row %d", d.Name, i)
		}
	}
	for i := 0; i < d.N; i++ {
		for j := 0; j < d.K; j++ {
			v := d.X.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.Errorf("Dataset %s has non-finite predictor at (%d,%d)", d.Name, i, j)
			}
		}
	}

	return nil
}

// Standardize centers and scales every column of X to mean 0 and unit
// standard deviation, in place. Constant columns are rejected since they
// carry no information and break the scaling.
func (d *Dataset) Standardize() error {
	col := make([]float64, d.N)

	for j := 0; j < d.K; j++ {
		mat.Col(col, j, d.X)

		mean := 0.0
		for _, v := range col {
			mean += v
		}
		mean /= float64(d.N)

		sd := 0.0
		for _, v := range col {
			sd += (v - mean) * (v - mean)
		}
		sd = math.Sqrt(sd / float64(d.N-1))

		if sd < 1e-12 {
			return errors.Errorf("Dataset %s column %d is constant - cannot standardize", d.Name, j)
		}

		for i := 0; i < d.N; i++ {
			d.X.Set(i, j, (col[i]-mean)/sd)
		}
	}

	return nil
}
