package model

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// OLS solves the normal equations for the dataset with an intercept column
// prepended, returning (intercept, coefficients). Used as the classical
// reference point the weak-prior posterior mean should approach.
func (d *Dataset) OLS() (float64, []float64, error) {
	xi := mat.NewDense(d.N, d.K+1, nil)
	for i := 0; i < d.N; i++ {
		xi.Set(i, 0, 1.0)
		for j := 0; j < d.K; j++ {
			xi.Set(i, j+1, d.X.At(i, j))
		}
	}

	var xtx mat.Dense
	xtx.Mul(xi.T(), xi)

	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		return 0, nil, errors.Wrapf(err, "Singular design matrix for dataset %s", d.Name)
	}

	var xty mat.VecDense
	xty.MulVec(xi.T(), mat.NewVecDense(d.N, d.Y))

	w := mat.NewVecDense(d.K+1, nil)
	w.MulVec(&xtxInv, &xty)

	coefs := make([]float64, d.K)
	for j := 0; j < d.K; j++ {
		coefs[j] = w.AtVec(j + 1)
	}

	return w.AtVec(0), coefs, nil
}
