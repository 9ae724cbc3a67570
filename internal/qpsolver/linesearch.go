package qpsolver

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// lineSearchFallback is used when the majorized KKT matrix M fails to
// factorize (Cholesky, then LU) and no Newton step can be formed. The
// steepest-descent direction d = -grad is still a valid descent
// direction for the quadratic model m(t) = 0.5*(z+t*d)'M(z+t*d) +
// g'(z+t*d) regardless of M's singularity, so this searches for the
// best step length t in [0,1] along d with Nelder-Mead, penalizing
// excursions outside the box.
func lineSearchFallback(M *mat.Dense, grad, z []float64) []float64 {
	n := len(z)
	d := make([]float64, n)
	for i := range d {
		d[i] = -grad[i]
	}

	merit := func(t float64) float64 {
		trial := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			trial.SetVec(i, z[i]+t*d[i])
		}
		var Mz mat.VecDense
		Mz.MulVec(M, trial)
		val := 0.0
		for i := 0; i < n; i++ {
			val += 0.5*trial.AtVec(i)*Mz.AtVec(i) + grad[i]*trial.AtVec(i)
		}
		return val
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			t := x[0]
			switch {
			case t < 0:
				return merit(0) + 1e6*(-t)
			case t > 1:
				return merit(1) + 1e6*(t-1)
			default:
				return merit(t)
			}
		},
	}

	result, err := optimize.Minimize(problem, []float64{0.5}, nil, &optimize.NelderMead{})
	if err != nil || result == nil || len(result.X) == 0 {
		return nil
	}
	t := result.X[0]
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}

	delta := make([]float64, n)
	for i := range delta {
		delta[i] = t * d[i]
	}
	return delta
}
