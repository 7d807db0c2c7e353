package correlation

import "math"

// Pearson computes the sample Pearson correlation coefficient of two
// equal-length windows. It returns ErrDegenerate when the coefficient
// is undefined: empty windows, mismatched lengths, or a window with
// zero variance.
func Pearson(x, y []float64) (float64, error) {
	m := len(x)
	if m == 0 || len(y) != m {
		return math.NaN(), ErrDegenerate
	}

	var sumX, sumY float64
	for i := 0; i < m; i++ {
		sumX += x[i]
		sumY += y[i]
	}
	meanX := sumX / float64(m)
	meanY := sumY / float64(m)

	var cov, varX, varY float64
	for i := 0; i < m; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	denom := math.Sqrt(varX * varY)
	if denom == 0 {
		return math.NaN(), ErrDegenerate
	}
	r := cov / denom
	if math.IsNaN(r) {
		return math.NaN(), ErrDegenerate
	}
	return r, nil
}
