package trajectory

import (
	"gonum.org/v1/gonum/mat"
)

// savgolPolyorder is the degree of the local polynomial fitted by the
// Savitzky-Golay filter.
const savgolPolyorder = 2

// savgolFilter smooths values with a Savitzky-Golay filter: a sliding
// least-squares polynomial fit over an odd-sized window. Samples near
// the boundaries, where the window cannot be centered, are taken from
// polynomials fitted to the first and last full windows, so the output
// always has the same length as the input.
func savgolFilter(values []float64, window, polyorder int) ([]float64, error) {
	n := len(values)
	if window%2 == 0 {
		window++
	}
	if n < window || polyorder >= window {
		out := make([]float64, n)
		copy(out, values)
		return out, nil
	}

	proj, err := savgolProjection(window, polyorder)
	if err != nil {
		return nil, err
	}
	half := window / 2

	// Row 0 of the projection evaluates the fitted polynomial at the
	// window center.
	center := mat.Row(nil, 0, proj)

	out := make([]float64, n)
	for i := half; i < n-half; i++ {
		var v float64
		for k := 0; k < window; k++ {
			v += center[k] * values[i-half+k]
		}
		out[i] = v
	}

	left := fitWindow(proj, values[:window], polyorder)
	for i := 0; i < half; i++ {
		out[i] = polyEval(left, float64(i-half))
	}
	right := fitWindow(proj, values[n-window:], polyorder)
	for i := n - half; i < n; i++ {
		out[i] = polyEval(right, float64(i-(n-window)-half))
	}
	return out, nil
}

// savgolProjection returns P = (JᵀJ)⁻¹Jᵀ for the window's polynomial
// design matrix J, with sample offsets centered on the window midpoint.
// P·y yields the least-squares polynomial coefficients for a window of
// samples y.
func savgolProjection(window, polyorder int) (*mat.Dense, error) {
	half := window / 2
	design := mat.NewDense(window, polyorder+1, nil)
	for i := 0; i < window; i++ {
		x := float64(i - half)
		p := 1.0
		for k := 0; k <= polyorder; k++ {
			design.Set(i, k, p)
			p *= x
		}
	}

	var jtj mat.Dense
	jtj.Mul(design.T(), design)
	var inv mat.Dense
	if err := inv.Inverse(&jtj); err != nil {
		return nil, err
	}
	var proj mat.Dense
	proj.Mul(&inv, design.T())
	return &proj, nil
}

// fitWindow computes the polynomial coefficients for one boundary
// window of samples.
func fitWindow(proj *mat.Dense, window []float64, polyorder int) []float64 {
	beta := make([]float64, polyorder+1)
	for j := 0; j <= polyorder; j++ {
		row := mat.Row(nil, j, proj)
		var v float64
		for k, c := range row {
			v += c * window[k]
		}
		beta[j] = v
	}
	return beta
}

func polyEval(coeffs []float64, x float64) float64 {
	v := 0.0
	for i := len(coeffs) - 1; i >= 0; i-- {
		v = v*x + coeffs[i]
	}
	return v
}
