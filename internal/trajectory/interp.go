package trajectory

import "math"

// interpolate evaluates the piecewise-linear function through the nodes
// (xs, ys) at each grid timestamp. Grid points outside [xs[0], xs[n-1]]
// come back NaN. An exact hit on a node returns that node's value even
// when a neighboring value is NaN, so a fix with a known optional
// channel keeps it regardless of its neighbors.
//
// Both xs and grid must be sorted ascending. When xs contains duplicate
// timestamps the later node wins.
func interpolate(xs []int64, ys []float64, grid []int64) []float64 {
	out := make([]float64, len(grid))
	n := len(xs)
	j := 0
	for i, t := range grid {
		if n == 0 || t < xs[0] || t > xs[n-1] {
			out[i] = math.NaN()
			continue
		}
		for j < n-1 && xs[j+1] <= t {
			j++
		}
		if xs[j] == t {
			out[i] = ys[j]
			continue
		}
		// xs[j] < t < xs[j+1]
		frac := float64(t-xs[j]) / float64(xs[j+1]-xs[j])
		out[i] = ys[j] + frac*(ys[j+1]-ys[j])
	}
	return out
}
