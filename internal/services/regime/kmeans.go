package regime

import (
	"errors"
	"math"
)

var errDegenerate = errors.New("fewer than two distinct feature points")

// scaler standardizes each dimension to zero mean and unit variance.
type scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

func fitScaler(points [][]float64) scaler {
	dim := len(points[0])
	s := scaler{Mean: make([]float64, dim), Std: make([]float64, dim)}
	n := float64(len(points))
	for _, p := range points {
		for d, v := range p {
			s.Mean[d] += v / n
		}
	}
	for _, p := range points {
		for d, v := range p {
			diff := v - s.Mean[d]
			s.Std[d] += diff * diff / n
		}
	}
	for d := range s.Std {
		s.Std[d] = math.Sqrt(s.Std[d])
		if s.Std[d] < 1e-12 {
			s.Std[d] = 1
		}
	}
	return s
}

func (s scaler) apply(p []float64) []float64 {
	out := make([]float64, len(p))
	for d, v := range p {
		out[d] = (v - s.Mean[d]) / s.Std[d]
	}
	return out
}

func sqDist(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

// nearest returns the index of the closest centroid; ties go to the lowest index.
func nearest(p []float64, centroids [][]float64) int {
	best, bestD := 0, math.Inf(1)
	for i, c := range centroids {
		if d := sqDist(p, c); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

func distinctAtLeast(points [][]float64, n int) bool {
	var seen [][]float64
	for _, p := range points {
		dup := false
		for _, q := range seen {
			if sqDist(p, q) == 0 {
				dup = true
				break
			}
		}
		if !dup {
			seen = append(seen, p)
			if len(seen) >= n {
				return true
			}
		}
	}
	return false
}

// seedMaximin picks the point nearest the global mean first, then repeatedly the
// point farthest from all chosen centroids. Ties resolve to the lowest index, so
// seeding is fully deterministic.
func seedMaximin(points [][]float64, k int) [][]float64 {
	dim := len(points[0])
	mean := make([]float64, dim)
	for _, p := range points {
		for d, v := range p {
			mean[d] += v / float64(len(points))
		}
	}
	centroids := [][]float64{clone(points[nearest(mean, points)])}

	minD := make([]float64, len(points))
	for i, p := range points {
		minD[i] = sqDist(p, centroids[0])
	}
	for len(centroids) < k {
		far := 0
		for i := range points {
			if minD[i] > minD[far] {
				far = i
			}
		}
		c := clone(points[far])
		centroids = append(centroids, c)
		for i, p := range points {
			if d := sqDist(p, c); d < minD[i] {
				minD[i] = d
			}
		}
	}
	return centroids
}

// kmeans clusters points into k centroids with Lloyd iterations.
func kmeans(points [][]float64, k, maxIter int) ([][]float64, error) {
	if len(points) == 0 || !distinctAtLeast(points, 2) {
		return nil, errDegenerate
	}
	centroids := seedMaximin(points, k)
	assign := make([]int, len(points))
	for i := range assign {
		assign[i] = -1
	}
	dim := len(points[0])

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, p := range points {
			if c := nearest(p, centroids); c != assign[i] {
				assign[i] = c
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, p := range points {
			c := assign[i]
			counts[c]++
			for d, v := range p {
				sums[c][d] += v
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				reseedEmpty(points, assign, centroids, c)
				continue
			}
			for d := range sums[c] {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}
	return centroids, nil
}

// reseedEmpty moves an empty centroid onto the point farthest from its own centroid.
func reseedEmpty(points [][]float64, assign []int, centroids [][]float64, empty int) {
	far, farD := -1, 0.0
	for i, p := range points {
		if d := sqDist(p, centroids[assign[i]]); d > farD {
			far, farD = i, d
		}
	}
	if far >= 0 {
		centroids[empty] = clone(points[far])
	}
}

func clone(p []float64) []float64 {
	out := make([]float64, len(p))
	copy(out, p)
	return out
}
