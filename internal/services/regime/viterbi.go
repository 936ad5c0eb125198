package regime

import "math"

func safeLog(x float64) float64 {
	if x <= 0 {
		return math.Inf(-1)
	}
	return math.Log(x)
}

// viterbi returns the most likely state path in log space and its log probability.
// Ties resolve to the lowest state index.
func viterbi(obs []int, p params) ([]int, float64) {
	n := len(p.initial)
	T := len(obs)
	if T == 0 {
		return nil, math.Inf(-1)
	}
	logA := newMatrix(n, n)
	for i := range logA {
		for j := range logA[i] {
			logA[i][j] = safeLog(p.trans[i][j])
		}
	}

	delta := newMatrix(T, n)
	psi := make([][]int, T)
	for t := range psi {
		psi[t] = make([]int, n)
	}
	for i := 0; i < n; i++ {
		delta[0][i] = safeLog(p.initial[i]) + safeLog(p.emit[i][obs[0]])
	}
	for t := 1; t < T; t++ {
		for j := 0; j < n; j++ {
			best, arg := math.Inf(-1), 0
			for i := 0; i < n; i++ {
				if v := delta[t-1][i] + logA[i][j]; v > best {
					best, arg = v, i
				}
			}
			delta[t][j] = best + safeLog(p.emit[j][obs[t]])
			psi[t][j] = arg
		}
	}

	last, bestLog := 0, math.Inf(-1)
	for i := 0; i < n; i++ {
		if delta[T-1][i] > bestLog {
			last, bestLog = i, delta[T-1][i]
		}
	}
	path := make([]int, T)
	path[T-1] = last
	for t := T - 1; t > 0; t-- {
		path[t-1] = psi[t][path[t]]
	}
	return path, bestLog
}
