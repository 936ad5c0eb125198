package regime

import (
	"errors"
	"math"
)

var errSingular = errors.New("zero-probability observation sequence")

// emissionFloor keeps every symbol reachable from every state after re-estimation.
const emissionFloor = 1e-6

type params struct {
	trans   [][]float64 // N×N
	emit    [][]float64 // N×K
	initial []float64   // N
}

func (p params) clone() params {
	return params{trans: cloneMatrix(p.trans), emit: cloneMatrix(p.emit), initial: clone(p.initial)}
}

// forward runs the scaled forward pass. Each alpha row sums to 1 and
// scale[t] holds the normalizer, so log P(O) = Σ log scale[t].
func forward(obs []int, p params) ([][]float64, []float64, error) {
	n := len(p.initial)
	T := len(obs)
	alpha := newMatrix(T, n)
	scale := make([]float64, T)

	for i := 0; i < n; i++ {
		alpha[0][i] = p.initial[i] * p.emit[i][obs[0]]
	}
	if err := normalizeRow(alpha[0], &scale[0]); err != nil {
		return nil, nil, err
	}
	for t := 1; t < T; t++ {
		for j := 0; j < n; j++ {
			s := 0.0
			for i := 0; i < n; i++ {
				s += alpha[t-1][i] * p.trans[i][j]
			}
			alpha[t][j] = s * p.emit[j][obs[t]]
		}
		if err := normalizeRow(alpha[t], &scale[t]); err != nil {
			return nil, nil, err
		}
	}
	return alpha, scale, nil
}

func normalizeRow(row []float64, scale *float64) error {
	s := 0.0
	for _, v := range row {
		s += v
	}
	if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return errSingular
	}
	for i := range row {
		row[i] /= s
	}
	*scale = s
	return nil
}

// backward runs the backward pass using the forward normalizers.
func backward(obs []int, p params, scale []float64) [][]float64 {
	n := len(p.initial)
	T := len(obs)
	beta := newMatrix(T, n)
	for i := 0; i < n; i++ {
		beta[T-1][i] = 1
	}
	for t := T - 2; t >= 0; t-- {
		for i := 0; i < n; i++ {
			s := 0.0
			for j := 0; j < n; j++ {
				s += p.trans[i][j] * p.emit[j][obs[t+1]] * beta[t+1][j]
			}
			beta[t][i] = s / scale[t+1]
		}
	}
	return beta
}

func logLikelihood(scale []float64) float64 {
	ll := 0.0
	for _, c := range scale {
		ll += math.Log(c)
	}
	return ll
}

// reestimate performs one E-step and M-step and returns the updated parameters
// together with the log-likelihood of the input parameters.
func reestimate(obs []int, p params, symbols int) (params, float64, error) {
	alpha, scale, err := forward(obs, p)
	if err != nil {
		return params{}, 0, err
	}
	beta := backward(obs, p, scale)
	ll := logLikelihood(scale)

	n := len(p.initial)
	T := len(obs)

	gamma := newMatrix(T, n)
	for t := 0; t < T; t++ {
		s := 0.0
		for i := 0; i < n; i++ {
			gamma[t][i] = alpha[t][i] * beta[t][i]
			s += gamma[t][i]
		}
		if s > 0 {
			for i := 0; i < n; i++ {
				gamma[t][i] /= s
			}
		}
	}

	xiSum := newMatrix(n, n)
	gammaSum := make([]float64, n) // over t < T-1
	for t := 0; t < T-1; t++ {
		for i := 0; i < n; i++ {
			gammaSum[i] += gamma[t][i]
			for j := 0; j < n; j++ {
				xiSum[i][j] += alpha[t][i] * p.trans[i][j] * p.emit[j][obs[t+1]] * beta[t+1][j] / scale[t+1]
			}
		}
	}

	next := params{
		trans:   newMatrix(n, n),
		emit:    newMatrix(n, symbols),
		initial: make([]float64, n),
	}
	copy(next.initial, gamma[0])
	normalizeProb(next.initial)

	for i := 0; i < n; i++ {
		rowSum := 0.0
		for j := 0; j < n; j++ {
			rowSum += xiSum[i][j]
		}
		if rowSum <= 0 || gammaSum[i] <= 0 {
			copy(next.trans[i], p.trans[i])
			continue
		}
		for j := 0; j < n; j++ {
			next.trans[i][j] = xiSum[i][j] / rowSum
		}
	}

	for i := 0; i < n; i++ {
		total := 0.0
		for t := 0; t < T; t++ {
			next.emit[i][obs[t]] += gamma[t][i]
			total += gamma[t][i]
		}
		if total <= 0 {
			copy(next.emit[i], p.emit[i])
			continue
		}
		for k := 0; k < symbols; k++ {
			next.emit[i][k] = next.emit[i][k]/total + emissionFloor
		}
		normalizeProb(next.emit[i])
	}

	if !finiteParams(next) || math.IsNaN(ll) || math.IsInf(ll, 0) {
		return params{}, 0, errSingular
	}
	return next, ll, nil
}

type emResult struct {
	params        params
	iterations    int
	logLikelihood float64
	converged     bool
}

// baumWelch iterates re-estimation until the log-likelihood moves by less than tol.
func baumWelch(obs []int, init params, symbols, maxIter int, tol float64) (emResult, error) {
	cur := init.clone()
	prevLL := math.Inf(-1)
	res := emResult{}
	for iter := 1; iter <= maxIter; iter++ {
		next, ll, err := reestimate(obs, cur, symbols)
		if err != nil {
			return emResult{}, err
		}
		res.iterations = iter
		res.logLikelihood = ll
		if iter > 1 && math.Abs(ll-prevLL) < tol {
			res.converged = true
			break
		}
		cur = next
		prevLL = ll
	}
	if !res.converged {
		_, scale, err := forward(obs, cur)
		if err != nil {
			return emResult{}, err
		}
		res.logLikelihood = logLikelihood(scale)
	}
	res.params = cur
	return res, nil
}

func newMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

func cloneMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = clone(row)
	}
	return out
}

func uniformMatrix(rows, cols int) [][]float64 {
	m := newMatrix(rows, cols)
	for i := range m {
		for j := range m[i] {
			m[i][j] = 1 / float64(cols)
		}
	}
	return m
}

func normalizeProb(v []float64) {
	s := 0.0
	for _, x := range v {
		s += x
	}
	if s <= 0 {
		for i := range v {
			v[i] = 1 / float64(len(v))
		}
		return
	}
	for i := range v {
		v[i] /= s
	}
}

func finiteParams(p params) bool {
	for _, m := range [][][]float64{p.trans, p.emit, {p.initial}} {
		for _, row := range m {
			for _, v := range row {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return false
				}
			}
		}
	}
	return true
}
