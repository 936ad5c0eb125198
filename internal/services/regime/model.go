package regime

import (
	"errors"
	"math"

	"TokenScope/internal/domain/models"
	domsvc "TokenScope/internal/domain/service"
)

const (
	NumStates          = 4
	NumClusters        = 8
	Window             = 20
	MinTrainingCandles = 100
	MaxIterations      = 50
	Tolerance          = 1e-6

	kmeansIterations = 100
	maxDuration      = 1000.0
	recentStates     = 10
	// emissionTilt is the extra initial weight a state gives clusters that
	// look like it, so EM does not start on its symmetric fixed point.
	emissionTilt = 1.0
)

var (
	errUntrained     = errors.New("regime model is not trained")
	errSeriesTooThin = errors.New("series shorter than one feature window")
)

// Model is a 4-state discrete HMM over clustered window features.
// A Model is owned by one caller and is not safe for concurrent mutation.
type Model struct {
	maxIter   int
	tol       float64
	trained   bool
	p         params
	centroids [][]float64
	scale     scaler
	summary   *models.TrainingSummary
}

type Option func(*Model)

// WithMaxIterations caps Baum-Welch iterations.
func WithMaxIterations(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.maxIter = n
		}
	}
}

// WithTolerance sets the log-likelihood convergence threshold.
func WithTolerance(tol float64) Option {
	return func(m *Model) {
		if tol > 0 {
			m.tol = tol
		}
	}
}

// NewModel returns an untrained model with uniform parameters.
func NewModel(opts ...Option) *Model {
	m := &Model{
		maxIter: MaxIterations,
		tol:     Tolerance,
		p: params{
			trans:   uniformMatrix(NumStates, NumStates),
			emit:    uniformMatrix(NumStates, NumClusters),
			initial: uniformMatrix(1, NumStates)[0],
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Train fits the model to series, replacing any previous parameters.
// On failure the model keeps its previous state.
func (m *Model) Train(series []models.Candle) (*models.TrainingSummary, error) {
	if len(series) < MinTrainingCandles {
		return nil, &models.InsufficientDataError{Op: "regime_train", Have: len(series), Need: MinTrainingCandles}
	}
	windows := ExtractWindows(series, Window)
	raw := make([][]float64, len(windows))
	for i, w := range windows {
		raw[i] = w.Reduced()
	}
	sc := fitScaler(raw)
	points := make([][]float64, len(raw))
	for i, r := range raw {
		points[i] = sc.apply(r)
	}

	centroids, err := kmeans(points, NumClusters, kmeansIterations)
	if err != nil {
		return nil, &models.TrainingFailedError{Reason: "degenerate clustering", Err: err}
	}
	obs := make([]int, len(points))
	for i, p := range points {
		obs[i] = nearest(p, centroids)
	}

	init := params{
		trans:   uniformMatrix(NumStates, NumStates),
		emit:    tiltedEmission(centroids),
		initial: uniformMatrix(1, NumStates)[0],
	}
	res, err := baumWelch(obs, init, NumClusters, m.maxIter, m.tol)
	if err != nil {
		return nil, &models.TrainingFailedError{Reason: "numerical singularity", Err: err}
	}

	m.p = relabel(res.params, centroids)
	m.centroids = centroids
	m.scale = sc
	m.trained = true
	m.summary = &models.TrainingSummary{
		Iterations:    res.iterations,
		LogLikelihood: res.logLikelihood,
		Converged:     res.converged,
		Observations:  len(obs),
	}
	return m.summary, nil
}

// Trained reports whether at least one training pass succeeded.
func (m *Model) Trained() bool { return m.trained }

// Summary returns the last successful training summary, or nil.
func (m *Model) Summary() *models.TrainingSummary { return m.summary }

func (m *Model) Transition() [][]float64 { return cloneMatrix(m.p.trans) }

func (m *Model) Emission() [][]float64 { return cloneMatrix(m.p.emit) }

func (m *Model) Initial() []float64 { return clone(m.p.initial) }

// Centroids returns the cluster centers in standardized feature space.
func (m *Model) Centroids() [][]float64 { return cloneMatrix(m.centroids) }

// Discretize maps each feature window of series to its nearest stored centroid.
func (m *Model) Discretize(series []models.Candle) ([]int, error) {
	if !m.trained {
		return nil, errUntrained
	}
	windows := ExtractWindows(series, Window)
	if len(windows) == 0 {
		return nil, errSeriesTooThin
	}
	obs := make([]int, len(windows))
	for i, w := range windows {
		obs[i] = nearest(m.scale.apply(w.Reduced()), m.centroids)
	}
	return obs, nil
}

// Predict classifies the regime at the end of recent. It never fails: an
// untrained model or a too-short series falls back to Heuristic.
func (m *Model) Predict(recent []models.Candle) *models.RegimePrediction {
	obs, err := m.Discretize(recent)
	if err != nil {
		return Heuristic(recent, Window)
	}
	path, _ := viterbi(obs, m.p)
	alpha, _, err := forward(obs, m.p)
	if err != nil {
		return Heuristic(recent, Window)
	}

	cur := path[len(path)-1]
	last := alpha[len(alpha)-1]
	probs := make(map[models.Regime]float64, NumStates)
	conf := 0.0
	for i, s := range models.RegimeStates {
		probs[s] = last[i]
		if last[i] > conf {
			conf = last[i]
		}
	}
	next := make(map[models.Regime]float64, NumStates)
	for j, s := range models.RegimeStates {
		next[s] = m.p.trans[cur][j]
	}

	consecutive := 0
	for i := len(path) - 1; i >= 0 && path[i] == cur; i-- {
		consecutive++
	}
	stay := m.p.trans[cur][cur]
	duration := maxDuration
	if 1-stay > 1/maxDuration {
		duration = 1 / (1 - stay)
	}

	tail := path
	if len(tail) > recentStates {
		tail = tail[len(tail)-recentStates:]
	}
	seq := make([]models.Regime, len(tail))
	for i, s := range tail {
		seq[i] = models.RegimeStates[s]
	}

	regime := models.RegimeStates[cur]
	return &models.RegimePrediction{
		CurrentRegime:          regime,
		Confidence:             conf,
		Method:                 models.MethodHMM,
		StateProbabilities:     probs,
		NextStateProbabilities: next,
		Persistence: models.Persistence{
			ConsecutivePeriods:        consecutive,
			ExpectedDuration:          duration,
			ProbabilityOfContinuation: stay,
		},
		RecentStateSequence: seq,
		Recommendation:      Recommend(regime, conf),
	}
}

// homeState guesses which regime a standardized centroid resembles.
func homeState(c []float64) int {
	meanRet, vol := c[0], c[1]
	switch {
	case vol > 1:
		return stateIndex(models.RegimeHighVolatility)
	case meanRet > 0.5:
		return stateIndex(models.RegimeBull)
	case meanRet < -0.5:
		return stateIndex(models.RegimeBear)
	default:
		return stateIndex(models.RegimeSideways)
	}
}

func tiltedEmission(centroids [][]float64) [][]float64 {
	k := len(centroids)
	emit := newMatrix(NumStates, k)
	for j := 0; j < NumStates; j++ {
		for c := 0; c < k; c++ {
			emit[j][c] = 1 + 0.01*float64(((j+1)*(c+1))%(k+1))/float64(k)
			if homeState(centroids[c]) == j {
				emit[j][c] += emissionTilt
			}
		}
		normalizeProb(emit[j])
	}
	return emit
}

// relabel permutes learned states so index order matches models.RegimeStates:
// highest expected volatility is HIGH_VOLATILITY, then highest and lowest
// expected mean return among the rest are BULL and BEAR.
func relabel(p params, centroids [][]float64) params {
	n := len(p.initial)
	meanRet := make([]float64, n)
	vol := make([]float64, n)
	for i := 0; i < n; i++ {
		for k, c := range centroids {
			meanRet[i] += p.emit[i][k] * c[0]
			vol[i] += p.emit[i][k] * c[1]
		}
	}

	used := make([]bool, n)
	pick := func(score []float64, sign float64) int {
		best, bestV := -1, math.Inf(-1)
		for i := 0; i < n; i++ {
			if !used[i] && sign*score[i] > bestV {
				best, bestV = i, sign*score[i]
			}
		}
		used[best] = true
		return best
	}
	perm := make([]int, n) // perm[newIndex] = oldIndex
	perm[stateIndex(models.RegimeHighVolatility)] = pick(vol, 1)
	perm[stateIndex(models.RegimeBull)] = pick(meanRet, 1)
	perm[stateIndex(models.RegimeBear)] = pick(meanRet, -1)
	perm[stateIndex(models.RegimeSideways)] = pick(meanRet, 0)

	out := params{trans: newMatrix(n, n), emit: make([][]float64, n), initial: make([]float64, n)}
	for a := 0; a < n; a++ {
		out.initial[a] = p.initial[perm[a]]
		out.emit[a] = clone(p.emit[perm[a]])
		for b := 0; b < n; b++ {
			out.trans[a][b] = p.trans[perm[a]][perm[b]]
		}
	}
	return out
}

func stateIndex(r models.Regime) int {
	for i, s := range models.RegimeStates {
		if s == r {
			return i
		}
	}
	return -1
}

var _ domsvc.RegimeClassifier = (*Model)(nil)
