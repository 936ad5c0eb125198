package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TokenScope/internal/domain/models"
	domrepo "TokenScope/internal/domain/repository"
	"TokenScope/pkg/logger"
)

// Deliverer is the downstream the pipeline forwards verdicts to.
type Deliverer interface {
	Deliver(ctx context.Context, r *models.AnalysisResult) error
	DeliverBatch(ctx context.Context, rs []*models.AnalysisResult) error
}

// VerdictPipeline sits between the analysis use case and the verdict sink.
// It validates verdicts, throttles repeats per token and buffers verdicts
// the downstream rejected so a background loop can retry them in batches.
type VerdictPipeline struct {
	next        Deliverer
	metrics     domrepo.Metrics
	log         *logger.Logger
	minInterval time.Duration
	bufCh       chan *models.AnalysisResult
	stopCh      chan struct{}
	doneCh      chan struct{} // closed when the redelivery loop exits
	started     bool
	mu          sync.Mutex
	lastSeen    map[string]time.Time // per-token last accepted time
	prunedAt    time.Time
	now         func() time.Time
	maxBackoff  time.Duration
	batchSize   int
	batchWait   time.Duration
}

type PipelineOption func(*VerdictPipeline)

// WithMinInterval drops a token's verdicts arriving faster than d. Zero disables throttling.
func WithMinInterval(d time.Duration) PipelineOption {
	return func(p *VerdictPipeline) {
		if d >= 0 {
			p.minInterval = d
		}
	}
}

// WithBufferSize sets the retry buffer size used when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *VerdictPipeline) {
		if n > 0 {
			p.bufCh = make(chan *models.AnalysisResult, n)
		}
	}
}

// WithBatch bounds a redelivery batch by size and by how long to wait for it to fill.
func WithBatch(size int, wait time.Duration) PipelineOption {
	return func(p *VerdictPipeline) {
		if size > 0 {
			p.batchSize = size
		}
		if wait > 0 {
			p.batchWait = wait
		}
	}
}

// NewVerdictPipeline creates a new pipeline.
func NewVerdictPipeline(next Deliverer, metrics domrepo.Metrics, log *logger.Logger, opts ...PipelineOption) *VerdictPipeline {
	p := &VerdictPipeline{
		next:       next,
		metrics:    metrics,
		log:        log,
		bufCh:      make(chan *models.AnalysisResult, 256),
		lastSeen:   make(map[string]time.Time),
		now:        time.Now,
		maxBackoff: 2 * time.Second,
		batchSize:  50,
		batchWait:  time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches background redelivery of buffered verdicts. A stopped
// pipeline can be started again.
func (p *VerdictPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	stop, done := make(chan struct{}), make(chan struct{})
	p.stopCh, p.doneCh = stop, done
	p.mu.Unlock()

	go func() {
		defer close(done)
		backoff := 50 * time.Millisecond
		for {
			var first *models.AnalysisResult
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case first = <-p.bufCh:
			}
			batch := p.drain(first)
			if err := p.next.DeliverBatch(ctx, batch); err != nil {
				if backoff < p.maxBackoff {
					backoff *= 2
				}
				p.metrics.RecordError("pipeline_redeliver")
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return
				case <-stop:
					return
				}
				p.requeue(batch)
				continue
			}
			backoff = 50 * time.Millisecond
		}
	}()
}

// drain collects buffered verdicts after first until the batch is full or
// the batch wait elapses.
func (p *VerdictPipeline) drain(first *models.AnalysisResult) []*models.AnalysisResult {
	batch := []*models.AnalysisResult{first}
	timer := time.NewTimer(p.batchWait)
	defer timer.Stop()
	for len(batch) < p.batchSize {
		select {
		case r := <-p.bufCh:
			batch = append(batch, r)
		case <-timer.C:
			return batch
		}
	}
	return batch
}

func (p *VerdictPipeline) requeue(batch []*models.AnalysisResult) {
	for _, r := range batch {
		select {
		case p.bufCh <- r:
		default:
			p.metrics.RecordError("pipeline_buffer_drop")
			p.log.Warn("verdict dropped after redelivery failure", logger.String("token", r.TokenID))
		}
	}
}

// Stop stops the background redelivery and waits for an in-flight batch.
func (p *VerdictPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	close(p.stopCh)
	done := p.doneCh
	p.mu.Unlock()
	<-done
}

// Buffered returns the number of verdicts waiting for redelivery.
func (p *VerdictPipeline) Buffered() int { return len(p.bufCh) }

// Deliver validates, throttles and forwards r, buffering it on downstream errors.
func (p *VerdictPipeline) Deliver(ctx context.Context, r *models.AnalysisResult) error {
	start := p.now()
	if err := validateVerdict(r); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.allow(r.TokenID, start) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.next.Deliver(ctx, r); err != nil {
		p.metrics.RecordError("pipeline_deliver")
		select {
		case p.bufCh <- r:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_deliver", time.Since(start).Seconds())
	return nil
}

func validateVerdict(r *models.AnalysisResult) error {
	if r == nil {
		return fmt.Errorf("verdict nil")
	}
	if r.TokenID == "" {
		return fmt.Errorf("token empty")
	}
	if r.OverallScore < 0 || r.OverallScore > 100 {
		return fmt.Errorf("score %.2f out of range", r.OverallScore)
	}
	return nil
}

func (p *VerdictPipeline) allow(tokenID string, now time.Time) bool {
	if p.minInterval <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastSeen[tokenID]
	if ok && now.Sub(last) < p.minInterval {
		return false
	}
	p.lastSeen[tokenID] = now
	p.pruneLocked(now)
	return true
}

// pruneLocked forgets tokens whose throttle window has passed. It sweeps at
// most once per interval.
func (p *VerdictPipeline) pruneLocked(now time.Time) {
	if now.Sub(p.prunedAt) < p.minInterval {
		return
	}
	for token, last := range p.lastSeen {
		if now.Sub(last) >= p.minInterval {
			delete(p.lastSeen, token)
		}
	}
	p.prunedAt = now
}
