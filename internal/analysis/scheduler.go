package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/onebitebitcoin/zentel/internal/memo"
	"github.com/onebitebitcoin/zentel/internal/metrics"
)

// Scheduler errors surfaced to the HTTP layer.
var (
	// ErrQueueFull is returned when the bounded job queue rejects a memo.
	ErrQueueFull = errors.New("analysis queue is full")

	// ErrAlreadyRunning is returned by Reanalyze without force while the
	// memo is being analyzed.
	ErrAlreadyRunning = errors.New("analysis already in progress")

	// ErrStopped is returned once the scheduler has shut down.
	ErrStopped = errors.New("scheduler stopped")
)

const (
	defaultWorkers    = 4
	defaultQueueDepth = 64
)

type job struct {
	memoID string
	userID string
}

// SchedulerConfig sizes the worker pool.
type SchedulerConfig struct {
	Workers    int
	QueueDepth int
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// Scheduler feeds analysis jobs to a fixed worker pool over a bounded
// queue. Enqueueing never blocks; a full queue is an explicit error the
// caller can surface.
type Scheduler struct {
	svc     *Service
	queue   chan job
	metrics *metrics.Metrics
	logger  *zap.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler builds the scheduler and starts its workers.
func NewScheduler(svc *Service, cfg SchedulerConfig) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = defaultQueueDepth
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		svc:     svc,
		queue:   make(chan job, cfg.QueueDepth),
		metrics: cfg.Metrics,
		logger:  logger.Named("scheduler"),
		stopCh:  make(chan struct{}),
	}
	for i := 0; i < cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	return s
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case j := <-s.queue:
			ctx := context.Background()
			if err := s.svc.Analyze(ctx, j.memoID, j.userID); err != nil {
				s.logger.Error("analysis job failed",
					zap.Int("worker", id),
					zap.String("memo_id", j.memoID),
					zap.Error(err))
			}
		}
	}
}

// Schedule enqueues a fresh analysis for the memo.
func (s *Scheduler) Schedule(ctx context.Context, memoID, userID string) error {
	select {
	case <-s.stopCh:
		return ErrStopped
	default:
	}
	select {
	case s.queue <- job{memoID: memoID, userID: userID}:
		s.metrics.IncScheduled()
		return nil
	default:
		s.metrics.IncQueueRejected()
		return ErrQueueFull
	}
}

// Reanalyze resets a finished memo back to pending and schedules it again.
// A memo still being analyzed is rejected unless force is set; force exists
// for jobs orphaned by a crash.
func (s *Scheduler) Reanalyze(ctx context.Context, memoID, userID string, force bool) error {
	m, err := s.svc.store.GetMemo(ctx, memoID)
	if err != nil {
		return fmt.Errorf("load memo %s: %w", memoID, err)
	}
	if m.AnalysisStatus == memo.StatusAnalyzing && !force {
		return ErrAlreadyRunning
	}
	if err := s.svc.store.SetStatus(ctx, memoID, memo.StatusPending, ""); err != nil {
		return fmt.Errorf("reset status: %w", err)
	}
	return s.Schedule(ctx, memoID, userID)
}

// Stop halts the workers. Jobs already being executed finish; queued jobs
// are abandoned.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

// QueueDepth reports how many jobs are waiting.
func (s *Scheduler) QueueDepth() int {
	return len(s.queue)
}
