package similarity

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	merrors "github.com/Ramsey-B/matcher/pkg/errors"
	"github.com/Ramsey-B/matcher/pkg/metrics"
	"github.com/Ramsey-B/matcher/pkg/models"
	mredis "github.com/Ramsey-B/matcher/pkg/redis"
)

// Recomputer refreshes the edges of one subject.
type Recomputer interface {
	Recompute(ctx context.Context, subjectID int64) ([]models.SimilarityEdge, error)
}

// Locker serializes recomputes of one subject across workers.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error
}

type SchedulerConfig struct {
	Workers   int
	QueueSize int
	// Timeout bounds one recompute.
	Timeout time.Duration
	LockTTL time.Duration
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Workers:   2,
		QueueSize: 1024,
		Timeout:   30 * time.Second,
		LockTTL:   time.Minute,
	}
}

// Scheduler recomputes similarity edges in the background after resolver decisions.
// Enqueue never blocks: when the queue is full the request is dropped, and a subject
// already waiting in the queue is not queued twice.
type Scheduler struct {
	index  Recomputer
	locker Locker
	config SchedulerConfig
	logger ectologger.Logger

	queue   chan int64
	mu      sync.Mutex
	pending map[int64]struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. locker may be nil when a single process recomputes.
func NewScheduler(index Recomputer, locker Locker, config SchedulerConfig, logger ectologger.Logger) *Scheduler {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.QueueSize < 1 {
		config.QueueSize = 1
	}
	return &Scheduler{
		index:   index,
		locker:  locker,
		config:  config,
		logger:  logger,
		queue:   make(chan int64, config.QueueSize),
		pending: map[int64]struct{}{},
	}
}

// Observe queues a recompute of every object touched by a decision. Losers of a merge are
// queued too, which drops their edges.
func (s *Scheduler) Observe(_ context.Context, _ models.Scrap, decision models.Decision) {
	s.Enqueue(decision.Affected()...)
}

// Enqueue queues subjects for recompute and reports how many were accepted.
func (s *Scheduler) Enqueue(subjectIDs ...int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	accepted := 0
	for _, id := range subjectIDs {
		if _, ok := s.pending[id]; ok {
			continue
		}
		select {
		case s.queue <- id:
			s.pending[id] = struct{}{}
			metrics.SimilarityQueueDepth.Inc()
			accepted++
		default:
			metrics.SimilarityQueueDropped.Inc()
			s.logger.WithField("subject_id", id).Debug("Similarity queue full, dropping recompute")
		}
	}
	return accepted
}

// Start launches the workers. They run until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for n := 0; n < s.config.Workers; n++ {
		s.wg.Add(1)
		go s.work(ctx)
	}
	s.logger.WithField("workers", s.config.Workers).Info("Similarity scheduler started")
	return nil
}

// Stop halts the workers and waits for in-flight recomputes. Queued subjects are dropped.
func (s *Scheduler) Stop(_ context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("Similarity scheduler stopped")
	return nil
}

func (s *Scheduler) work(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-s.queue:
			s.mu.Lock()
			delete(s.pending, id)
			s.mu.Unlock()
			metrics.SimilarityQueueDepth.Dec()

			s.recompute(ctx, id)
		}
	}
}

func (s *Scheduler) recompute(ctx context.Context, subjectID int64) {
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}
	log := s.logger.WithContext(ctx).WithField("subject_id", subjectID)

	run := func() error {
		_, err := s.index.Recompute(ctx, subjectID)
		return err
	}

	var err error
	if s.locker != nil {
		err = s.locker.WithLock(ctx, "similarity:"+strconv.FormatInt(subjectID, 10), s.config.LockTTL, run)
	} else {
		err = run()
	}

	switch {
	case err == nil:
	case errors.Is(err, mredis.ErrLockNotAcquired):
		log.Debug("Recompute already running elsewhere, skipping")
	case merrors.IsNotFound(err):
		log.Debug("Dropped edges of a removed object")
	default:
		log.WithError(err).Warn("Similarity recompute failed")
	}
}
