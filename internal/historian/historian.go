// internal/historian/historian.go is an asynchronous historian that pops game actions from a
// queue and persists them in batches.
package historian

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/zionscheck/internal/cache"
	"github.com/jason-s-yu/zionscheck/internal/game"
	"github.com/sirupsen/logrus"
)

// Options tunes a Service. Zero values fall back to the defaults below.
type Options struct {
	BatchSize         int
	FlushInterval     time.Duration
	InactivityTimeout time.Duration
	CheckInterval     time.Duration
	PopTimeout        time.Duration
	Logger            *logrus.Logger
}

const maxBacklogBatches = 10

// Service batches records from a Source into a Sink and marks games abandoned after a period
// without actions.
type Service struct {
	source Source
	sink   Sink
	opts   Options
	log    *logrus.Entry

	lastActivity sync.Map // map[string]time.Time keyed by game code

	batchMu sync.Mutex
	batch   []cache.GameActionRecord
}

func NewService(source Source, sink Sink, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 500 * time.Millisecond
	}
	if opts.InactivityTimeout <= 0 {
		opts.InactivityTimeout = 10 * time.Minute
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = time.Minute
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = 3 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Service{
		source: source,
		sink:   sink,
		opts:   opts,
		log:    opts.Logger.WithField("component", "historian"),
		batch:  make([]cache.GameActionRecord, 0, opts.BatchSize),
	}
}

// Run reads until ctx is cancelled, then flushes whatever is still buffered.
func (s *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.flushLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.inactivityLoop(ctx)
	}()

	s.log.Info("historian started")
	s.readLoop(ctx)
	wg.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.flush(flushCtx)
	s.log.Info("historian stopped")
}

// Pending returns the number of buffered records not yet written.
func (s *Service) Pending() int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return len(s.batch)
}

// readLoop blocks on the source. Flushing runs on its own ticker, so a long pop never delays
// buffered records past the flush interval.
func (s *Service) readLoop(ctx context.Context) {
	for ctx.Err() == nil {
		rec, err := s.source.Pop(ctx, s.opts.PopTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			s.log.WithError(err).Warn("pop action")
			continue
		}
		if rec == nil {
			continue
		}
		s.track(*rec, time.Now())
		s.appendToBatch(ctx, *rec)
	}
}

func (s *Service) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flush(ctx)
		}
	}
}

// track records activity for the game. A finished game is no longer watched.
func (s *Service) track(rec cache.GameActionRecord, at time.Time) {
	if rec.ActionType == string(game.EventGameOver) {
		s.lastActivity.Delete(rec.GameCode)
		return
	}
	s.lastActivity.Store(rec.GameCode, at)
}

func (s *Service) appendToBatch(ctx context.Context, rec cache.GameActionRecord) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	s.batch = append(s.batch, rec)
	if len(s.batch) >= s.opts.BatchSize {
		s.flushLocked(ctx)
	}
}

func (s *Service) flush(ctx context.Context) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	s.flushLocked(ctx)
}

// flushLocked writes the buffered batch in one call. On failure the records stay buffered for
// the next flush, up to maxBacklogBatches batches. Assumes batchMu is held.
func (s *Service) flushLocked(ctx context.Context) {
	if len(s.batch) == 0 {
		return
	}
	out := make([]cache.GameActionRecord, len(s.batch))
	copy(out, s.batch)

	if err := s.sink.InsertGameActions(ctx, out); err != nil {
		s.log.WithError(err).WithField("count", len(out)).Error("flush actions")
		if limit := s.opts.BatchSize * maxBacklogBatches; len(s.batch) > limit {
			dropped := len(s.batch) - limit
			s.batch = append(s.batch[:0], s.batch[dropped:]...)
			s.log.WithField("dropped", dropped).Warn("action backlog full, dropping oldest records")
		}
		return
	}
	s.batch = s.batch[:0]
	s.log.WithField("count", len(out)).Debug("flushed actions")
}

func (s *Service) inactivityLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.markInactive(ctx, now)
		}
	}
}

// markInactive abandons every watched game idle longer than the inactivity timeout.
func (s *Service) markInactive(ctx context.Context, now time.Time) {
	// Buffered actions create the game row, so write them first.
	s.flush(ctx)
	s.lastActivity.Range(func(key, val interface{}) bool {
		code, ok1 := key.(string)
		last, ok2 := val.(time.Time)
		if !ok1 || !ok2 || now.Sub(last) <= s.opts.InactivityTimeout {
			return true
		}
		if err := s.sink.MarkGameAbandoned(ctx, code); err != nil {
			s.log.WithError(err).WithField("game", code).Error("mark game abandoned")
			return true
		}
		s.lastActivity.Delete(code)
		s.log.WithField("game", code).Info("marked game abandoned due to inactivity")
		return true
	})
}
