package schedule

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ent0n29/callassist/internal/callstate"
	"github.com/ent0n29/callassist/internal/observability"
	"github.com/ent0n29/callassist/internal/policy"
)

// FireFunc places the call for a due request.
type FireFunc func(ctx context.Context, req Request) error

// Scheduler fires the stored request once its time has come. A request is
// removed from the store before it fires, so it fires at most once.
type Scheduler struct {
	store   Store
	fire    FireFunc
	poll    time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
	wake    chan struct{}
}

func NewScheduler(store Store, fire FireFunc, poll time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Scheduler {
	if poll <= 0 {
		poll = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		store:   store,
		fire:    fire,
		poll:    poll,
		logger:  logger,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
		wake:    make(chan struct{}, 1),
	}
}

// Schedule stores a new request, replacing any earlier one. A time in the
// past fires on the next check.
func (s *Scheduler) Schedule(ctx context.Context, number, reason string, fireAt time.Time) (Request, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return Request{}, callstate.ErrEmptyNumber
	}
	req := Request{
		ID:        uuid.NewString(),
		Number:    number,
		Reason:    strings.TrimSpace(reason),
		FireAt:    fireAt.UTC(),
		CreatedAt: s.now(),
	}
	if err := s.store.Save(ctx, req); err != nil {
		return Request{}, err
	}
	s.metrics.ObserveScheduled("scheduled")
	s.logger.Info("call scheduled",
		zap.String("id", req.ID),
		zap.String("remote", policy.RedactNumber(number)),
		zap.Time("fire_at", req.FireAt))
	s.nudge()
	return req, nil
}

func (s *Scheduler) Get(ctx context.Context) (Request, error) {
	return s.store.Load(ctx)
}

// Cancel removes the request currently scheduled. A request saved while the
// cancel runs is left in place.
func (s *Scheduler) Cancel(ctx context.Context) error {
	req, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	deleted, err := s.store.DeleteIf(ctx, req.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNoSchedule
	}
	s.metrics.ObserveScheduled("cancelled")
	return nil
}

// Run checks the store until ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		s.checkDue(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-s.wake:
		}
	}
}

func (s *Scheduler) nudge() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) checkDue(ctx context.Context) {
	req, err := s.store.Load(ctx)
	if errors.Is(err, ErrNoSchedule) {
		return
	}
	if err != nil {
		s.logger.Warn("load schedule failed", zap.Error(err))
		return
	}
	if s.now().Before(req.FireAt) {
		return
	}
	deleted, err := s.store.DeleteIf(ctx, req.ID)
	if err != nil {
		s.logger.Warn("clear fired schedule failed", zap.Error(err))
		return
	}
	if !deleted {
		// Replaced since it was loaded; the newer request waits for its own time.
		return
	}
	if strings.TrimSpace(req.Number) == "" {
		s.metrics.ObserveScheduled("skipped")
		return
	}
	if err := s.fire(ctx, req); err != nil {
		s.metrics.ObserveScheduled("fire_failed")
		s.logger.Warn("scheduled call failed", zap.String("id", req.ID), zap.Error(err))
		return
	}
	s.metrics.ObserveScheduled("fired")
	s.logger.Info("scheduled call fired", zap.String("id", req.ID))
}
