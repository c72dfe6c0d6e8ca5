package tiles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// DefaultSweepInterval is how often the sweeper looks for newly unlocked capsules.
const DefaultSweepInterval = 5 * time.Minute

var errMissingSweepService = errors.New("capsule sweeper: tile service is required")

// CapsuleSweeperConfig configures the periodic capsule unlock check.
type CapsuleSweeperConfig struct {
	Service    *Service
	Interval   time.Duration
	Logger     *zap.Logger
	OnUnlocked func([]CapsuleView)
}

// CapsuleSweeper periodically stamps capsules whose unlock time has passed and
// reports them through OnUnlocked. It only drives notifications.
type CapsuleSweeper struct {
	service    *Service
	interval   time.Duration
	logger     *zap.Logger
	onUnlocked func([]CapsuleView)
}

// NewCapsuleSweeper validates the configuration.
func NewCapsuleSweeper(cfg CapsuleSweeperConfig) (*CapsuleSweeper, error) {
	if cfg.Service == nil {
		return nil, errMissingSweepService
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &CapsuleSweeper{
		service:    cfg.Service,
		interval:   interval,
		logger:     logger,
		onUnlocked: cfg.OnUnlocked,
	}, nil
}

// Run schedules the sweep and blocks until ctx is done.
func (s *CapsuleSweeper) Run(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("capsule sweeper: create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			s.SweepOnce(ctx)
		}),
		gocron.WithName("capsule-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("capsule sweeper: schedule job: %w", err)
	}

	scheduler.Start()
	s.logger.Info("capsule sweeper started", zap.Duration("interval", s.interval))

	<-ctx.Done()

	if err := scheduler.Shutdown(); err != nil {
		return fmt.Errorf("capsule sweeper: shutdown: %w", err)
	}
	return nil
}

// SweepOnce runs a single sweep and returns the number of capsules it unlocked.
func (s *CapsuleSweeper) SweepOnce(ctx context.Context) int {
	unlocked, err := s.service.SweepUnlocked(ctx)
	if err != nil {
		s.logger.Warn("capsule sweep failed", zap.Error(err))
	}
	if len(unlocked) == 0 {
		return 0
	}
	s.logger.Info("time capsules unlocked", zap.Int("count", len(unlocked)))
	if s.onUnlocked != nil {
		s.onUnlocked(unlocked)
	}
	return len(unlocked)
}
