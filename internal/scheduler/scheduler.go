package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"go-fundo-ops/internal/model"
	"go-fundo-ops/internal/repository/mongodb"
)

// DigestBuilder produces the daily alert digest.
type DigestBuilder interface {
	Digest(ctx context.Context) (*model.AlertDigest, error)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron    *cron.Cron
	spec    string
	builder DigestBuilder
	archive mongodb.DigestArchive
	timeout time.Duration
	logger  *zap.Logger
}

// NewScheduler creates a scheduler running the digest on spec (standard
// 5-field cron) in loc. archive may be nil; the digest is then only logged.
func NewScheduler(spec string, loc *time.Location, builder DigestBuilder, archive mongodb.DigestArchive, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		spec:    spec,
		builder: builder,
		archive: archive,
		timeout: 2 * time.Minute,
		logger:  logger,
	}
}

// Start registers the digest job and starts the cron loop.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("digest_cron", s.spec))

	if _, err := s.cron.AddFunc(s.spec, s.runDigest); err != nil {
		s.logger.Error("failed to schedule alert digest", zap.Error(err))
		return err
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running job.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.RunDigest(ctx); err != nil {
		s.logger.Error("alert digest failed", zap.Error(err))
	}
}

// RunDigest builds, logs and archives one digest.
func (s *Scheduler) RunDigest(ctx context.Context) (*model.AlertDigest, error) {
	s.logger.Info("generating alert digest")

	digest, err := s.builder.Digest(ctx)
	if err != nil {
		return nil, err
	}

	level := s.logger.Info
	if !digest.Empty() {
		level = s.logger.Warn
	}
	level("alert digest",
		zap.Time("date", digest.Date),
		zap.String("inventory_value", digest.InventoryValue),
		zap.Int64("active_orders", digest.ActiveOrders),
		zap.Int("low_stock", len(digest.LowStock)),
		zap.Int("expiring", len(digest.Expiring)),
		zap.Int("trap_alerts", len(digest.TrapAlerts)),
	)

	if s.archive != nil {
		if err := s.archive.SaveDigest(ctx, *digest); err != nil {
			return digest, err
		}
		s.logger.Info("alert digest archived")
	}
	return digest, nil
}
