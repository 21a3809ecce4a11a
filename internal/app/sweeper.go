package app

import (
	"context"
	"sync"
	"time"

	"github.com/dmorozov-pr/identity-service/internal/config"
	"github.com/dmorozov-pr/identity-service/internal/service"
	"go.uber.org/zap"
)

// sweepTask is one periodic cleanup job. A failed pass reschedules after
// the retry backoff instead of waiting out the full interval.
type sweepTask struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) (int64, error)
}

// Sweeper owns the background cleanup loops: expired one-time codes,
// retired refresh tokens, and verification and reset tokens past their
// audit retention. Sweeps are idempotent; a missed run only delays
// housekeeping.
type Sweeper struct {
	tasks   []sweepTask
	backoff time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewSweeper creates the sweeper over the credential engines.
func NewSweeper(
	cfg config.SweeperConfig,
	tokenService service.TokenService,
	otpService service.OTPService,
	verificationService service.EmailVerificationService,
	resetService service.PasswordResetService,
	logger *zap.Logger,
) *Sweeper {
	return &Sweeper{
		backoff: cfg.RetryBackoff.Duration,
		logger:  logger,
		tasks: []sweepTask{
			{name: "otp_codes", interval: cfg.OTPInterval.Duration, run: otpService.CleanupExpired},
			{name: "refresh_tokens", interval: cfg.RefreshInterval.Duration, run: tokenService.CleanupRetired},
			{name: "verification_tokens", interval: cfg.VerifyInterval.Duration, run: verificationService.CleanupExpired},
			{name: "reset_tokens", interval: cfg.ResetInterval.Duration, run: resetService.CleanupRetired},
		},
	}
}

// Start launches one loop per task. Loops stop when ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.loop(ctx, task)
	}
}

// Wait blocks until every loop has exited.
func (s *Sweeper) Wait() {
	s.wg.Wait()
}

func (s *Sweeper) loop(ctx context.Context, task sweepTask) {
	defer s.wg.Done()

	timer := time.NewTimer(task.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		next := task.interval
		deleted, err := task.run(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("sweep failed",
				zap.String("task", task.name),
				zap.Error(err),
			)
			next = s.backoff
		} else if deleted > 0 {
			s.logger.Info("sweep completed",
				zap.String("task", task.name),
				zap.Int64("deleted", deleted),
			)
		}

		timer.Reset(next)
	}
}
