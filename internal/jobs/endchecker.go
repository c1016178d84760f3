package jobs

import (
	"context"
	"fmt"
	"time"

	"bid-broker/internal/model"
	"bid-broker/internal/notify"
	"bid-broker/internal/repository"
	"bid-broker/internal/service"

	"github.com/rs/zerolog"
)

// EndChecker periodically parks approved bid requests whose auction has
// ended into ended_check_needed. It never decides won or lost; that call
// stays with the admin.
type EndChecker struct {
	repo     repository.BidRequestRepository
	notifier service.NotificationSink
	admin    notify.AdminContact
	interval time.Duration
	logger   zerolog.Logger
}

// NewEndChecker creates a new auction-end checker.
func NewEndChecker(
	repo repository.BidRequestRepository,
	notifier service.NotificationSink,
	admin notify.AdminContact,
	interval time.Duration,
	logger zerolog.Logger,
) *EndChecker {
	return &EndChecker{
		repo:     repo,
		notifier: notifier,
		admin:    admin,
		interval: interval,
		logger:   logger.With().Str("job", "end-checker").Logger(),
	}
}

// Run ticks until the context is cancelled.
func (e *EndChecker) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.logger.Info().Dur("interval", e.interval).Msg("auction end checker started")

	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("auction end checker stopped")
			return
		case <-ticker.C:
			if marked, err := e.Tick(ctx); err != nil {
				e.logger.Error().Err(err).Msg("end check tick failed")
			} else if marked > 0 {
				e.logger.Info().Int("marked", marked).Msg("bid requests parked for outcome review")
			}
		}
	}
}

// Tick marks every ended candidate and returns how many records changed.
func (e *EndChecker) Tick(ctx context.Context) (int, error) {
	candidates, err := e.repo.ListEndedCandidates(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list ended bid requests: %w", err)
	}

	marked := 0
	for i := range candidates {
		rec := &candidates[i]
		rec.FinalStatus = model.FinalStatusEndedCheckNeeded

		if err := e.repo.Update(ctx, rec); err != nil {
			// A concurrent admin decision beat us to it; skip and move on.
			e.logger.Warn().
				Err(err).
				Str("bid_request_id", rec.ID.String()).
				Msg("skipping ended bid request")
			continue
		}
		marked++

		e.notifier.Dispatch(ctx, notify.ForAdmin(e.admin, rec, "has an ended auction awaiting an outcome"))
	}

	return marked, nil
}
