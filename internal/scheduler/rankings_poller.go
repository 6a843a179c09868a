package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/reconhub/reconhub/internal/ingestion"
	"github.com/reconhub/reconhub/internal/metrics"
	"github.com/reconhub/reconhub/internal/models"
)

// RankingsSource fetches the current top-kingdoms snapshot from the game API.
type RankingsSource interface {
	FetchRankings(ctx context.Context, token string) ([]models.KingdomRank, error)
}

// RankingsSink persists a rankings snapshot.
type RankingsSink interface {
	UpsertTopKingdoms(ctx context.Context, rows []models.KingdomRank) error
}

// RankingsPoller periodically refreshes the top-kingdoms snapshot. A failed
// cycle is logged and counted; the next tick tries again.
type RankingsPoller struct {
	source    RankingsSource
	sink      RankingsSink
	collector *metrics.Collector
	logger    *slog.Logger
	stopChan  chan struct{}
	interval  time.Duration
	token     string
	retry     ingestion.RetryPolicy
}

// NewRankingsPoller creates a rankings poller. The token is optional; the
// public rankings endpoint serves without one.
func NewRankingsPoller(
	source RankingsSource,
	sink RankingsSink,
	collector *metrics.Collector,
	logger *slog.Logger,
	interval time.Duration,
	token string,
) *RankingsPoller {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &RankingsPoller{
		source:    source,
		sink:      sink,
		collector: collector,
		logger:    logger,
		stopChan:  make(chan struct{}),
		interval:  interval,
		token:     token,
		retry:     ingestion.DefaultRetryPolicy(),
	}
}

// Start begins the poll loop. It blocks until Stop is called or the context
// is cancelled.
func (p *RankingsPoller) Start(ctx context.Context) {
	p.logger.Info("starting rankings poller", "interval", p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.pollOnce(ctx)

	for {
		select {
		case <-ticker.C:
			p.pollOnce(ctx)
		case <-p.stopChan:
			p.logger.Info("rankings poller stopped")
			return
		case <-ctx.Done():
			p.logger.Info("rankings poller stopping due to context cancellation")
			return
		}
	}
}

// Stop stops the poller.
func (p *RankingsPoller) Stop() {
	close(p.stopChan)
}

func (p *RankingsPoller) pollOnce(ctx context.Context) {
	var rows []models.KingdomRank

	err := ingestion.Retry(ctx, p.retry, func(ctx context.Context) error {
		var fetchErr error
		rows, fetchErr = p.source.FetchRankings(ctx, p.token)
		return fetchErr
	})
	if err != nil {
		p.collector.PollError("rankings")
		p.logger.Error("rankings fetch failed", "error", err)
		return
	}

	if err := p.sink.UpsertTopKingdoms(ctx, rows); err != nil {
		p.collector.PollError("rankings")
		p.logger.Error("rankings upsert failed", "error", err)
		return
	}

	p.collector.PollCycle("rankings")
	p.logger.Info("rankings snapshot refreshed", "kingdoms", len(rows))
}
