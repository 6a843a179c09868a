package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/reconhub/reconhub/internal/ingestion"
	"github.com/reconhub/reconhub/internal/metrics"
	"github.com/reconhub/reconhub/internal/models"
)

// NetworthSource fetches networth-over-time samples for one kingdom.
type NetworthSource interface {
	FetchNetworthOverTime(ctx context.Context, token string, kingdom models.TrackedKingdom) ([]models.NetworthPoint, error)
}

// NetworthSink persists networth samples.
type NetworthSink interface {
	InsertNetworthPoints(ctx context.Context, points []models.NetworthPoint) error
}

// NetworthPoller periodically samples networth history for a fixed set of
// tracked kingdoms. One kingdom failing does not stop the others.
type NetworthPoller struct {
	source    NetworthSource
	sink      NetworthSink
	collector *metrics.Collector
	logger    *slog.Logger
	stopChan  chan struct{}
	interval  time.Duration
	token     string
	tracked   []models.TrackedKingdom
	retry     ingestion.RetryPolicy
}

// NewNetworthPoller creates a networth poller over the given tracked kingdoms.
func NewNetworthPoller(
	source NetworthSource,
	sink NetworthSink,
	collector *metrics.Collector,
	logger *slog.Logger,
	interval time.Duration,
	token string,
	tracked []models.TrackedKingdom,
) *NetworthPoller {
	if interval <= 0 {
		interval = 4 * time.Minute
	}
	return &NetworthPoller{
		source:    source,
		sink:      sink,
		collector: collector,
		logger:    logger,
		stopChan:  make(chan struct{}),
		interval:  interval,
		token:     token,
		tracked:   tracked,
		retry:     ingestion.DefaultRetryPolicy(),
	}
}

// Start begins the poll loop. It blocks until Stop is called or the context
// is cancelled.
func (p *NetworthPoller) Start(ctx context.Context) {
	p.logger.Info("starting networth poller",
		"interval", p.interval,
		"tracked", len(p.tracked),
	)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.pollOnce(ctx)

	for {
		select {
		case <-ticker.C:
			p.pollOnce(ctx)
		case <-p.stopChan:
			p.logger.Info("networth poller stopped")
			return
		case <-ctx.Done():
			p.logger.Info("networth poller stopping due to context cancellation")
			return
		}
	}
}

// Stop stops the poller.
func (p *NetworthPoller) Stop() {
	close(p.stopChan)
}

func (p *NetworthPoller) pollOnce(ctx context.Context) {
	failed := false

	for _, kingdom := range p.tracked {
		var points []models.NetworthPoint

		err := ingestion.Retry(ctx, p.retry, func(ctx context.Context) error {
			var fetchErr error
			points, fetchErr = p.source.FetchNetworthOverTime(ctx, p.token, kingdom)
			return fetchErr
		})
		if err != nil {
			failed = true
			p.logger.Error("networth fetch failed", "kingdom", kingdom.Name, "error", err)
			continue
		}

		if err := p.sink.InsertNetworthPoints(ctx, points); err != nil {
			failed = true
			p.logger.Error("networth insert failed", "kingdom", kingdom.Name, "error", err)
			continue
		}

		p.logger.Debug("networth samples stored", "kingdom", kingdom.Name, "points", len(points))
	}

	if failed {
		p.collector.PollError("networth")
		return
	}
	p.collector.PollCycle("networth")
}
