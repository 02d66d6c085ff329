package poller

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/speedwagon-io/amtron-exporter/internal/amtron"
	"github.com/speedwagon-io/amtron-exporter/internal/lib/logger/sl"
	"github.com/speedwagon-io/amtron-exporter/internal/metrics"
)

// Poller runs the fetch-parse-store cycle on a fixed interval. A failed
// cycle leaves the previous snapshot in place; scrapers see stale readings
// instead of an exporter outage.
type Poller struct {
	log      *slog.Logger
	client   *amtron.Client
	parser   *amtron.Parser
	store    *metrics.Store
	metrics  *metrics.PollerMetrics
	interval time.Duration
	stopCh   chan struct{}

	consecutiveFailures atomic.Int64
}

func New(
	log *slog.Logger,
	client *amtron.Client,
	parser *amtron.Parser,
	store *metrics.Store,
	m *metrics.PollerMetrics,
	interval time.Duration,
) *Poller {
	return &Poller{
		log:      log,
		client:   client,
		parser:   parser,
		store:    store,
		metrics:  m,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start blocks, polling the charger until the context is cancelled or Stop
// is called.
func (p *Poller) Start(ctx context.Context) {
	p.log.Info("starting poller", slog.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.PollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			p.log.Info("context cancelled, stopping poller")
			return
		case <-p.stopCh:
			p.log.Info("stop signal received, stopping poller")
			return
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

func (p *Poller) Stop() {
	select {
	case <-p.stopCh:
	default:
		close(p.stopCh)
	}
	if err := p.client.Close(); err != nil {
		p.log.Error("failed to close device client", sl.Err(err))
	}
}

// ConsecutiveFailures reports how many poll cycles failed in a row. Reset
// on the next success.
func (p *Poller) ConsecutiveFailures() int64 {
	return p.consecutiveFailures.Load()
}

// PollOnce runs a single fetch-parse-store cycle. A cycle is bounded by the
// poll interval so it can never overrun into the next tick.
func (p *Poller) PollOnce(ctx context.Context) {
	log := p.log.With(slog.String("cycle_id", uuid.New().String()))

	cycleCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	raw, err := p.client.Fetch(cycleCtx)
	if err != nil {
		p.recordFailure(log, metrics.CycleResultFetchError, err)
		return
	}

	snap, err := p.parser.Parse(raw)
	if err != nil {
		p.recordFailure(log, metrics.CycleResultParseError, err)
		return
	}

	p.store.Replace(snap)
	p.consecutiveFailures.Store(0)
	p.metrics.Up.Set(1)
	p.metrics.ConsecutiveFailures.Set(0)
	p.metrics.Cycles.WithLabelValues(metrics.CycleResultSuccess).Inc()

	log.Debug("snapshot updated",
		slog.Time("fetched_at", snap.FetchedAt),
		slog.String("connector_status", string(snap.ConnectorStatus)),
	)
}

func (p *Poller) recordFailure(log *slog.Logger, result string, err error) {
	failures := p.consecutiveFailures.Add(1)
	p.metrics.Up.Set(0)
	p.metrics.ConsecutiveFailures.Set(float64(failures))
	p.metrics.Cycles.WithLabelValues(result).Inc()

	log.Error("poll cycle failed, keeping previous snapshot",
		slog.String("result", result),
		slog.Int64("consecutive_failures", failures),
		sl.Err(err),
	)
}
