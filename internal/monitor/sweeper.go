package monitor

import (
	"context"
	"time"

	"statusninja/internal/metrics"
	"statusninja/internal/storage"
	logx "statusninja/pkg/logx"
)

// EndpointSource lists the endpoints a sweep iterates over.
type EndpointSource interface {
	ListEndpoints(ctx context.Context) ([]storage.Endpoint, error)
}

// StatusProber classifies one endpoint. Implementations never fail; every
// transport problem is a ClassError result.
type StatusProber interface {
	Probe(ctx context.Context, url string) ProbeResult
}

// StatusNotifier delivers one status notification. Delivery is
// fire-and-forget: implementations log and swallow transport failures.
type StatusNotifier interface {
	NotifyStatus(ctx context.Context, chatID int64, endpointName, url string, res ProbeResult, at time.Time)
}

// SubscriberResolver maps an endpoint id to its live subscriber chat ids.
type SubscriberResolver interface {
	ResolveSubscribers(ctx context.Context, endpointID string) ([]int64, error)
}

// Sweeper runs one full pass over all endpoints: probe, resolve, notify.
//
// The central correctness property: no single endpoint's probe or
// notification failure may prevent any other endpoint from being
// processed. There is no persisted last-status; every sweep re-notifies
// every subscriber.
type Sweeper struct {
	endpoints EndpointSource
	prober    StatusProber
	resolver  SubscriberResolver
	notifier  StatusNotifier
	log       logx.Logger

	now func() time.Time
}

func NewSweeper(endpoints EndpointSource, prober StatusProber, resolver SubscriberResolver, notifier StatusNotifier, log logx.Logger) *Sweeper {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sweeper{
		endpoints: endpoints,
		prober:    prober,
		resolver:  resolver,
		notifier:  notifier,
		log:       log,
		now:       time.Now,
	}
}

// RunSweep lists all endpoints and processes each independently, in store
// order. A listing failure aborts the whole sweep (nothing to iterate); a
// resolver failure degrades that one endpoint to zero subscribers.
func (s *Sweeper) RunSweep(ctx context.Context) {
	start := s.now()
	endpoints, err := s.endpoints.ListEndpoints(ctx)
	if err != nil {
		s.log.Error("sweep aborted: listing endpoints failed", logx.Err(err))
		return
	}

	for _, e := range endpoints {
		s.sweepOne(ctx, e)
	}

	metrics.SweepsTotal.Inc()
	s.log.Info("sweep finished",
		logx.Int("endpoints", len(endpoints)),
		logx.Duration("took", time.Since(start)))
}

func (s *Sweeper) sweepOne(ctx context.Context, e storage.Endpoint) {
	res := s.prober.Probe(ctx, e.URL)

	chatIDs, err := s.resolver.ResolveSubscribers(ctx, e.ID)
	if err != nil {
		// Degrade to zero subscribers for this endpoint only.
		s.log.Warn("resolving subscribers failed; skipping notifications",
			logx.String("endpoint", e.Name), logx.Err(err))
		return
	}

	at := s.now()
	for _, chatID := range chatIDs {
		s.notifier.NotifyStatus(ctx, chatID, e.Name, e.URL, res, at)
	}

	s.log.Debug("endpoint swept",
		logx.String("endpoint", e.Name),
		logx.String("classification", string(res.Classification)),
		logx.Int("status", res.StatusCode),
		logx.Int("subscribers", len(chatIDs)))
}
