// Package monitor implements the health-check pipeline: probing endpoints,
// resolving subscribers and orchestrating the sweep.
package monitor

import (
	"context"
	"net/http"
	"time"

	"statusninja/internal/metrics"
	logx "statusninja/pkg/logx"
)

// Classification is the outcome of a single probe.
type Classification string

const (
	ClassHealthy   Classification = "healthy"
	ClassUnhealthy Classification = "unhealthy"
	ClassError     Classification = "error"
)

// ProbeResult carries the classification and, for healthy/unhealthy, the
// HTTP status code. A failed request reports code 0.
type ProbeResult struct {
	Classification Classification
	StatusCode     int
}

const defaultUserAgent = "statusninja/1.0"

type ProberConfig struct {
	Timeout   time.Duration
	UserAgent string
}

func (c ProberConfig) withDefaults() ProberConfig {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	return c
}

// Prober issues one GET per endpoint and classifies the outcome.
// It never returns an error: every failure downgrades to ClassError.
type Prober struct {
	client    *http.Client
	userAgent string
	log       logx.Logger
}

func NewProber(cfg ProberConfig, log logx.Logger) *Prober {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Prober{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		log:       log,
	}
}

// Probe performs a single GET against url. No retries, no side effects
// beyond the one network call.
func (p *Prober) Probe(ctx context.Context, url string) ProbeResult {
	start := time.Now()
	res := p.probe(ctx, url)
	metrics.ProbeDuration.Observe(time.Since(start).Seconds())
	metrics.ProbesTotal.WithLabelValues(string(res.Classification)).Inc()
	return res
}

func (p *Prober) probe(ctx context.Context, url string) ProbeResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		p.log.Debug("probe request build failed", logx.String("url", url), logx.Err(err))
		return ProbeResult{Classification: ClassError}
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Debug("probe failed", logx.String("url", url), logx.Err(err))
		return ProbeResult{Classification: ClassError}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return ProbeResult{Classification: ClassHealthy, StatusCode: resp.StatusCode}
	}
	return ProbeResult{Classification: ClassUnhealthy, StatusCode: resp.StatusCode}
}
