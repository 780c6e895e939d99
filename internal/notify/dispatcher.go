// Package notify formats probe results into chat messages and dispatches
// delivery through the platform adapter.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"statusninja/internal/metrics"
	"statusninja/internal/monitor"
	"statusninja/internal/transport"
	logx "statusninja/pkg/logx"
)

// utcTimeFormat matches the legacy notification timestamp
// ("Mon, 02 Jan 2006 15:04:05 GMT").
const utcTimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

type Config struct {
	RatePerSec int
}

func (c Config) withDefaults() Config {
	if c.RatePerSec <= 0 {
		c.RatePerSec = 3
	}
	return c
}

// TextSender is the outbound primitive the dispatcher needs.
type TextSender interface {
	SendText(ctx context.Context, chatID int64, text string, opt *transport.SendOptions) error
}

// Dispatcher renders and delivers messages. Sends are rate-limited with a
// token bucket so a large fan-out does not trip platform flood limits.
type Dispatcher struct {
	sender  TextSender
	limiter *rate.Limiter
	log     logx.Logger
}

func NewDispatcher(cfg Config, sender TextSender, log logx.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		log:     log,
	}
}

// NotifyStatus delivers one health-check notification. Fire-and-forget:
// a transport failure is logged and swallowed so one unreachable chat
// never aborts a sweep or affects other chats.
func (d *Dispatcher) NotifyStatus(ctx context.Context, chatID int64, endpointName, url string, res monitor.ProbeResult, at time.Time) {
	text := FormatStatus(endpointName, url, res, at)
	if err := d.Notify(ctx, chatID, text); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		d.log.Warn("status notification failed",
			logx.Int64("chat_id", chatID),
			logx.String("endpoint", endpointName),
			logx.Err(err))
		return
	}
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
}

// Notify is the raw delivery primitive, used for command replies, denial
// messages and the welcome text.
func (d *Dispatcher) Notify(ctx context.Context, chatID int64, text string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	return d.sender.SendText(ctx, chatID, text, &transport.SendOptions{DisablePreview: true})
}

// FormatStatus renders the deterministic multi-line status message.
// The HTTP status code is included only when greater than 0.
func FormatStatus(endpointName, url string, res monitor.ProbeResult, at time.Time) string {
	icon := "✅"
	if res.Classification != monitor.ClassHealthy {
		icon = "❌"
	}
	status := fmt.Sprintf("%s %s", icon, res.Classification)
	if res.StatusCode > 0 {
		status += fmt.Sprintf(" (HTTP %d)", res.StatusCode)
	}

	var b strings.Builder
	b.WriteString("Status Bot - API Health Check\n")
	b.WriteString("API: " + endpointName + "\n")
	b.WriteString("Status: " + status + "\n")
	b.WriteString("URL: " + url + "\n")
	b.WriteString("Time: " + at.UTC().Format(utcTimeFormat))
	return b.String()
}
