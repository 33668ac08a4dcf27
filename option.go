package flowpay

import (
	"time"

	"github.com/flowmint/flowpay/logger"
	"github.com/flowmint/flowpay/metrics"
)

type Option func(*Client)

func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(c *Client) {
		c.rec = r
	}
}

// WithPollPolicy overrides the confirmation poll interval and attempt
// budget. The worst-case wait is interval times attempts.
func WithPollPolicy(interval time.Duration, attempts int) Option {
	return func(c *Client) {
		c.interval = interval
		c.attempts = attempts
	}
}

// WithRequestTimeout bounds each outbound access-layer call.
func WithRequestTimeout(t time.Duration) Option {
	return func(c *Client) {
		c.timeout = t
	}
}
