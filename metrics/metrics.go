// Package metrics defines the recorder interface flowpay components report
// through, with prometheus and noop implementations.
package metrics

import "time"

// Event names reported by the pipeline.
const (
	EventVerificationOK     = "verification_ok"
	EventVerificationFailed = "verification_failed"
	EventSaleRecorded       = "sale_recorded"
	EventDuplicateSale      = "duplicate_sale"
	EventPollSealed         = "poll_sealed"
	EventPollExpired        = "poll_expired"
	EventPollTimeout        = "poll_timeout"
	EventEndpointFailover   = "endpoint_failover"
	EventImageGenerated     = "image_generated"
	EventImageFailed        = "image_failed"
)

// Recorder counts pipeline events and observes operation latencies.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// NoopRecorder drops all observations.
type NoopRecorder struct{}

func (NoopRecorder) IncCounter(string, map[string]string)                    {}
func (NoopRecorder) ObserveLatency(string, time.Duration, map[string]string) {}
