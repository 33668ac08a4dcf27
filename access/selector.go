package access

import (
	"context"
	"sync"
	"time"

	"github.com/flowmint/flowpay/logger"
	"github.com/flowmint/flowpay/types"
)

// Selector maintains the currently healthy access endpoint. The cached
// choice is re-probed before reuse and replaced by walking the configured
// endpoints in priority order when it fails. One Selector is constructed per
// process and shared by reference; the mutex keeps concurrent callers from
// flapping the cache.
type Selector struct {
	mu        sync.Mutex
	endpoints []string
	cached    string

	timeout time.Duration
	log     logger.Logger
}

// NewSelector builds a selector over the configured endpoints, probed in the
// order given.
func NewSelector(endpoints []string, timeout time.Duration, log logger.Logger) *Selector {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Selector{
		endpoints: endpoints,
		timeout:   timeout,
		log:       log,
	}
}

// WorkingEndpoint returns the cached endpoint if its liveness probe still
// succeeds, otherwise the first configured endpoint that answers. A
// NO_ENDPOINT error means every endpoint failed; callers must treat that as
// hard unavailability rather than retry indefinitely.
func (s *Selector) WorkingEndpoint(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != "" {
		if s.probe(ctx, s.cached) {
			return s.cached, nil
		}
		s.log.Warn("cached endpoint failed probe", map[string]any{"endpoint": s.cached})
		s.cached = ""
	}

	for _, endpoint := range s.endpoints {
		if s.probe(ctx, endpoint) {
			s.cached = endpoint
			return endpoint, nil
		}
	}

	s.log.Error("no working access endpoints", map[string]any{"tried": len(s.endpoints)})
	return "", types.NewError(types.ErrNoEndpoint, "all access endpoints are unavailable")
}

// Client returns a client bound to a working endpoint.
func (s *Selector) Client(ctx context.Context) (*Client, error) {
	endpoint, err := s.WorkingEndpoint(ctx)
	if err != nil {
		return nil, err
	}
	return NewClient(endpoint, s.timeout, s.log), nil
}

// Invalidate clears the cache if it still points at the given endpoint.
// Callers that observe a failure on a cached endpoint must invalidate it
// before asking the selector again.
func (s *Selector) Invalidate(endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached == endpoint {
		s.cached = ""
	}
}

func (s *Selector) probe(ctx context.Context, endpoint string) bool {
	client := NewClient(endpoint, s.timeout, logger.NoopLogger{})
	header, err := client.LatestSealedBlock(ctx)
	if err != nil {
		return false
	}
	s.log.Debug("endpoint probe succeeded", map[string]any{
		"endpoint": endpoint,
		"height":   header.Height,
	})
	return true
}
