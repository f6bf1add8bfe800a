package probe

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"devicemonitor/internal/models"
)

// Simulated answers probes after a random delay with a random verdict.
type Simulated struct {
	MinDelay     time.Duration
	MaxDelay     time.Duration
	SuccessRatio float64

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimulated creates a simulated prober. Delays are drawn uniformly from
// [minDelay, maxDelay]; a probe succeeds with probability successRatio.
func NewSimulated(minDelay, maxDelay time.Duration, successRatio float64) *Simulated {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Simulated{
		MinDelay:     minDelay,
		MaxDelay:     maxDelay,
		SuccessRatio: successRatio,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Probe waits for the simulated latency and returns a random verdict.
func (s *Simulated) Probe(ctx context.Context, device models.Device) (Verdict, error) {
	s.mu.Lock()
	delay := s.MinDelay
	if spread := s.MaxDelay - s.MinDelay; spread > 0 {
		delay += time.Duration(s.rnd.Int63n(int64(spread)))
	}
	reachable := s.rnd.Float64() < s.SuccessRatio
	s.mu.Unlock()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return Unreachable, fmt.Errorf("probe %s: %w", device.Address, ctx.Err())
	}

	if reachable {
		return Reachable, nil
	}
	return Unreachable, nil
}
