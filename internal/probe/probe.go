// Package probe defines the reachability check the monitor depends on.
package probe

import (
	"context"
	"fmt"
	"time"

	"devicemonitor/internal/models"
)

// Verdict is the binary outcome of a probe.
type Verdict bool

const (
	Reachable   Verdict = true
	Unreachable Verdict = false
)

// Status maps a verdict onto a device status.
func (v Verdict) Status() models.Status {
	if v == Reachable {
		return models.StatusOnline
	}
	return models.StatusOffline
}

// Prober checks whether a device is reachable. Implementations must honour
// ctx and should bound their own latency.
type Prober interface {
	Probe(ctx context.Context, device models.Device) (Verdict, error)
}

// Func adapts a plain function to the Prober interface.
type Func func(ctx context.Context, device models.Device) (Verdict, error)

// Probe calls f.
func (f Func) Probe(ctx context.Context, device models.Device) (Verdict, error) {
	return f(ctx, device)
}

// WithTimeout bounds every probe made through p. A non-positive timeout
// returns p unchanged.
func WithTimeout(p Prober, timeout time.Duration) Prober {
	if timeout <= 0 {
		return p
	}
	return Func(func(ctx context.Context, device models.Device) (Verdict, error) {
		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		v, err := p.Probe(probeCtx, device)
		if err != nil {
			return Unreachable, err
		}
		if probeCtx.Err() != nil {
			return Unreachable, fmt.Errorf("probe %s: %w", device.Address, probeCtx.Err())
		}
		return v, nil
	})
}
