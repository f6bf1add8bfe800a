package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"devicemonitor/internal/models"
)

// CycleReport summarises one pass over a device snapshot.
type CycleReport struct {
	Started  time.Time
	Finished time.Time
	Devices  int
	Probed   int
	Skipped  int
	Aborted  bool
}

// Runner probes device snapshots through the engine.
type Runner struct {
	engine *Engine
	logger zerolog.Logger
}

// NewRunner creates a runner on top of engine.
func NewRunner(engine *Engine, logger zerolog.Logger) *Runner {
	return &Runner{engine: engine, logger: logger}
}

// RunCycle probes the snapshot strictly in order, one device at a time,
// waiting stagger between consecutive devices. The snapshot is taken by the
// caller; devices added later are left for the next cycle and devices removed
// meanwhile are skipped. Cancelling ctx abandons the rest of the cycle while
// an in-flight probe still writes back.
func (r *Runner) RunCycle(ctx context.Context, snapshot []models.Device, stagger time.Duration) CycleReport {
	report := CycleReport{Started: time.Now(), Devices: len(snapshot)}

loop:
	for i, device := range snapshot {
		if ctx.Err() != nil {
			report.Aborted = true
			break
		}

		err := r.engine.Check(ctx, device.ID)
		switch {
		case err == nil:
			report.Probed++
		case errors.Is(err, ErrDeviceNotFound), errors.Is(err, ErrProbeInFlight):
			report.Skipped++
			r.logger.Debug().Err(err).Str("device_id", device.ID).Msg("Skipping device in cycle")
		default:
			report.Aborted = true
			break loop
		}

		if i < len(snapshot)-1 && !wait(ctx, stagger) {
			report.Aborted = true
			break
		}
	}

	report.Finished = time.Now()
	return report
}

// ProbeAll probes every device in the snapshot concurrently and waits for all
// of them to settle.
func (r *Runner) ProbeAll(ctx context.Context, snapshot []models.Device) CycleReport {
	report := CycleReport{Started: time.Now(), Devices: len(snapshot)}
	var probed, skipped atomic.Int64

	var g errgroup.Group
	for _, device := range snapshot {
		id := device.ID
		g.Go(func() error {
			err := r.engine.Check(ctx, id)
			switch {
			case err == nil:
				probed.Add(1)
			case errors.Is(err, ErrDeviceNotFound), errors.Is(err, ErrProbeInFlight):
				skipped.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		report.Aborted = true
	}

	report.Probed = int(probed.Load())
	report.Skipped = int(skipped.Load())
	report.Finished = time.Now()
	return report
}

func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
