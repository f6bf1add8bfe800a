package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"devicemonitor/internal/models"
	"devicemonitor/internal/notify"
	"devicemonitor/internal/probe"
	"devicemonitor/internal/registry"
)

// Engine drives a device through checking and into online or offline around
// a single probe.
type Engine struct {
	registry *registry.Registry
	prober   probe.Prober
	notifier notify.Notifier
	logger   zerolog.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewEngine creates an engine writing outcomes into reg.
func NewEngine(reg *registry.Registry, prober probe.Prober, notifier notify.Notifier, logger zerolog.Logger) *Engine {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		registry: reg,
		prober:   prober,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches a probe unit for the device and returns a channel that is
// closed once the outcome has been written back. The unit runs on the
// engine's own lifetime, so it outlives the caller.
func (e *Engine) Start(id string) (<-chan struct{}, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrEngineClosed
	}
	e.wg.Add(1)
	e.mu.Unlock()

	device, previous, ok := e.registry.BeginCheck(id)
	if !ok {
		e.wg.Done()
		if _, exists := e.registry.Get(id); exists {
			return nil, ErrProbeInFlight
		}
		return nil, ErrDeviceNotFound
	}

	done := make(chan struct{})
	go func() {
		defer e.wg.Done()
		defer close(done)
		e.settle(device, previous)
	}()
	return done, nil
}

// Check probes the device and waits for the outcome. If ctx ends first, Check
// returns ctx.Err() and the probe still completes and writes back.
func (e *Engine) Check(ctx context.Context, id string) error {
	done, err := e.Start(id)
	if err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close aborts outstanding probes and waits for them to write back.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
}

func (e *Engine) settle(device models.Device, previous models.Status) {
	log := e.logger.With().Str("device_id", device.ID).Str("address", device.Address).Logger()

	status := models.StatusOffline
	verdict, err := e.prober.Probe(e.ctx, device)
	if err != nil {
		log.Warn().Err(err).Msg("Probe failed, marking device offline")
	} else {
		status = verdict.Status()
	}

	checkedAt := e.now().UTC()
	if !e.registry.UpdateStatus(device.ID, status, checkedAt) {
		log.Debug().Msg("Device removed during probe, dropping status write")
		return
	}

	log.Debug().Str("status", string(status)).Msg("Device status settled")
	e.notifier.Notify(models.StatusEvent{
		DeviceID:  device.ID,
		Name:      device.Name,
		Address:   device.Address,
		Status:    status,
		Previous:  previous,
		CheckedAt: checkedAt,
	})
}
