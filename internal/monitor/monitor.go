// Package monitor tracks device reachability: the status transition engine,
// the staggered cycle runner, the auto-ping scheduler and the Monitor facade
// that ties them to the registry.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"devicemonitor/internal/metrics"
	"devicemonitor/internal/models"
	"devicemonitor/internal/notify"
	"devicemonitor/internal/probe"
	"devicemonitor/internal/registry"
)

// Options configures a Monitor.
type Options struct {
	Schedule          models.Schedule
	AllowedIntervals  []int
	AllowedStaggers   []int
	InitialProbeDelay time.Duration
	Notifier          notify.Notifier
	Logger            zerolog.Logger
}

// Monitor is the entry point used by the API layer.
type Monitor struct {
	registry  *registry.Registry
	engine    *Engine
	runner    *Runner
	scheduler *Scheduler
	logger    zerolog.Logger

	allowedIntervals []int
	allowedStaggers  []int
	initialDelay     time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires a monitor around reg and prober. The schedule is armed right away
// when it is enabled and reg already holds devices.
func New(reg *registry.Registry, prober probe.Prober, opts Options) *Monitor {
	engine := NewEngine(reg, prober, opts.Notifier, opts.Logger.With().Str("component", "engine").Logger())
	runner := NewRunner(engine, opts.Logger.With().Str("component", "runner").Logger())
	scheduler := NewScheduler(runner, reg, opts.Schedule, opts.Logger.With().Str("component", "scheduler").Logger())

	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		registry:         reg,
		engine:           engine,
		runner:           runner,
		scheduler:        scheduler,
		logger:           opts.Logger,
		allowedIntervals: opts.AllowedIntervals,
		allowedStaggers:  opts.AllowedStaggers,
		initialDelay:     opts.InitialProbeDelay,
		ctx:              ctx,
		cancel:           cancel,
	}
	scheduler.Reconfigure()
	return m
}

// AddDevice validates and registers a device, then probes it shortly after.
func (m *Monitor) AddDevice(name, address string) (models.Device, error) {
	device, err := m.registry.Add(name, address)
	if err != nil {
		return models.Device{}, err
	}
	m.logger.Info().Str("device_id", device.ID).Str("name", device.Name).Str("address", device.Address).Msg("Device added")

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if !wait(m.ctx, m.initialDelay) {
			return
		}
		if _, err := m.engine.Start(device.ID); err != nil && !errors.Is(err, ErrProbeInFlight) {
			m.logger.Debug().Err(err).Str("device_id", device.ID).Msg("Initial probe skipped")
		}
	}()

	m.scheduler.Sync()
	return device, nil
}

// RemoveDevice drops a device. Unknown ids are ignored.
func (m *Monitor) RemoveDevice(id string) {
	if m.registry.Remove(id) {
		m.logger.Info().Str("device_id", id).Msg("Device removed")
	}
	m.scheduler.Sync()
}

// PingOne starts a probe for a single device without waiting for it.
func (m *Monitor) PingOne(id string) error {
	if _, err := m.engine.Start(id); err != nil {
		return fmt.Errorf("ping %s: %w", id, err)
	}
	return nil
}

// PingAll probes every device concurrently. It is rejected while auto-ping is
// enabled.
func (m *Monitor) PingAll() error {
	if m.scheduler.Schedule().Enabled {
		return ErrAutoPingActive
	}

	snapshot := m.registry.List()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		report := m.runner.ProbeAll(m.ctx, snapshot)
		m.logger.Debug().Int("probed", report.Probed).Int("skipped", report.Skipped).Msg("Probe-all finished")
	}()
	return nil
}

// SetAutoPing enables or disables the recurring cycle.
func (m *Monitor) SetAutoPing(enabled bool) {
	m.scheduler.SetEnabled(enabled)
}

// SetInterval sets the auto-ping period in seconds.
func (m *Monitor) SetInterval(seconds int) error {
	if !allowed(seconds, m.allowedIntervals) {
		return &registry.ValidationError{Field: "interval_seconds", Reason: fmt.Sprintf("%d is not one of %v", seconds, m.allowedIntervals)}
	}
	return m.scheduler.SetInterval(time.Duration(seconds) * time.Second)
}

// SetStaggerDelay sets the delay between devices within a cycle, in seconds.
func (m *Monitor) SetStaggerDelay(seconds int) error {
	if !allowed(seconds, m.allowedStaggers) {
		return &registry.ValidationError{Field: "stagger_seconds", Reason: fmt.Sprintf("%d is not one of %v", seconds, m.allowedStaggers)}
	}
	return m.scheduler.SetStagger(time.Duration(seconds) * time.Second)
}

// ListDevices returns devices in insertion order.
func (m *Monitor) ListDevices() []models.Device {
	return m.registry.List()
}

// Counts returns device totals by status.
func (m *Monitor) Counts() metrics.Summary {
	return metrics.Summarise(m.registry.List())
}

// Schedule returns the wire view of the auto-ping configuration.
func (m *Monitor) Schedule() models.ScheduleView {
	sched := m.scheduler.Schedule()
	return models.ScheduleView{
		Enabled:         sched.Enabled,
		Active:          m.scheduler.Active(),
		IntervalSeconds: int(sched.Interval / time.Second),
		StaggerSeconds:  int(sched.Stagger / time.Second),
	}
}

// Subscribe forwards registry change notifications.
func (m *Monitor) Subscribe() (<-chan struct{}, func()) {
	return m.registry.Subscribe()
}

// Close stops the scheduler and waits for all background probes.
func (m *Monitor) Close() {
	m.scheduler.Stop()
	m.cancel()
	m.wg.Wait()
	m.engine.Close()
}

func allowed(v int, set []int) bool {
	if len(set) == 0 {
		return v > 0
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
