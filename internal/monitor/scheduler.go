package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"devicemonitor/internal/models"
)

// DeviceSource is the read side of the registry used by the scheduler.
type DeviceSource interface {
	List() []models.Device
	Len() int
}

// Scheduler owns the auto-ping timer. At most one recurring loop exists at a
// time; every arm goes through reconfigureLocked, which cancels and joins the
// previous loop first.
type Scheduler struct {
	runner  *Runner
	devices DeviceSource
	logger  zerolog.Logger

	mu       sync.Mutex
	schedule models.Schedule
	cancel   context.CancelFunc
	done     chan struct{}
	stopped  bool

	cycles atomic.Int64
	loops  atomic.Int32
}

// NewScheduler creates an idle scheduler. Call Reconfigure to arm it.
func NewScheduler(runner *Runner, devices DeviceSource, schedule models.Schedule, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		devices:  devices,
		schedule: schedule,
		logger:   logger,
	}
}

// Schedule returns the current configuration.
func (s *Scheduler) Schedule() models.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule
}

// Active reports whether a recurring loop is armed.
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Cycles returns the number of completed scheduled cycles.
func (s *Scheduler) Cycles() int64 {
	return s.cycles.Load()
}

// SetEnabled turns auto-ping on or off.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule.Enabled == enabled {
		return
	}
	s.schedule.Enabled = enabled
	s.reconfigureLocked()
}

// SetInterval changes the period between cycle starts.
func (s *Scheduler) SetInterval(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule.Interval == interval {
		return nil
	}
	s.schedule.Interval = interval
	s.reconfigureLocked()
	return nil
}

// SetStagger changes the delay between devices within a cycle.
func (s *Scheduler) SetStagger(stagger time.Duration) error {
	if stagger <= 0 {
		return fmt.Errorf("stagger must be positive, got %s", stagger)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule.Stagger == stagger {
		return nil
	}
	s.schedule.Stagger = stagger
	s.reconfigureLocked()
	return nil
}

// Reconfigure cancels any running loop and re-arms it when auto-ping is
// enabled and there is at least one device. It is safe to call repeatedly.
func (s *Scheduler) Reconfigure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconfigureLocked()
}

// Sync re-arms only when the armed state disagrees with the device set, i.e.
// when the registry moved to or from empty.
func (s *Scheduler) Sync() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shouldRunLocked() != (s.cancel != nil) {
		s.reconfigureLocked()
	}
}

// Stop cancels the loop and waits for it to exit. The scheduler cannot be
// re-armed afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	s.cancelLocked()
}

func (s *Scheduler) shouldRunLocked() bool {
	return !s.stopped && s.schedule.Enabled && s.schedule.Interval > 0 && s.devices.Len() > 0
}

func (s *Scheduler) reconfigureLocked() {
	s.cancelLocked()

	if !s.shouldRunLocked() {
		s.logger.Debug().Bool("enabled", s.schedule.Enabled).Msg("Auto-ping idle")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	s.logger.Info().
		Dur("interval", s.schedule.Interval).
		Dur("stagger", s.schedule.Stagger).
		Msg("Auto-ping armed")
	go s.run(ctx, done, s.schedule)
}

func (s *Scheduler) cancelLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}, schedule models.Schedule) {
	defer close(done)
	s.loops.Add(1)
	defer s.loops.Add(-1)

	// The ticker starts with the first cycle so that Interval spaces cycle starts.
	ticker := time.NewTicker(schedule.Interval)
	defer ticker.Stop()

	s.runCycle(ctx, schedule.Stagger)

	for {
		select {
		case <-ticker.C:
			s.runCycle(ctx, schedule.Stagger)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context, stagger time.Duration) {
	if ctx.Err() != nil {
		return
	}
	report := s.runner.RunCycle(ctx, s.devices.List(), stagger)
	if report.Aborted {
		s.logger.Debug().Int("probed", report.Probed).Msg("Cycle cancelled")
		return
	}
	s.cycles.Add(1)
	s.logger.Debug().
		Int("devices", report.Devices).
		Int("probed", report.Probed).
		Int("skipped", report.Skipped).
		Dur("elapsed", report.Finished.Sub(report.Started)).
		Msg("Cycle complete")
}
