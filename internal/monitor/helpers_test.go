package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"

	"devicemonitor/internal/models"
	"devicemonitor/internal/probe"
	"devicemonitor/internal/registry"
)

type probeCall struct {
	id    string
	name  string
	start time.Time
	end   time.Time
}

// fakeProber records every probe. When gate is set, probes block until a value
// is received from it or ctx ends.
type fakeProber struct {
	delay   time.Duration
	gate    chan struct{}
	verdict func(models.Device) (probe.Verdict, error)

	mu        sync.Mutex
	calls     []probeCall
	active    int
	maxActive int
}

func newFakeProber(delay time.Duration) *fakeProber {
	return &fakeProber{delay: delay}
}

func (f *fakeProber) Probe(ctx context.Context, device models.Device) (probe.Verdict, error) {
	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	start := time.Now()
	f.mu.Unlock()

	var err error
	switch {
	case f.gate != nil:
		select {
		case <-f.gate:
		case <-ctx.Done():
			err = ctx.Err()
		}
	case f.delay > 0:
		timer := time.NewTimer(f.delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			err = ctx.Err()
		}
		timer.Stop()
	}

	f.mu.Lock()
	f.active--
	f.calls = append(f.calls, probeCall{id: device.ID, name: device.Name, start: start, end: time.Now()})
	f.mu.Unlock()

	if err != nil {
		return probe.Unreachable, err
	}
	if f.verdict != nil {
		return f.verdict(device)
	}
	return probe.Reachable, nil
}

func (f *fakeProber) Calls() []probeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]probeCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeProber) MaxActive() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}

func (f *fakeProber) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

type mockProber struct {
	mock.Mock
}

func (m *mockProber) Probe(ctx context.Context, device models.Device) (probe.Verdict, error) {
	args := m.Called(ctx, device)
	return args.Get(0).(probe.Verdict), args.Error(1)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.StatusEvent
}

func (n *recordingNotifier) Notify(event models.StatusEvent) {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
}

func (n *recordingNotifier) Events() []models.StatusEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.StatusEvent, len(n.events))
	copy(out, n.events)
	return out
}

func settled(reg *registry.Registry, id string) func() bool {
	return func() bool {
		d, ok := reg.Get(id)
		return ok && d.Status.Settled()
	}
}

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}
