package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"devicemonitor/internal/models"
	"devicemonitor/internal/probe"
	"devicemonitor/internal/registry"
)

func TestEngineCheckMarksOnline(t *testing.T) {
	reg := registry.New()
	d, err := reg.Add("Router", "10.0.0.1")
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	e := NewEngine(reg, newFakeProber(time.Millisecond), notifier, nopLogger())
	defer e.Close()

	require.NoError(t, e.Check(context.Background(), d.ID))

	got, ok := reg.Get(d.ID)
	require.True(t, ok)
	assert.Equal(t, models.StatusOnline, got.Status)
	assert.False(t, got.LastChecked.Before(d.LastChecked))
	assert.False(t, reg.InFlight(d.ID))

	events := notifier.Events()
	require.Len(t, events, 1)
	assert.Equal(t, d.ID, events[0].DeviceID)
	assert.Equal(t, models.StatusOnline, events[0].Status)
	assert.Equal(t, models.StatusChecking, events[0].Previous)
}

func TestEngineUnreachableMarksOffline(t *testing.T) {
	reg := registry.New()
	d, _ := reg.Add("Router", "10.0.0.1")

	p := newFakeProber(0)
	p.verdict = func(models.Device) (probe.Verdict, error) { return probe.Unreachable, nil }
	e := NewEngine(reg, p, nil, nopLogger())
	defer e.Close()

	require.NoError(t, e.Check(context.Background(), d.ID))
	got, _ := reg.Get(d.ID)
	assert.Equal(t, models.StatusOffline, got.Status)
}

func TestEngineProbeFailureMarksOffline(t *testing.T) {
	reg := registry.New()
	d, _ := reg.Add("Router", "10.0.0.1")
	require.True(t, reg.UpdateStatus(d.ID, models.StatusOnline, time.Now()))

	p := new(mockProber)
	p.On("Probe", mock.Anything, mock.MatchedBy(func(dev models.Device) bool { return dev.ID == d.ID })).
		Return(probe.Reachable, errors.New("network unreachable"))

	notifier := &recordingNotifier{}
	e := NewEngine(reg, p, notifier, nopLogger())
	defer e.Close()

	require.NoError(t, e.Check(context.Background(), d.ID))

	got, _ := reg.Get(d.ID)
	assert.Equal(t, models.StatusOffline, got.Status)
	require.Len(t, notifier.Events(), 1)
	assert.Equal(t, models.StatusOnline, notifier.Events()[0].Previous)
	p.AssertExpectations(t)
}

func TestEngineRejectsReentrantProbe(t *testing.T) {
	reg := registry.New()
	d, _ := reg.Add("Router", "10.0.0.1")

	p := newFakeProber(0)
	p.gate = make(chan struct{})
	e := NewEngine(reg, p, nil, nopLogger())
	defer e.Close()

	done, err := e.Start(d.ID)
	require.NoError(t, err)

	got, _ := reg.Get(d.ID)
	assert.Equal(t, models.StatusChecking, got.Status)

	_, err = e.Start(d.ID)
	assert.ErrorIs(t, err, ErrProbeInFlight)

	close(p.gate)
	<-done
	assert.Len(t, p.Calls(), 1)
	assert.Eventually(t, settled(reg, d.ID), time.Second, 5*time.Millisecond)
}

func TestEngineUnknownDevice(t *testing.T) {
	e := NewEngine(registry.New(), newFakeProber(0), nil, nopLogger())
	defer e.Close()

	_, err := e.Start("missing")
	assert.ErrorIs(t, err, ErrDeviceNotFound)
	assert.ErrorIs(t, e.Check(context.Background(), "missing"), ErrDeviceNotFound)
}

func TestEngineDropsWriteForRemovedDevice(t *testing.T) {
	reg := registry.New()
	d, _ := reg.Add("Router", "10.0.0.1")

	p := newFakeProber(0)
	p.gate = make(chan struct{})
	notifier := &recordingNotifier{}
	e := NewEngine(reg, p, notifier, nopLogger())
	defer e.Close()

	done, err := e.Start(d.ID)
	require.NoError(t, err)

	reg.Remove(d.ID)
	p.gate <- struct{}{}
	<-done

	_, ok := reg.Get(d.ID)
	assert.False(t, ok)
	assert.Empty(t, reg.List())
	assert.Empty(t, notifier.Events())
}

func TestEngineCheckCancelledStillWritesBack(t *testing.T) {
	reg := registry.New()
	d, _ := reg.Add("Router", "10.0.0.1")

	p := newFakeProber(0)
	p.gate = make(chan struct{})
	e := NewEngine(reg, p, nil, nopLogger())
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- e.Check(ctx, d.ID) }()

	require.Eventually(t, func() bool { return p.Active() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	got, _ := reg.Get(d.ID)
	assert.Equal(t, models.StatusChecking, got.Status)

	p.gate <- struct{}{}
	assert.Eventually(t, func() bool {
		got, _ := reg.Get(d.ID)
		return got.Status == models.StatusOnline
	}, time.Second, 5*time.Millisecond)
}

func TestEngineCloseSettlesInFlightProbes(t *testing.T) {
	reg := registry.New()
	d, _ := reg.Add("Router", "10.0.0.1")

	p := newFakeProber(0)
	p.gate = make(chan struct{})
	e := NewEngine(reg, p, nil, nopLogger())

	_, err := e.Start(d.ID)
	require.NoError(t, err)

	e.Close()

	got, _ := reg.Get(d.ID)
	assert.Equal(t, models.StatusOffline, got.Status)

	_, err = e.Start(d.ID)
	assert.ErrorIs(t, err, ErrEngineClosed)
	e.Close()
}
