package monitor

import "errors"

var (
	// ErrDeviceNotFound is returned when an operation targets an unknown device.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrProbeInFlight is returned when a device already has a probe running.
	ErrProbeInFlight = errors.New("probe already in flight")
	// ErrAutoPingActive rejects a manual probe-all while auto-ping is enabled.
	ErrAutoPingActive = errors.New("auto-ping is active")
	// ErrEngineClosed is returned once the engine has been shut down.
	ErrEngineClosed = errors.New("engine closed")
)
