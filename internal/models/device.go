package models

import "time"

// Status is the reachability state of a tracked device.
type Status string

const (
	StatusOnline   Status = "online"
	StatusOffline  Status = "offline"
	StatusChecking Status = "checking"
)

// Settled reports whether the status is a probe outcome rather than a pending check.
func (s Status) Settled() bool {
	return s == StatusOnline || s == StatusOffline
}

// Device is a network-attached device tracked by the monitor.
type Device struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	Status      Status    `json:"status"`
	LastChecked time.Time `json:"last_checked"`
	AddedAt     time.Time `json:"added_at"`
}

// DeviceSeed describes a device declared in configuration.
type DeviceSeed struct {
	Name    string `yaml:"name" json:"name"`
	Address string `yaml:"address" json:"address"`
}

// StatusCounts summarises devices by status. Values are derived on demand.
type StatusCounts struct {
	Total    int `json:"total"`
	Online   int `json:"online"`
	Offline  int `json:"offline"`
	Checking int `json:"checking"`
}
