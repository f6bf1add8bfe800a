package models

import "time"

// Schedule is the auto-ping configuration owned by the scheduler.
type Schedule struct {
	Enabled  bool          `json:"enabled"`
	Interval time.Duration `json:"-"`
	Stagger  time.Duration `json:"-"`
}

// ScheduleView is the wire representation of a schedule.
type ScheduleView struct {
	Enabled         bool `json:"enabled"`
	Active          bool `json:"active"`
	IntervalSeconds int  `json:"interval_seconds"`
	StaggerSeconds  int  `json:"stagger_seconds"`
}

// StatusEvent is emitted whenever a probe settles a device.
type StatusEvent struct {
	DeviceID  string    `json:"device_id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Status    Status    `json:"status"`
	Previous  Status    `json:"previous,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}
