package metrics

import (
	"math"

	"devicemonitor/internal/models"
)

// Summary aggregates a device list into per-status totals.
type Summary struct {
	models.StatusCounts
	AvailabilityPercent float64 `json:"availability_percent"`
}

// CountByStatus tallies devices by status. Nothing is stored; callers derive
// counts from a fresh device list every time.
func CountByStatus(devices []models.Device) models.StatusCounts {
	counts := models.StatusCounts{Total: len(devices)}
	for _, d := range devices {
		switch d.Status {
		case models.StatusOnline:
			counts.Online++
		case models.StatusOffline:
			counts.Offline++
		case models.StatusChecking:
			counts.Checking++
		}
	}
	return counts
}

// Summarise computes counts plus the share of settled devices that are online.
func Summarise(devices []models.Device) Summary {
	counts := CountByStatus(devices)
	settled := counts.Online + counts.Offline
	availability := 0.0
	if settled > 0 {
		availability = float64(counts.Online) / float64(settled) * 100
	}
	return Summary{
		StatusCounts:        counts,
		AvailabilityPercent: round2(availability),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
