package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultRefreshIntervalMinutes separates two refresh cycles.
	DefaultRefreshIntervalMinutes = 60
	// DefaultSnapshotTimeOfDay is when the daily snapshot becomes due.
	DefaultSnapshotTimeOfDay = "19:00"
)

// Settings are the user-tunable knobs of the scheduler, produced by an
// external settings surface and persisted alongside the catalog.
type Settings struct {
	RefreshIntervalMinutes int    `json:"refresh_interval_minutes"`
	SnapshotTimeOfDay      string `json:"snapshot_time_of_day"`
}

// DefaultSettings returns settings with all defaults filled in.
func DefaultSettings() Settings {
	return Settings{
		RefreshIntervalMinutes: DefaultRefreshIntervalMinutes,
		SnapshotTimeOfDay:      DefaultSnapshotTimeOfDay,
	}
}

// Normalize replaces missing or out-of-range fields with defaults.
func (s *Settings) Normalize() {
	if s.RefreshIntervalMinutes < 1 {
		s.RefreshIntervalMinutes = DefaultRefreshIntervalMinutes
	}
	if _, _, err := s.SnapshotClock(); err != nil {
		s.SnapshotTimeOfDay = DefaultSnapshotTimeOfDay
	}
}

// RefreshInterval returns the configured interval as a duration.
func (s Settings) RefreshInterval() time.Duration {
	return time.Duration(s.RefreshIntervalMinutes) * time.Minute
}

// SnapshotClock parses SnapshotTimeOfDay ("HH:MM") into hour and minute.
func (s Settings) SnapshotClock() (hour, minute int, err error) {
	parts := strings.Split(s.SnapshotTimeOfDay, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid snapshot time %q, expected HH:MM", s.SnapshotTimeOfDay)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid snapshot hour %q", parts[0])
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid snapshot minute %q", parts[1])
	}
	return hour, minute, nil
}
