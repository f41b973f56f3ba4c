package records

import "time"

// RunCounts tallies how much data a run processed and produced.
type RunCounts struct {
	Files       int `json:"files"`
	GnssRecords int `json:"gnss_records"`
	V2XRecords  int `json:"v2x_records"`
	Samples     int `json:"samples"`
	Fused       int `json:"fused"`
	Vehicles    int `json:"vehicles"`
}

// RunMetadata is the sidecar written next to every export: the run's
// identity, coordinate frame, parameters and counts. On a failed run it
// still records how far processing got.
type RunMetadata struct {
	RunID           string    `json:"run_id"`
	CRS             string    `json:"crs"`
	OriginLat       float64   `json:"origin_lat"`
	OriginLon       float64   `json:"origin_lon"`
	OriginAlt       float64   `json:"origin_alt"`
	TargetHz        int       `json:"hz"`
	GapThresholdS   float64   `json:"gap_threshold_s"`
	SyncToleranceMs int64     `json:"sync_tolerance_ms"`
	RegionMode      string    `json:"region_mode,omitempty"`
	InputDir        string    `json:"input_dir"`
	OutputDir       string    `json:"output_dir"`
	Format          string    `json:"format"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Counts          RunCounts `json:"counts"`
	Notes           []string  `json:"notes,omitempty"`
}
