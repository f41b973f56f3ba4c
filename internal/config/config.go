// Package config holds the run configuration. Fields are pointers so a
// partial file (or a flag layer on top) only overrides what it names;
// the Get accessors supply defaults for everything left nil.
package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/corridor-data/v2xtrace/internal/fsutil"
)

// Format names for the export tables.
const (
	FormatParquet = "parquet"
	FormatCSV     = "csv"
	FormatSQLite  = "sqlite"
)

// Config is the root run configuration, loadable from JSON or YAML.
type Config struct {
	InputDir  *string `json:"input_dir,omitempty" yaml:"input_dir,omitempty"`
	OutputDir *string `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`

	// Region filter: a bbox (min_lon, min_lat, max_lon, max_lat) or a
	// GeoJSON polygon file, with the inclusion mode.
	RegionBBox        []float64 `json:"region_bbox,omitempty" yaml:"region_bbox,omitempty"`
	RegionPolygonPath *string   `json:"region_polygon_path,omitempty" yaml:"region_polygon_path,omitempty"`
	RegionMode        *string   `json:"region_mode,omitempty" yaml:"region_mode,omitempty"`

	// Coordinate frame: explicit origin (lon, lat) wins over the policy.
	Origin       []float64 `json:"origin,omitempty" yaml:"origin,omitempty"`
	OriginPolicy *string   `json:"origin_policy,omitempty" yaml:"origin_policy,omitempty"`
	Frame        *string   `json:"frame,omitempty" yaml:"frame,omitempty"`

	TargetHz        *int     `json:"hz,omitempty" yaml:"hz,omitempty"`
	SyncToleranceMs *int64   `json:"sync_tolerance_ms,omitempty" yaml:"sync_tolerance_ms,omitempty"`
	GapThresholdS   *float64 `json:"gap_threshold_s,omitempty" yaml:"gap_threshold_s,omitempty"`
	SmoothingWindow *int     `json:"smoothing_window,omitempty" yaml:"smoothing_window,omitempty"`
	Smoothing       *bool    `json:"smoothing,omitempty" yaml:"smoothing,omitempty"`
	LowSpeedMps     *float64 `json:"low_speed_mps,omitempty" yaml:"low_speed_mps,omitempty"`

	Format      *string `json:"format,omitempty" yaml:"format,omitempty"`
	MetadataOut *string `json:"metadata_out,omitempty" yaml:"metadata_out,omitempty"`

	IdsMapPath *string `json:"ids_map_path,omitempty" yaml:"ids_map_path,omitempty"`
	RSUIDsPath *string `json:"rsu_ids_path,omitempty" yaml:"rsu_ids_path,omitempty"`

	SampleLimit  *int     `json:"sample,omitempty" yaml:"sample,omitempty"`
	Workers      *int     `json:"workers,omitempty" yaml:"workers,omitempty"`
	ScenarioDirs []string `json:"scenario_dirs,omitempty" yaml:"scenario_dirs,omitempty"`
	Verbose      *bool    `json:"verbose,omitempty" yaml:"verbose,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// Default returns a Config with all fields nil, so every accessor
// yields its built-in default.
func Default() *Config {
	return &Config{}
}

// Load reads a JSON or YAML config file. Fields omitted from the file
// stay nil, so partial configs are safe.
func Load(fsys fsutil.FileSystem, path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	info, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every field that is set. Required fields are enforced
// by the pipeline once flags have been merged in, not here.
func (c *Config) Validate() error {
	if len(c.RegionBBox) != 0 && len(c.RegionBBox) != 4 {
		return fmt.Errorf("region_bbox must have 4 values (min_lon, min_lat, max_lon, max_lat), got %d", len(c.RegionBBox))
	}
	if len(c.Origin) != 0 && len(c.Origin) != 2 {
		return fmt.Errorf("origin must have 2 values (lon, lat), got %d", len(c.Origin))
	}
	if c.RegionMode != nil {
		switch *c.RegionMode {
		case "intersect", "contain", "first":
		default:
			return fmt.Errorf("region_mode must be intersect, contain or first, got %q", *c.RegionMode)
		}
	}
	if c.OriginPolicy != nil {
		switch *c.OriginPolicy {
		case "first", "centroid", "median":
		default:
			return fmt.Errorf("origin_policy must be first, centroid or median, got %q", *c.OriginPolicy)
		}
	}
	if c.Frame != nil {
		switch *c.Frame {
		case "enu", "utm":
		default:
			return fmt.Errorf("frame must be enu or utm, got %q", *c.Frame)
		}
	}
	if c.TargetHz != nil {
		if *c.TargetHz < 1 || *c.TargetHz > 100 {
			return fmt.Errorf("hz must be between 1 and 100, got %d", *c.TargetHz)
		}
	}
	if c.SyncToleranceMs != nil && *c.SyncToleranceMs < 0 {
		return fmt.Errorf("sync_tolerance_ms must be non-negative, got %d", *c.SyncToleranceMs)
	}
	if c.GapThresholdS != nil && *c.GapThresholdS < 0 {
		return fmt.Errorf("gap_threshold_s must be non-negative, got %f", *c.GapThresholdS)
	}
	if c.SmoothingWindow != nil && *c.SmoothingWindow < 3 {
		return fmt.Errorf("smoothing_window must be at least 3, got %d", *c.SmoothingWindow)
	}
	if c.LowSpeedMps != nil && *c.LowSpeedMps < 0 {
		return fmt.Errorf("low_speed_mps must be non-negative, got %f", *c.LowSpeedMps)
	}
	if c.Format != nil {
		switch *c.Format {
		case FormatParquet, FormatCSV, FormatSQLite:
		default:
			return fmt.Errorf("format must be parquet, csv or sqlite, got %q", *c.Format)
		}
	}
	if c.SampleLimit != nil && *c.SampleLimit < 1 {
		return fmt.Errorf("sample must be at least 1, got %d", *c.SampleLimit)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	return nil
}

// GetInputDir returns the input directory or the empty string.
func (c *Config) GetInputDir() string {
	if c.InputDir == nil {
		return ""
	}
	return *c.InputDir
}

// GetOutputDir returns the output directory or the empty string.
func (c *Config) GetOutputDir() string {
	if c.OutputDir == nil {
		return ""
	}
	return *c.OutputDir
}

// GetRegionMode returns the region_mode value or the default.
func (c *Config) GetRegionMode() string {
	if c.RegionMode == nil {
		return "intersect"
	}
	return *c.RegionMode
}

// GetOriginPolicy returns the origin_policy value or the default.
func (c *Config) GetOriginPolicy() string {
	if c.OriginPolicy == nil {
		return "first"
	}
	return *c.OriginPolicy
}

// GetFrame returns the frame value or the default.
func (c *Config) GetFrame() string {
	if c.Frame == nil {
		return "enu"
	}
	return *c.Frame
}

// GetTargetHz returns the hz value or the default.
func (c *Config) GetTargetHz() int {
	if c.TargetHz == nil {
		return 1
	}
	return *c.TargetHz
}

// GetSyncToleranceMs returns the sync_tolerance_ms value or the default.
func (c *Config) GetSyncToleranceMs() int64 {
	if c.SyncToleranceMs == nil {
		return 500
	}
	return *c.SyncToleranceMs
}

// GetGapThresholdS returns the gap_threshold_s value or the default.
func (c *Config) GetGapThresholdS() float64 {
	if c.GapThresholdS == nil {
		return 5.0
	}
	return *c.GapThresholdS
}

// GetSmoothingWindow returns the smoothing_window value or the default.
func (c *Config) GetSmoothingWindow() int {
	if c.SmoothingWindow == nil {
		return 7
	}
	return *c.SmoothingWindow
}

// GetSmoothing returns the smoothing value or the default.
func (c *Config) GetSmoothing() bool {
	if c.Smoothing == nil {
		return true
	}
	return *c.Smoothing
}

// GetLowSpeedMps returns the low_speed_mps value or the default.
func (c *Config) GetLowSpeedMps() float64 {
	if c.LowSpeedMps == nil {
		return 0.5
	}
	return *c.LowSpeedMps
}

// GetFormat returns the format value or the default.
func (c *Config) GetFormat() string {
	if c.Format == nil {
		return FormatParquet
	}
	return *c.Format
}

// GetMetadataOut returns the metadata_out value or its default location
// inside the output directory.
func (c *Config) GetMetadataOut() string {
	if c.MetadataOut == nil || *c.MetadataOut == "" {
		return filepath.Join(c.GetOutputDir(), "metadata.json")
	}
	return *c.MetadataOut
}

// GetIdsMapPath returns the ids_map_path value or the empty string.
func (c *Config) GetIdsMapPath() string {
	if c.IdsMapPath == nil {
		return ""
	}
	return *c.IdsMapPath
}

// GetRSUIDsPath returns the rsu_ids_path value or the empty string.
func (c *Config) GetRSUIDsPath() string {
	if c.RSUIDsPath == nil {
		return ""
	}
	return *c.RSUIDsPath
}

// GetSampleLimit returns the sample value or the default.
func (c *Config) GetSampleLimit() int {
	if c.SampleLimit == nil {
		return 100
	}
	return *c.SampleLimit
}

// GetWorkers returns the workers value or the number of CPUs.
func (c *Config) GetWorkers() int {
	if c.Workers == nil {
		return runtime.NumCPU()
	}
	return *c.Workers
}

// GetVerbose returns the verbose value or the default.
func (c *Config) GetVerbose() bool {
	if c.Verbose == nil {
		return false
	}
	return *c.Verbose
}
