package config

import (
	"bytes"
	"strings"
	"testing"

	"github.com/corridor-data/v2xtrace/internal/fsutil"
)

func TestLoadJSON(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	content := `{
		"input_dir": "/data/v2aix",
		"output_dir": "/data/out",
		"region_bbox": [6.0, 50.0, 7.0, 51.0],
		"hz": 2,
		"format": "csv",
		"scenario_dirs": ["urban", "highway"]
	}`
	if err := fs.WriteFile("/conf/run.json", []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	cfg, err := Load(fs, "/conf/run.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.GetInputDir() != "/data/v2aix" {
		t.Errorf("expected input dir /data/v2aix, got %q", cfg.GetInputDir())
	}
	if cfg.GetTargetHz() != 2 {
		t.Errorf("expected hz 2, got %d", cfg.GetTargetHz())
	}
	if cfg.GetFormat() != "csv" {
		t.Errorf("expected format csv, got %q", cfg.GetFormat())
	}
	if len(cfg.RegionBBox) != 4 || cfg.RegionBBox[0] != 6.0 {
		t.Errorf("unexpected bbox: %v", cfg.RegionBBox)
	}
	if len(cfg.ScenarioDirs) != 2 || cfg.ScenarioDirs[1] != "highway" {
		t.Errorf("unexpected scenario dirs: %v", cfg.ScenarioDirs)
	}

	// Fields absent from the file keep their defaults.
	if cfg.GetSyncToleranceMs() != 500 {
		t.Errorf("expected default sync tolerance 500, got %d", cfg.GetSyncToleranceMs())
	}
	if cfg.GetFrame() != "enu" {
		t.Errorf("expected default frame enu, got %q", cfg.GetFrame())
	}
}

func TestLoadYAML(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	content := strings.Join([]string{
		"input_dir: /data/v2aix",
		"output_dir: /data/out",
		"gap_threshold_s: 10.5",
		"smoothing: false",
		"origin: [6.08, 50.77]",
	}, "\n")
	if err := fs.WriteFile("/conf/run.yaml", []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	cfg, err := Load(fs, "/conf/run.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GetGapThresholdS() != 10.5 {
		t.Errorf("expected gap threshold 10.5, got %v", cfg.GetGapThresholdS())
	}
	if cfg.GetSmoothing() {
		t.Error("expected smoothing disabled")
	}
	if len(cfg.Origin) != 2 || cfg.Origin[0] != 6.08 || cfg.Origin[1] != 50.77 {
		t.Errorf("unexpected origin: %v", cfg.Origin)
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	if err := fs.WriteFile("/conf/run.toml", []byte("x = 1"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := Load(fs, "/conf/run.toml"); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestLoadRejectsOversizedFile(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	big := append([]byte(`{"input_dir": "`), bytes.Repeat([]byte("x"), 1<<20)...)
	big = append(big, []byte(`"}`)...)
	if err := fs.WriteFile("/conf/run.json", big, 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := Load(fs, "/conf/run.json"); err == nil {
		t.Fatal("expected error for oversized file")
	}
}

func TestLoadMissingFile(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	if _, err := Load(fs, "/conf/none.json"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	if err := fs.WriteFile("/conf/run.json", []byte(`{"hz": 500}`), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := Load(fs, "/conf/run.json"); err == nil {
		t.Fatal("expected validation error from Load")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"empty config is valid", func(c *Config) {}, false},
		{"bbox wrong length", func(c *Config) { c.RegionBBox = []float64{6.0, 50.0, 7.0} }, true},
		{"bbox full length", func(c *Config) { c.RegionBBox = []float64{6.0, 50.0, 7.0, 51.0} }, false},
		{"origin wrong length", func(c *Config) { c.Origin = []float64{6.0} }, true},
		{"bad region mode", func(c *Config) { c.RegionMode = ptrString("inside") }, true},
		{"good region mode", func(c *Config) { c.RegionMode = ptrString("contain") }, false},
		{"bad origin policy", func(c *Config) { c.OriginPolicy = ptrString("average") }, true},
		{"bad frame", func(c *Config) { c.Frame = ptrString("ecef") }, true},
		{"hz too low", func(c *Config) { c.TargetHz = ptrInt(0) }, true},
		{"hz too high", func(c *Config) { c.TargetHz = ptrInt(101) }, true},
		{"hz in range", func(c *Config) { c.TargetHz = ptrInt(100) }, false},
		{"negative sync tolerance", func(c *Config) { c.SyncToleranceMs = ptrInt64(-1) }, true},
		{"negative gap threshold", func(c *Config) { c.GapThresholdS = ptrFloat64(-0.1) }, true},
		{"smoothing window too small", func(c *Config) { c.SmoothingWindow = ptrInt(2) }, true},
		{"negative low speed", func(c *Config) { c.LowSpeedMps = ptrFloat64(-1) }, true},
		{"bad format", func(c *Config) { c.Format = ptrString("xml") }, true},
		{"sqlite format", func(c *Config) { c.Format = ptrString("sqlite") }, false},
		{"zero sample limit", func(c *Config) { c.SampleLimit = ptrInt(0) }, true},
		{"zero workers", func(c *Config) { c.Workers = ptrInt(0) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestAccessorDefaults(t *testing.T) {
	cfg := Default()

	if cfg.GetTargetHz() != 1 {
		t.Errorf("expected default hz 1, got %d", cfg.GetTargetHz())
	}
	if cfg.GetGapThresholdS() != 5.0 {
		t.Errorf("expected default gap threshold 5.0, got %v", cfg.GetGapThresholdS())
	}
	if cfg.GetSmoothingWindow() != 7 {
		t.Errorf("expected default smoothing window 7, got %d", cfg.GetSmoothingWindow())
	}
	if !cfg.GetSmoothing() {
		t.Error("expected smoothing enabled by default")
	}
	if cfg.GetLowSpeedMps() != 0.5 {
		t.Errorf("expected default low speed 0.5, got %v", cfg.GetLowSpeedMps())
	}
	if cfg.GetFormat() != FormatParquet {
		t.Errorf("expected default format parquet, got %q", cfg.GetFormat())
	}
	if cfg.GetRegionMode() != "intersect" {
		t.Errorf("expected default region mode intersect, got %q", cfg.GetRegionMode())
	}
	if cfg.GetOriginPolicy() != "first" {
		t.Errorf("expected default origin policy first, got %q", cfg.GetOriginPolicy())
	}
	if cfg.GetSampleLimit() != 100 {
		t.Errorf("expected default sample limit 100, got %d", cfg.GetSampleLimit())
	}
	if cfg.GetWorkers() < 1 {
		t.Errorf("expected at least 1 worker, got %d", cfg.GetWorkers())
	}
	if cfg.GetVerbose() {
		t.Error("expected verbose off by default")
	}
}

func TestAccessorOverrides(t *testing.T) {
	cfg := Default()
	cfg.Verbose = ptrBool(true)
	cfg.Smoothing = ptrBool(false)
	cfg.TargetHz = ptrInt(10)

	if !cfg.GetVerbose() {
		t.Error("expected verbose on")
	}
	if cfg.GetSmoothing() {
		t.Error("expected smoothing off")
	}
	if cfg.GetTargetHz() != 10 {
		t.Errorf("expected hz 10, got %d", cfg.GetTargetHz())
	}
}

func TestGetMetadataOut(t *testing.T) {
	cfg := Default()
	cfg.OutputDir = ptrString("/data/out")
	if got := cfg.GetMetadataOut(); got != "/data/out/metadata.json" {
		t.Errorf("expected default sidecar path under output dir, got %q", got)
	}

	cfg.MetadataOut = ptrString("/elsewhere/meta.json")
	if got := cfg.GetMetadataOut(); got != "/elsewhere/meta.json" {
		t.Errorf("expected explicit sidecar path, got %q", got)
	}
}
