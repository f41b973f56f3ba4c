package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/corridor-data/v2xtrace/internal/config"
	"github.com/corridor-data/v2xtrace/internal/discover"
	"github.com/corridor-data/v2xtrace/internal/fsutil"
	"github.com/corridor-data/v2xtrace/internal/pipeline"
	"github.com/corridor-data/v2xtrace/internal/version"
)

var (
	configPath = flag.String("config", "", "Path to a JSON or YAML config file")

	inputDir  = flag.String("input", "", "Directory of recorded JSON drive logs")
	outputDir = flag.String("output", "", "Directory for the exported tables and metadata sidecar")

	regionBBox    = flag.String("region-bbox", "", "Region bounding box as min_lon,min_lat,max_lon,max_lat")
	regionPolygon = flag.String("region-polygon", "", "Path to a GeoJSON polygon for the region filter")
	regionMode    = flag.String("region-mode", "", "Region inclusion mode: intersect, contain or first (default intersect)")

	originFlag   = flag.String("origin", "", "Explicit projection origin as lon,lat (overrides -origin-policy)")
	originPolicy = flag.String("origin-policy", "", "Origin selection policy: first, centroid or median (default first)")
	frame        = flag.String("frame", "", "Planar frame: enu or utm (default enu)")

	targetHz      = flag.Int("hz", 0, "Trajectory resampling rate in Hz, 1-100 (default 1)")
	syncTolerance = flag.Int64("sync-tolerance-ms", 0, "Fusion window half-width in milliseconds (default 500)")
	gapThreshold  = flag.Float64("gap-threshold-s", 0, "Temporal gap in seconds that splits a trajectory (default 5)")

	format      = flag.String("format", "", "Export format: parquet, csv or sqlite (default parquet)")
	metadataOut = flag.String("metadata-out", "", "Path for the metadata sidecar (default <output>/metadata.json)")

	idsMapPath = flag.String("ids-map", "", "Path to a JSON map of raw station IDs to vehicle IDs")
	rsuIDsPath = flag.String("rsu-ids", "", "Path to a JSON array of RSU station IDs")

	sampleLimit = flag.Int("sample", 0, "Objects sampled per file by the verbose dataset pre-scan (default 100)")
	workers     = flag.Int("workers", 0, "Trajectory worker count (default: number of CPUs)")
	verbose     = flag.Bool("verbose", false, "Log per-record skip decisions and run a dataset pre-scan")

	showVersion = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("v2xtrace %s (commit %s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	fsys := fsutil.OSFileSystem{}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(fsys, *configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if err := applyFlags(cfg); err != nil {
		log.Fatalf("Invalid flag value: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The pre-scan samples each file without parsing, so it is cheap
	// relative to the batch itself and only runs when asked for.
	if cfg.GetVerbose() && cfg.GetInputDir() != "" {
		if sum, err := discover.Scan(fsys, cfg.GetInputDir(), cfg.GetSampleLimit()); err == nil {
			log.Printf("dataset: %d files, %d gnss / %d v2x / %d other records sampled, %d vehicles, types %v",
				sum.TotalFiles, sum.GnssRecords, sum.V2XRecords, sum.OtherRecords,
				len(sum.Vehicles), sum.MessageTypes)
		} else {
			log.Printf("dataset pre-scan failed: %v", err)
		}
	}

	stats, err := pipeline.Run(ctx, fsys, cfg)
	if err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}

	log.Printf("Wrote %d trajectory samples and %d fused records for %d vehicles to %s",
		stats.Samples, stats.Fused, stats.Vehicles, cfg.GetOutputDir())
}

// applyFlags copies every flag set on the command line onto cfg, so
// flags override file values while unset flags leave the file alone.
func applyFlags(cfg *config.Config) error {
	var err error
	flag.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "input":
			cfg.InputDir = inputDir
		case "output":
			cfg.OutputDir = outputDir
		case "region-bbox":
			var vals []float64
			if vals, err = parseCSVFloatSlice(*regionBBox); err == nil {
				cfg.RegionBBox = vals
			}
		case "region-polygon":
			cfg.RegionPolygonPath = regionPolygon
		case "region-mode":
			cfg.RegionMode = regionMode
		case "origin":
			var vals []float64
			if vals, err = parseCSVFloatSlice(*originFlag); err == nil {
				cfg.Origin = vals
			}
		case "origin-policy":
			cfg.OriginPolicy = originPolicy
		case "frame":
			cfg.Frame = frame
		case "hz":
			cfg.TargetHz = targetHz
		case "sync-tolerance-ms":
			cfg.SyncToleranceMs = syncTolerance
		case "gap-threshold-s":
			cfg.GapThresholdS = gapThreshold
		case "format":
			cfg.Format = format
		case "metadata-out":
			cfg.MetadataOut = metadataOut
		case "ids-map":
			cfg.IdsMapPath = idsMapPath
		case "rsu-ids":
			cfg.RSUIDsPath = rsuIDsPath
		case "sample":
			cfg.SampleLimit = sampleLimit
		case "workers":
			cfg.Workers = workers
		case "verbose":
			cfg.Verbose = verbose
		}
	})
	if err != nil {
		return err
	}
	return cfg.Validate()
}

// parseCSVFloatSlice parses a comma-separated list of floats
func parseCSVFloatSlice(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
