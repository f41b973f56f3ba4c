// Package pipeline runs the batch stages in order: discover, parse,
// identity fixes, geographic filter, trajectory building, coordinate
// transform, fusion, export. Per-file and per-record problems are logged
// and skipped; only configuration errors and export failures abort a run.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/corridor-data/v2xtrace/internal/config"
	"github.com/corridor-data/v2xtrace/internal/discover"
	"github.com/corridor-data/v2xtrace/internal/export"
	"github.com/corridor-data/v2xtrace/internal/fsutil"
	"github.com/corridor-data/v2xtrace/internal/fusion"
	"github.com/corridor-data/v2xtrace/internal/geodesy"
	"github.com/corridor-data/v2xtrace/internal/geofilter"
	"github.com/corridor-data/v2xtrace/internal/records"
	"github.com/corridor-data/v2xtrace/internal/stationid"
	"github.com/corridor-data/v2xtrace/internal/trajectory"
	"github.com/corridor-data/v2xtrace/internal/units"
)

// Stats summarizes one pipeline run.
type Stats struct {
	Files         int
	GnssRecords   int
	V2XRecords    int
	FilteredFixes int
	Vehicles      int
	Samples       int
	Fused         int
	TxBytes       int64
	RxBytes       int64
}

// Run executes the batch pipeline under cfg. The metadata sidecar is
// written even when a stage fails, so it always records how far the run
// got.
func Run(ctx context.Context, fsys fsutil.FileSystem, cfg *config.Config) (Stats, error) {
	var stats Stats

	if err := cfg.Validate(); err != nil {
		return stats, fmt.Errorf("invalid configuration: %w", err)
	}
	inputDir := cfg.GetInputDir()
	if inputDir == "" {
		return stats, fmt.Errorf("invalid configuration: input directory is required")
	}
	outputDir := cfg.GetOutputDir()
	if outputDir == "" {
		return stats, fmt.Errorf("invalid configuration: output directory is required")
	}
	region, err := buildRegion(fsys, cfg)
	if err != nil {
		return stats, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.GetVerbose() {
		records.SetDebugLogger(os.Stderr)
		defer records.SetDebugLogger(nil)
	}

	ex, err := export.NewExporter(fsys, outputDir, cfg.GetFormat())
	if err != nil {
		return stats, err
	}

	md := records.RunMetadata{
		RunID:           export.NewRunID(),
		TargetHz:        cfg.GetTargetHz(),
		GapThresholdS:   cfg.GetGapThresholdS(),
		SyncToleranceMs: cfg.GetSyncToleranceMs(),
		InputDir:        inputDir,
		OutputDir:       outputDir,
		Format:          cfg.GetFormat(),
		StartedAt:       time.Now().UTC(),
	}
	if region != nil {
		md.RegionMode = cfg.GetRegionMode()
	}
	log.Printf("starting run %s on %s", md.RunID, inputDir)

	// fail writes the sidecar with the counts so far, then returns err.
	fail := func(err error) (Stats, error) {
		md.FinishedAt = time.Now().UTC()
		md.Counts = countsOf(stats)
		md.Notes = append(md.Notes, err.Error())
		if werr := ex.WriteMetadata(cfg.GetMetadataOut(), md); werr != nil {
			log.Printf("could not write metadata after failure: %v", werr)
		}
		return stats, err
	}

	// Stage 1: discovery.
	files, err := discover.FindFiles(fsys, inputDir, cfg.ScenarioDirs)
	if err != nil {
		return fail(fmt.Errorf("discovering input files: %w", err))
	}
	if len(files) == 0 {
		return fail(fmt.Errorf("no JSON files found under %s", inputDir))
	}
	stats.Files = len(files)

	identity, rsuIDs, err := loadIdentitySidecars(fsys, cfg)
	if err != nil {
		return fail(err)
	}

	// Stage 2: parse every file; malformed files are skipped.
	var fixes []records.GnssFix
	var msgs []records.V2XMessage
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		objs, err := discover.ReadObjects(fsys, path)
		if err != nil {
			log.Printf("skipping %s: %v", path, err)
			continue
		}
		// Recording files identify the vehicle once per drive log, not
		// per record; infer it from the CAM/DENM station ids and stamp
		// the records that lack one.
		if ids := stationid.Harvest(objs); len(ids) > 0 {
			if vehicleID := stationid.Infer(ids, stationid.DefaultMinShare); vehicleID != stationid.Unknown {
				stationid.Assign(objs, vehicleID)
			}
		}
		f, m := records.ParseRecords(objs, units.Auto, path)
		if n := negativeLatencies(m); n > 0 {
			log.Printf("%s: %d messages with negative latency (likely clock skew); values retained", path, n)
		}
		fixes = append(fixes, f...)
		msgs = append(msgs, m...)
	}
	stats.GnssRecords = len(fixes)
	stats.V2XRecords = len(msgs)
	log.Printf("parsed %d gnss fixes and %d v2x messages from %d files",
		len(fixes), len(msgs), len(files))

	// Stage 3: identity map and RSU exclusion.
	fixes, msgs = applyIdentity(fixes, msgs, identity, rsuIDs)

	// Stage 4: geographic filter.
	if region != nil {
		mode := geofilter.Mode(cfg.GetRegionMode())
		filtered, err := geofilter.Filter(fixes, region, mode)
		if err != nil {
			return fail(fmt.Errorf("applying region filter: %w", err))
		}
		sum := geofilter.Summarize(fixes, filtered)
		log.Printf("region %s (%s): kept %d of %d fixes (%.1f%% reduction), %d of %d vehicles",
			region, mode, sum.FilteredCount, sum.OriginalCount, sum.ReductionPct,
			sum.FilteredVehicles, sum.OriginalVehicles)
		fixes = filtered
	}
	stats.FilteredFixes = len(fixes)

	// Stage 5: per-vehicle trajectory building, fanned out over workers.
	groups := records.GroupFixesByVehicle(fixes)
	vehicles := make([]string, 0, len(groups))
	for id := range groups {
		vehicles = append(vehicles, id)
	}
	sort.Strings(vehicles)

	tcfg := trajectory.Config{
		TargetHz:             cfg.GetTargetHz(),
		GapThresholdS:        cfg.GetGapThresholdS(),
		SmoothingWindow:      cfg.GetSmoothingWindow(),
		Smoothing:            cfg.GetSmoothing(),
		LowSpeedThresholdMps: cfg.GetLowSpeedMps(),
	}
	built := buildTrajectories(ctx, vehicles, groups, tcfg, cfg.GetWorkers())
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	// Flatten in sorted vehicle order. The per-vehicle map re-slices the
	// flat buffer so the coordinate transform below updates both views.
	total := 0
	for _, id := range vehicles {
		total += len(built[id])
	}
	all := make([]records.TrajectorySample, 0, total)
	byVehicle := make(map[string][]records.TrajectorySample, len(built))
	for _, id := range vehicles {
		samples := built[id]
		if len(samples) == 0 {
			continue
		}
		lo := len(all)
		all = append(all, samples...)
		byVehicle[id] = all[lo:len(all):len(all)]
	}
	stats.Vehicles = len(byVehicle)
	stats.Samples = len(all)
	if len(all) == 0 {
		return fail(fmt.Errorf("no trajectory samples produced from %d fixes", len(fixes)))
	}

	// Stage 6: one shared origin, then the coordinate transform.
	origin, err := resolveOrigin(all, cfg)
	if err != nil {
		return fail(err)
	}
	transformer, err := geodesy.NewTransformer(geodesy.Frame(cfg.GetFrame()), origin)
	if err != nil {
		return fail(err)
	}
	transformer.Apply(all)
	md.CRS = transformer.CRS()
	md.OriginLat = origin.LatDeg
	md.OriginLon = origin.LonDeg
	md.OriginAlt = origin.AltM
	log.Printf("projected %d samples into %s", len(all), md.CRS)

	// Stage 7: fusion.
	fusedByVehicle := fusion.FuseAll(byVehicle, records.GroupMessagesByVehicle(msgs), cfg.GetSyncToleranceMs())
	fused := make([]records.FusedRecord, 0, len(all))
	for _, id := range vehicles {
		fused = append(fused, fusedByVehicle[id]...)
	}
	stats.Fused = len(fused)
	for i := range fused {
		stats.TxBytes += fused[i].TxBytes
		stats.RxBytes += fused[i].RxBytes
	}

	// Stage 8: export tables, then the sidecar.
	md.FinishedAt = time.Now().UTC()
	md.Counts = countsOf(stats)
	tables := export.Tables{Trajectories: all, Messages: msgs, Fused: fused}
	if err := ex.Export(ctx, tables, md); err != nil {
		return fail(err)
	}
	if err := ex.WriteMetadata(cfg.GetMetadataOut(), md); err != nil {
		return stats, err
	}

	log.Printf("run %s complete: %d files, %d vehicles, %d samples, %d fused records, %d/%d tx/rx bytes",
		md.RunID, stats.Files, stats.Vehicles, stats.Samples, stats.Fused,
		stats.TxBytes, stats.RxBytes)
	return stats, nil
}

// buildRegion constructs the configured filter region, or nil when no
// region is configured.
func buildRegion(fsys fsutil.FileSystem, cfg *config.Config) (*geofilter.Region, error) {
	hasBBox := len(cfg.RegionBBox) == 4
	hasPolygon := cfg.RegionPolygonPath != nil && *cfg.RegionPolygonPath != ""
	switch {
	case hasBBox && hasPolygon:
		return nil, fmt.Errorf("configure region_bbox or region_polygon_path, not both")
	case hasBBox:
		b := cfg.RegionBBox
		return geofilter.NewBBox(b[0], b[1], b[2], b[3])
	case hasPolygon:
		return geofilter.LoadGeoJSON(fsys, *cfg.RegionPolygonPath)
	}
	return nil, nil
}

func loadIdentitySidecars(fsys fsutil.FileSystem, cfg *config.Config) (map[string]string, map[string]bool, error) {
	var identity map[string]string
	var rsuIDs map[string]bool
	var err error
	if path := cfg.GetIdsMapPath(); path != "" {
		identity, err = stationid.LoadIdentityMap(fsys, path)
		if err != nil {
			return nil, nil, err
		}
	}
	if path := cfg.GetRSUIDsPath(); path != "" {
		rsuIDs, err = stationid.LoadRSUIDs(fsys, path)
		if err != nil {
			return nil, nil, err
		}
	}
	return identity, rsuIDs, nil
}

// applyIdentity renames vehicle ids through the identity map and drops
// GNSS fixes logged by RSU stations, which are static roadside units, not
// vehicles. Their V2X messages stay.
func applyIdentity(fixes []records.GnssFix, msgs []records.V2XMessage, identity map[string]string, rsuIDs map[string]bool) ([]records.GnssFix, []records.V2XMessage) {
	if len(identity) == 0 && len(rsuIDs) == 0 {
		return fixes, msgs
	}
	kept := fixes[:0]
	dropped := 0
	for i := range fixes {
		fixes[i].VehicleID = stationid.Rename(identity, fixes[i].VehicleID)
		if rsuIDs[fixes[i].VehicleID] {
			dropped++
			continue
		}
		kept = append(kept, fixes[i])
	}
	if dropped > 0 {
		log.Printf("excluded %d gnss fixes logged by rsu stations", dropped)
	}
	for i := range msgs {
		msgs[i].VehicleID = stationid.Rename(identity, msgs[i].VehicleID)
	}
	return kept, msgs
}

// buildTrajectories runs trajectory.Build per vehicle on a bounded worker
// pool. Vehicles are independent, so workers share nothing but the result
// map. Cancellation stops the feed between vehicles.
func buildTrajectories(ctx context.Context, vehicles []string, groups map[string][]records.GnssFix, tcfg trajectory.Config, workers int) map[string][]records.TrajectorySample {
	out := make(map[string][]records.TrajectorySample, len(vehicles))
	if len(vehicles) == 0 {
		return out
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(vehicles) {
		workers = len(vehicles)
	}

	jobs := make(chan string)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				samples := trajectory.Build(id, groups[id], tcfg)
				if len(samples) == 0 {
					continue
				}
				mu.Lock()
				out[id] = samples
				mu.Unlock()
			}
		}()
	}

feed:
	for _, id := range vehicles {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- id:
		}
	}
	close(jobs)
	wg.Wait()
	return out
}

// resolveOrigin prefers an explicitly configured origin over the policy.
func resolveOrigin(samples []records.TrajectorySample, cfg *config.Config) (geodesy.Origin, error) {
	if len(cfg.Origin) == 2 {
		origin := geodesy.Origin{LonDeg: cfg.Origin[0], LatDeg: cfg.Origin[1]}
		log.Printf("using configured origin (%.6f, %.6f)", origin.LatDeg, origin.LonDeg)
		return origin, nil
	}
	return geodesy.SelectOrigin(samples, cfg.GetOriginPolicy())
}

func negativeLatencies(msgs []records.V2XMessage) int {
	n := 0
	for i := range msgs {
		if msgs[i].LatencyMs != nil && *msgs[i].LatencyMs < 0 {
			n++
		}
	}
	return n
}

func countsOf(s Stats) records.RunCounts {
	return records.RunCounts{
		Files:       s.Files,
		GnssRecords: s.GnssRecords,
		V2XRecords:  s.V2XRecords,
		Samples:     s.Samples,
		Fused:       s.Fused,
		Vehicles:    s.Vehicles,
	}
}
