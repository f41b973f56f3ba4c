// Package tracedb persists pipeline outputs to a SQLite database so runs
// can be inspected and joined with SQL instead of flat files.
package tracedb

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/corridor-data/v2xtrace/internal/records"
)

//go:embed schema.sql
var schemaSQL string

// TraceDB wraps a SQLite database holding runs, trajectories, messages and
// fused records. One database can hold any number of runs; every row carries
// its run_id.
type TraceDB struct {
	*sql.DB
}

// Open opens (creating if needed) the trace database at path and applies
// the schema.
func Open(path string) (*TraceDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening trace database %s: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying trace database schema: %w", err)
	}
	return &TraceDB{db}, nil
}

// InsertRun records one run's metadata. Inserting the same run_id twice
// is an error.
func (t *TraceDB) InsertRun(ctx context.Context, md records.RunMetadata) error {
	_, err := t.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, crs, origin_lat, origin_lon, origin_alt,
			hz, gap_threshold_s, sync_tolerance_ms, region_mode,
			input_dir, output_dir, format, started_at, finished_at,
			files, gnss_records, v2x_records, samples, fused, vehicles
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		md.RunID, md.CRS, md.OriginLat, md.OriginLon, md.OriginAlt,
		md.TargetHz, md.GapThresholdS, md.SyncToleranceMs, md.RegionMode,
		md.InputDir, md.OutputDir, md.Format,
		md.StartedAt.UTC().Format(time.RFC3339Nano),
		md.FinishedAt.UTC().Format(time.RFC3339Nano),
		md.Counts.Files, md.Counts.GnssRecords, md.Counts.V2XRecords,
		md.Counts.Samples, md.Counts.Fused, md.Counts.Vehicles,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", md.RunID, err)
	}
	return nil
}

// InsertTrajectories writes all samples in one transaction.
func (t *TraceDB) InsertTrajectories(ctx context.Context, runID string, samples []records.TrajectorySample) error {
	tx, err := t.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning trajectory transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trajectories (
			run_id, vehicle_id, timestamp_utc_ms, lat_deg, lon_deg, alt_m,
			x_m, y_m, speed_mps, heading_deg,
			quality_gap, quality_extrapolated, quality_low_speed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing trajectory insert: %w", err)
	}
	defer stmt.Close()

	for i := range samples {
		s := &samples[i]
		_, err := stmt.ExecContext(ctx,
			runID, s.VehicleID, s.TimestampMs, s.LatDeg, s.LonDeg, s.AltM,
			s.XM, s.YM, s.SpeedMps, s.HeadingDeg,
			boolToInt(s.Quality.Gap), boolToInt(s.Quality.Extrapolated),
			boolToInt(s.Quality.LowSpeed),
		)
		if err != nil {
			return fmt.Errorf("inserting trajectory sample for %s: %w", s.VehicleID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing trajectory transaction: %w", err)
	}
	return nil
}

// InsertMessages writes all V2X messages in one transaction.
func (t *TraceDB) InsertMessages(ctx context.Context, runID string, msgs []records.V2XMessage) error {
	tx, err := t.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning message transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO v2x_messages (
			run_id, vehicle_id, station_id, station_type,
			timestamp_utc_ms, tx_timestamp_utc_ms, rx_timestamp_utc_ms,
			direction, rsu_id, message_type,
			payload_bytes, frame_bytes, latency_ms, source_file
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing message insert: %w", err)
	}
	defer stmt.Close()

	for i := range msgs {
		m := &msgs[i]
		_, err := stmt.ExecContext(ctx,
			runID, m.VehicleID, derefString(m.StationID), derefString(m.StationType),
			m.TimestampMs, m.TxTimestampMs, m.RxTimestampMs,
			string(m.Direction), derefString(m.RSUID), m.MessageType,
			m.PayloadBytes, m.FrameBytes, m.LatencyMs, m.SourceFile,
		)
		if err != nil {
			return fmt.Errorf("inserting message for %s: %w", m.VehicleID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing message transaction: %w", err)
	}
	return nil
}

// InsertFused writes all fused records in one transaction. Message counts
// are stored as a JSON object keyed by message type.
func (t *TraceDB) InsertFused(ctx context.Context, runID string, fused []records.FusedRecord) error {
	tx, err := t.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning fused transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO fused_data (
			run_id, vehicle_id, timestamp_utc_ms, x_m, y_m,
			tx_bytes, rx_bytes, avg_latency_ms, msg_counts
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing fused insert: %w", err)
	}
	defer stmt.Close()

	for i := range fused {
		f := &fused[i]
		counts, err := json.Marshal(f.MsgCounts)
		if err != nil {
			return fmt.Errorf("encoding message counts for %s: %w", f.VehicleID, err)
		}
		_, err = stmt.ExecContext(ctx,
			runID, f.VehicleID, f.TimestampMs, f.XM, f.YM,
			f.TxBytes, f.RxBytes, f.AvgLatencyMs, string(counts),
		)
		if err != nil {
			return fmt.Errorf("inserting fused record for %s: %w", f.VehicleID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing fused transaction: %w", err)
	}
	return nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
