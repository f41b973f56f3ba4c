package export

import (
	"encoding/csv"
	"fmt"
	"log"
	"strconv"

	"github.com/corridor-data/v2xtrace/internal/records"
)

func (e *Exporter) exportCSV(tables Tables) error {
	if err := e.writeTrajectoriesCSV(tables.Trajectories); err != nil {
		return err
	}
	if err := e.writeMessagesCSV(tables.Messages); err != nil {
		return err
	}
	return e.writeFusedCSV(tables.Fused)
}

func (e *Exporter) writeTrajectoriesCSV(samples []records.TrajectorySample) error {
	path := e.tablePath(trajectoriesName, ".csv")
	f, err := e.fsys.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	w.Write([]string{
		"vehicle_id", "timestamp_utc_ms", "lat_deg", "lon_deg", "alt_m",
		"x_m", "y_m", "speed_mps", "heading_deg",
		"quality_gap", "quality_extrapolated", "quality_low_speed",
	})
	for i := range samples {
		s := &samples[i]
		w.Write([]string{
			s.VehicleID,
			fmt.Sprintf("%d", s.TimestampMs),
			fmt.Sprintf("%g", s.LatDeg),
			fmt.Sprintf("%g", s.LonDeg),
			optFloatField(s.AltM),
			fmt.Sprintf("%g", s.XM),
			fmt.Sprintf("%g", s.YM),
			optFloatField(s.SpeedMps),
			optFloatField(s.HeadingDeg),
			strconv.FormatBool(s.Quality.Gap),
			strconv.FormatBool(s.Quality.Extrapolated),
			strconv.FormatBool(s.Quality.LowSpeed),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	log.Printf("wrote %d trajectory samples to %s", len(samples), path)
	return nil
}

func (e *Exporter) writeMessagesCSV(msgs []records.V2XMessage) error {
	path := e.tablePath(messagesName, ".csv")
	f, err := e.fsys.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	w.Write([]string{
		"vehicle_id", "station_id", "station_type",
		"timestamp_utc_ms", "tx_timestamp_utc_ms", "rx_timestamp_utc_ms",
		"direction", "rsu_id", "message_type",
		"payload_bytes", "frame_bytes", "latency_ms", "source_file",
	})
	for i := range msgs {
		m := &msgs[i]
		w.Write([]string{
			m.VehicleID,
			optStringField(m.StationID),
			optStringField(m.StationType),
			optIntField(m.TimestampMs),
			optIntField(m.TxTimestampMs),
			optIntField(m.RxTimestampMs),
			string(m.Direction),
			optStringField(m.RSUID),
			m.MessageType,
			optIntField(m.PayloadBytes),
			optIntField(m.FrameBytes),
			optFloatField(m.LatencyMs),
			m.SourceFile,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	log.Printf("wrote %d v2x messages to %s", len(msgs), path)
	return nil
}

func (e *Exporter) writeFusedCSV(fused []records.FusedRecord) error {
	path := e.tablePath(fusedName, ".csv")
	types, tokens := messageTypeColumns(fused)

	f, err := e.fsys.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	header := []string{
		"vehicle_id", "timestamp_utc_ms", "x_m", "y_m",
		"tx_bytes", "rx_bytes", "avg_latency_ms",
	}
	for _, tok := range tokens {
		header = append(header, "msg_count_"+tok)
	}
	w.Write(header)
	for i := range fused {
		rec := &fused[i]
		row := []string{
			rec.VehicleID,
			fmt.Sprintf("%d", rec.TimestampMs),
			fmt.Sprintf("%g", rec.XM),
			fmt.Sprintf("%g", rec.YM),
			fmt.Sprintf("%d", rec.TxBytes),
			fmt.Sprintf("%d", rec.RxBytes),
			optFloatField(rec.AvgLatencyMs),
		}
		for _, typ := range types {
			row = append(row, strconv.Itoa(rec.MsgCounts[typ]))
		}
		w.Write(row)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	log.Printf("wrote %d fused records to %s", len(fused), path)
	return nil
}

func optFloatField(p *float64) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("%g", *p)
}

func optIntField(p *int64) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("%d", *p)
}

func optStringField(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
