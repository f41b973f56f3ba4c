package export

import (
	"fmt"
	"log"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/corridor-data/v2xtrace/internal/records"
)

const parquetParallelism = 4

// trajectoryRow is the parquet layout of one trajectory sample.
type trajectoryRow struct {
	VehicleID           string   `parquet:"name=vehicle_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	TimestampMs         int64    `parquet:"name=timestamp_utc_ms, type=INT64"`
	LatDeg              float64  `parquet:"name=lat_deg, type=DOUBLE"`
	LonDeg              float64  `parquet:"name=lon_deg, type=DOUBLE"`
	AltM                *float64 `parquet:"name=alt_m, type=DOUBLE, repetitiontype=OPTIONAL"`
	XM                  float64  `parquet:"name=x_m, type=DOUBLE"`
	YM                  float64  `parquet:"name=y_m, type=DOUBLE"`
	SpeedMps            *float64 `parquet:"name=speed_mps, type=DOUBLE, repetitiontype=OPTIONAL"`
	HeadingDeg          *float64 `parquet:"name=heading_deg, type=DOUBLE, repetitiontype=OPTIONAL"`
	QualityGap          bool     `parquet:"name=quality_gap, type=BOOLEAN"`
	QualityExtrapolated bool     `parquet:"name=quality_extrapolated, type=BOOLEAN"`
	QualityLowSpeed     bool     `parquet:"name=quality_low_speed, type=BOOLEAN"`
}

// messageRow is the parquet layout of one V2X message.
type messageRow struct {
	VehicleID     string   `parquet:"name=vehicle_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	StationID     *string  `parquet:"name=station_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	StationType   *string  `parquet:"name=station_type, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	TimestampMs   *int64   `parquet:"name=timestamp_utc_ms, type=INT64, repetitiontype=OPTIONAL"`
	TxTimestampMs *int64   `parquet:"name=tx_timestamp_utc_ms, type=INT64, repetitiontype=OPTIONAL"`
	RxTimestampMs *int64   `parquet:"name=rx_timestamp_utc_ms, type=INT64, repetitiontype=OPTIONAL"`
	Direction     string   `parquet:"name=direction, type=BYTE_ARRAY, convertedtype=UTF8"`
	RSUID         *string  `parquet:"name=rsu_id, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	MessageType   string   `parquet:"name=message_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	PayloadBytes  *int64   `parquet:"name=payload_bytes, type=INT64, repetitiontype=OPTIONAL"`
	FrameBytes    *int64   `parquet:"name=frame_bytes, type=INT64, repetitiontype=OPTIONAL"`
	LatencyMs     *float64 `parquet:"name=latency_ms, type=DOUBLE, repetitiontype=OPTIONAL"`
	SourceFile    string   `parquet:"name=source_file, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func (e *Exporter) exportParquet(tables Tables) error {
	if err := e.writeTrajectoriesParquet(tables.Trajectories); err != nil {
		return err
	}
	if err := e.writeMessagesParquet(tables.Messages); err != nil {
		return err
	}
	return e.writeFusedParquet(tables.Fused)
}

func (e *Exporter) writeTrajectoriesParquet(samples []records.TrajectorySample) error {
	path := e.tablePath(trajectoriesName, ".parquet")
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	pw, err := writer.NewParquetWriter(fw, new(trajectoryRow), parquetParallelism)
	if err != nil {
		fw.Close()
		return fmt.Errorf("creating parquet writer for %s: %w", path, err)
	}
	for i := range samples {
		s := &samples[i]
		row := trajectoryRow{
			VehicleID:           s.VehicleID,
			TimestampMs:         s.TimestampMs,
			LatDeg:              s.LatDeg,
			LonDeg:              s.LonDeg,
			AltM:                s.AltM,
			XM:                  s.XM,
			YM:                  s.YM,
			SpeedMps:            s.SpeedMps,
			HeadingDeg:          s.HeadingDeg,
			QualityGap:          s.Quality.Gap,
			QualityExtrapolated: s.Quality.Extrapolated,
			QualityLowSpeed:     s.Quality.LowSpeed,
		}
		if err := pw.Write(row); err != nil {
			fw.Close()
			return fmt.Errorf("writing trajectory row to %s: %w", path, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("finalizing %s: %w", path, err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	log.Printf("wrote %d trajectory samples to %s", len(samples), path)
	return nil
}

func (e *Exporter) writeMessagesParquet(msgs []records.V2XMessage) error {
	path := e.tablePath(messagesName, ".parquet")
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	pw, err := writer.NewParquetWriter(fw, new(messageRow), parquetParallelism)
	if err != nil {
		fw.Close()
		return fmt.Errorf("creating parquet writer for %s: %w", path, err)
	}
	for i := range msgs {
		m := &msgs[i]
		row := messageRow{
			VehicleID:     m.VehicleID,
			StationID:     m.StationID,
			StationType:   m.StationType,
			TimestampMs:   m.TimestampMs,
			TxTimestampMs: m.TxTimestampMs,
			RxTimestampMs: m.RxTimestampMs,
			Direction:     string(m.Direction),
			RSUID:         m.RSUID,
			MessageType:   m.MessageType,
			PayloadBytes:  m.PayloadBytes,
			FrameBytes:    m.FrameBytes,
			LatencyMs:     m.LatencyMs,
			SourceFile:    m.SourceFile,
		}
		if err := pw.Write(row); err != nil {
			fw.Close()
			return fmt.Errorf("writing message row to %s: %w", path, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("finalizing %s: %w", path, err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	log.Printf("wrote %d v2x messages to %s", len(msgs), path)
	return nil
}

// writeFusedParquet builds its schema at runtime because the set of
// msg_count_<type> columns depends on the message types seen in the run.
func (e *Exporter) writeFusedParquet(fused []records.FusedRecord) error {
	path := e.tablePath(fusedName, ".parquet")
	types, tokens := messageTypeColumns(fused)

	md := []string{
		"name=vehicle_id, type=BYTE_ARRAY, convertedtype=UTF8",
		"name=timestamp_utc_ms, type=INT64",
		"name=x_m, type=DOUBLE",
		"name=y_m, type=DOUBLE",
		"name=tx_bytes, type=INT64",
		"name=rx_bytes, type=INT64",
		"name=avg_latency_ms, type=DOUBLE, repetitiontype=OPTIONAL",
	}
	for _, tok := range tokens {
		md = append(md, fmt.Sprintf("name=msg_count_%s, type=INT64", tok))
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	pw, err := writer.NewCSVWriter(md, fw, parquetParallelism)
	if err != nil {
		fw.Close()
		return fmt.Errorf("creating parquet writer for %s: %w", path, err)
	}
	for i := range fused {
		f := &fused[i]
		row := make([]interface{}, 0, len(md))
		row = append(row, f.VehicleID, f.TimestampMs, f.XM, f.YM, f.TxBytes, f.RxBytes)
		if f.AvgLatencyMs != nil {
			row = append(row, *f.AvgLatencyMs)
		} else {
			row = append(row, nil)
		}
		for _, typ := range types {
			row = append(row, int64(f.MsgCounts[typ]))
		}
		if err := pw.Write(row); err != nil {
			fw.Close()
			return fmt.Errorf("writing fused row to %s: %w", path, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("finalizing %s: %w", path, err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	log.Printf("wrote %d fused records to %s", len(fused), path)
	return nil
}
