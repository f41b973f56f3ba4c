package records

import (
	"testing"

	"github.com/corridor-data/v2xtrace/internal/units"
)

func TestParseGnss(t *testing.T) {
	t.Run("complete record", func(t *testing.T) {
		obj := map[string]any{
			"stationID": "vehicle_001",
			"latitude":  50.7753,
			"longitude": 6.0839,
			"altitude":  201.5,
			"speed":     13.9,
			"heading":   87.0,
			"timestamp": float64(1678901234),
		}
		fix, ok := ParseGnss(obj, units.Auto, "a.json")
		if !ok {
			t.Fatal("expected fix, got skip")
		}
		if fix.VehicleID != "vehicle_001" {
			t.Errorf("VehicleID = %q, want vehicle_001", fix.VehicleID)
		}
		if fix.TimestampMs != 1678901234000 {
			t.Errorf("TimestampMs = %d, want 1678901234000", fix.TimestampMs)
		}
		if fix.LatDeg != 50.7753 || fix.LonDeg != 6.0839 {
			t.Errorf("coordinates = (%f, %f), want (50.7753, 6.0839)", fix.LatDeg, fix.LonDeg)
		}
		if fix.AltM == nil || *fix.AltM != 201.5 {
			t.Errorf("AltM = %v, want 201.5", fix.AltM)
		}
		if fix.SpeedMps == nil || *fix.SpeedMps != 13.9 {
			t.Errorf("SpeedMps = %v, want 13.9", fix.SpeedMps)
		}
		if fix.SourceFile != "a.json" {
			t.Errorf("SourceFile = %q, want a.json", fix.SourceFile)
		}
	})

	t.Run("alternate key spellings", func(t *testing.T) {
		obj := map[string]any{
			"vehicle_id":   "v2",
			"lat":          51.0,
			"lon":          7.0,
			"speed_mps":    3.0,
			"heading_deg":  180.0,
			"altitude_m":   12.0,
			"timestamp_utc_ms": float64(1678901234000),
		}
		fix, ok := ParseGnss(obj, units.Auto, "")
		if !ok {
			t.Fatal("expected fix, got skip")
		}
		if fix.VehicleID != "v2" || fix.LatDeg != 51.0 || fix.LonDeg != 7.0 {
			t.Errorf("unexpected fix %+v", fix)
		}
		if fix.TimestampMs != 1678901234000 {
			t.Errorf("TimestampMs = %d, want 1678901234000", fix.TimestampMs)
		}
	})

	t.Run("numeric station id becomes string", func(t *testing.T) {
		obj := map[string]any{
			"stationID": float64(123456),
			"latitude":  50.0,
			"longitude": 6.0,
			"timestamp": float64(1678901234),
		}
		fix, ok := ParseGnss(obj, units.Auto, "")
		if !ok {
			t.Fatal("expected fix, got skip")
		}
		if fix.VehicleID != "123456" {
			t.Errorf("VehicleID = %q, want 123456", fix.VehicleID)
		}
		if fix.StationID == nil || *fix.StationID != "123456" {
			t.Errorf("StationID = %v, want 123456", fix.StationID)
		}
	})

	t.Run("missing mandatory fields", func(t *testing.T) {
		tests := []struct {
			name string
			obj  map[string]any
		}{
			{"no vehicle id", map[string]any{"latitude": 50.0, "longitude": 6.0, "timestamp": float64(1678901234)}},
			{"no timestamp", map[string]any{"stationID": "v1", "latitude": 50.0, "longitude": 6.0}},
			{"no latitude", map[string]any{"stationID": "v1", "longitude": 6.0, "timestamp": float64(1678901234)}},
			{"no longitude", map[string]any{"stationID": "v1", "latitude": 50.0, "timestamp": float64(1678901234)}},
			{"null latitude", map[string]any{"stationID": "v1", "latitude": nil, "longitude": 6.0, "timestamp": float64(1678901234)}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, ok := ParseGnss(tt.obj, units.Auto, ""); ok {
					t.Error("expected skip, got fix")
				}
			})
		}
	})

	t.Run("out of range coordinates", func(t *testing.T) {
		obj := map[string]any{
			"stationID": "v1",
			"latitude":  95.0,
			"longitude": 6.0,
			"timestamp": float64(1678901234),
		}
		if _, ok := ParseGnss(obj, units.Auto, ""); ok {
			t.Error("expected skip for latitude 95.0")
		}
	})
}

func TestParseV2X(t *testing.T) {
	t.Run("latency from tx and rx", func(t *testing.T) {
		obj := map[string]any{
			"stationID":    "vehicle_001",
			"messageType":  "CAM",
			"tx_timestamp": float64(1000),
			"rx_timestamp": float64(1050),
		}
		msg, ok := ParseV2X(obj, units.Millis, "")
		if !ok {
			t.Fatal("expected message, got skip")
		}
		if msg.LatencyMs == nil || *msg.LatencyMs != 50.0 {
			t.Errorf("LatencyMs = %v, want 50.0", msg.LatencyMs)
		}
		if msg.MessageType != "CAM" {
			t.Errorf("MessageType = %q, want CAM", msg.MessageType)
		}
	})

	t.Run("negative latency retained", func(t *testing.T) {
		obj := map[string]any{
			"stationID":    "v1",
			"tx_timestamp": float64(2000),
			"rx_timestamp": float64(1900),
		}
		msg, ok := ParseV2X(obj, units.Millis, "")
		if !ok {
			t.Fatal("expected message, got skip")
		}
		if msg.LatencyMs == nil || *msg.LatencyMs != -100.0 {
			t.Errorf("LatencyMs = %v, want -100.0", msg.LatencyMs)
		}
	})

	t.Run("no latency with only one timestamp", func(t *testing.T) {
		obj := map[string]any{
			"stationID":    "v1",
			"tx_timestamp": float64(1678901234000),
		}
		msg, ok := ParseV2X(obj, units.Auto, "")
		if !ok {
			t.Fatal("expected message, got skip")
		}
		if msg.LatencyMs != nil {
			t.Errorf("LatencyMs = %v, want nil", *msg.LatencyMs)
		}
		if msg.TxTimestampMs == nil || *msg.TxTimestampMs != 1678901234000 {
			t.Errorf("TxTimestampMs = %v, want 1678901234000", msg.TxTimestampMs)
		}
	})

	t.Run("requires a timestamp", func(t *testing.T) {
		obj := map[string]any{"stationID": "v1", "messageType": "CAM"}
		if _, ok := ParseV2X(obj, units.Auto, ""); ok {
			t.Error("expected skip for record with no timestamp")
		}
	})

	t.Run("requires a vehicle id", func(t *testing.T) {
		obj := map[string]any{"messageType": "CAM", "timestamp": float64(1678901234)}
		if _, ok := ParseV2X(obj, units.Auto, ""); ok {
			t.Error("expected skip for record with no vehicle id")
		}
	})

	t.Run("direction and metadata", func(t *testing.T) {
		obj := map[string]any{
			"station_id":    "v1",
			"timestamp":     float64(1678901234),
			"direction":     "uplink_to_rsu",
			"rsu_id":        "rsu_17",
			"payload_bytes": float64(256),
			"frame_bytes":   float64(300),
			"station_type":  "passengerCar",
		}
		msg, ok := ParseV2X(obj, units.Auto, "")
		if !ok {
			t.Fatal("expected message, got skip")
		}
		if msg.Direction != DirectionUplink {
			t.Errorf("Direction = %q, want %q", msg.Direction, DirectionUplink)
		}
		if msg.RSUID == nil || *msg.RSUID != "rsu_17" {
			t.Errorf("RSUID = %v, want rsu_17", msg.RSUID)
		}
		if msg.PayloadBytes == nil || *msg.PayloadBytes != 256 {
			t.Errorf("PayloadBytes = %v, want 256", msg.PayloadBytes)
		}
		if msg.FrameBytes == nil || *msg.FrameBytes != 300 {
			t.Errorf("FrameBytes = %v, want 300", msg.FrameBytes)
		}
	})

	t.Run("invalid direction dropped", func(t *testing.T) {
		obj := map[string]any{
			"stationID": "v1",
			"timestamp": float64(1678901234),
			"direction": "sideways",
		}
		msg, ok := ParseV2X(obj, units.Auto, "")
		if !ok {
			t.Fatal("expected message, got skip")
		}
		if msg.Direction != DirectionUnknown {
			t.Errorf("Direction = %q, want unset", msg.Direction)
		}
	})
}

func TestParseRecords(t *testing.T) {
	t.Run("object with both shapes parses as both", func(t *testing.T) {
		objs := []map[string]any{{
			"stationID":    "v1",
			"latitude":     50.0,
			"longitude":    6.0,
			"timestamp":    float64(1678901234),
			"messageType":  "CAM",
			"tx_timestamp": float64(1678901234100),
			"rx_timestamp": float64(1678901234120),
		}}
		fixes, msgs := ParseRecords(objs, units.Auto, "both.json")
		if len(fixes) != 1 {
			t.Fatalf("got %d fixes, want 1", len(fixes))
		}
		if len(msgs) != 1 {
			t.Fatalf("got %d messages, want 1", len(msgs))
		}
		if msgs[0].LatencyMs == nil || *msgs[0].LatencyMs != 20.0 {
			t.Errorf("LatencyMs = %v, want 20.0", msgs[0].LatencyMs)
		}
	})

	t.Run("order preserved", func(t *testing.T) {
		objs := []map[string]any{
			{"stationID": "v1", "latitude": 50.0, "longitude": 6.0, "timestamp": float64(1000)},
			{"stationID": "v2", "latitude": 50.1, "longitude": 6.1, "timestamp": float64(2000)},
			{"stationID": "v3", "latitude": 50.2, "longitude": 6.2, "timestamp": float64(3000)},
		}
		fixes, _ := ParseRecords(objs, units.Millis, "")
		if len(fixes) != 3 {
			t.Fatalf("got %d fixes, want 3", len(fixes))
		}
		for i, want := range []string{"v1", "v2", "v3"} {
			if fixes[i].VehicleID != want {
				t.Errorf("fixes[%d].VehicleID = %q, want %q", i, fixes[i].VehicleID, want)
			}
		}
	})

	t.Run("unparseable objects skipped", func(t *testing.T) {
		objs := []map[string]any{
			{"note": "nothing useful"},
			{"stationID": "v1", "latitude": 50.0, "longitude": 6.0, "timestamp": float64(1000)},
		}
		fixes, msgs := ParseRecords(objs, units.Millis, "")
		if len(fixes) != 1 {
			t.Errorf("got %d fixes, want 1", len(fixes))
		}
		if len(msgs) != 1 {
			t.Errorf("got %d messages, want 1 (position record has id and timestamp)", len(msgs))
		}
	})

	t.Run("topic tags route to one shape", func(t *testing.T) {
		objs := []map[string]any{
			{"_topic": "/gps/cohda_mk5/fix", "stationID": "v1", "latitude": 50.0, "longitude": 6.0, "timestamp": float64(1000)},
			{"_topic": "/v2x/cam", "stationID": "v1", "timestamp": float64(1000), "messageType": "CAM"},
		}
		fixes, msgs := ParseRecords(objs, units.Millis, "")
		if len(fixes) != 1 || fixes[0].VehicleID != "v1" {
			t.Errorf("got %d fixes, want 1 from the position topic", len(fixes))
		}
		if len(msgs) != 1 || msgs[0].MessageType != "CAM" {
			t.Errorf("got %d messages, want 1 from the message topic", len(msgs))
		}
	})
}
