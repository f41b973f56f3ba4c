package fusion

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/corridor-data/v2xtrace/internal/records"
)

func sampleAt(ts int64) records.TrajectorySample {
	return records.TrajectorySample{VehicleID: "v1", TimestampMs: ts, XM: 1.0, YM: 2.0}
}

func msgAt(ts int64, msgType string) records.V2XMessage {
	return records.V2XMessage{VehicleID: "v1", TimestampMs: &ts, MessageType: msgType}
}

func TestFuseVehicleWindow(t *testing.T) {
	msgs := []records.V2XMessage{
		msgAt(9500, "CAM"),  // lower boundary, inclusive
		msgAt(10500, "CAM"), // upper boundary, inclusive
		msgAt(9499, "CAM"),
		msgAt(10501, "CAM"),
	}

	fused := FuseVehicle([]records.TrajectorySample{sampleAt(10000)}, msgs, 500)

	if len(fused) != 1 {
		t.Fatalf("expected 1 fused record, got %d", len(fused))
	}
	want := records.FusedRecord{
		VehicleID:   "v1",
		TimestampMs: 10000,
		XM:          1.0,
		YM:          2.0,
		MsgCounts:   map[string]int{"CAM": 2},
	}
	if diff := cmp.Diff(want, fused[0]); diff != "" {
		t.Errorf("fused record mismatch (-want +got):\n%s", diff)
	}
}

func TestFuseBoundaryMessageCountsTwice(t *testing.T) {
	samples := []records.TrajectorySample{sampleAt(1000), sampleAt(2000)}
	msgs := []records.V2XMessage{msgAt(1500, "CAM")}

	fused := FuseVehicle(samples, msgs, 500)

	if len(fused) != 2 {
		t.Fatalf("expected 2 fused records, got %d", len(fused))
	}
	if fused[0].MsgCounts["CAM"] != 1 || fused[1].MsgCounts["CAM"] != 1 {
		t.Errorf("expected the boundary message in both windows, got %v and %v",
			fused[0].MsgCounts, fused[1].MsgCounts)
	}
}

func TestFuseDirectionBytes(t *testing.T) {
	up := msgAt(1000, "CAM")
	up.Direction = records.DirectionUplink
	up.PayloadBytes = ptrInt64(100)

	down := msgAt(1100, "DENM")
	down.Direction = records.DirectionDownlink
	down.PayloadBytes = ptrInt64(200)

	sideways := msgAt(1200, "CPM")
	sideways.Direction = records.DirectionV2V
	sideways.PayloadBytes = ptrInt64(300)

	noPayload := msgAt(900, "CAM")
	noPayload.Direction = records.DirectionUplink

	fused := FuseVehicle([]records.TrajectorySample{sampleAt(1000)}, []records.V2XMessage{up, down, sideways, noPayload}, 500)

	if fused[0].TxBytes != 100 {
		t.Errorf("expected 100 tx bytes, got %d", fused[0].TxBytes)
	}
	if fused[0].RxBytes != 200 {
		t.Errorf("expected 200 rx bytes, got %d", fused[0].RxBytes)
	}
}

func TestFuseLatencyAverage(t *testing.T) {
	a := msgAt(1000, "CAM")
	a.LatencyMs = ptrFloat(40.0)
	b := msgAt(1100, "CAM")
	b.LatencyMs = ptrFloat(60.0)
	c := msgAt(1200, "CAM") // no latency, must not drag the average

	fused := FuseVehicle([]records.TrajectorySample{sampleAt(1000)}, []records.V2XMessage{a, b, c}, 500)

	if fused[0].AvgLatencyMs == nil {
		t.Fatal("expected an average latency")
	}
	if *fused[0].AvgLatencyMs != 50.0 {
		t.Errorf("expected average latency 50.0, got %v", *fused[0].AvgLatencyMs)
	}
}

func TestFuseNegativeLatencyRetained(t *testing.T) {
	a := msgAt(1000, "CAM")
	a.LatencyMs = ptrFloat(-10.0)

	fused := FuseVehicle([]records.TrajectorySample{sampleAt(1000)}, []records.V2XMessage{a}, 500)

	if fused[0].AvgLatencyMs == nil || *fused[0].AvgLatencyMs != -10.0 {
		t.Errorf("expected average latency -10.0, got %v", fused[0].AvgLatencyMs)
	}
}

func TestFuseEmptyWindow(t *testing.T) {
	fused := FuseVehicle([]records.TrajectorySample{sampleAt(1000)}, nil, 500)

	if len(fused) != 1 {
		t.Fatalf("expected a record for the empty window, got %d", len(fused))
	}
	rec := fused[0]
	if rec.TxBytes != 0 || rec.RxBytes != 0 {
		t.Errorf("expected zero byte totals, got tx=%d rx=%d", rec.TxBytes, rec.RxBytes)
	}
	if rec.AvgLatencyMs != nil {
		t.Errorf("expected nil latency, got %v", *rec.AvgLatencyMs)
	}
	if len(rec.MsgCounts) != 0 {
		t.Errorf("expected no message counts, got %v", rec.MsgCounts)
	}
}

func TestFuseSkipsUntypedMessages(t *testing.T) {
	msgs := []records.V2XMessage{
		msgAt(1000, "CAM"),
		msgAt(1010, "CAM"),
		msgAt(1020, "DENM"),
		msgAt(1030, ""),
	}

	fused := FuseVehicle([]records.TrajectorySample{sampleAt(1000)}, msgs, 500)

	if fused[0].MsgCounts["CAM"] != 2 || fused[0].MsgCounts["DENM"] != 1 {
		t.Errorf("unexpected counts: %v", fused[0].MsgCounts)
	}
	if len(fused[0].MsgCounts) != 2 {
		t.Errorf("expected untyped message excluded from counts, got %v", fused[0].MsgCounts)
	}
}

func TestFuseUsesBestTimestamp(t *testing.T) {
	rx := int64(1200)
	m := records.V2XMessage{VehicleID: "v1", RxTimestampMs: &rx, MessageType: "CAM"}

	fused := FuseVehicle([]records.TrajectorySample{sampleAt(1000)}, []records.V2XMessage{m}, 500)

	if fused[0].MsgCounts["CAM"] != 1 {
		t.Errorf("expected rx-only message associated via its rx time, got %v", fused[0].MsgCounts)
	}
}

func TestFuseUnsortedMessages(t *testing.T) {
	msgs := []records.V2XMessage{
		msgAt(1400, "CAM"),
		msgAt(600, "CAM"),
		msgAt(1000, "DENM"),
	}

	fused := FuseVehicle([]records.TrajectorySample{sampleAt(1000)}, msgs, 500)

	if fused[0].MsgCounts["CAM"] != 2 || fused[0].MsgCounts["DENM"] != 1 {
		t.Errorf("expected all three messages in the window, got %v", fused[0].MsgCounts)
	}
}

func TestFuseAll(t *testing.T) {
	trajectories := map[string][]records.TrajectorySample{
		"v1": {sampleAt(1000)},
		"v2": {sampleAt(2000)},
	}
	messages := map[string][]records.V2XMessage{
		"v1":     {msgAt(1000, "CAM")},
		"orphan": {msgAt(5000, "CAM")},
	}

	fused := FuseAll(trajectories, messages, 500)

	if len(fused) != 2 {
		t.Fatalf("expected records for 2 vehicles, got %d", len(fused))
	}
	if fused["v1"][0].MsgCounts["CAM"] != 1 {
		t.Errorf("expected v1's message fused, got %v", fused["v1"][0].MsgCounts)
	}
	if len(fused["v2"]) != 1 || len(fused["v2"][0].MsgCounts) != 0 {
		t.Errorf("expected an empty record for v2, got %+v", fused["v2"])
	}
	if _, ok := fused["orphan"]; ok {
		t.Error("expected no record for a vehicle without a trajectory")
	}
}

func ptrInt64(v int64) *int64     { return &v }
func ptrFloat(v float64) *float64 { return &v }
