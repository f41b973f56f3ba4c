package records

import (
	"sort"
	"testing"
)

func TestGroupFixesByVehicle(t *testing.T) {
	fixes := []GnssFix{
		{VehicleID: "v2", TimestampMs: 3000},
		{VehicleID: "v1", TimestampMs: 2000},
		{VehicleID: "v1", TimestampMs: 1000},
		{VehicleID: "v2", TimestampMs: 1000},
	}
	groups := GroupFixesByVehicle(fixes)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	v1 := groups["v1"]
	if len(v1) != 2 || v1[0].TimestampMs != 1000 || v1[1].TimestampMs != 2000 {
		t.Errorf("v1 group not sorted by time: %+v", v1)
	}
	v2 := groups["v2"]
	if len(v2) != 2 || v2[0].TimestampMs != 1000 || v2[1].TimestampMs != 3000 {
		t.Errorf("v2 group not sorted by time: %+v", v2)
	}
}

func TestSortFixesByTimeDoesNotMutateInput(t *testing.T) {
	fixes := []GnssFix{
		{VehicleID: "v1", TimestampMs: 2000},
		{VehicleID: "v1", TimestampMs: 1000},
	}
	sorted := SortFixesByTime(fixes)
	if fixes[0].TimestampMs != 2000 {
		t.Error("input slice was reordered")
	}
	if sorted[0].TimestampMs != 1000 || sorted[1].TimestampMs != 2000 {
		t.Errorf("sorted = %+v, want ascending", sorted)
	}
}

func TestGroupMessagesByVehicle(t *testing.T) {
	msgs := []V2XMessage{
		{VehicleID: "v1", MessageType: "CAM"},
		{VehicleID: "v2", MessageType: "DENM"},
		{VehicleID: "v1", MessageType: "DENM"},
	}
	groups := GroupMessagesByVehicle(msgs)
	if len(groups["v1"]) != 2 {
		t.Errorf("got %d messages for v1, want 2", len(groups["v1"]))
	}
	if groups["v1"][0].MessageType != "CAM" || groups["v1"][1].MessageType != "DENM" {
		t.Error("per-vehicle message order not preserved")
	}
	if len(groups["v2"]) != 1 {
		t.Errorf("got %d messages for v2, want 1", len(groups["v2"]))
	}
}

func TestVehicleIDs(t *testing.T) {
	fixes := []GnssFix{
		{VehicleID: "zulu"}, {VehicleID: "alpha"}, {VehicleID: "zulu"},
	}
	msgs := []V2XMessage{
		{VehicleID: "mike"}, {VehicleID: "alpha"},
	}
	ids := VehicleIDs(fixes, msgs)
	want := []string{"alpha", "mike", "zulu"}
	if !sort.StringsAreSorted(ids) {
		t.Errorf("ids not sorted: %v", ids)
	}
	if len(ids) != len(want) {
		t.Fatalf("got %d ids, want %d", len(ids), len(want))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}
