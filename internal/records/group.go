package records

import "sort"

// SortFixesByTime returns a copy of fixes ordered by ascending timestamp.
// The sort is stable so records sharing a timestamp keep their input order.
func SortFixesByTime(fixes []GnssFix) []GnssFix {
	out := make([]GnssFix, len(fixes))
	copy(out, fixes)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimestampMs < out[j].TimestampMs
	})
	return out
}

// GroupFixesByVehicle groups fixes by vehicle ID with each group sorted by
// time. This is the grouping structure the filter, trajectory and fusion
// stages all operate on.
func GroupFixesByVehicle(fixes []GnssFix) map[string][]GnssFix {
	grouped := make(map[string][]GnssFix)
	for _, fix := range fixes {
		grouped[fix.VehicleID] = append(grouped[fix.VehicleID], fix)
	}
	for id := range grouped {
		grouped[id] = SortFixesByTime(grouped[id])
	}
	return grouped
}

// GroupMessagesByVehicle groups V2X messages by vehicle ID, preserving
// input order within each group.
func GroupMessagesByVehicle(msgs []V2XMessage) map[string][]V2XMessage {
	grouped := make(map[string][]V2XMessage)
	for _, msg := range msgs {
		grouped[msg.VehicleID] = append(grouped[msg.VehicleID], msg)
	}
	return grouped
}

// VehicleIDs returns the sorted set of vehicle IDs present in either
// the fixes or the messages.
func VehicleIDs(fixes []GnssFix, msgs []V2XMessage) []string {
	seen := make(map[string]bool)
	for _, fix := range fixes {
		seen[fix.VehicleID] = true
	}
	for _, msg := range msgs {
		seen[msg.VehicleID] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
