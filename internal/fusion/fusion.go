// Package fusion joins trajectory samples with the V2X messages observed
// in the surrounding time window.
package fusion

import (
	"log"
	"sort"

	"github.com/corridor-data/v2xtrace/internal/records"
)

// DefaultToleranceMs is the half-width of the association window around
// each trajectory sample.
const DefaultToleranceMs int64 = 500

// FuseVehicle joins one vehicle's trajectory samples with its messages.
// A message joins every sample within toleranceMs of its best timestamp,
// boundaries inclusive, so a message exactly between two windows counts
// toward both. Every sample produces a record; one with no messages in
// range carries zero byte totals and nil latency.
func FuseVehicle(samples []records.TrajectorySample, msgs []records.V2XMessage, toleranceMs int64) []records.FusedRecord {
	if toleranceMs <= 0 {
		toleranceMs = DefaultToleranceMs
	}

	times := make([]int64, 0, len(msgs))
	ordered := make([]records.V2XMessage, 0, len(msgs))
	for _, m := range msgs {
		t, ok := m.Time()
		if !ok {
			continue
		}
		times = append(times, t)
		ordered = append(ordered, m)
	}
	sort.Sort(byTime{times: times, msgs: ordered})

	out := make([]records.FusedRecord, 0, len(samples))
	for _, s := range samples {
		rec := records.FusedRecord{
			VehicleID:   s.VehicleID,
			TimestampMs: s.TimestampMs,
			XM:          s.XM,
			YM:          s.YM,
			MsgCounts:   map[string]int{},
		}

		lo := sort.Search(len(times), func(i int) bool {
			return times[i] >= s.TimestampMs-toleranceMs
		})

		var latencySum float64
		var latencyN int
		for i := lo; i < len(times) && times[i] <= s.TimestampMs+toleranceMs; i++ {
			m := &ordered[i]
			if m.MessageType != "" {
				rec.MsgCounts[m.MessageType]++
			}
			if m.PayloadBytes != nil {
				switch m.Direction {
				case records.DirectionUplink:
					rec.TxBytes += *m.PayloadBytes
				case records.DirectionDownlink:
					rec.RxBytes += *m.PayloadBytes
				}
			}
			if m.LatencyMs != nil {
				latencySum += *m.LatencyMs
				latencyN++
			}
		}
		if latencyN > 0 {
			avg := latencySum / float64(latencyN)
			rec.AvgLatencyMs = &avg
		}
		out = append(out, rec)
	}
	return out
}

// FuseAll runs the join for every vehicle that has a trajectory.
// Vehicles with messages but no trajectory contribute nothing; their
// count is logged.
func FuseAll(trajectories map[string][]records.TrajectorySample, messages map[string][]records.V2XMessage, toleranceMs int64) map[string][]records.FusedRecord {
	out := make(map[string][]records.FusedRecord, len(trajectories))
	for vehicleID, samples := range trajectories {
		out[vehicleID] = FuseVehicle(samples, messages[vehicleID], toleranceMs)
	}

	orphans := 0
	for vehicleID := range messages {
		if _, ok := trajectories[vehicleID]; !ok {
			orphans++
		}
	}
	if orphans > 0 {
		log.Printf("fusion: %d vehicles have messages but no trajectory", orphans)
	}
	return out
}

// byTime sorts messages and their extracted timestamps together.
type byTime struct {
	times []int64
	msgs  []records.V2XMessage
}

func (b byTime) Len() int           { return len(b.times) }
func (b byTime) Less(i, j int) bool { return b.times[i] < b.times[j] }
func (b byTime) Swap(i, j int) {
	b.times[i], b.times[j] = b.times[j], b.times[i]
	b.msgs[i], b.msgs[j] = b.msgs[j], b.msgs[i]
}
