// Package stationid resolves vehicle identity. The recording format's
// GNSS records carry no vehicle id of their own, so identity is inferred
// from the station ids announced in the same file's CAM and DENM
// messages. The heuristic is deliberately fenced into this package:
// everything else in the pipeline treats vehicle ids as opaque.
package stationid

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/corridor-data/v2xtrace/internal/fsutil"
	"github.com/corridor-data/v2xtrace/internal/records"
)

const (
	// Unknown is assigned when no station id dominates the vote.
	Unknown = "unknown"
	// DefaultMinShare is the vote share the dominant station id must
	// exceed to be trusted.
	DefaultMinShare = 0.8
)

// Infer picks the dominant station id by majority vote. The winner must
// hold a share strictly above minShare of all votes, otherwise Unknown
// is returned. Ties resolve to the lexicographically smallest id before
// the share test.
func Infer(stationIDs []string, minShare float64) string {
	if minShare <= 0 {
		minShare = DefaultMinShare
	}
	if len(stationIDs) == 0 {
		return Unknown
	}

	counts := make(map[string]int)
	for _, id := range stationIDs {
		counts[id]++
	}

	best, bestN := "", 0
	for id, n := range counts {
		if n > bestN || (n == bestN && id < best) {
			best, bestN = id, n
		}
	}

	if float64(bestN)/float64(len(stationIDs)) > minShare {
		return best
	}
	return Unknown
}

// Harvest collects station ids from raw objects whose topic marks them
// as CAM or DENM messages.
func Harvest(objs []map[string]any) []string {
	var ids []string
	for _, obj := range objs {
		topic, _ := obj["_topic"].(string)
		if !strings.Contains(topic, "/cam") && !strings.Contains(topic, "/denm") {
			continue
		}
		if id, ok := records.VehicleIDOf(obj); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Assign writes vehicleID into every raw object that carries no vehicle
// identity of its own and returns how many objects were updated.
func Assign(objs []map[string]any, vehicleID string) int {
	n := 0
	for _, obj := range objs {
		if _, ok := records.VehicleIDOf(obj); ok {
			continue
		}
		obj["vehicle_id"] = vehicleID
		n++
	}
	return n
}

// Rename maps a vehicle id through the identity map, returning the id
// unchanged when it has no entry.
func Rename(identity map[string]string, vehicleID string) string {
	if mapped, ok := identity[vehicleID]; ok {
		return mapped
	}
	return vehicleID
}

// LoadIdentityMap reads a JSON object mapping raw station ids to stable
// vehicle ids.
func LoadIdentityMap(fsys fsutil.FileSystem, path string) (map[string]string, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read identity map: %w", err)
	}
	var identity map[string]string
	if err := json.Unmarshal(data, &identity); err != nil {
		return nil, fmt.Errorf("parse identity map %s: %w", path, err)
	}
	log.Printf("loaded identity map with %d entries from %s", len(identity), path)
	return identity, nil
}

// LoadRSUIDs reads a JSON array of station ids known to be roadside
// units, returned as a set. Fixes attributed to these ids are dropped
// before trajectory extraction.
func LoadRSUIDs(fsys fsutil.FileSystem, path string) (map[string]bool, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rsu ids: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("parse rsu ids %s: %w", path, err)
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	log.Printf("loaded %d rsu ids from %s", len(set), path)
	return set, nil
}
