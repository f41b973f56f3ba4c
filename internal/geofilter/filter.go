// Package geofilter restricts GNSS fixes to a geographic region under
// selectable inclusion semantics.
package geofilter

import (
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/paulmach/orb"

	"github.com/corridor-data/v2xtrace/internal/records"
)

// Mode selects how a region decides which fixes to keep.
type Mode string

const (
	// ModeIntersect keeps every fix individually inside the region.
	ModeIntersect Mode = "intersect"
	// ModeContain keeps a vehicle's fixes only when all of them are inside.
	ModeContain Mode = "contain"
	// ModeFirst keeps a vehicle's whole sequence when its chronologically
	// first fix is inside.
	ModeFirst Mode = "first"
)

// Valid reports whether m is a recognized mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeIntersect, ModeContain, ModeFirst:
		return true
	}
	return false
}

// Filter returns the subset of fixes retained by the region under the
// given mode, preserving input order.
func Filter(fixes []records.GnssFix, region *Region, mode Mode) ([]records.GnssFix, error) {
	switch mode {
	case ModeIntersect:
		var kept []records.GnssFix
		for _, fix := range fixes {
			if region.Contains(fix.LonDeg, fix.LatDeg) {
				kept = append(kept, fix)
			}
		}
		log.Printf("region filter (intersect): kept %d/%d fixes", len(kept), len(fixes))
		return kept, nil

	case ModeContain:
		keepVehicle := make(map[string]bool)
		for vehicle, group := range records.GroupFixesByVehicle(fixes) {
			all := true
			for _, fix := range group {
				if !region.Contains(fix.LonDeg, fix.LatDeg) {
					all = false
					break
				}
			}
			keepVehicle[vehicle] = all
		}
		kept := keepByVehicle(fixes, keepVehicle)
		log.Printf("region filter (contain): kept %d/%d fixes", len(kept), len(fixes))
		return kept, nil

	case ModeFirst:
		keepVehicle := make(map[string]bool)
		for vehicle, group := range records.GroupFixesByVehicle(fixes) {
			first := group[0]
			keepVehicle[vehicle] = region.Contains(first.LonDeg, first.LatDeg)
		}
		kept := keepByVehicle(fixes, keepVehicle)
		log.Printf("region filter (first): kept %d/%d fixes", len(kept), len(fixes))
		return kept, nil
	}
	return nil, fmt.Errorf("unknown filter mode: %q (use intersect, contain, or first)", mode)
}

func keepByVehicle(fixes []records.GnssFix, keep map[string]bool) []records.GnssFix {
	var kept []records.GnssFix
	for _, fix := range fixes {
		if keep[fix.VehicleID] {
			kept = append(kept, fix)
		}
	}
	return kept
}

// BoundOf returns the tight bounding box around the fixes.
func BoundOf(fixes []records.GnssFix) (orb.Bound, error) {
	if len(fixes) == 0 {
		return orb.Bound{}, errors.New("cannot compute bound of zero fixes")
	}
	p := orb.Point{fixes[0].LonDeg, fixes[0].LatDeg}
	b := orb.Bound{Min: p, Max: p}
	for _, fix := range fixes[1:] {
		b = b.Extend(orb.Point{fix.LonDeg, fix.LatDeg})
	}
	return b, nil
}

// Summary compares a fix set before and after filtering.
type Summary struct {
	OriginalCount       int
	FilteredCount       int
	ReductionPct        float64
	OriginalVehicles    int
	FilteredVehicles    int
	VehicleRetentionPct float64
}

// Summarize reports how much of the input the filter kept.
func Summarize(original, filtered []records.GnssFix) Summary {
	s := Summary{
		OriginalCount:    len(original),
		FilteredCount:    len(filtered),
		OriginalVehicles: len(records.VehicleIDs(original, nil)),
		FilteredVehicles: len(records.VehicleIDs(filtered, nil)),
	}
	if s.OriginalCount > 0 {
		s.ReductionPct = round2(100.0 * (1.0 - float64(s.FilteredCount)/float64(s.OriginalCount)))
	}
	if s.OriginalVehicles > 0 {
		s.VehicleRetentionPct = round2(100.0 * float64(s.FilteredVehicles) / float64(s.OriginalVehicles))
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
