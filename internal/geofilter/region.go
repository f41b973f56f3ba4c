package geofilter

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/corridor-data/v2xtrace/internal/fsutil"
)

// Region is a geographic area of interest, either an axis-aligned
// bounding box or a polygon's exterior ring. Containment checks are
// boundary-inclusive for both kinds.
type Region struct {
	bound orb.Bound
	ring  orb.Ring // nil for bbox regions
	label string
}

// NewBBox builds a bounding-box region from (minLon, minLat, maxLon,
// maxLat). Coordinates out of range or an inverted box are rejected.
func NewBBox(minLon, minLat, maxLon, maxLat float64) (*Region, error) {
	if !validCoordinates(minLat, minLon) {
		return nil, fmt.Errorf("invalid bbox min coordinates (lat=%v, lon=%v)", minLat, minLon)
	}
	if !validCoordinates(maxLat, maxLon) {
		return nil, fmt.Errorf("invalid bbox max coordinates (lat=%v, lon=%v)", maxLat, maxLon)
	}
	if minLon >= maxLon {
		return nil, fmt.Errorf("invalid bbox: min_lon (%v) >= max_lon (%v)", minLon, maxLon)
	}
	if minLat >= maxLat {
		return nil, fmt.Errorf("invalid bbox: min_lat (%v) >= max_lat (%v)", minLat, maxLat)
	}
	return &Region{
		bound: orb.Bound{Min: orb.Point{minLon, minLat}, Max: orb.Point{maxLon, maxLat}},
		label: fmt.Sprintf("bbox(%v,%v,%v,%v)", minLon, minLat, maxLon, maxLat),
	}, nil
}

// LoadGeoJSON reads a polygon region from a GeoJSON file. Accepted
// shapes are a Polygon, a MultiPolygon (first polygon used, with a
// warning), a Feature wrapping one of those, or a FeatureCollection
// (first feature used). Only the exterior ring is kept; holes are
// ignored. Coordinates follow the GeoJSON (lon, lat) order.
func LoadGeoJSON(fsys fsutil.FileSystem, path string) (*Region, error) {
	if !fsys.Exists(path) {
		return nil, fmt.Errorf("geojson file not found: %s", path)
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("invalid JSON in %s: %w", path, err)
	}

	var geom orb.Geometry
	switch probe.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if len(fc.Features) == 0 {
			return nil, fmt.Errorf("feature collection has no features in %s", path)
		}
		geom = fc.Features[0].Geometry
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		geom = f.Geometry
	case "Polygon", "MultiPolygon":
		g := &geojson.Geometry{}
		if err := json.Unmarshal(data, g); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		geom = g.Geometry()
	default:
		return nil, fmt.Errorf("unsupported GeoJSON type %q in %s: expected Feature, FeatureCollection, Polygon, or MultiPolygon", probe.Type, path)
	}

	var ring orb.Ring
	switch g := geom.(type) {
	case orb.Polygon:
		if len(g) == 0 {
			return nil, fmt.Errorf("empty polygon coordinates in %s", path)
		}
		ring = g[0]
	case orb.MultiPolygon:
		if len(g) == 0 || len(g[0]) == 0 {
			return nil, fmt.Errorf("empty multipolygon coordinates in %s", path)
		}
		log.Printf("multipolygon in %s, using first polygon only", path)
		ring = g[0][0]
	default:
		return nil, fmt.Errorf("unsupported geometry type %T in %s: expected Polygon or MultiPolygon", geom, path)
	}
	if len(ring) < 3 {
		return nil, fmt.Errorf("polygon ring in %s has %d points, need at least 3", path, len(ring))
	}

	return &Region{
		bound: ring.Bound(),
		ring:  ring,
		label: fmt.Sprintf("polygon(%s)", path),
	}, nil
}

// Contains reports whether the point is inside the region. Boundary
// points count as inside.
func (r *Region) Contains(lon, lat float64) bool {
	p := orb.Point{lon, lat}
	if !r.bound.Contains(p) {
		return false
	}
	if r.ring == nil {
		return true
	}
	return planar.RingContains(r.ring, p)
}

// Bound returns the region's bounding box.
func (r *Region) Bound() orb.Bound { return r.bound }

func (r *Region) String() string { return r.label }

func validCoordinates(lat, lon float64) bool {
	return lat >= -90.0 && lat <= 90.0 && lon >= -180.0 && lon <= 180.0
}
