// Package geodesy projects WGS84 geodetic positions into a local planar
// frame (ENU tangent plane or zone-translated UTM) anchored at a single
// shared origin per run.
package geodesy

import (
	"fmt"
	"log"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/corridor-data/v2xtrace/internal/records"
)

// WGS84 ellipsoid.
const (
	wgs84A = 6378137.0
	wgs84F = 1 / 298.257223563
)

// Frame selects the local planar coordinate frame.
type Frame string

const (
	// FrameENU is a local East-North-Up tangent plane, suited to small
	// regions (roughly under 10 km).
	FrameENU Frame = "enu"
	// FrameUTM is the origin's UTM zone, translated so the origin maps
	// to (0, 0).
	FrameUTM Frame = "utm"
)

// Valid reports whether f is a known frame.
func (f Frame) Valid() bool {
	return f == FrameENU || f == FrameUTM
}

// Origin policies for deriving the shared reference point from samples.
const (
	PolicyFirst    = "first"
	PolicyCentroid = "centroid"
	PolicyMedian   = "median"
)

// Origin is the shared local-frame reference point for a run.
type Origin struct {
	LatDeg float64 `json:"lat_deg"`
	LonDeg float64 `json:"lon_deg"`
	AltM   float64 `json:"alt_m"`
}

// SelectOrigin derives the shared origin from trajectory samples using
// the given policy. Samples without altitude contribute 0.
func SelectOrigin(samples []records.TrajectorySample, policy string) (Origin, error) {
	if len(samples) == 0 {
		return Origin{}, fmt.Errorf("cannot select an origin from zero samples")
	}

	lats := make([]float64, len(samples))
	lons := make([]float64, len(samples))
	alts := make([]float64, len(samples))
	for i, s := range samples {
		lats[i] = s.LatDeg
		lons[i] = s.LonDeg
		if s.AltM != nil {
			alts[i] = *s.AltM
		}
	}

	var origin Origin
	switch policy {
	case PolicyFirst:
		origin = Origin{LatDeg: lats[0], LonDeg: lons[0], AltM: alts[0]}
	case PolicyCentroid:
		origin = Origin{
			LatDeg: stat.Mean(lats, nil),
			LonDeg: stat.Mean(lons, nil),
			AltM:   stat.Mean(alts, nil),
		}
	case PolicyMedian:
		origin = Origin{
			LatDeg: median(lats),
			LonDeg: median(lons),
			AltM:   median(alts),
		}
	default:
		return Origin{}, fmt.Errorf("unknown origin policy: %q (use first, centroid, or median)", policy)
	}

	log.Printf("selected %s origin: lat=%.6f lon=%.6f alt=%.1f", policy, origin.LatDeg, origin.LonDeg, origin.AltM)
	return origin, nil
}

// median averages the two middle order statistics for even counts.
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Transformer projects geodetic positions into a local planar frame
// anchored at a fixed origin. A Transformer is safe for concurrent use
// once constructed.
type Transformer struct {
	frame  Frame
	origin Origin

	// ENU rotation and origin ECEF position.
	sinLat0, cosLat0 float64
	sinLon0, cosLon0 float64
	x0, y0, z0       float64

	// UTM zone parameters and the origin's absolute coordinates.
	zone    int
	north   bool
	utm     utmZone
	originE float64
	originN float64
}

// NewTransformer builds a projection for the given frame and origin.
func NewTransformer(frame Frame, origin Origin) (*Transformer, error) {
	t := &Transformer{frame: frame, origin: origin}
	switch frame {
	case FrameENU:
		lat0 := origin.LatDeg * math.Pi / 180
		lon0 := origin.LonDeg * math.Pi / 180
		t.sinLat0, t.cosLat0 = math.Sin(lat0), math.Cos(lat0)
		t.sinLon0, t.cosLon0 = math.Sin(lon0), math.Cos(lon0)
		t.x0, t.y0, t.z0 = geodeticToECEF(origin.LatDeg, origin.LonDeg, origin.AltM)
	case FrameUTM:
		t.zone = utmZoneNumber(origin.LonDeg)
		t.north = origin.LatDeg >= 0
		t.utm = newUTMZone(t.zone, t.north)
		t.originE, t.originN = t.utm.forward(origin.LatDeg, origin.LonDeg)
	default:
		return nil, fmt.Errorf("unknown coordinate frame: %q (use enu or utm)", frame)
	}
	return t, nil
}

// Origin returns the transformer's anchor point.
func (t *Transformer) Origin() Origin { return t.origin }

// CRS labels the output frame: the UTM zone's EPSG code, or a
// descriptive local-tangent label for ENU.
func (t *Transformer) CRS() string {
	if t.frame == FrameUTM {
		if t.north {
			return fmt.Sprintf("EPSG:326%02d", t.zone)
		}
		return fmt.Sprintf("EPSG:327%02d", t.zone)
	}
	return fmt.Sprintf("ENU(%.6f,%.6f)", t.origin.LatDeg, t.origin.LonDeg)
}

// Project maps a geodetic position to local planar (x, y) meters. For
// ENU, x points east and y north of the origin; for UTM, coordinates
// are zone easting/northing translated so the origin is (0, 0).
func (t *Transformer) Project(latDeg, lonDeg, altM float64) (x, y float64) {
	if t.frame == FrameUTM {
		e, n := t.utm.forward(latDeg, lonDeg)
		return e - t.originE, n - t.originN
	}

	px, py, pz := geodeticToECEF(latDeg, lonDeg, altM)
	dx, dy, dz := px-t.x0, py-t.y0, pz-t.z0
	east := -t.sinLon0*dx + t.cosLon0*dy
	north := -t.sinLat0*t.cosLon0*dx - t.sinLat0*t.sinLon0*dy + t.cosLat0*dz
	return east, north
}

// Apply sets XM/YM on every sample in place. Samples without altitude
// project at ellipsoid height 0; AltM itself is left geodetic.
func (t *Transformer) Apply(samples []records.TrajectorySample) {
	for i := range samples {
		alt := 0.0
		if samples[i].AltM != nil {
			alt = *samples[i].AltM
		}
		samples[i].XM, samples[i].YM = t.Project(samples[i].LatDeg, samples[i].LonDeg, alt)
	}
}

// geodeticToECEF converts WGS84 geodetic coordinates to earth-centered
// earth-fixed meters.
func geodeticToECEF(latDeg, lonDeg, altM float64) (x, y, z float64) {
	lat := latDeg * math.Pi / 180
	lon := lonDeg * math.Pi / 180
	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	e2 := wgs84F * (2 - wgs84F)
	// Prime vertical radius of curvature.
	n := wgs84A / math.Sqrt(1-e2*sinLat*sinLat)
	x = (n + altM) * cosLat * math.Cos(lon)
	y = (n + altM) * cosLat * math.Sin(lon)
	z = (n*(1-e2) + altM) * sinLat
	return x, y, z
}
