// Package trajectory resamples a vehicle's GNSS fixes onto a uniform
// time grid, smoothing positions, bridging data gaps with held values,
// and flagging sample quality.
package trajectory

import (
	"math"

	"github.com/corridor-data/v2xtrace/internal/monitoring"
	"github.com/corridor-data/v2xtrace/internal/records"
)

// Defaults for trajectory extraction.
const (
	DefaultTargetHz             = 1
	DefaultGapThresholdS        = 5.0
	DefaultSmoothingWindow      = 7
	DefaultLowSpeedThresholdMps = 0.5
)

// Config holds the trajectory extraction parameters.
type Config struct {
	// TargetHz is the output sample rate (grid spacing 1000/TargetHz ms).
	TargetHz int
	// GapThresholdS is the spacing between consecutive fixes above which
	// a gap is declared, in seconds.
	GapThresholdS float64
	// SmoothingWindow is the Savitzky-Golay window size in samples. An
	// even value is widened by one.
	SmoothingWindow int
	// Smoothing enables position smoothing before resampling.
	Smoothing bool
	// LowSpeedThresholdMps is the speed below which heading readings are
	// considered unreliable, in meters per second.
	LowSpeedThresholdMps float64
}

// DefaultConfig returns the standard extraction parameters.
func DefaultConfig() Config {
	return Config{
		TargetHz:             DefaultTargetHz,
		GapThresholdS:        DefaultGapThresholdS,
		SmoothingWindow:      DefaultSmoothingWindow,
		Smoothing:            true,
		LowSpeedThresholdMps: DefaultLowSpeedThresholdMps,
	}
}

// Gap identifies the pair of consecutive fixes whose spacing exceeded
// the gap threshold.
type Gap struct {
	// Start is the index of the last fix before the gap.
	Start int
	// End is the index of the first fix after the gap.
	End int
}

// DetectGaps scans time-ordered fix timestamps for consecutive pairs
// spaced further apart than thresholdS seconds.
func DetectGaps(timestampsMs []int64, thresholdS float64) []Gap {
	thresholdMs := thresholdS * 1000
	var gaps []Gap
	for i := 0; i+1 < len(timestampsMs); i++ {
		if float64(timestampsMs[i+1]-timestampsMs[i]) > thresholdMs {
			gaps = append(gaps, Gap{Start: i, End: i + 1})
		}
	}
	return gaps
}

// Smooth applies Savitzky-Golay smoothing per continuous segment so the
// polynomial fit never spans a detected gap. The fix opening a gap
// belongs to the segment before it. Segments shorter than the window,
// and segments containing undefined values, are left untouched.
func Smooth(values []float64, window int, gaps []Gap) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	if window%2 == 0 {
		window++
	}
	if len(values) < window {
		return out
	}

	starts := []int{0}
	var ends []int
	for _, g := range gaps {
		ends = append(ends, g.Start+1)
		starts = append(starts, g.End)
	}
	ends = append(ends, len(values))

	for s := range starts {
		lo, hi := starts[s], ends[s]
		seg := values[lo:hi]
		if len(seg) < window || hasNaN(seg) {
			continue
		}
		smoothed, err := savgolFilter(seg, window, savgolPolyorder)
		if err != nil {
			monitoring.Logf("smoothing failed for segment [%d:%d): %v", lo, hi, err)
			continue
		}
		copy(out[lo:hi], smoothed)
	}
	return out
}

// Build converts one vehicle's fixes into samples on a uniform time
// grid spanning the first to the last observed timestamp. Positions are
// smoothed and linearly interpolated; grid points inside a gap hold the
// nearest bounding fix's position instead of a linear blend across the
// gap, and lose their optional channels.
func Build(vehicleID string, fixes []records.GnssFix, cfg Config) []records.TrajectorySample {
	if len(fixes) == 0 {
		monitoring.Logf("no fixes for vehicle %s, skipping trajectory", vehicleID)
		return nil
	}
	sorted := records.SortFixesByTime(fixes)

	n := len(sorted)
	ts := make([]int64, n)
	lats := make([]float64, n)
	lons := make([]float64, n)
	alts := make([]float64, n)
	speeds := make([]float64, n)
	headings := make([]float64, n)
	for i, f := range sorted {
		ts[i] = f.TimestampMs
		lats[i] = f.LatDeg
		lons[i] = f.LonDeg
		alts[i] = optFloat(f.AltM)
		speeds[i] = optFloat(f.SpeedMps)
		headings[i] = optFloat(f.HeadingDeg)
	}

	gaps := DetectGaps(ts, cfg.GapThresholdS)
	if len(gaps) > 0 {
		monitoring.Logf("vehicle %s: %d gaps above %.1fs", vehicleID, len(gaps), cfg.GapThresholdS)
	}

	if cfg.Smoothing {
		lats = Smooth(lats, cfg.SmoothingWindow, gaps)
		lons = Smooth(lons, cfg.SmoothingWindow, gaps)
		alts = Smooth(alts, cfg.SmoothingWindow, gaps)
	}

	grid := timeGrid(ts[0], ts[n-1], cfg.TargetHz)

	glats := interpolate(ts, lats, grid)
	glons := interpolate(ts, lons, grid)
	galts := interpolate(ts, alts, grid)
	gspeeds := interpolate(ts, speeds, grid)
	gheadings := interpolate(ts, headings, grid)

	inGap := make([]bool, len(grid))
	for _, g := range gaps {
		gapStart, gapEnd := ts[g.Start], ts[g.End]
		for i, t := range grid {
			if t <= gapStart || t >= gapEnd {
				continue
			}
			inGap[i] = true
			hold := g.Start
			if t-gapStart > gapEnd-t {
				hold = g.End
			}
			glats[i] = lats[hold]
			glons[i] = lons[hold]
			galts[i] = math.NaN()
			gspeeds[i] = math.NaN()
			gheadings[i] = math.NaN()
		}
	}

	samples := make([]records.TrajectorySample, 0, len(grid))
	for i, t := range grid {
		quality := records.QualityFlags{
			Gap:          inGap[i],
			Extrapolated: t < ts[0] || t > ts[n-1],
		}
		if !math.IsNaN(gspeeds[i]) && gspeeds[i] < cfg.LowSpeedThresholdMps {
			quality.LowSpeed = true
		}
		samples = append(samples, records.TrajectorySample{
			VehicleID:   vehicleID,
			TimestampMs: t,
			LatDeg:      glats[i],
			LonDeg:      glons[i],
			AltM:        optPtr(galts[i]),
			SpeedMps:    optPtr(gspeeds[i]),
			HeadingDeg:  optPtr(gheadings[i]),
			Quality:     quality,
		})
	}

	monitoring.Logf("vehicle %s: built %d trajectory samples from %d fixes", vehicleID, len(samples), n)
	return samples
}

// timeGrid returns timestamps from startMs to endMs inclusive, spaced
// 1000/targetHz milliseconds apart.
func timeGrid(startMs, endMs int64, targetHz int) []int64 {
	if targetHz <= 0 {
		targetHz = DefaultTargetHz
	}
	step := int64(math.Round(1000 / float64(targetHz)))
	if step < 1 {
		step = 1
	}
	grid := make([]int64, 0, (endMs-startMs)/step+1)
	for t := startMs; t <= endMs; t += step {
		grid = append(grid, t)
	}
	return grid
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func optFloat(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

func optPtr(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
