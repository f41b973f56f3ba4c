// Package records holds the normalized record types of the pipeline and the
// parser that produces them from raw JSON objects.
//
// Optional attributes are pointer fields rather than sentinel values; the
// literal "unknown" appears only where vehicle identity genuinely cannot be
// established (see the stationid package).
package records

// Direction identifies which way a V2X message travelled.
type Direction string

const (
	DirectionUnknown  Direction = ""
	DirectionUplink   Direction = "uplink_to_rsu"
	DirectionDownlink Direction = "downlink_from_rsu"
	DirectionV2V      Direction = "v2v"
)

// Valid reports whether d is one of the recognized direction values.
func (d Direction) Valid() bool {
	switch d {
	case DirectionUplink, DirectionDownlink, DirectionV2V:
		return true
	}
	return false
}

// GnssFix is one timestamped geodetic position reading from a vehicle's
// positioning receiver. VehicleID, TimestampMs and the coordinates are
// mandatory; a raw object missing any of them never becomes a GnssFix.
type GnssFix struct {
	VehicleID   string
	TimestampMs int64 // UTC epoch milliseconds
	LatDeg      float64
	LonDeg      float64
	AltM        *float64
	SpeedMps    *float64
	HeadingDeg  *float64
	StationID   *string
	StationType *string
	SourceFile  string
}

// V2XMessage is one normalized V2X message observation. At least one of the
// three timestamps is always present. LatencyMs is derived from tx/rx when
// both exist; negative values are retained as a data-quality signal.
type V2XMessage struct {
	VehicleID     string
	StationID     *string
	StationType   *string
	TimestampMs   *int64
	TxTimestampMs *int64
	RxTimestampMs *int64
	Direction     Direction
	RSUID         *string
	MessageType   string
	PayloadBytes  *int64
	FrameBytes    *int64
	LatencyMs     *float64
	SourceFile    string
}

// Time returns the message's best available timestamp, preferring the
// observation timestamp over tx over rx.
func (m *V2XMessage) Time() (int64, bool) {
	switch {
	case m.TimestampMs != nil:
		return *m.TimestampMs, true
	case m.TxTimestampMs != nil:
		return *m.TxTimestampMs, true
	case m.RxTimestampMs != nil:
		return *m.RxTimestampMs, true
	}
	return 0, false
}

// QualityFlags marks data-quality conditions on a trajectory sample.
type QualityFlags struct {
	// Gap is set on grid points inside a raw-fix gap wider than the
	// configured threshold; their values are held, not interpolated.
	Gap bool
	// Extrapolated is set on grid points outside the observed time window.
	Extrapolated bool
	// LowSpeed is set when the sample's speed is below the threshold at
	// which heading becomes unreliable.
	LowSpeed bool
}

// TrajectorySample is one uniform-grid trajectory point for a vehicle.
// XM/YM stay zero until the coordinate transform runs. Samples are
// immutable once built apart from that projection step.
type TrajectorySample struct {
	VehicleID   string
	TimestampMs int64
	LatDeg      float64
	LonDeg      float64
	AltM        *float64
	XM          float64
	YM          float64
	SpeedMps    *float64
	HeadingDeg  *float64
	Quality     QualityFlags
}

// FusedRecord joins one trajectory sample with the V2X activity in the
// surrounding time window. A sample with no matching messages still
// produces a record with zero totals and nil latency.
type FusedRecord struct {
	VehicleID    string
	TimestampMs  int64
	XM           float64
	YM           float64
	TxBytes      int64
	RxBytes      int64
	AvgLatencyMs *float64
	MsgCounts    map[string]int
}
