package records

import (
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/corridor-data/v2xtrace/internal/units"
)

// Candidate key spellings per semantic field, probed in priority order.
// The first key present with a non-null value wins.
var (
	vehicleIDKeys   = []string{"stationID", "station_id", "vehicleID", "vehicle_id", "id"}
	stationIDKeys   = []string{"stationID", "station_id"}
	stationTypeKeys = []string{"stationType", "station_type"}
	latitudeKeys    = []string{"latitude", "lat", "latitude_deg"}
	longitudeKeys   = []string{"longitude", "lon", "longitude_deg"}
	altitudeKeys    = []string{"altitude", "alt", "altitude_m"}
	speedKeys       = []string{"speed", "speed_mps", "speedMps"}
	headingKeys     = []string{"heading", "heading_deg", "headingDeg"}
	messageTypeKeys = []string{"messageType", "message_type", "msgType"}
	rsuIDKeys       = []string{"rsu_id", "rsuID", "rsuId"}
	timestampKeys   = []string{"timestamp", "timestamp_utc_ms"}
	txTimestampKeys = []string{"tx_timestamp", "tx_timestamp_utc_ms"}
	rxTimestampKeys = []string{"rx_timestamp", "rx_timestamp_utc_ms"}
	payloadKeys     = []string{"payload_bytes"}
	frameKeys       = []string{"frame_bytes"}
)

// VehicleIDOf probes a raw object for any recognized vehicle-id key.
func VehicleIDOf(obj map[string]any) (string, bool) {
	return firstString(obj, vehicleIDKeys)
}

// stringValue renders a raw JSON value as an identifier string. Numeric
// station IDs are common in the wild, so integral floats format without a
// decimal point.
func stringValue(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		if s == math.Trunc(s) && math.Abs(s) < 1e15 {
			return strconv.FormatInt(int64(s), 10), true
		}
		return strconv.FormatFloat(s, 'g', -1, 64), true
	case bool:
		return strconv.FormatBool(s), true
	}
	return "", false
}

// floatValue coerces a raw JSON value to a float64. Numeric strings are
// accepted since some recordings quote their numbers.
func floatValue(v any) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case string:
		parsed, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}

func firstString(obj map[string]any, keys []string) (string, bool) {
	for _, key := range keys {
		if v, present := obj[key]; present && v != nil {
			if s, ok := stringValue(v); ok {
				return s, true
			}
		}
	}
	return "", false
}

func firstFloat(obj map[string]any, keys []string) (float64, bool) {
	for _, key := range keys {
		if v, present := obj[key]; present && v != nil {
			if f, ok := floatValue(v); ok {
				return f, true
			}
		}
	}
	return 0, false
}

func firstInt(obj map[string]any, keys []string) (int64, bool) {
	f, ok := firstFloat(obj, keys)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// firstTimestamp resolves a timestamp field and normalizes it to epoch
// milliseconds using the given unit (units.Auto detects from magnitude).
func firstTimestamp(obj map[string]any, keys []string, unit string) (int64, bool) {
	f, ok := firstFloat(obj, keys)
	if !ok {
		return 0, false
	}
	return units.ToMillis(f, unit), true
}

// ParseGnss converts a raw JSON object into a GnssFix. The second return
// value is false when the object lacks a mandatory field (vehicle id,
// timestamp, latitude, longitude) or carries out-of-range coordinates;
// that is a skip with a debug trace, not an error.
func ParseGnss(obj map[string]any, unit string, sourceFile string) (GnssFix, bool) {
	vehicleID, ok := firstString(obj, vehicleIDKeys)
	if !ok {
		debugf("skipping GNSS record: no vehicle ID found")
		return GnssFix{}, false
	}

	ts, ok := firstTimestamp(obj, timestampKeys, unit)
	if !ok {
		debugf("skipping GNSS record for %s: no timestamp found", vehicleID)
		return GnssFix{}, false
	}

	lat, okLat := firstFloat(obj, latitudeKeys)
	lon, okLon := firstFloat(obj, longitudeKeys)
	if !okLat || !okLon {
		debugf("skipping GNSS record for %s: missing coordinates", vehicleID)
		return GnssFix{}, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		debugf("skipping GNSS record for %s: coordinates out of range (%f, %f)", vehicleID, lat, lon)
		return GnssFix{}, false
	}

	fix := GnssFix{
		VehicleID:   vehicleID,
		TimestampMs: ts,
		LatDeg:      lat,
		LonDeg:      lon,
		SourceFile:  sourceFile,
	}
	if alt, ok := firstFloat(obj, altitudeKeys); ok {
		fix.AltM = &alt
	}
	if speed, ok := firstFloat(obj, speedKeys); ok {
		fix.SpeedMps = &speed
	}
	if heading, ok := firstFloat(obj, headingKeys); ok {
		fix.HeadingDeg = &heading
	}
	if sid, ok := firstString(obj, stationIDKeys); ok {
		fix.StationID = &sid
	}
	if st, ok := firstString(obj, stationTypeKeys); ok {
		fix.StationType = &st
	}
	return fix, true
}

// ParseV2X converts a raw JSON object into a V2XMessage. Requires a vehicle
// id and at least one of the three timestamp fields; everything else is
// optional. Latency is derived only when both tx and rx are present, and a
// negative result is kept as-is for downstream quality accounting.
func ParseV2X(obj map[string]any, unit string, sourceFile string) (V2XMessage, bool) {
	vehicleID, ok := firstString(obj, vehicleIDKeys)
	if !ok {
		debugf("skipping V2X record: no vehicle ID found")
		return V2XMessage{}, false
	}

	msg := V2XMessage{VehicleID: vehicleID, SourceFile: sourceFile}
	if ts, ok := firstTimestamp(obj, timestampKeys, unit); ok {
		msg.TimestampMs = &ts
	}
	if tx, ok := firstTimestamp(obj, txTimestampKeys, unit); ok {
		msg.TxTimestampMs = &tx
	}
	if rx, ok := firstTimestamp(obj, rxTimestampKeys, unit); ok {
		msg.RxTimestampMs = &rx
	}
	if msg.TimestampMs == nil && msg.TxTimestampMs == nil && msg.RxTimestampMs == nil {
		debugf("skipping V2X record for %s: no timestamp found", vehicleID)
		return V2XMessage{}, false
	}

	if msg.TxTimestampMs != nil && msg.RxTimestampMs != nil {
		latency := float64(*msg.RxTimestampMs - *msg.TxTimestampMs)
		msg.LatencyMs = &latency
	}

	if mt, ok := firstString(obj, messageTypeKeys); ok {
		msg.MessageType = mt
	}
	if raw, present := obj["direction"]; present && raw != nil {
		if s, ok := stringValue(raw); ok {
			dir := Direction(s)
			if dir.Valid() {
				msg.Direction = dir
			} else {
				log.Printf("invalid direction value: %q", s)
			}
		}
	}
	if rsu, ok := firstString(obj, rsuIDKeys); ok {
		msg.RSUID = &rsu
	}
	if sid, ok := firstString(obj, stationIDKeys); ok {
		msg.StationID = &sid
	}
	if st, ok := firstString(obj, stationTypeKeys); ok {
		msg.StationType = &st
	}
	if payload, ok := firstInt(obj, payloadKeys); ok {
		msg.PayloadBytes = &payload
	}
	if frame, ok := firstInt(obj, frameKeys); ok {
		msg.FrameBytes = &frame
	}
	return msg, true
}

// Objects flattened out of a topic-keyed recording carry their source
// topic under _topic. The topic names the stream kind, so those objects
// parse as one shape only.
func gnssTopic(topic string) bool {
	return strings.Contains(topic, "/gps") ||
		strings.Contains(topic, "/gnss") ||
		strings.Contains(topic, "/fix")
}

func v2xTopic(topic string) bool {
	return strings.Contains(topic, "/v2x") ||
		strings.Contains(topic, "/cam") ||
		strings.Contains(topic, "/denm")
}

// ParseRecords parses a batch of raw objects. An object tagged with a
// recording topic parses as the shape its topic names; an untagged
// object is ambiguous and is tried against both shapes independently,
// so one carrying both position and message fields yields both a
// GnssFix and a V2XMessage. Input order is preserved in both outputs.
func ParseRecords(objs []map[string]any, unit string, sourceFile string) ([]GnssFix, []V2XMessage) {
	var fixes []GnssFix
	var msgs []V2XMessage
	for _, obj := range objs {
		topic, _ := obj["_topic"].(string)
		switch {
		case gnssTopic(topic):
			if fix, ok := ParseGnss(obj, unit, sourceFile); ok {
				fixes = append(fixes, fix)
			}
		case v2xTopic(topic):
			if msg, ok := ParseV2X(obj, unit, sourceFile); ok {
				msgs = append(msgs, msg)
			}
		default:
			if fix, ok := ParseGnss(obj, unit, sourceFile); ok {
				fixes = append(fixes, fix)
			}
			if msg, ok := ParseV2X(obj, unit, sourceFile); ok {
				msgs = append(msgs, msg)
			}
		}
	}
	return fixes, msgs
}
