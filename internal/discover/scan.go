package discover

import (
	"fmt"
	"log"
	"sort"
	"strconv"

	"github.com/corridor-data/v2xtrace/internal/fsutil"
)

// DefaultSamplePerFile caps how many objects Scan reads from each file.
const DefaultSamplePerFile = 100

// Summary describes a dataset's shape without normalizing any of it.
type Summary struct {
	TotalFiles   int      `json:"total_files"`
	GnssRecords  int      `json:"gnss_records"`
	V2XRecords   int      `json:"v2x_records"`
	OtherRecords int      `json:"other_records"`
	Vehicles     []string `json:"vehicles"`
	MessageTypes []string `json:"message_types"`
	SampleLimit  int      `json:"sample_limit"`
}

// Scan surveys every JSON file under root, sampling up to samplePerFile
// objects from each and classifying them by shape. samplePerFile <= 0
// reads files in full. Unreadable files are skipped with a warning.
func Scan(fsys fsutil.FileSystem, root string, samplePerFile int) (*Summary, error) {
	if !fsys.Exists(root) {
		return nil, fmt.Errorf("input directory not found: %s", root)
	}
	files, err := listJSON(fsys, root, true)
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	sum := &Summary{TotalFiles: len(files), SampleLimit: samplePerFile}
	vehicles := make(map[string]bool)
	types := make(map[string]bool)

	for _, path := range files {
		objs, err := readFile(fsys, path, samplePerFile)
		if err != nil {
			log.Printf("skipping unreadable file %s: %v", path, err)
			continue
		}
		for _, obj := range objs {
			id, msgType := identity(obj)
			if id != "" {
				vehicles[id] = true
			}
			if msgType != "" {
				types[msgType] = true
			}
			switch {
			case gnssLike(obj):
				sum.GnssRecords++
			case v2xLike(obj):
				sum.V2XRecords++
			default:
				sum.OtherRecords++
			}
		}
	}

	sum.Vehicles = sortedKeys(vehicles)
	sum.MessageTypes = sortedKeys(types)
	return sum, nil
}

// identity pulls a vehicle ID and message type out of a raw object,
// probing flat keys first and the nested header structure second.
func identity(obj map[string]any) (vehicleID, messageType string) {
	vehicleID = asString(firstSet(obj, "stationID", "station_id", "vehicleID", "vehicle_id", "id"))
	if vehicleID == "" {
		if header, ok := obj["header"].(map[string]any); ok {
			if sid, ok := header["station_id"].(map[string]any); ok {
				vehicleID = asString(sid["value"])
			}
		}
	}

	messageType = asString(firstSet(obj, "messageType", "message_type", "msgType"))
	if messageType == "" {
		if _, ok := obj["cam"]; ok {
			messageType = "CAM"
		} else if _, ok := obj["denm"]; ok {
			messageType = "DENM"
		} else if header, ok := obj["header"].(map[string]any); ok {
			if id, ok := header["message_id"].(float64); ok {
				switch int(id) {
				case 2:
					messageType = "CAM"
				case 1:
					messageType = "DENM"
				}
			}
		}
	}
	return vehicleID, messageType
}

// gnssLike reports whether the object carries position fields.
func gnssLike(obj map[string]any) bool {
	return anyPresent(obj, "latitude", "lat", "longitude", "lon", "latitude_deg", "longitude_deg")
}

// v2xLike reports whether the object carries message fields.
func v2xLike(obj map[string]any) bool {
	if anyPresent(obj, "messageType", "message_type", "msgType",
		"tx_timestamp", "rx_timestamp", "direction", "rsu_id", "cam", "denm") {
		return true
	}
	header, ok := obj["header"].(map[string]any)
	if !ok {
		return false
	}
	_, ok = header["message_id"]
	return ok
}

// anyPresent reports whether any of the keys exists, null or not.
func anyPresent(obj map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}

func firstSet(obj map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// asString renders an ID-like value as a string. Integral numbers drop
// the decimal point so a numeric station ID matches its string form.
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
