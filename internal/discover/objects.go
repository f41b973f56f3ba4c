package discover

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"sort"
	"strings"

	"github.com/corridor-data/v2xtrace/internal/fsutil"
)

// ReadObjects reads every JSON object from the named file. The layout is
// detected from the first byte: a JSON array yields its object elements,
// an object-per-line file yields one object per line (malformed lines
// are skipped with a warning), and a single large object is either
// yielded as-is or, when its keys are recording topics like /gps/... or
// /v2x/cam, flattened into one object per topic record.
func ReadObjects(fsys fsutil.FileSystem, path string) ([]map[string]any, error) {
	return readFile(fsys, path, 0)
}

func readFile(fsys fsutil.FileSystem, path string, limit int) ([]map[string]any, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return readObjects(bufio.NewReader(f), path, limit)
}

func readObjects(br *bufio.Reader, path string, limit int) ([]map[string]any, error) {
	first, err := peekNonSpace(br)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	switch first {
	case '[':
		return readArray(br, path, limit)
	case '{':
		return readObjectOrLines(br, path, limit)
	default:
		return nil, fmt.Errorf("parse %s: file is not a JSON array or object", path)
	}
}

// peekNonSpace returns the first non-whitespace byte without consuming it.
func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return 0, err
		}
		return b, nil
	}
}

// readArray streams the elements of a top-level JSON array, keeping only
// object elements.
func readArray(br *bufio.Reader, path string, limit int) ([]map[string]any, error) {
	dec := json.NewDecoder(br)
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	var objs []map[string]any
	for dec.More() {
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if m, ok := v.(map[string]any); ok {
			objs = append(objs, m)
			if limit > 0 && len(objs) >= limit {
				return objs, nil
			}
		}
	}
	return objs, nil
}

// readObjectOrLines handles files whose first byte is '{'. If the first
// line alone is a complete object the file is object-per-line; otherwise
// the whole file is one object, possibly in the topic-keyed format.
func readObjectOrLines(br *bufio.Reader, path string, limit int) ([]map[string]any, error) {
	firstLine, err := br.ReadString('\n')
	atEOF := err == io.EOF
	if err != nil && !atEOF {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var first map[string]any
	if json.Unmarshal([]byte(firstLine), &first) == nil {
		if atEOF && hasTopicKeys(first) {
			return flattenTopics(first, limit), nil
		}
		objs := []map[string]any{first}
		if limit > 0 && len(objs) >= limit {
			return objs, nil
		}
		for !atEOF {
			line, err := br.ReadString('\n')
			if err == io.EOF {
				atEOF = true
			} else if err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var m map[string]any
			if err := json.Unmarshal([]byte(line), &m); err != nil {
				log.Printf("skipping malformed JSON line in %s: %v", path, err)
				continue
			}
			objs = append(objs, m)
			if limit > 0 && len(objs) >= limit {
				return objs, nil
			}
		}
		return objs, nil
	}

	rest, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	data := append([]byte(firstLine), rest...)
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if hasTopicKeys(obj) {
		return flattenTopics(obj, limit), nil
	}
	return []map[string]any{obj}, nil
}

// hasTopicKeys reports whether the object is a topic-keyed recording,
// with keys like /gps/cohda_mk5/fix or /v2x/cam.
func hasTopicKeys(obj map[string]any) bool {
	for k := range obj {
		if strings.HasPrefix(k, "/") {
			return true
		}
	}
	return false
}

// flattenTopics turns a topic-keyed recording into a flat sequence of
// objects, one per topic record, in sorted topic order.
func flattenTopics(data map[string]any, limit int) []map[string]any {
	topics := make([]string, 0, len(data))
	for k := range data {
		if strings.HasPrefix(k, "/") {
			topics = append(topics, k)
		}
	}
	sort.Strings(topics)

	var out []map[string]any
	for _, topic := range topics {
		records, ok := data[topic].([]any)
		if !ok {
			continue
		}
		for _, rv := range records {
			rec, ok := rv.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, flattenTopicRecord(topic, rec))
			if limit > 0 && len(out) >= limit {
				return out
			}
		}
	}
	return out
}

// flattenTopicRecord merges a topic record's nested message fields into
// one flat object using the key spellings the parser probes. The
// recording timestamp is nanoseconds; it becomes the object's canonical
// timestamp in milliseconds.
func flattenTopicRecord(topic string, rec map[string]any) map[string]any {
	message, hasMessage := rec["message"].(map[string]any)

	var flat map[string]any
	if hasMessage {
		flat = make(map[string]any, len(message)+4)
		for k, v := range message {
			flat[k] = v
		}
	} else {
		flat = make(map[string]any, len(rec)+2)
		for k, v := range rec {
			flat[k] = v
		}
	}
	flat["_topic"] = topic

	if ns, ok := rec["recording_timestamp_nsec"].(float64); ok {
		flat["timestamp"] = math.Round(ns / 1e6)
	}

	promoteNestedFields(flat)

	// The recording format carries no explicit byte counts; the encoded
	// message size stands in for the payload size.
	if hasMessage {
		if _, ok := flat["payload_bytes"]; !ok {
			if encoded, err := json.Marshal(message); err == nil {
				flat["payload_bytes"] = float64(len(encoded))
			}
		}
	}
	return flat
}

// promoteNestedFields lifts identity fields buried in the standardized
// message structure up to flat keys: header.station_id.value, the
// header.message_id code (2 is CAM, 1 is DENM), and the CAM basic
// container's station type.
func promoteNestedFields(flat map[string]any) {
	header, _ := flat["header"].(map[string]any)

	if !anySet(flat, "stationID", "station_id", "vehicleID", "vehicle_id", "id") && header != nil {
		if sid, ok := header["station_id"].(map[string]any); ok {
			if v, ok := sid["value"]; ok && v != nil {
				flat["stationID"] = v
			}
		}
	}

	if !anySet(flat, "messageType", "message_type", "msgType") {
		if _, ok := flat["cam"]; ok {
			flat["messageType"] = "CAM"
		} else if _, ok := flat["denm"]; ok {
			flat["messageType"] = "DENM"
		} else if header != nil {
			if id, ok := header["message_id"].(float64); ok {
				switch int(id) {
				case 2:
					flat["messageType"] = "CAM"
				case 1:
					flat["messageType"] = "DENM"
				}
			}
		}
	}

	if !anySet(flat, "stationType", "station_type") {
		if cam, ok := flat["cam"].(map[string]any); ok {
			if params, ok := cam["cam_parameters"].(map[string]any); ok {
				if basic, ok := params["basic_container"].(map[string]any); ok {
					if st, ok := basic["station_type"].(map[string]any); ok {
						if v, ok := st["value"]; ok && v != nil {
							flat["stationType"] = v
						}
					}
				}
			}
		}
	}
}

// anySet reports whether any of the keys is present with a non-null value.
func anySet(obj map[string]any, keys ...string) bool {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return true
		}
	}
	return false
}
