package bridge

import (
	"encoding/json"

	"github.com/Evildoersudo/back-end/internal/device"
)

// decodePayload interprets an inbound message body as a JSON object.
// Bare JSON values are wrapped as {"value": v}. Non-JSON bodies are
// tolerated on the offline kinds, where the raw text becomes
// {"message": text}; for everything else they are rejected.
func decodePayload(kind string, raw []byte) (map[string]interface{}, bool) {
	var loaded interface{}
	if err := json.Unmarshal(raw, &loaded); err != nil {
		if kind == "lwt" || kind == "will" || kind == "offline" {
			return map[string]interface{}{"message": string(raw)}, true
		}
		return nil, false
	}
	if obj, ok := loaded.(map[string]interface{}); ok {
		return obj, true
	}
	return map[string]interface{}{"value": loaded}, true
}

func floatField(m map[string]interface{}, key string, def float64) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return def
}

func int64Field(m map[string]interface{}, key string) int64 {
	if v, ok := m[key].(float64); ok {
		return int64(v)
	}
	return 0
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func boolField(m map[string]interface{}, key string) (bool, bool) {
	v, ok := m[key].(bool)
	return v, ok
}

// socketsField extracts the socket list from a status payload. Entries
// that are not objects or lack an id are skipped.
func socketsField(m map[string]interface{}) []device.Socket {
	items, ok := m["sockets"].([]interface{})
	if !ok {
		return nil
	}

	sockets := make([]device.Socket, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id, ok := obj["id"].(float64)
		if !ok {
			continue
		}
		on, _ := boolField(obj, "on")
		sockets = append(sockets, device.Socket{
			ID:     int(id),
			On:     on,
			PowerW: floatField(obj, "power_w", 0),
			Device: stringField(obj, "device"),
		})
	}
	return sockets
}
