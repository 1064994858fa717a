package domain

import (
	"encoding/json"
	"math"
	"strconv"
)

// toFloat accepts every numeric shape a mapping can carry after a trip through
// JSON, msgpack or plain Go code.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func requireString(m map[string]interface{}, entity, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", &MissingFieldError{Entity: entity, Field: key}
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", &MissingFieldError{Entity: entity, Field: key}
	}
	return s, nil
}

func requireFloat(m map[string]interface{}, entity, key string) (float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, &MissingFieldError{Entity: entity, Field: key}
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, &MissingFieldError{Entity: entity, Field: key}
	}
	return f, nil
}

func optionalString(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func optionalFloat(m map[string]interface{}, key string, def float64) float64 {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	if f, ok := toFloat(v); ok {
		return f
	}
	return def
}

func optionalInt(m map[string]interface{}, key string, def int) int {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	if f, ok := toFloat(v); ok {
		return int(math.Round(f))
	}
	return def
}

func optionalMap(m map[string]interface{}, key string) (map[string]interface{}, bool) {
	switch v := m[key].(type) {
	case map[string]interface{}:
		return v, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			if ks, ok := k.(string); ok {
				out[ks] = val
			}
		}
		return out, true
	}
	return nil, false
}

// mapList accepts both []interface{} (decoded) and []map[string]interface{}
// (built in Go) forms of a list of mappings.
func mapList(m map[string]interface{}, key string) ([]map[string]interface{}, bool) {
	switch v := m[key].(type) {
	case []map[string]interface{}:
		return v, true
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(v))
		for _, item := range v {
			switch im := item.(type) {
			case map[string]interface{}:
				out = append(out, im)
			case map[interface{}]interface{}:
				conv, _ := optionalMap(map[string]interface{}{"v": im}, "v")
				out = append(out, conv)
			}
		}
		return out, true
	}
	return nil, false
}

func floatMap(m map[string]interface{}, key string) map[string]float64 {
	switch v := m[key].(type) {
	case map[string]float64:
		out := make(map[string]float64, len(v))
		for k, f := range v {
			out[k] = f
		}
		return out
	}
	raw, ok := optionalMap(m, key)
	if !ok {
		return map[string]float64{}
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		if f, ok := toFloat(v); ok {
			out[k] = f
		}
	}
	return out
}

func stringMap(m map[string]interface{}, key string) map[string]string {
	switch v := m[key].(type) {
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out
	}
	raw, ok := optionalMap(m, key)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
