package provider

import (
	"encoding/json"
	"strconv"
	"strings"
)

const unexpectedFormat = "unexpected response format"

// stringField reads key as display text. Missing, null and nested values become "".
func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case float64:
		return int(t), true
	case json.Number:
		i, err := t.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		return i, err == nil
	default:
		return 0, false
	}
}

// truthy interprets a loosely typed flag. ok is false when the value is absent or not
// recognisable as a flag.
func truthy(v any) (value bool, ok bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f != 0, err == nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no":
			return false, true
		}
	}
	return false, false
}

// errorMessage returns the text of an explicit "error" field, if the payload has one.
func errorMessage(m map[string]any) string {
	switch v := m["error"].(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		if msg := stringField(v, "message"); msg != "" {
			return msg
		}
		return "provider reported an error"
	case bool:
		if v {
			return "provider reported an error"
		}
	}
	return ""
}
