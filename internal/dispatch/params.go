package dispatch

import (
	"encoding/json"

	"github.com/wordflux/boardctl/internal/filter"
)

// specFromParams decodes the "filter" param into a filter spec through a JSON
// round-trip, accepting both typed and map-shaped input.
func specFromParams(p map[string]any) (filter.Spec, error) {
	var spec filter.Spec
	raw, ok := p["filter"]
	if !ok {
		return spec, nil
	}
	if typed, ok := raw.(filter.Spec); ok {
		return typed, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return spec, err
	}
	if err := json.Unmarshal(data, &spec); err != nil {
		return spec, err
	}
	return spec, nil
}

// Invoke params arrive either from Go callers or from a JSON round-trip
// through the undo store and the serve bridge, so every numeric may be a
// float64. These helpers normalize both shapes.

func paramString(p map[string]any, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

func paramBool(p map[string]any, key string) bool {
	v, _ := p[key].(bool)
	return v
}

func paramInt64(p map[string]any, key string) int64 {
	switch v := p[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func paramInt(p map[string]any, key string) int {
	return int(paramInt64(p, key))
}

// paramHasKey distinguishes "field absent" from "field set to zero value",
// which matters for partial updates.
func paramHasKey(p map[string]any, key string) bool {
	_, ok := p[key]
	return ok
}

func paramInt64s(p map[string]any, key string) []int64 {
	raw, ok := p[key].([]any)
	if !ok {
		if typed, ok := p[key].([]int64); ok {
			return typed
		}
		return nil
	}
	out := make([]int64, 0, len(raw))
	for _, v := range raw {
		switch n := v.(type) {
		case int64:
			out = append(out, n)
		case float64:
			out = append(out, int64(n))
		}
	}
	return out
}
