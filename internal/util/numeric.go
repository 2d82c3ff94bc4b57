// Package util holds small helpers shared across packages.
package util

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ToFloat converts a decoded JSON or driver value to float64. It accepts
// numeric types, pointers to them, json.Number and numeric strings, and
// rejects NaN and infinities.
func ToFloat(raw any) (float64, error) {
	var (
		f   float64
		err error
	)
	switch v := raw.(type) {
	case float64:
		f = v
	case *float64:
		if v == nil {
			return 0, fmt.Errorf("nil float64 pointer")
		}
		f = *v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case *int:
		if v == nil {
			return 0, fmt.Errorf("nil int pointer")
		}
		f = float64(*v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case *int64:
		if v == nil {
			return 0, fmt.Errorf("nil int64 pointer")
		}
		f = float64(*v)
	case uint:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		f, err = v.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("unsupported value type %T", raw)
	}
	if err != nil {
		return 0, fmt.Errorf("unable to parse numeric value: %w", err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("value %v is not finite", f)
	}
	return f, nil
}
