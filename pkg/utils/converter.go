package utils

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cast"
)

// ToString converts any value to its canonical string form.
// Integral floats keep no trailing zeros, so 2.0 and 2 both render as "2".
func ToString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case time.Time:
		return strconv.FormatInt(val.UnixMilli(), 10)
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// ToFloat64 converts numeric values and numeric strings to float64
func ToFloat64(arg interface{}) (float64, error) {
	if arg == nil {
		return 0, fmt.Errorf("cannot convert nil to float64")
	}

	switch v := arg.(type) {
	case bool:
		return 0, fmt.Errorf("cannot convert %T to float64", arg)
	case time.Time:
		return float64(v.UnixMilli()), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f, nil
		}
		return 0, fmt.Errorf("cannot convert %T to float64", arg)
	}

	f, err := cast.ToFloat64E(arg)
	if err != nil {
		return 0, fmt.Errorf("cannot convert %T to float64", arg)
	}
	return f, nil
}

// ToBool reports the truthiness of a value: nil, false, zero and "" are false
func ToBool(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f != 0
		}
		return val != ""
	}
	if f, err := ToFloat64(v); err == nil {
		return f != 0
	}
	return true
}
