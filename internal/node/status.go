package node

import (
	"fmt"
	"sort"
)

// Status is a property dictionary as read from configuration files or
// returned by Status().
type Status map[string]any

// Keys returns the keys in sorted order.
func (s Status) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy.
func (s Status) Clone() Status {
	c := make(Status, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

// Merge copies every entry of o into s.
func (s Status) Merge(o Status) {
	for k, v := range o {
		s[k] = v
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case int32:
		return int64(x), true
	case uint64:
		return int64(x), true
	case float64:
		if x == float64(int64(x)) {
			return int64(x), true
		}
	}
	return 0, false
}

func typeError(key string, v any, want string) error {
	return BadProperty("", key, fmt.Sprintf("expected %s, got %T", want, v))
}

// UpdateFloat stores the value of key in dst if present.
func (s Status) UpdateFloat(key string, dst *float64) (bool, error) {
	v, ok := s[key]
	if !ok {
		return false, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return false, typeError(key, v, "number")
	}
	*dst = f
	return true, nil
}

func (s Status) UpdateInt(key string, dst *int64) (bool, error) {
	v, ok := s[key]
	if !ok {
		return false, nil
	}
	n, ok := toInt(v)
	if !ok {
		return false, typeError(key, v, "integer")
	}
	*dst = n
	return true, nil
}

func (s Status) UpdateBool(key string, dst *bool) (bool, error) {
	v, ok := s[key]
	if !ok {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, typeError(key, v, "bool")
	}
	*dst = b
	return true, nil
}

// UpdateFloats accepts []float64 or a generic list of numbers.
func (s Status) UpdateFloats(key string, dst *[]float64) (bool, error) {
	v, ok := s[key]
	if !ok {
		return false, nil
	}
	switch x := v.(type) {
	case []float64:
		*dst = append([]float64(nil), x...)
		return true, nil
	case []any:
		out := make([]float64, len(x))
		for i, e := range x {
			f, ok := toFloat(e)
			if !ok {
				return false, typeError(key, e, "number list")
			}
			out[i] = f
		}
		*dst = out
		return true, nil
	}
	return false, typeError(key, v, "number list")
}

// UpdateInts accepts []int64, []int or a generic list of integers.
func (s Status) UpdateInts(key string, dst *[]int64) (bool, error) {
	v, ok := s[key]
	if !ok {
		return false, nil
	}
	switch x := v.(type) {
	case []int64:
		*dst = append([]int64(nil), x...)
		return true, nil
	case []int:
		out := make([]int64, len(x))
		for i, e := range x {
			out[i] = int64(e)
		}
		*dst = out
		return true, nil
	case []any:
		out := make([]int64, len(x))
		for i, e := range x {
			n, ok := toInt(e)
			if !ok {
				return false, typeError(key, e, "integer list")
			}
			out[i] = n
		}
		*dst = out
		return true, nil
	}
	return false, typeError(key, v, "integer list")
}

// UpdateStrings accepts []string or a generic list of strings.
func (s Status) UpdateStrings(key string, dst *[]string) (bool, error) {
	v, ok := s[key]
	if !ok {
		return false, nil
	}
	switch x := v.(type) {
	case []string:
		*dst = append([]string(nil), x...)
		return true, nil
	case []any:
		out := make([]string, len(x))
		for i, e := range x {
			str, ok := e.(string)
			if !ok {
				return false, typeError(key, e, "string list")
			}
			out[i] = str
		}
		*dst = out
		return true, nil
	}
	return false, typeError(key, v, "string list")
}

// Tag sets the model on a PropertyError produced by the Update helpers.
func Tag(model string, err error) error {
	if pe, ok := err.(*PropertyError); ok && pe.Model == "" {
		pe.Model = model
	}
	return err
}
