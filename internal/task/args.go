package task

import (
	"encoding/json"
	"fmt"
	"math"
)

// Args gives handlers typed access to a task's positional and named arguments.
// Arguments arrive JSON-decoded, so numbers are float64 and lists are []any.
type Args struct {
	Positional []any
	Named      map[string]any
}

// ArgsFor builds the argument view of a task.
func ArgsFor(t *Task) Args {
	return Args{Positional: t.Args, Named: t.Kwargs}
}

// Len returns the number of positional arguments.
func (a Args) Len() int {
	return len(a.Positional)
}

// Require fails unless at least n positional arguments were supplied.
func (a Args) Require(n int) error {
	if len(a.Positional) < n {
		return fmt.Errorf("%w: expected at least %d positional arguments, got %d",
			ErrInvalidArgument, n, len(a.Positional))
	}
	return nil
}

func (a Args) at(i int) (any, error) {
	if i < 0 || i >= len(a.Positional) {
		return nil, fmt.Errorf("%w: missing positional argument %d", ErrInvalidArgument, i)
	}
	return a.Positional[i], nil
}

// String returns positional argument i as a string.
func (a Args) String(i int) (string, error) {
	v, err := a.at(i)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: argument %d must be a string, got %T", ErrInvalidArgument, i, v)
	}
	return s, nil
}

// Number returns positional argument i as a float64.
func (a Args) Number(i int) (float64, error) {
	v, err := a.at(i)
	if err != nil {
		return 0, err
	}
	n, ok := toFloat(v)
	if !ok {
		return 0, fmt.Errorf("%w: argument %d must be a number, got %T", ErrInvalidArgument, i, v)
	}
	return n, nil
}

// Strings returns positional argument i as a list of strings.
func (a Args) Strings(i int) ([]string, error) {
	v, err := a.at(i)
	if err != nil {
		return nil, err
	}

	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for j, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: argument %d[%d] must be a string, got %T",
					ErrInvalidArgument, i, j, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: argument %d must be a list of strings, got %T", ErrInvalidArgument, i, v)
	}
}

// NamedString returns the named argument key, or def when it is absent.
func (a Args) NamedString(key, def string) (string, error) {
	v, ok := a.Named[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidArgument, key, v)
	}
	return s, nil
}

// NamedBool returns the named argument key, or def when it is absent.
func (a Args) NamedBool(key string, def bool) (bool, error) {
	v, ok := a.Named[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s must be a boolean, got %T", ErrInvalidArgument, key, v)
	}
	return b, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// IsIntegral reports whether f has no fractional part and fits an int64.
func IsIntegral(f float64) bool {
	return f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < math.MaxInt64
}
