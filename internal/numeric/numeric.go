package numeric

import (
	"math"
	"strconv"
	"strings"
)

// Num coerces an arbitrary decoded JSON value into a finite float64.
// Strings containing numbers are accepted; NaN, infinities, and anything
// non-numeric yield nil.
func Num(value any) *float64 {
	switch typed := value.(type) {
	case nil:
		return nil
	case float64:
		return finite(typed)
	case float32:
		return finite(float64(typed))
	case int:
		return finite(float64(typed))
	case int32:
		return finite(float64(typed))
	case int64:
		return finite(float64(typed))
	case uint64:
		return finite(float64(typed))
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil
		}
		return finite(parsed)
	default:
		return nil
	}
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Float returns a pointer to the given finite value, or nil if it is not finite.
func Float(f float64) *float64 {
	return finite(f)
}

// First returns the first non-nil value, or nil when every candidate is absent.
func First(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// Value unwraps an optional number, substituting fallback when absent.
func Value(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

// Sum totals the picked values across items, treating absent values as 0.
func Sum[T any](items []T, pick func(T) *float64) float64 {
	var total float64
	for _, item := range items {
		if v := pick(item); v != nil {
			total += *v
		}
	}
	return total
}

// WeightedAverage computes the weighted mean of value across items. Items
// lacking a positive weight or a value are skipped; nil when none qualify.
func WeightedAverage[T any](items []T, weight func(T) *float64, value func(T) *float64) *float64 {
	var num, den float64
	for _, item := range items {
		w := weight(item)
		v := value(item)
		if w == nil || *w <= 0 || v == nil {
			continue
		}
		num += *v * *w
		den += *w
	}
	if den <= 0 {
		return nil
	}
	avg := num / den
	return &avg
}
