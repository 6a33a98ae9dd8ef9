package series

import "golang.org/x/exp/constraints"

// Number is any sample value that can be forward-filled.
type Number interface {
	constraints.Integer | constraints.Float
}

// FillForward resolves optional values in order: an absent value takes the
// previous resolved value, or zero when nothing has been seen yet.
func FillForward[T Number](vals []*T) []T {
	out := make([]T, len(vals))
	var last T
	for i, v := range vals {
		if v != nil {
			last = *v
		}
		out[i] = last
	}
	return out
}

// PadTo extends s to length n by repeating its last value, or zero when s
// is empty. Existing samples are never removed, so padding a slice that is
// already long enough returns it unchanged.
func PadTo[T Number](s []T, n int) []T {
	var last T
	if len(s) > 0 {
		last = s[len(s)-1]
	}
	for len(s) < n {
		s = append(s, last)
	}
	return s
}

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean[T Number](s []T) float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s {
		sum += float64(v)
	}
	return sum / float64(len(s))
}

// Map applies fn to every value.
func Map[T, U any](s []T, fn func(T) U) []U {
	if s == nil {
		return nil
	}
	out := make([]U, len(s))
	for i, v := range s {
		out[i] = fn(v)
	}
	return out
}
