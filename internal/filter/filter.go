// Package filter defines the per-line transform a Reader applies to every
// line it successfully reads, plus a couple of concrete filters used by the
// demo daemon.
package filter

import "tailtrack/internal/tailerr"

// Filter transforms one line into the value a caller ultimately receives.
// An error is wrapped in tailerr.FilterError by the caller and propagated
// verbatim; the reader does not advance past the line that triggered it.
type Filter func(line string) (string, error)

// Passthrough returns the line unchanged. It is the default used when no
// filter is configured.
func Passthrough(line string) (string, error) {
	return line, nil
}

// Wrap adapts a raw error from f into a tailerr.FilterError, so callers can
// use errors.As(err, *tailerr.FilterError) uniformly regardless of which
// filter raised it.
func Wrap(f Filter) Filter {
	return func(line string) (string, error) {
		out, err := f(line)
		if err != nil {
			return "", &tailerr.FilterError{Err: err}
		}
		return out, nil
	}
}
