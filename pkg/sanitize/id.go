package sanitize

import (
	"errors"
	"strconv"
	"strings"
)

var ErrInvalidID = errors.New("sanitize: invalid id")

// ID parses a non-negative decimal integer. Signs, fractions and trailing
// garbage are rejected rather than truncated.
func ID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrInvalidID
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return 0, ErrInvalidID
		}
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, ErrInvalidID
	}
	return n, nil
}
