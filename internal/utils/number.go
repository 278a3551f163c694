package utils

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// OutOfRangeProtocol stands in for protocol numbers too large for an int.
// It is never a registered protocol, so such records take the default name.
const OutOfRangeProtocol = math.MinInt

// ParsePort parses a destination port. Surrounding whitespace is ignored and
// negative values are rejected.
func ParsePort(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative port %q", s)
	}
	return n, nil
}

// ParseProtocolNumber parses a protocol number. Any integer is accepted,
// including negative and out of range values; only non-numeric input fails.
func ParseProtocolNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if errors.Is(err, strconv.ErrRange) {
		return OutOfRangeProtocol, nil
	}
	if err != nil {
		return 0, fmt.Errorf("invalid protocol number %q", s)
	}
	return n, nil
}
