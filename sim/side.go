package sim

import (
	"fmt"
	"strings"
)

type Side int

const (
	Long  Side = 1
	Short Side = -1
)

func (s Side) String() string {
	switch s {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

func (s Side) Opposite() Side {
	return -s
}

// ParseSide accepts long/short and the buy/sell spellings.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long", "buy", "b":
		return Long, nil
	case "short", "sell", "s":
		return Short, nil
	default:
		return 0, fmt.Errorf("unknown side %q", s)
	}
}
