package market

import (
	"fmt"
	"strings"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Sign is +1 for longs and -1 for shorts.
func (s Side) Sign() float64 {
	if s == Sell {
		return -1
	}
	return 1
}

// ParseSide accepts BUY/SELL and LONG/SHORT in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "LONG":
		return Buy, nil
	case "SELL", "SHORT":
		return Sell, nil
	default:
		return "", fmt.Errorf("unknown side %q", s)
	}
}

func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
