package risk

import (
	"fmt"
	"math"
	"strconv"
)

func violation(code Code, format string, args ...any) *Violation {
	return &Violation{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// CheckLotLimit rejects an order when the open plus submitted size, both in
// the common lot unit, would exceed max.
func CheckLotLimit(existing, submitted, max float64) error {
	total := existing + submitted
	if total > max+1e-9 {
		return violation(CodeLotLimit,
			"max lot size exceeded: limit is %s, attempted %.2f",
			strconv.FormatFloat(max, 'f', -1, 64), total)
	}
	return nil
}

// CheckMargin rejects an order whose required margin exceeds what is free.
func CheckMargin(required, available float64) error {
	if required > available {
		return violation(CodeMargin,
			"not enough margin: need $%.2f, have $%.2f", required, available)
	}
	return nil
}

// CheckLotSize validates a per-order lot size. max <= 0 means no cap.
func CheckLotSize(n, max int) error {
	if n < 1 {
		return violation(CodeLotSize, "lot size can't be less than 1")
	}
	if max > 0 && n > max {
		return violation(CodeLotSize, "lot size can't exceed max allowed: %d", max)
	}
	return nil
}

// CheckOffset validates a default stop or target distance in points.
func CheckOffset(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return violation(CodeOffset, "%s offset must be positive, got %v", name, v)
	}
	return nil
}

// CheckPrice validates a market or bracket price.
func CheckPrice(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
		return violation(CodePrice, "price must be positive, got %v", p)
	}
	return nil
}
