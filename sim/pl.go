package sim

// PnL is the profit of qty lots moved from entry to exit, signed by side.
func PnL(side Side, entry, exit float64, qty int, unitValue float64) float64 {
	return float64(side) * (exit - entry) * float64(qty) * unitValue
}

// UnrealizedPnL marks a position at price.
func UnrealizedPnL(p Position, price float64) float64 {
	return PnL(p.Side, p.EntryPrice, price, p.Quantity, p.UnitValue)
}
