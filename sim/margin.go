package sim

// RequiredMargin is the margin qty lots of spec reserve.
func RequiredMargin(qty int, spec ContractSpec) float64 {
	if qty <= 0 {
		return 0
	}
	return float64(qty) * spec.MarginPerLot
}
