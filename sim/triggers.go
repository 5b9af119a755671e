package sim

func hitTakeProfit(p *Position, price float64) bool {
	if p.Side == Long {
		return price >= p.TargetPrice
	}
	return price <= p.TargetPrice
}

func hitStopLoss(p *Position, price float64) bool {
	if p.Side == Long {
		return price <= p.StopPrice
	}
	return price >= p.StopPrice
}

// exitReason reports which bracket price has reached. Take-profit wins if a
// user has dragged the brackets across each other.
func exitReason(p *Position, price float64) (CloseReason, bool) {
	switch {
	case hitTakeProfit(p, price):
		return ReasonTakeProfit, true
	case hitStopLoss(p, price):
		return ReasonStopLoss, true
	}
	return "", false
}
