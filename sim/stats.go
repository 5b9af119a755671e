package sim

import "time"

// Stats summarizes realized history.
type Stats struct {
	Trades int
	Wins   int
	Losses int

	WinRate      float64 // percent
	TotalPnL     float64
	AvgWin       float64
	AvgLoss      float64 // negative or zero
	ProfitFactor float64 // gross profit / gross loss, 0 without losses

	AvgWinDuration  time.Duration
	AvgLossDuration time.Duration
}

func Summarize(trades []ClosedTrade) Stats {
	var (
		s                   Stats
		grossWin, grossLoss float64
		winDur, lossDur     time.Duration
	)
	for _, t := range trades {
		s.Trades++
		s.TotalPnL += t.RealizedPnL
		switch {
		case t.Win():
			s.Wins++
			grossWin += t.RealizedPnL
			winDur += t.Duration
		case t.Loss():
			s.Losses++
			grossLoss += t.RealizedPnL
			lossDur += t.Duration
		}
	}
	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades) * 100
	}
	if s.Wins > 0 {
		s.AvgWin = grossWin / float64(s.Wins)
		s.AvgWinDuration = winDur / time.Duration(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = grossLoss / float64(s.Losses)
		s.AvgLossDuration = lossDur / time.Duration(s.Losses)
		s.ProfitFactor = grossWin / -grossLoss
	}
	return s
}
