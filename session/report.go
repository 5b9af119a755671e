package session

import (
	"fmt"
	"io"

	"github.com/rustyeddy/trainer/journal"
	"github.com/rustyeddy/trainer/sim"
)

// WriteReport prints a plain text status block for snap.
func WriteReport(w io.Writer, snap Snapshot) {
	c := snap.Challenge
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, " %s\n", snap.Phase.Name)
	fmt.Fprintln(w, "==================================================")

	if c.FullyTrained {
		fmt.Fprintln(w, "Mode:          free (fully trained)")
	} else {
		fmt.Fprintf(w, "Phase:         %s (level %s, phase %d)\n", c.PhaseKey, c.Level, c.Ordinal)
	}
	fmt.Fprintf(w, "Tier:          %d/%d\n", snap.Tier+1, snap.TierCount)
	fmt.Fprintf(w, "Target:        %.2f (%.1f%%)\n", c.ProfitTarget, snap.Progress)
	fmt.Fprintf(w, "Max Loss:      %.2f\n", c.MaxTotalLoss)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Price:         %.2f\n", snap.CurrentPrice)
	fmt.Fprintf(w, "Balance:       %.2f\n", snap.Balance)
	fmt.Fprintf(w, "Equity:        %.2f\n", snap.Equity)
	fmt.Fprintf(w, "Floating P/L:  %.2f\n", snap.FloatingPnL)
	fmt.Fprintf(w, "Margin Used:   %.2f\n", snap.MarginUsed)
	fmt.Fprintf(w, "Margin Free:   %.2f\n", snap.MarginAvailable)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Orders")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Contract:      %s x %d\n", snap.Contract, snap.LotSize)
	fmt.Fprintf(w, "Stop/Target:   %.2f / %.2f\n", snap.StopOffset, snap.TargetOffset)
	if snap.LotLimit > 0 {
		fmt.Fprintf(w, "Lot Limit:     %d %s (%.2f of %.2f mini open)\n", snap.LotLimit, snap.Contract, snap.LotsOpen, snap.LotsOpen+snap.LotsRemaining)
	} else {
		fmt.Fprintln(w, "Lot Limit:     none")
	}

	if len(snap.Open) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Open Positions")
		fmt.Fprintln(w, "--------------------------------------------------")
		for _, p := range snap.Open {
			fmt.Fprintf(w, "%s  %-5s %3d %-5s @ %.2f  SL %.2f  TP %.2f  P/L %.2f\n",
				short(p.ID), p.Side, p.Quantity, p.Contract, p.EntryPrice,
				p.StopPrice, p.TargetPrice, sim.UnrealizedPnL(p, snap.CurrentPrice))
		}
	}

	st := snap.Stats
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", st.Trades)
	fmt.Fprintf(w, "Wins:          %d\n", st.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", st.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", st.WinRate)
	fmt.Fprintf(w, "Net P/L:       %.2f\n", st.TotalPnL)
	if st.ProfitFactor > 0 {
		fmt.Fprintf(w, "Profit Factor: %.2f\n", st.ProfitFactor)
	}
}

func short(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}

// Summary describes the session so far across every phase it went
// through.
func (s *Session) Summary(runID string) journal.Run {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := sim.Summarize(s.totals.closed)
	state := s.machine.State()
	return journal.Run{
		RunID:        runID,
		Started:      s.totals.started,
		Ended:        s.now(),
		StartPhase:   s.totals.startPhase,
		EndPhase:     state.PhaseKey,
		FullyTrained: state.FullyTrained,
		Ticks:        s.totals.ticks,
		Trades:       st.Trades,
		Wins:         st.Wins,
		Losses:       st.Losses,
		NetPL:        st.TotalPnL,
		WinRate:      st.WinRate / 100,
		ProfitFactor: st.ProfitFactor,
		StartBalance: s.totals.startBalance,
		EndBalance:   s.acct.Balance,
		Advances:     s.totals.advances,
		Failures:     s.totals.failures,
	}
}
