package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTradeOrg(t *testing.T) {
	t.Parallel()

	trade := TradeRecord{
		TradeID:    "01HZX3K7Q9ABCDEFGH12345678",
		PositionID: "01HZX3K5000000000000000000",
		Phase:      "25k_phase2",
		Side:       "short",
		Contract:   "micro",
		Quantity:   5,
		EntryPrice: 4215.25,
		ExitPrice:  4205.25,
		OpenTime:   time.Date(2024, 3, 15, 10, 30, 45, 0, time.UTC),
		CloseTime:  time.Date(2024, 3, 15, 14, 20, 30, 0, time.UTC),
		RealizedPL: 100,
		Reason:     "TakeProfit",
	}

	result := FormatTradeOrg(trade)

	assert.True(t, strings.HasPrefix(result, "** Trade: SHORT 5 micro (12345678)\n"))
	assert.Contains(t, result, ":PROPERTIES:")
	assert.Contains(t, result, ":TRADE_ID: 01HZX3K7Q9ABCDEFGH12345678")
	assert.Contains(t, result, ":POSITION_ID: 01HZX3K5000000000000000000")
	assert.Contains(t, result, ":PHASE: 25k_phase2")
	assert.Contains(t, result, ":QUANTITY: 5")
	assert.Contains(t, result, ":ENTRY_PRICE: 4215.25")
	assert.Contains(t, result, ":EXIT_PRICE: 4205.25")
	assert.Contains(t, result, ":OPEN_TIME: 2024-03-15T10:30:45Z")
	assert.Contains(t, result, ":CLOSE_TIME: 2024-03-15T14:20:30Z")
	assert.Contains(t, result, ":REALIZED_PL: 100.00")
	assert.Contains(t, result, ":REASON: TakeProfit")
	assert.Contains(t, result, ":END:")

	assert.Contains(t, result, "*** Setup")
	assert.Contains(t, result, "*** Execution")
	assert.Contains(t, result, "*** Review")
}

func TestFormatTradeOrgShortID(t *testing.T) {
	t.Parallel()

	result := FormatTradeOrg(TradeRecord{TradeID: "short", Side: "long", Quantity: 1, Contract: "mini"})
	assert.Contains(t, result, "** Trade: LONG 1 mini (short)")
}

func TestFormatTradesOrg(t *testing.T) {
	t.Parallel()

	assert.Empty(t, FormatTradesOrg(nil))

	now := time.Now()
	out := FormatTradesOrg([]TradeRecord{sampleTrade("A1", now, 1), sampleTrade("B2", now, 2)})
	assert.Equal(t, 2, strings.Count(out, ":PROPERTIES:"))
	assert.Contains(t, out, "*** Review\n- \n\n\n** Trade:")
	assert.Less(t, strings.Index(out, ":TRADE_ID: A1"), strings.Index(out, ":TRADE_ID: B2"))
}

func TestFormatDayOrg(t *testing.T) {
	t.Parallel()

	now := time.Now()
	out := FormatDayOrg("2024-06-03", []TradeRecord{sampleTrade("A1", now, 300), sampleTrade("B2", now, -100)})
	assert.True(t, strings.HasPrefix(out, "* 2024-06-03\n"))
	assert.Contains(t, out, "| 2 | 1 | 1 | 200.00 | 3.00 |")
	assert.Contains(t, out, ":TRADE_ID: B2")

	empty := FormatDayOrg("2024-06-04", nil)
	assert.Contains(t, empty, "| 0 | 0 | 0 | 0.00 | 0.00 |")
	assert.NotContains(t, empty, "** Trade:")
}

func TestRunWriteOrg(t *testing.T) {
	t.Parallel()

	run := Run{
		RunID:        "R1",
		Started:      time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC),
		Ended:        time.Date(2024, 6, 3, 10, 30, 0, 0, time.UTC),
		StartPhase:   "25k_phase1",
		EndPhase:     "50k_phase1",
		Ticks:        36000,
		Trades:       10,
		Wins:         6,
		Losses:       4,
		NetPL:        2600,
		WinRate:      0.6,
		ProfitFactor: 2.25,
		StartBalance: 25000,
		EndBalance:   50000,
		Advances:     2,
		Notes:        []string{"held winners to target"},
	}

	var b strings.Builder
	require.NoError(t, run.WriteOrg(&b))
	out := b.String()

	assert.True(t, strings.HasPrefix(out, "* SESSION: 25k_phase1 -> 50k_phase1\n"))
	assert.Contains(t, out, ":RUN_ID:      R1")
	assert.Contains(t, out, ":STARTED:     [2024-06-03 Mon 09:30:00]")
	assert.Contains(t, out, ":WIN_RATE:    60.00")
	assert.Contains(t, out, ":PROFIT_FAC:  2.25")
	assert.Contains(t, out, ":ADVANCES:    2")
	assert.Contains(t, out, "| Total   | 10 |")
	assert.Contains(t, out, "** Observations\n- held winners to target")

	run.FullyTrained = true
	run.Notes = nil
	b.Reset()
	require.NoError(t, run.WriteOrg(&b))
	assert.Contains(t, b.String(), "(fully trained)")
	assert.NotContains(t, b.String(), "Observations")
}

func TestRunSaveOrg(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.org")
	require.NoError(t, Run{RunID: "R9"}.SaveOrg(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), ":RUN_ID:      R9")
}
