// Package metrics exposes the trainer session to Prometheus.
//
//   - trainer_ticks_total                       ticks processed
//   - trainer_trades_closed_total{side,reason}  closed trade slices
//   - trainer_realized_pnl_total                signed, may go negative
//   - trainer_rejections_total{code}            orders and commands refused
//   - trainer_transitions_total{outcome}        phase changes
//   - trainer_balance / _equity / _floating_pnl / _margin_used
//   - trainer_phase{phase}                      1 for the active phase
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Ticks        prometheus.Counter
	TradesClosed *prometheus.CounterVec
	RealizedPnL  prometheus.Gauge
	Rejections   *prometheus.CounterVec
	Transitions  *prometheus.CounterVec

	Balance     prometheus.Gauge
	Equity      prometheus.Gauge
	FloatingPnL prometheus.Gauge
	MarginUsed  prometheus.Gauge

	phase *prometheus.GaugeVec

	mu        sync.Mutex
	lastPhase string
}

// New registers the trainer collectors with reg. A nil reg registers with
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		Ticks: f.NewCounter(prometheus.CounterOpts{
			Name: "trainer_ticks_total",
			Help: "Price ticks processed by the session.",
		}),
		TradesClosed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trainer_trades_closed_total",
			Help: "Closed trade slices split by side and exit reason.",
		}, []string{"side", "reason"}),
		// A counter cannot go down; realized P&L can.
		RealizedPnL: f.NewGauge(prometheus.GaugeOpts{
			Name: "trainer_realized_pnl_total",
			Help: "Cumulative realized P&L across the session.",
		}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trainer_rejections_total",
			Help: "Orders and commands rejected, by violation code.",
		}, []string{"code"}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trainer_transitions_total",
			Help: "Challenge transitions by outcome.",
		}, []string{"outcome"}),
		Balance: f.NewGauge(prometheus.GaugeOpts{
			Name: "trainer_balance",
			Help: "Realized account balance.",
		}),
		Equity: f.NewGauge(prometheus.GaugeOpts{
			Name: "trainer_equity",
			Help: "Balance plus floating P&L.",
		}),
		FloatingPnL: f.NewGauge(prometheus.GaugeOpts{
			Name: "trainer_floating_pnl",
			Help: "Unrealized P&L of open positions.",
		}),
		MarginUsed: f.NewGauge(prometheus.GaugeOpts{
			Name: "trainer_margin_used",
			Help: "Margin reserved by open positions.",
		}),
		phase: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trainer_phase",
			Help: "Active challenge phase indicator.",
		}, []string{"phase"}),
	}
}

func (m *Metrics) TradeClosed(side, reason string, pnl float64) {
	m.TradesClosed.WithLabelValues(side, reason).Inc()
	m.RealizedPnL.Add(pnl)
}

func (m *Metrics) Rejected(code string) { m.Rejections.WithLabelValues(code).Inc() }

func (m *Metrics) Transition(outcome string) { m.Transitions.WithLabelValues(outcome).Inc() }

func (m *Metrics) Account(balance, equity, floating, margin float64) {
	m.Balance.Set(balance)
	m.Equity.Set(equity)
	m.FloatingPnL.Set(floating)
	m.MarginUsed.Set(margin)
}

// SetPhase flips the phase indicator so exactly one series reads 1.
func (m *Metrics) SetPhase(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key == m.lastPhase {
		return
	}
	if m.lastPhase != "" {
		m.phase.WithLabelValues(m.lastPhase).Set(0)
	}
	m.phase.WithLabelValues(key).Set(1)
	m.lastPhase = key
}

// Handler serves g in the Prometheus text format. A nil g serves the
// default gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
