package market

import (
	"context"
	"io"
	"math"
	"math/rand"
	"sync"
)

const (
	DefaultStartPrice = 4215.25
	DefaultStep       = 2.0
	// MinPrice is the floor a generated price never drops below.
	MinPrice = 0.25
)

// PriceSource produces the next tick price. Sources return io.EOF when
// exhausted.
type PriceSource interface {
	Next(ctx context.Context) (float64, error)
}

// SourceFunc adapts a function to PriceSource.
type SourceFunc func(ctx context.Context) (float64, error)

func (f SourceFunc) Next(ctx context.Context) (float64, error) { return f(ctx) }

// RandomWalk moves the price by a uniform step in [-step/2, step/2) per
// tick, rounded to cents. It is safe for concurrent use.
type RandomWalk struct {
	mu    sync.Mutex
	rnd   *rand.Rand
	price float64
	step  float64
}

func NewRandomWalk(start, step float64, seed int64) *RandomWalk {
	if start <= 0 {
		start = DefaultStartPrice
	}
	if step <= 0 {
		step = DefaultStep
	}
	return &RandomWalk{
		rnd:   rand.New(rand.NewSource(seed)),
		price: start,
		step:  step,
	}
}

func (w *RandomWalk) Next(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	change := round2(w.rnd.Float64()*w.step - w.step/2)
	w.price = math.Max(MinPrice, round2(w.price+change))
	return w.price, nil
}

// Price is the last generated price, or the start price before any tick.
func (w *RandomWalk) Price() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.price
}

// Series replays fixed prices in order.
type Series struct {
	mu     sync.Mutex
	prices []float64
	next   int
}

func NewSeries(prices ...float64) *Series {
	return &Series{prices: prices}
}

func (s *Series) Next(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.prices) {
		return 0, io.EOF
	}
	p := s.prices[s.next]
	s.next++
	return p, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
