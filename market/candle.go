package market

import (
	"math"
	"math/rand"
	"time"
)

const (
	DefaultBucket   = time.Second
	DefaultCapacity = 200
)

// Candle represents OHLC (Open, High, Low, Close) candlestick data built
// from ticks. Time is the bar's open.
type Candle struct {
	Time  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
	Ticks int
}

func (c *Candle) add(price float64) {
	c.High = math.Max(c.High, price)
	c.Low = math.Min(c.Low, price)
	c.Close = price
	c.Ticks++
}

// CandleSeries aggregates ticks into bars of a fixed width and keeps only
// the most recent capacity bars.
type CandleSeries struct {
	bucket   time.Duration
	capacity int
	candles  []Candle
}

func NewCandleSeries(bucket time.Duration, capacity int) *CandleSeries {
	if bucket <= 0 {
		bucket = DefaultBucket
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &CandleSeries{bucket: bucket, capacity: capacity}
}

// Update folds a tick into the series. A tick no more than one bucket after
// the last bar's open extends that bar; any later tick starts a new bar and
// evicts the oldest once capacity is reached. It reports whether a bar was
// started.
func (s *CandleSeries) Update(price float64, t time.Time) bool {
	if n := len(s.candles); n > 0 && t.Sub(s.candles[n-1].Time) <= s.bucket {
		s.candles[n-1].add(price)
		return false
	}
	s.push(Candle{Time: t, Open: price, High: price, Low: price, Close: price, Ticks: 1})
	return true
}

func (s *CandleSeries) push(c Candle) {
	s.candles = append(s.candles, c)
	if over := len(s.candles) - s.capacity; over > 0 {
		s.candles = append(s.candles[:0], s.candles[over:]...)
	}
}

// Candles returns a copy of the bars, oldest first.
func (s *CandleSeries) Candles() []Candle {
	out := make([]Candle, len(s.candles))
	copy(out, s.candles)
	return out
}

func (s *CandleSeries) Last() (Candle, bool) {
	if len(s.candles) == 0 {
		return Candle{}, false
	}
	return s.candles[len(s.candles)-1], true
}

func (s *CandleSeries) Len() int { return len(s.candles) }

func (s *CandleSeries) Bucket() time.Duration { return s.bucket }

func (s *CandleSeries) Capacity() int { return s.capacity }

// Backfill prepends n synthetic bars ending one bucket before end, so a
// fresh chart has history. Every bar opens at the previous close and the
// last bar closes at price. Existing bars are kept after the history.
func (s *CandleSeries) Backfill(price float64, n int, end time.Time, rnd *rand.Rand) {
	if n <= 0 {
		return
	}
	if n > s.capacity {
		n = s.capacity
	}

	const volatility = 3.0
	bars := make([]Candle, n)
	p, trend := 0.0, 1.0
	for i := range bars {
		body := rnd.Float64() * volatility
		dir := trend
		if rnd.Float64() <= 0.3 {
			dir = -trend
		}
		bars[i] = Candle{Open: p, Close: p + body*dir}
		p, trend = bars[i].Close, dir
	}

	// Shift the walk so the last close lands on price.
	shift := price - p
	for i := range bars {
		b := &bars[i]
		b.Open += shift
		b.Close += shift
		b.High = math.Max(b.Open, b.Close) + rnd.Float64()
		b.Low = math.Min(b.Open, b.Close) - rnd.Float64()
		b.Time = end.Add(-time.Duration(n-i) * s.bucket)
		b.Ticks = 1
	}

	merged := append(bars, s.candles...)
	if over := len(merged) - s.capacity; over > 0 {
		merged = merged[over:]
	}
	s.candles = merged
}
