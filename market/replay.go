package market

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Replay reads tick prices from CSV.
//
// Formats supported, with an optional header row starting with "time":
//
//  1. Price only:
//     price
//
//  2. Timestamped:
//     time,price
//
//  3. Quotes (the mid is used):
//     time,instrument,bid,ask
//
// Blank rows are skipped. Times are not interpreted; the session stamps
// ticks with its own clock.
type Replay struct {
	mu      sync.Mutex
	r       *csv.Reader
	closer  io.Closer
	started bool
	line    int
}

func NewReplay(r io.Reader) *Replay {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return &Replay{r: cr}
}

// OpenReplay opens a CSV file for replay. Close releases it.
func OpenReplay(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	rp := NewReplay(f)
	rp.closer = f
	return rp, nil
}

func (rp *Replay) Next(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()

	for {
		row, err := rp.r.Read()
		if err != nil {
			return 0, err
		}
		rp.line++
		first := !rp.started
		rp.started = true

		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}
		if first && strings.EqualFold(strings.TrimSpace(row[0]), "time") {
			continue
		}
		return parseReplayRow(row, rp.line)
	}
}

func (rp *Replay) Close() error {
	if rp.closer == nil {
		return nil
	}
	return rp.closer.Close()
}

func parseReplayRow(row []string, line int) (float64, error) {
	switch len(row) {
	case 1:
		return parsePrice(row[0], line)
	case 2, 3:
		return parsePrice(row[1], line)
	default:
		bid, err := parsePrice(row[2], line)
		if err != nil {
			return 0, err
		}
		ask, err := parsePrice(row[3], line)
		if err != nil {
			return 0, err
		}
		return round2((bid + ask) / 2), nil
	}
}

func parsePrice(s string, line int) (float64, error) {
	p, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("replay line %d: bad price %q: %w", line, s, err)
	}
	return p, nil
}
