package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressReporter reports progress for long-running operations.
type ProgressReporter interface {
	Start(total int64)
	Update(current int64)
	Finish()
	Error(err error)
}

const (
	barWidth       = 30
	redrawInterval = 100 * time.Millisecond
)

// barProgress draws a single-line progress bar with rate and ETA. Updates
// may arrive out of order from concurrent workers; the count never moves
// backwards, and redraws are throttled.
type barProgress struct {
	w    io.Writer
	unit string

	mu      sync.Mutex
	total   int64
	current int64
	started time.Time
	drawn   time.Time
}

// NewProgressReporter creates a progress reporter that writes to w, showing
// the rate in unit per second. If w is nil, it defaults to os.Stderr.
func NewProgressReporter(w io.Writer, unit string) ProgressReporter {
	if w == nil {
		w = os.Stderr
	}
	if unit == "" {
		unit = "items"
	}
	return &barProgress{w: w, unit: unit}
}

func (p *barProgress) Start(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total, p.current = total, 0
	p.started = time.Now()
	p.draw(true)
}

func (p *barProgress) Update(current int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if current <= p.current {
		return
	}
	p.current = min(current, p.total)
	p.draw(false)
}

func (p *barProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = p.total
	p.draw(true)
	if p.total > 0 {
		fmt.Fprintln(p.w)
	}
}

func (p *barProgress) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "\n✗ Error: %v\n", err)
}

// draw renders the bar; callers hold mu.
func (p *barProgress) draw(force bool) {
	if p.total <= 0 {
		return
	}
	now := time.Now()
	if !force && now.Sub(p.drawn) < redrawInterval {
		return
	}
	p.drawn = now

	filled := int(barWidth * p.current / p.total)
	elapsed := now.Sub(p.started)

	var rate float64
	eta := "-"
	if secs := elapsed.Seconds(); secs > 0 && p.current > 0 {
		rate = float64(p.current) / secs
		remaining := time.Duration(float64(p.total-p.current) / rate * float64(time.Second))
		eta = remaining.Round(time.Second).String()
	}

	fmt.Fprintf(p.w, "\r[%s%s] %d/%d %5.1f%%  %.1f %s/s  eta %s",
		strings.Repeat("=", filled), strings.Repeat(" ", barWidth-filled),
		p.current, p.total, float64(p.current)*100/float64(p.total),
		rate, p.unit, eta)
}
