package progress

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"msftool/pkg/logger"
)

// DefaultInterval is how often a running Tracker reports.
const DefaultInterval = time.Second

// Tracker counts bytes moved by one pack or unpack operation and, once
// started, periodically logs how far along it is.
type Tracker struct {
	log       logger.Logger
	total     uint64
	interval  time.Duration
	processed atomic.Uint64

	mu      sync.Mutex
	running bool
	started time.Time
	done    chan struct{}
	exited  chan struct{}
}

// New creates a Tracker for an operation moving total bytes.
func New(log logger.Logger, total uint64) *Tracker {
	return &Tracker{log: log, total: total, interval: DefaultInterval}
}

// SetInterval changes the reporting period. It has no effect once started.
func (t *Tracker) SetInterval(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running && d > 0 {
		t.interval = d
	}
}

// Start begins periodic reporting. Calling Start twice is a no-op.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return
	}
	t.running = true
	t.started = time.Now()
	t.done = make(chan struct{})
	t.exited = make(chan struct{})
	go t.report(t.done, t.exited)
}

// Stop ends reporting and logs a summary. It is safe to call on a Tracker
// that was never started.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	close(t.done)
	exited, started := t.exited, t.started
	t.mu.Unlock()

	<-exited
	elapsed := time.Since(started)
	t.log.Info("completed",
		"processed", FormatSize(t.Processed()),
		"seconds", fmt.Sprintf("%.1f", elapsed.Seconds()),
		"rate", FormatRate(rate(t.Processed(), elapsed)))
}

// Add records n processed bytes.
func (t *Tracker) Add(n uint64) {
	if n > 0 {
		t.processed.Add(n)
	}
}

// Processed returns the number of bytes recorded so far.
func (t *Tracker) Processed() uint64 {
	return t.processed.Load()
}

// Writer wraps w so every byte written through it is counted.
func (t *Tracker) Writer(w io.Writer) *Writer {
	return &Writer{W: w, T: t}
}

func (t *Tracker) report(done <-chan struct{}, exited chan<- struct{}) {
	defer close(exited)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	var prev uint64
	for {
		select {
		case <-ticker.C:
			current := t.Processed()
			perSec := rate(current-prev, t.interval)
			prev = current

			if t.total == 0 {
				t.log.Info("progress", "processed", FormatSize(current), "rate", FormatRate(perSec))
				continue
			}
			eta := "calculating..."
			if perSec > 0 && current < t.total {
				eta = (time.Duration(float64(t.total-current) / float64(perSec) * float64(time.Second))).Round(time.Second).String()
			}
			t.log.Info("progress",
				"processed", FormatSize(current),
				"total", FormatSize(t.total),
				"percent", fmt.Sprintf("%.1f", float64(current)/float64(t.total)*100),
				"rate", FormatRate(perSec),
				"eta", eta)
		case <-done:
			return
		}
	}
}

func rate(n uint64, d time.Duration) uint64 {
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return uint64(float64(n) / d.Seconds())
}

// FormatSize returns a human-readable size string.
func FormatSize(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatRate returns a human-readable rate string.
func FormatRate(bytesPerSec uint64) string {
	return FormatSize(bytesPerSec) + "/s"
}

// Writer is a writer that tracks bytes written for progress reporting
type Writer struct {
	W io.Writer
	T *Tracker
}

// Write implements io.Writer and tracks bytes written
func (pw *Writer) Write(p []byte) (n int, err error) {
	n, err = pw.W.Write(p)
	if n > 0 {
		pw.T.Add(uint64(n))
	}
	return
}
