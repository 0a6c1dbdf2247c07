package export

import (
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/harborline/shopcsv/config"
)

// Watchdog decides when a run should pause itself. It is checked after each
// committed product (never mid-write): a trip means the run stops at the
// next safe boundary and persists state for resume. A trip is not an error.
type Watchdog struct {
	timeLimit  time.Duration
	memPercent float64
	startedAt  time.Time

	// overridable in tests
	now        func() time.Time
	memoryUsed func() (float64, error)
}

// NewWatchdog creates a watchdog from configuration. Zero limits disable
// the corresponding check.
func NewWatchdog(cfg config.WatchdogConfig) *Watchdog {
	return &Watchdog{
		timeLimit:  time.Duration(cfg.TimeLimitSeconds) * time.Second,
		memPercent: cfg.MemoryLimitPercent,
		now:        time.Now,
		memoryUsed: systemMemoryUsedPercent,
	}
}

// Start marks the beginning of the run the watchdog is guarding
func (w *Watchdog) Start() {
	w.startedAt = w.now()
}

// Check reports whether a ceiling has been crossed. The returned reason is
// human-readable and lands in the job message on pause.
func (w *Watchdog) Check() (reason string, tripped bool) {
	if w.timeLimit > 0 {
		elapsed := w.now().Sub(w.startedAt)
		if elapsed > w.timeLimit {
			return fmt.Sprintf("time limit reached after %s (limit %s)", elapsed.Round(time.Second), w.timeLimit), true
		}
	}

	if w.memPercent > 0 {
		used, err := w.memoryUsed()
		// Unable to read memory stats: assume OK rather than stalling the run
		if err == nil && used > w.memPercent {
			return fmt.Sprintf("memory ceiling reached: %.1f%% used (limit %.1f%%)", used, w.memPercent), true
		}
	}

	return "", false
}

// systemMemoryUsedPercent reports system memory utilization
func systemMemoryUsedPercent() (float64, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return v.UsedPercent, nil
}
