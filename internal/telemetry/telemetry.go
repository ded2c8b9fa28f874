// Package telemetry is the VM's diagnostic counters: instruction/opcode
// hit counts, allocation deltas, and a rolling debug log, rendered in
// human-readable form with github.com/dustin/go-humanize. The shape —
// a mutex-guarded profileState with observe/addDebug/hotSpots/render
// methods — is carried directly from the teacher's vm/profiling.go,
// generalized from that file's opcodes.Opcode-keyed counters (unchanged
// here too, since this core keeps the same flat opcode switch) to also
// track heap cell store size and operand stack high-water mark, the two
// measures SPEC_FULL §4's added Logging note names.
package telemetry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/wudi/rnvm/opcodes"
)

// HotSpot is one instruction pointer's execution count, used by Recorder's
// Top-N hot-spot report.
type HotSpot struct {
	IP    int
	Count int
}

// Recorder accumulates execution telemetry for one Vm instance across its
// lifetime. The zero value is not usable; construct with NewRecorder.
type Recorder struct {
	mu sync.Mutex

	instructionCounts map[int]int
	opcodeCounts      map[opcodes.Opcode]int

	cellsAllocated uint64
	cellsFreed     uint64
	stackHighWater int

	debug []string
}

// NewRecorder constructs an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		instructionCounts: make(map[int]int),
		opcodeCounts:      make(map[opcodes.Opcode]int),
		debug:             make([]string, 0, 64),
	}
}

// Observe records one dispatch-loop step at ip executing opcode.
func (r *Recorder) Observe(ip int, opcode opcodes.Opcode) {
	r.mu.Lock()
	r.instructionCounts[ip]++
	r.opcodeCounts[opcode]++
	r.mu.Unlock()
}

// ObserveStackDepth updates the operand stack high-water mark if depth
// exceeds what has been seen so far.
func (r *Recorder) ObserveStackDepth(depth int) {
	r.mu.Lock()
	if depth > r.stackHighWater {
		r.stackHighWater = depth
	}
	r.mu.Unlock()
}

// RecordCellAllocated/RecordCellFreed track heap cell store churn (spec
// §4.1 Allocate/DropHandle).
func (r *Recorder) RecordCellAllocated() {
	r.mu.Lock()
	r.cellsAllocated++
	r.mu.Unlock()
}

func (r *Recorder) RecordCellFreed() {
	r.mu.Lock()
	r.cellsFreed++
	r.mu.Unlock()
}

// Debugf appends a formatted trace line (budget exhaustion, suspension
// events, panics) to the rolling debug log.
func (r *Recorder) Debugf(format string, args ...interface{}) {
	r.mu.Lock()
	r.debug = append(r.debug, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

// DebugRecords returns a snapshot of the rolling debug log.
func (r *Recorder) DebugRecords() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.debug))
	copy(out, r.debug)
	return out
}

// HotSpots returns the n most frequently executed instruction pointers,
// most-executed first. n <= 0 returns every observed IP.
func (r *Recorder) HotSpots(n int) []HotSpot {
	r.mu.Lock()
	defer r.mu.Unlock()
	spots := make([]HotSpot, 0, len(r.instructionCounts))
	for ip, count := range r.instructionCounts {
		spots = append(spots, HotSpot{IP: ip, Count: count})
	}
	sort.Slice(spots, func(i, j int) bool {
		if spots[i].Count == spots[j].Count {
			return spots[i].IP < spots[j].IP
		}
		return spots[i].Count > spots[j].Count
	})
	if n <= 0 || n >= len(spots) {
		return spots
	}
	return spots[:n]
}

// Render summarizes this Recorder's counters in human-readable form,
// using go-humanize for the byte/measure counts (heap cell churn, stack
// high-water mark) so a log line reads "1,200" rather than a bare
// integer with no sense of scale.
func (r *Recorder) Render() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, count := range r.instructionCounts {
		total += count
	}
	return fmt.Sprintf(
		"instructions=%s unique_ips=%d cells_allocated=%s cells_freed=%s stack_high_water=%s",
		humanize.Comma(int64(total)),
		len(r.instructionCounts),
		humanize.Comma(int64(r.cellsAllocated)),
		humanize.Comma(int64(r.cellsFreed)),
		humanize.Comma(int64(r.stackHighWater)),
	)
}
