// Package telemetry writes the run-summary CSV spec.md §4.5 step 6/7
// implies ("summarise timings") and renders the once-per-second progress
// line the orchestrator prints while workers drain the pool.
package telemetry

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
)

// WorkerSummary is one worker's final timing/throughput record, the CSV
// row shape for the run summary.
type WorkerSummary struct {
	WorkerID     int     `csv:"worker_id"`
	Primaries    int     `csv:"primaries_processed"`
	Detected     int     `csv:"detected_count"`
	Iterations   int     `csv:"iterations"`
	ElapsedMS    float64 `csv:"elapsed_ms"`
	ThroughputHz float64 `csv:"throughput_per_sec"`
}

// Writer is a header-once CSV sink, grounded on the teacher's
// OutputManager.WriteTelemetry: the first write includes the header row,
// every subsequent write appends a bare record.
type Writer struct {
	w             io.Writer
	headerWritten bool
}

// NewWriter wraps w; nil-safe the same way OutputManager is (a nil
// *Writer's methods are no-ops), so a run configured without a summary
// path can pass a nil *Writer without a branch at every call site.
func NewWriter(w io.Writer) *Writer {
	if w == nil {
		return nil
	}
	return &Writer{w: w}
}

// WriteSummary appends one worker's summary row.
func (tw *Writer) WriteSummary(s WorkerSummary) error {
	if tw == nil {
		return nil
	}
	records := []WorkerSummary{s}
	if !tw.headerWritten {
		if err := gocsv.Marshal(records, tw.w); err != nil {
			return fmt.Errorf("telemetry: writing summary header: %w", err)
		}
		tw.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, tw.w); err != nil {
		return fmt.Errorf("telemetry: writing summary row: %w", err)
	}
	return nil
}

// ProgressLine renders spec.md §4.5 step 6's once-per-second progress
// report: overall completion percentage plus each worker's running_count.
func ProgressLine(total, primariesToGo int, runningPerWorker []int) string {
	pct := 0.0
	if total > 0 {
		pct = 100 * (1 - float64(primariesToGo)/float64(total))
	}
	line := fmt.Sprintf("%.1f%% complete, %d primaries remaining", pct, primariesToGo)
	for i, r := range runningPerWorker {
		line += fmt.Sprintf(", worker[%d].running=%d", i, r)
	}
	return line
}
