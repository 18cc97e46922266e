package index

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/indexstore/internal/domain"
)

// Error actions recorded in the indexing error log.
const (
	ActionMap        = "Map"
	ActionReduce     = "Reduce"
	ActionWrite      = "Write"
	ActionAnalyzer   = "Analyzer"
	ActionCorruption = "Corruption"
	ActionMemory     = "Memory"
	ActionCritical   = "Critical"
)

// Error is one entry of an index's error log.
type Error struct {
	Action    string    `json:"action"`
	Document  string    `json:"document"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
}

// WorkStats is the outcome of one indexing run, applied to Stats as a delta.
type WorkStats struct {
	MapAttempts  int64
	MapSuccesses int64
	MapErrors    int64

	ReduceAttempts  int64
	ReduceSuccesses int64
	ReduceErrors    int64

	Errors []Error
}

// Validate rejects negative counters.
func (w WorkStats) Validate() error {
	counters := []struct {
		name string
		v    int64
	}{
		{"map attempts", w.MapAttempts},
		{"map successes", w.MapSuccesses},
		{"map errors", w.MapErrors},
		{"reduce attempts", w.ReduceAttempts},
		{"reduce successes", w.ReduceSuccesses},
		{"reduce errors", w.ReduceErrors},
	}
	for _, c := range counters {
		if c.v < 0 {
			return fmt.Errorf("%w: %s must be non-negative, got %d", domain.ErrInvalidStats, c.name, c.v)
		}
	}
	return nil
}

func (w WorkStats) String() string {
	return fmt.Sprintf("Map - attempts: %d, successes: %d, errors: %d / Reduce - attempts: %d, successes: %d, errors: %d",
		w.MapAttempts, w.MapSuccesses, w.MapErrors, w.ReduceAttempts, w.ReduceSuccesses, w.ReduceErrors)
}

// AddMapError records a map failure for a document.
func (w *WorkStats) AddMapError(key, message string) {
	w.addError(key, message, ActionMap)
}

// AddReduceError records a reduce failure.
func (w *WorkStats) AddReduceError(message string) {
	w.addError("", message, ActionReduce)
}

// AddWriteError records a failure writing index output.
func (w *WorkStats) AddWriteError(err error) {
	w.addError("", "Write exception occurred: "+err.Error(), ActionWrite)
}

// AddAnalyzerError records an analyzer construction failure.
func (w *WorkStats) AddAnalyzerError(err error) {
	w.addError("", "Could not create analyzer: "+err.Error(), ActionAnalyzer)
}

// AddCorruptionError records index corruption.
func (w *WorkStats) AddCorruptionError(err error) {
	w.addError("", "Index corruption occurred: "+err.Error(), ActionCorruption)
}

// AddMemoryError records an allocation failure.
func (w *WorkStats) AddMemoryError(err error) {
	w.addError("", "Memory exception occurred: "+err.Error(), ActionMemory)
}

// AddCriticalError records a failure that aborted the run.
func (w *WorkStats) AddCriticalError(err error) {
	w.addError("", "Critical exception occurred: "+err.Error(), ActionCritical)
}

// AddUnexpectedError records an unclassified failure.
func (w *WorkStats) AddUnexpectedError(err error) {
	w.addError("", "Unexpected exception occurred: "+err.Error(), ActionCritical)
}

// Timestamps are left zero; the store stamps them with the batch time.
func (w *WorkStats) addError(key, message, action string) {
	w.Errors = append(w.Errors, Error{
		Action:   action,
		Document: key,
		Error:    message,
	})
}
