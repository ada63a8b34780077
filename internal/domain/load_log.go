package domain

import (
	"time"

	"github.com/google/uuid"
)

// Phase names one of the two input trees the pipeline loads.
type Phase string

const (
	PhaseSongs Phase = "songs"
	PhaseLogs  Phase = "logs"
)

// LoadStatus is the outcome recorded for one input file.
type LoadStatus string

const (
	LoadStatusCommitted LoadStatus = "committed"
	LoadStatusFailed    LoadStatus = "failed"
)

// LoadLogEntry captures the outcome of loading a single file.
type LoadLogEntry struct {
	ID           uuid.UUID  `json:"id"`
	RunID        uuid.UUID  `json:"run_id"`
	Phase        Phase      `json:"phase"`
	FilePath     string     `json:"file_path"`
	Status       LoadStatus `json:"status"`
	RowsLoaded   int        `json:"rows_loaded"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewLoadLogEntry creates an entry for a file processed during run.
func NewLoadLogEntry(runID uuid.UUID, phase Phase, path string, status LoadStatus, rows int, err error) LoadLogEntry {
	entry := LoadLogEntry{
		ID:         uuid.New(),
		RunID:      runID,
		Phase:      phase,
		FilePath:   path,
		Status:     status,
		RowsLoaded: rows,
		CreatedAt:  time.Now(),
	}
	if err != nil {
		entry.ErrorMessage = err.Error()
	}
	return entry
}
