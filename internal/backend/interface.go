package backend

import (
	"context"

	"fintrack/internal/aggregator"
	"fintrack/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds what the selected backend serves. Obligations is nil
// when the backend has no obligation store, e.g. sheets without API access.
type BackendResult struct {
	Records     sheets.RecordReader
	Totals      aggregator.Source
	Obligations sheets.ObligationStore
	Cleanup     CleanupFunc
}

// Close runs Cleanup if one was set.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// BackendType represents the type of backend
type BackendType string

const (
	APIBackend    BackendType = "api"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case APIBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// TotalsMode selects how a totals snapshot is produced.
type TotalsMode string

const (
	// RecordsMode fetches the four collections and aggregates locally.
	RecordsMode TotalsMode = "records"
	// ServerMode reads a pre-aggregated totals object.
	ServerMode TotalsMode = "totals"
)

func (m TotalsMode) IsValid() bool {
	return m == RecordsMode || m == ServerMode
}
