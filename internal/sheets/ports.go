package sheets

import (
	"fintrack/internal/aggregator"
	"fintrack/internal/scheduler"
)

// Ports for outbound adapters.
type (
	// RecordReader serves both totals strategies: raw collections for
	// client-side aggregation and a pre-aggregated totals object.
	RecordReader interface {
		aggregator.RecordSource
		aggregator.TotalsSource
	}

	// ObligationStore persists recurring obligations.
	ObligationStore interface {
		scheduler.Store
	}
)
