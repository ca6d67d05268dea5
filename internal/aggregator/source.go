package aggregator

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
)

// Source produces a totals snapshot.
type Source interface {
	Totals(ctx context.Context) (core.FinancialTotals, error)
}

// RecordSource fetches one raw record collection.
type RecordSource interface {
	FetchRecords(ctx context.Context, kind core.RecordKind) ([]core.Record, error)
}

// TotalsSource fetches a pre-aggregated totals object.
type TotalsSource interface {
	FetchTotals(ctx context.Context) (map[string]any, error)
}

// Collector fetches the four collections in parallel and aggregates them.
type Collector struct {
	src RecordSource
}

func NewCollector(src RecordSource) *Collector {
	return &Collector{src: src}
}

// Totals fails as a whole if any collection cannot be fetched; partial
// totals would misfire the threshold rules.
func (c *Collector) Totals(ctx context.Context) (core.FinancialTotals, error) {
	kinds := core.RecordKinds()
	results := make([][]core.Record, len(kinds))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			items, err := c.src.FetchRecords(gctx, kind)
			if err != nil {
				return fmt.Errorf("fetch %s records: %w", kind, err)
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return core.FinancialTotals{}, err
	}

	var recs Records
	for i, kind := range kinds {
		recs.Set(kind, results[i])
	}
	if n := Malformed(recs); n > 0 {
		slog.WarnContext(ctx, "Records with unusable amounts counted as zero", "count", n)
	}
	return Aggregate(recs), nil
}

// TotalsFetcher reads the server-side totals endpoint.
type TotalsFetcher struct {
	src TotalsSource
}

func NewTotalsFetcher(src TotalsSource) *TotalsFetcher {
	return &TotalsFetcher{src: src}
}

func (f *TotalsFetcher) Totals(ctx context.Context) (core.FinancialTotals, error) {
	payload, err := f.src.FetchTotals(ctx)
	if err != nil {
		return core.FinancialTotals{}, fmt.Errorf("fetch totals: %w", err)
	}
	return Normalize(payload), nil
}

var (
	_ Source = (*Collector)(nil)
	_ Source = (*TotalsFetcher)(nil)
)
