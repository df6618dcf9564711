// Package repository holds the region ranking built from the aggregated
// daily report.
package repository

import (
	"context"

	"github.com/okian/epidash/internal/domain/model"
	"github.com/okian/epidash/internal/domain/types"
)

// Entry represents a ranking row.
type Entry = types.RegionEntry

// Store provides read/write access to the ranking state.
type Store interface {
	// Replace swaps the whole ranking for one built from regions.
	Replace(ctx context.Context, regions []model.AggregatedRegion) error

	// Rank returns the rank and totals for a region.
	// Returns ErrNotFound if the region is unknown.
	Rank(ctx context.Context, region string) (Entry, error)

	// TopN returns the top-N entries ordered by Confirmed desc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of ranked regions.
	Count(ctx context.Context) int
}
