package repository

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/okian/epidash/internal/domain/model"
	"github.com/okian/epidash/pkg/metrics"
)

// Snapshot-based, in-memory Store implementation.
//
// Ordering: Confirmed DESC, then region ASC (deterministic). Every Replace
// builds a new immutable snapshot and swaps it in, so readers never lock.

// snapshot is an immutable view of the ranking.
type snapshot struct {
	entries  []Entry        // rank order
	byRegion map[string]int // region -> index into entries
}

// SnapshotStore implements Store.
type SnapshotStore struct {
	current atomic.Pointer[snapshot]
}

// NewSnapshotStore returns an empty store.
func NewSnapshotStore() *SnapshotStore {
	s := &SnapshotStore{}
	s.current.Store(&snapshot{byRegion: map[string]int{}})
	return s
}

// Replace builds and publishes a new ranking.
func (s *SnapshotStore) Replace(_ context.Context, regions []model.AggregatedRegion) error {
	entries := make([]Entry, 0, len(regions))
	for _, r := range regions {
		entries = append(entries, Entry{
			Region:    r.Region,
			Confirmed: r.Confirmed,
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
		})
	}
	sortEntries(entries)
	assignRanksWithTies(entries)

	byRegion := make(map[string]int, len(entries))
	for i, e := range entries {
		byRegion[e.Region] = i
	}
	s.current.Store(&snapshot{entries: entries, byRegion: byRegion})
	metrics.UpdateRegionsTotal(len(entries))
	return nil
}

// Rank returns the entry for region.
func (s *SnapshotStore) Rank(_ context.Context, region string) (Entry, error) {
	snap := s.current.Load()
	i, ok := snap.byRegion[region]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Entry{}, ErrNotFound
	}
	return snap.entries[i], nil
}

// TopN returns the first n entries.
func (s *SnapshotStore) TopN(_ context.Context, n int) ([]Entry, error) {
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	snap := s.current.Load()
	if n > len(snap.entries) {
		n = len(snap.entries)
	}
	out := make([]Entry, n)
	copy(out, snap.entries[:n])
	return out, nil
}

// Count returns the total number of regions.
func (s *SnapshotStore) Count(_ context.Context) int {
	return len(s.current.Load().entries)
}

// sortEntries sorts entries by Confirmed (descending) and region (ascending).
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Confirmed != entries[j].Confirmed {
			return entries[i].Confirmed > entries[j].Confirmed
		}
		return entries[i].Region < entries[j].Region
	})
}

// assignRanksWithTies assigns ranks with proper tie handling.
// Regions with the same count share a rank and the next rank is consecutive.
func assignRanksWithTies(entries []Entry) {
	if len(entries) == 0 {
		return
	}

	currentRank := 1
	for i := 0; i < len(entries); i++ {
		entries[i].Rank = currentRank

		sameCount := 1
		for j := i + 1; j < len(entries) && entries[j].Confirmed == entries[i].Confirmed; j++ {
			entries[j].Rank = currentRank
			sameCount++
		}

		currentRank++
		i += sameCount - 1
	}
}
