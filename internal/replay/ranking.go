package replay

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/okian/epidash/pkg/logger"
)

// getLeaderboard fetches the top entries.
func getLeaderboard(ctx context.Context, client *HTTPClient, config *Config, stats *Stats) ([]Entry, error) {
	var entries []Entry
	target := config.BaseURL + "/api/leaderboard?limit=" + strconv.Itoa(config.TopN)
	if err := client.getJSON(ctx, target, &entries); err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	stats.LeaderboardEntries = len(entries)
	logger.Get().Info(ctx, "leaderboard retrieved", logger.Int("entries", len(entries)))
	return entries, nil
}

// retrieveRanks looks up every leaderboard region on /api/rank concurrently.
// The result is index-aligned with leaderboard; failed lookups stay zero.
func retrieveRanks(ctx context.Context, client *HTTPClient, config *Config, leaderboard []Entry, stats *Stats) []Entry {
	ranks := make([]Entry, len(leaderboard))
	var retrieved, failed int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, config.Workers))
	for i, entry := range leaderboard {
		i, entry := i, entry // per-iteration copy (go 1.21 loop semantics)
		g.Go(func() error {
			target := config.BaseURL + "/api/rank/" + url.PathEscape(entry.Region)
			var got Entry
			if err := client.getJSON(gctx, target, &got); err != nil {
				atomic.AddInt64(&failed, 1)
				if config.Verbose {
					logger.Get().Warn(gctx, "rank lookup failed",
						logger.String("region", entry.Region),
						logger.Error(err))
				}
				return nil
			}
			ranks[i] = got
			atomic.AddInt64(&retrieved, 1)
			return nil
		})
	}
	_ = g.Wait()

	stats.RanksRetrieved = int(retrieved)
	stats.RanksFailed = int(failed)
	logger.Get().Info(ctx, "ranks retrieved",
		logger.Int("retrieved", stats.RanksRetrieved),
		logger.Int("failed", stats.RanksFailed))
	return ranks
}
