package replay

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/epidash/internal/domain/model"
	"github.com/okian/epidash/pkg/logger"
)

// ErrVerification is wrapped by every consistency failure.
var ErrVerification = errors.New("replay verification failed")

// verifyFrames checks that frames cover every date once, in order.
func verifyFrames(dates []string, frames []model.AnimationFrame) error {
	if len(frames) != len(dates) {
		return fmt.Errorf("%w: got %d frames for %d dates", ErrVerification, len(frames), len(dates))
	}
	for i, frame := range frames {
		if frame.Index != i {
			return fmt.Errorf("%w: frame %d carries index %d", ErrVerification, i, frame.Index)
		}
		if frame.Date != dates[i] {
			return fmt.Errorf("%w: frame %d is dated %q, want %q", ErrVerification, i, frame.Date, dates[i])
		}
	}
	return nil
}

// verifyLeaderboard checks dense ranks and non-increasing confirmed counts.
func verifyLeaderboard(leaderboard []Entry) error {
	for i, entry := range leaderboard {
		if entry.Rank != i+1 {
			return fmt.Errorf("%w: entry %d (%s) has rank %d", ErrVerification, i, entry.Region, entry.Rank)
		}
		if i > 0 && entry.Confirmed > leaderboard[i-1].Confirmed {
			return fmt.Errorf("%w: leaderboard not sorted: %s (%d) above %s (%d)",
				ErrVerification, leaderboard[i-1].Region, leaderboard[i-1].Confirmed, entry.Region, entry.Confirmed)
		}
	}
	return nil
}

// verifyRanks checks that every retrieved rank agrees with the leaderboard.
// Zero entries are failed lookups and are skipped.
func verifyRanks(leaderboard, ranks []Entry) error {
	for i, got := range ranks {
		if got.Region == "" {
			continue
		}
		want := leaderboard[i]
		if got.Rank != want.Rank || got.Confirmed != want.Confirmed {
			return fmt.Errorf("%w: %s ranked %d/%d, leaderboard says %d/%d",
				ErrVerification, want.Region, got.Rank, got.Confirmed, want.Rank, want.Confirmed)
		}
	}
	return nil
}

// verifyResults runs every check and logs the outcome.
func verifyResults(ctx context.Context, dates []string, frames []model.AnimationFrame, leaderboard, ranks []Entry) error {
	if err := verifyFrames(dates, frames); err != nil {
		return err
	}
	if err := verifyLeaderboard(leaderboard); err != nil {
		return err
	}
	if err := verifyRanks(leaderboard, ranks); err != nil {
		return err
	}
	logger.Get().Info(ctx, "result verification completed")
	return nil
}
