package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/codeduel-vn/codeduel/internal/domains/dtos"
	"github.com/codeduel-vn/codeduel/internal/domains/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartIsIdempotent(t *testing.T) {
	engine, store, notifier, _ := newTestEngine(testConfig())
	ctx := context.Background()

	first, err := engine.Start(ctx, "m1", "p1")
	require.NoError(t, err)
	assert.False(t, first.AlreadyActive)

	match := store.match("m1")
	require.Equal(t, entities.MatchActive, match.Status)
	require.NotNil(t, match.StartedAt)
	startedAt := *match.StartedAt

	second, err := engine.Start(ctx, "m1", "p2")
	require.NoError(t, err)
	assert.True(t, second.AlreadyActive)
	assert.Equal(t, first.Deadline, second.Deadline)

	// startedAt stamped exactly once, one timer armed
	assert.Equal(t, startedAt, *store.match("m1").StartedAt)
	engine.mu.Lock()
	assert.Len(t, engine.timers, 1)
	engine.mu.Unlock()

	// both players got the match-start broadcast exactly once
	assert.Equal(t, 1, notifier.countType("p1", EventMatchStart))
	assert.Equal(t, 1, notifier.countType("p2", EventMatchStart))
}

func TestStartRejectsNonPlayer(t *testing.T) {
	engine, _, _, _ := newTestEngine(testConfig())

	_, err := engine.Start(context.Background(), "m1", "intruder")
	assert.ErrorIs(t, err, ErrNotAPlayer)
}

func TestStartRegistersPresence(t *testing.T) {
	engine, _, _, presence := newTestEngine(testConfig())

	_, err := engine.Start(context.Background(), "m1", "p1")
	require.NoError(t, err)

	matchId, opponentId, ok := presence.UserMatch("p1")
	require.True(t, ok)
	assert.Equal(t, "m1", matchId)
	assert.Equal(t, "p2", opponentId)

	matchId, opponentId, ok = presence.UserMatch("p2")
	require.True(t, ok)
	assert.Equal(t, "m1", matchId)
	assert.Equal(t, "p1", opponentId)
}

func TestAcceptedVerdictEndsMatch(t *testing.T) {
	engine, store, notifier, presence := newTestEngine(testConfig())
	ctx := context.Background()

	_, err := engine.Start(ctx, "m1", "p1")
	require.NoError(t, err)

	result, err := engine.ProcessVerdict(ctx, "m1", "p2", accepted())
	require.NoError(t, err)
	require.True(t, result.Ended)
	require.NotNil(t, result.WinnerId)
	assert.Equal(t, "p2", *result.WinnerId)

	match := store.match("m1")
	assert.Equal(t, entities.MatchCompleted, match.Status)
	require.NotNil(t, match.WinnerId)
	assert.Equal(t, "p2", *match.WinnerId)

	// winner gains the flat delta and extends the streak, loser drops
	winner, _ := store.GetUserRating(ctx, "p2")
	loser, _ := store.GetUserRating(ctx, "p1")
	assert.Equal(t, 1075.0, winner.Rating)
	assert.Equal(t, 3, winner.Streak)
	assert.Equal(t, 975.0, loser.Rating)
	assert.Equal(t, 0, loser.Streak)

	// presence cleared for both sides
	_, _, ok := presence.UserMatch("p1")
	assert.False(t, ok)
	_, _, ok = presence.UserMatch("p2")
	assert.False(t, ok)

	end, ok := notifier.lastOfType("p1", EventMatchEnd)
	require.True(t, ok)
	assert.Equal(t, "solved", end.Data.(matchEndEvent).Reason)
}

func TestNonAcceptedVerdictIsInformational(t *testing.T) {
	engine, store, notifier, _ := newTestEngine(testConfig())
	ctx := context.Background()

	_, err := engine.Start(ctx, "m1", "p1")
	require.NoError(t, err)

	result, err := engine.ProcessVerdict(ctx, "m1", "p1", dtos.JudgeResult{
		Verdict:    dtos.VerdictWrongAnswer,
		Confidence: 0.9,
	})
	require.NoError(t, err)
	assert.False(t, result.Ended)
	assert.Equal(t, entities.MatchActive, store.match("m1").Status)

	// every verdict is broadcast to both sides
	assert.Equal(t, 1, notifier.countType("p1", EventMatchSubmission))
	assert.Equal(t, 1, notifier.countType("p2", EventMatchSubmission))
}

func TestAtMostOneResolution(t *testing.T) {
	engine, store, notifier, _ := newTestEngine(testConfig())
	ctx := context.Background()

	_, err := engine.Start(ctx, "m1", "p1")
	require.NoError(t, err)

	// Both accepted verdicts, a forfeit and a timeout-abort race;
	// exactly one may resolve the match.
	var wg sync.WaitGroup
	results := make([]VerdictResult, 2)
	errs := make([]error, 4)
	for i, userId := range []string{"p1", "p2"} {
		wg.Add(1)
		go func(i int, userId string) {
			defer wg.Done()
			results[i], errs[i] = engine.ProcessVerdict(ctx, "m1", userId, accepted())
		}(i, userId)
	}
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[2] = engine.Forfeit(ctx, "m1", "p1", "forfeit")
	}()
	go func() {
		defer wg.Done()
		errs[3] = engine.Abort(ctx, "m1", "timeout")
	}()
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	match := store.match("m1")
	assert.True(t, match.Status.Terminal())

	// every verdict caller observed the match as ended
	assert.True(t, results[0].Ended)
	assert.True(t, results[1].Ended)

	// exactly one match-end broadcast reached each player
	assert.Equal(t, 1, notifier.countType("p1", EventMatchEnd))
	assert.Equal(t, 1, notifier.countType("p2", EventMatchEnd))

	// the rating write is all-or-nothing across both participants
	p1 := store.matchPlayer("m1", "p1")
	p2 := store.matchPlayer("m1", "p2")
	require.NotNil(t, p1.RatingAfter)
	require.NotNil(t, p2.RatingAfter)
}

func TestForfeitDeclaresOpponentWinner(t *testing.T) {
	engine, store, notifier, _ := newTestEngine(testConfig())
	ctx := context.Background()

	_, err := engine.Start(ctx, "m1", "p1")
	require.NoError(t, err)
	require.NoError(t, engine.Forfeit(ctx, "m1", "p1", "forfeit"))

	match := store.match("m1")
	assert.Equal(t, entities.MatchCompleted, match.Status)
	require.NotNil(t, match.WinnerId)
	assert.Equal(t, "p2", *match.WinnerId)

	end, ok := notifier.lastOfType("p2", EventMatchEnd)
	require.True(t, ok)
	assert.Equal(t, "forfeit", end.Data.(matchEndEvent).Reason)

	assert.Equal(t, entities.ResultLost, store.matchPlayer("m1", "p1").Result)
	assert.Equal(t, entities.ResultWon, store.matchPlayer("m1", "p2").Result)
}

func TestForfeitBeforeActiveIsRejected(t *testing.T) {
	engine, store, _, _ := newTestEngine(testConfig())

	err := engine.Forfeit(context.Background(), "m1", "p1", "forfeit")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, entities.MatchStarting, store.match("m1").Status)
}

func TestVerdictAfterResolutionIsNoOp(t *testing.T) {
	engine, store, _, _ := newTestEngine(testConfig())
	ctx := context.Background()

	_, err := engine.Start(ctx, "m1", "p1")
	require.NoError(t, err)
	require.NoError(t, engine.Forfeit(ctx, "m1", "p1", "forfeit"))

	result, err := engine.ProcessVerdict(ctx, "m1", "p1", accepted())
	require.NoError(t, err)
	assert.True(t, result.Ended)
	assert.Nil(t, result.WinnerId)

	// the concurrent path's winner stands
	match := store.match("m1")
	require.NotNil(t, match.WinnerId)
	assert.Equal(t, "p2", *match.WinnerId)
}

func TestAbortBeforeActiveLeavesRatingsUntouched(t *testing.T) {
	engine, store, _, _ := newTestEngine(testConfig())
	ctx := context.Background()

	require.NoError(t, engine.Abort(ctx, "m1", "cancelled"))

	match := store.match("m1")
	assert.Equal(t, entities.MatchAborted, match.Status)
	assert.Nil(t, match.WinnerId)

	assert.Nil(t, store.matchPlayer("m1", "p1").RatingAfter)
	assert.Nil(t, store.matchPlayer("m1", "p2").RatingAfter)
	rating, _ := store.GetUserRating(ctx, "p1")
	assert.Equal(t, 1000.0, rating.Rating)
}

func TestAbortActiveIsMutualLoss(t *testing.T) {
	engine, store, _, _ := newTestEngine(testConfig())
	ctx := context.Background()

	_, err := engine.Start(ctx, "m1", "p1")
	require.NoError(t, err)
	require.NoError(t, engine.Abort(ctx, "m1", "timeout"))

	match := store.match("m1")
	assert.Equal(t, entities.MatchAborted, match.Status)
	assert.Nil(t, match.WinnerId)

	p1Rating, _ := store.GetUserRating(ctx, "p1")
	p2Rating, _ := store.GetUserRating(ctx, "p2")
	assert.Equal(t, 975.0, p1Rating.Rating)
	assert.Equal(t, 1025.0, p2Rating.Rating)
	assert.Equal(t, entities.ResultLost, store.matchPlayer("m1", "p1").Result)
	assert.Equal(t, entities.ResultLost, store.matchPlayer("m1", "p2").Result)
}

func TestAbortTerminalMatchIsNoOp(t *testing.T) {
	engine, store, notifier, _ := newTestEngine(testConfig())
	ctx := context.Background()

	_, err := engine.Start(ctx, "m1", "p1")
	require.NoError(t, err)
	result, err := engine.ProcessVerdict(ctx, "m1", "p1", accepted())
	require.NoError(t, err)
	require.True(t, result.Ended)

	require.NoError(t, engine.Abort(ctx, "m1", "timeout"))
	assert.Equal(t, entities.MatchCompleted, store.match("m1").Status)
	assert.Equal(t, 1, notifier.countType("p1", EventMatchEnd))
}

func TestStartBeforeDeadlineKeepsMatch(t *testing.T) {
	cfg := testConfig()
	engine, store, _, _ := newTestEngine(cfg)
	ctx := context.Background()

	engine.ScheduleStartDeadline("m1")
	_, err := engine.Start(ctx, "m1", "p1")
	require.NoError(t, err)

	// well past the start deadline the match must still be running
	time.Sleep(3 * cfg.StartDeadline)
	assert.Equal(t, entities.MatchActive, store.match("m1").Status)
}

func TestSecondStarterSeesBroadcastDeadline(t *testing.T) {
	engine, store, _, _ := newTestEngine(testConfig())
	ctx := context.Background()

	first, err := engine.Start(ctx, "m1", "p1")
	require.NoError(t, err)

	// the stored timestamp loses sub-second precision on a round trip
	store.mu.Lock()
	match := store.matches["m1"]
	truncated := match.StartedAt.Truncate(time.Second)
	match.StartedAt = &truncated
	store.matches["m1"] = match
	store.mu.Unlock()

	second, err := engine.Start(ctx, "m1", "p2")
	require.NoError(t, err)
	require.True(t, second.AlreadyActive)
	assert.Equal(t, first.Deadline, second.Deadline)
}

func TestDeadlineExpiryAbortsMatch(t *testing.T) {
	engine, store, _, _ := newTestEngine(testConfig())
	ctx := context.Background()

	store.mu.Lock()
	match := store.matches["m1"]
	match.Duration = 0
	store.matches["m1"] = match
	store.mu.Unlock()

	_, err := engine.Start(ctx, "m1", "p1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return store.match("m1").Status == entities.MatchAborted
	}, time.Second, 5*time.Millisecond)
}

func TestResolutionDisposesMatchLock(t *testing.T) {
	engine, _, _, _ := newTestEngine(testConfig())
	ctx := context.Background()

	_, err := engine.Start(ctx, "m1", "p1")
	require.NoError(t, err)
	require.NoError(t, engine.Forfeit(ctx, "m1", "p1", "forfeit"))

	require.Eventually(t, func() bool {
		return engine.locks.Len() == 0
	}, time.Second, 5*time.Millisecond)
}
