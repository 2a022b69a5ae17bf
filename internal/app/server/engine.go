package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/codeduel-vn/codeduel/internal/domains/dtos"
	"github.com/codeduel-vn/codeduel/internal/domains/entities"
	"github.com/codeduel-vn/codeduel/pkg/locker"
	"github.com/codeduel-vn/codeduel/pkg/logging"
	"go.uber.org/zap"
)

/*
Engine is the single authority over a match's lifecycle. Every
start/verdict/forfeit/abort request funnels through it, each holding
the per-match lock for its whole read-modify-write sequence, store
round-trips included. Exactly one of those paths drives a match out of
ACTIVE; the losers of that race observe the resolved state and no-op.
*/
type Engine struct {
	store    Store
	notifier Notifier
	presence *Presence
	locks    *locker.Locker
	cfg      Config

	mu     sync.Mutex
	timers map[string]*matchTimer
}

// matchTimer keeps the armed deadline next to the timer so concurrent
// starters all observe the same one.
type matchTimer struct {
	timer    *time.Timer
	deadline time.Time
}

func NewEngine(store Store, notifier Notifier, presence *Presence, cfg Config) *Engine {
	return &Engine{
		store:    store,
		notifier: notifier,
		presence: presence,
		locks:    locker.New(),
		cfg:      cfg,
		timers:   make(map[string]*matchTimer),
	}
}

type StartResult struct {
	AlreadyActive bool
	Deadline      time.Time
}

type VerdictResult struct {
	Ended    bool
	WinnerId *string
}

// Start method    transitions STARTING -> ACTIVE. Both participants
// race to call this; the second caller gets AlreadyActive instead of
// an error.
func (e *Engine) Start(ctx context.Context, matchId, userId string) (StartResult, error) {
	var result StartResult
	err := e.locks.WithLock(matchId, func() error {
		match, err := e.store.GetMatch(ctx, matchId)
		if err != nil {
			return err
		}
		if !match.HasPlayer(userId) {
			return ErrNotAPlayer
		}
		if match.Status == entities.MatchActive {
			result.AlreadyActive = true
			// The stored startedAt loses sub-second precision on the
			// round trip; the armed timer holds the broadcast deadline.
			if deadline, ok := e.armedDeadline(matchId); ok {
				result.Deadline = deadline
			} else {
				result.Deadline = match.StartedAt.Add(time.Duration(match.Duration) * time.Second)
			}
			return nil
		}
		if !match.Status.CanTransitionTo(entities.MatchActive) {
			return ErrInvalidTransition
		}

		startedAt := time.Now()
		duration := time.Duration(match.Duration) * time.Second
		if err := e.store.UpdateMatchStarted(ctx, matchId, startedAt); err != nil {
			return fmt.Errorf("failed to start match: %w", err)
		}
		result.Deadline = startedAt.Add(duration)
		e.cancelTimer(matchId)
		e.armTimer(matchId, result.Deadline)

		e.presence.RegisterUserMatch(match.Player1Id, matchId, match.Player2Id)
		e.presence.RegisterUserMatch(match.Player2Id, matchId, match.Player1Id)

		problem, err := e.store.GetProblem(ctx, match.ProblemBucket, match.ProblemId)
		if err != nil {
			return fmt.Errorf("failed to fetch problem: %w", err)
		}
		e.notifier.BroadcastMatch(match.PlayerIds(), Event{
			Type: EventMatchStart,
			Data: matchStartEvent{
				MatchId:  matchId,
				Problem:  problem,
				Deadline: result.Deadline,
			},
		})
		logging.Info("match started",
			zap.String("match_id", matchId),
			zap.Time("deadline", result.Deadline),
		)
		return nil
	})
	return result, err
}

/*
ProcessVerdict method    consumes a judge verdict for a submission.
Every verdict is broadcast to both participants so each side sees the
other's attempts; only an accepted verdict can end the match. An
accepted verdict that arrives after the match already resolved through
a concurrent path reports ended with no winner and mutates nothing.
*/
func (e *Engine) ProcessVerdict(
	ctx context.Context,
	matchId string,
	userId string,
	verdict dtos.JudgeResult,
) (VerdictResult, error) {
	// Broadcast before taking the lock so a slow resolution never
	// delays live submission feedback.
	if match, err := e.store.GetMatch(ctx, matchId); err == nil {
		e.notifier.BroadcastMatch(match.PlayerIds(), Event{
			Type: EventMatchSubmission,
			Data: matchSubmissionEvent{
				MatchId:    matchId,
				UserId:     userId,
				Verdict:    verdict.Verdict,
				Confidence: verdict.Confidence,
				Feedback:   verdict.Feedback,
			},
		})
	}

	if verdict.Verdict != dtos.VerdictAccepted {
		return VerdictResult{Ended: false}, nil
	}

	var result VerdictResult
	err := e.locks.WithLock(matchId, func() error {
		match, err := e.store.GetMatch(ctx, matchId)
		if err != nil {
			return err
		}
		if !match.HasPlayer(userId) {
			return ErrNotAPlayer
		}
		if match.Status != entities.MatchActive {
			// Already resolved by a concurrent accepted verdict,
			// forfeit or timeout. Not an error.
			result.Ended = true
			return nil
		}
		winnerId := userId
		if err := e.resolve(ctx, match, entities.MatchCompleted, &winnerId, "solved"); err != nil {
			return err
		}
		result.Ended = true
		result.WinnerId = &winnerId
		return nil
	})
	return result, err
}

// Forfeit method    resolves an ACTIVE match against the forfeiting
// participant. Used for explicit surrender and for disconnect
// auto-forfeit.
func (e *Engine) Forfeit(ctx context.Context, matchId, userId, reason string) error {
	return e.locks.WithLock(matchId, func() error {
		match, err := e.store.GetMatch(ctx, matchId)
		if err != nil {
			return err
		}
		if !match.HasPlayer(userId) {
			return ErrNotAPlayer
		}
		if match.Status.Terminal() {
			// Race loss against another resolution path.
			return nil
		}
		if match.Status != entities.MatchActive {
			return ErrInvalidTransition
		}
		winnerId := match.OpponentOf(userId)
		return e.resolve(ctx, match, entities.MatchCompleted, &winnerId, reason)
	})
}

// Abort method    drives any non-terminal match to ABORTED. An abort
// of an ACTIVE match counts as a mutual loss; earlier aborts leave
// ratings untouched.
func (e *Engine) Abort(ctx context.Context, matchId, reason string) error {
	return e.locks.WithLock(matchId, func() error {
		match, err := e.store.GetMatch(ctx, matchId)
		if err != nil {
			return err
		}
		if match.Status.Terminal() {
			return nil
		}
		if !match.Status.CanTransitionTo(entities.MatchAborted) {
			return ErrInvalidTransition
		}
		return e.resolve(ctx, match, entities.MatchAborted, nil, reason)
	})
}

/*
resolve performs the single terminal transition for a match: cancel the
deadline timer, write the terminal status, settle ratings, clear
presence and broadcast the end event. Callers must hold the per-match
lock and have validated the transition.
*/
func (e *Engine) resolve(
	ctx context.Context,
	match entities.Match,
	status entities.MatchStatus,
	winnerId *string,
	reason string,
) error {
	e.cancelTimer(match.Id)

	endedAt := time.Now()
	if err := e.store.UpdateMatchResolved(ctx, match.Id, status, endedAt, winnerId); err != nil {
		return fmt.Errorf("failed to resolve match: %w", err)
	}

	// Ratings move for a decisive outcome and for an abort of an
	// already-running match (mutual loss). An abort before ACTIVE
	// never touches ratings.
	rated := status == entities.MatchCompleted || match.Status == entities.MatchActive
	if rated {
		if err := e.settleRatings(ctx, match, winnerId); err != nil {
			// The match is terminal at this point; a rating write
			// failure must not resurrect it.
			logging.Error("failed to settle ratings",
				zap.String("match_id", match.Id),
				zap.Error(err),
			)
		}
	}

	e.presence.ClearUserMatch(match.Player1Id)
	e.presence.ClearUserMatch(match.Player2Id)

	e.notifier.BroadcastMatch(match.PlayerIds(), Event{
		Type: EventMatchEnd,
		Data: matchEndEvent{
			MatchId:  match.Id,
			WinnerId: winnerId,
			Reason:   reason,
		},
	})
	logging.Info("match resolved",
		zap.String("match_id", match.Id),
		zap.String("status", string(status)),
		zap.String("reason", reason),
	)

	e.scheduleLockDisposal(match.Id)
	return nil
}

func (e *Engine) settleRatings(ctx context.Context, match entities.Match, winnerId *string) error {
	players, err := e.store.GetMatchPlayers(ctx, match.Id)
	if err != nil {
		return err
	}
	for _, player := range players {
		outcome := outcomeFor(player.UserId, winnerId)
		rating, err := e.store.GetUserRating(ctx, player.UserId)
		if err != nil {
			rating = entities.UserRating{
				UserId: player.UserId,
				Rating: player.RatingBefore,
			}
		}
		resolved, updated := applyRatingDelta(player, rating, outcome, e.cfg.RatingDelta)
		if err := e.store.ResolvePlayerRating(ctx, resolved, updated); err != nil {
			return err
		}
	}
	return nil
}

func outcomeFor(userId string, winnerId *string) entities.PlayerResult {
	if winnerId == nil {
		// Mutual loss on an aborted ACTIVE match.
		return entities.ResultLost
	}
	if *winnerId == userId {
		return entities.ResultWon
	}
	return entities.ResultLost
}

// ScheduleStartDeadline method    arms the cancel timer for a freshly
// paired match. A match nobody starts within the deadline is aborted,
// so its participants are never locked out of matchmaking by a pairing
// that went nowhere.
func (e *Engine) ScheduleStartDeadline(matchId string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.timers[matchId]; ok {
		return
	}
	e.timers[matchId] = &matchTimer{
		deadline: time.Now().Add(e.cfg.StartDeadline),
		timer: time.AfterFunc(e.cfg.StartDeadline, func() {
			if err := e.abortIfNotStarted(context.Background(), matchId); err != nil {
				logging.Error("start-deadline abort failed",
					zap.String("match_id", matchId),
					zap.Error(err),
				)
			}
		}),
	}
}

// abortIfNotStarted cancels a match still sitting in STARTING. A match
// that went ACTIVE in the meantime is left alone; its own deadline
// timer governs it from there.
func (e *Engine) abortIfNotStarted(ctx context.Context, matchId string) error {
	return e.locks.WithLock(matchId, func() error {
		match, err := e.store.GetMatch(ctx, matchId)
		if err != nil {
			return err
		}
		if match.Status != entities.MatchStarting {
			return nil
		}
		return e.resolve(ctx, match, entities.MatchAborted, nil, "cancelled")
	})
}

// armTimer arms the wall-clock deadline for an ACTIVE match. Expiry
// aborts the match; the abort path re-checks status under the lock, so
// a timer that loses a race with a verdict is a no-op.
func (e *Engine) armTimer(matchId string, deadline time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.timers[matchId]; ok {
		return
	}
	e.timers[matchId] = &matchTimer{
		deadline: deadline,
		timer: time.AfterFunc(time.Until(deadline), func() {
			if err := e.Abort(context.Background(), matchId, "timeout"); err != nil {
				logging.Error("timeout abort failed",
					zap.String("match_id", matchId),
					zap.Error(err),
				)
			}
		}),
	}
	logging.Info("match timer armed",
		zap.String("match_id", matchId),
		zap.Time("deadline", deadline),
	)
}

func (e *Engine) armedDeadline(matchId string) (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if mt, ok := e.timers[matchId]; ok {
		return mt.deadline, true
	}
	return time.Time{}, false
}

func (e *Engine) cancelTimer(matchId string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if mt, ok := e.timers[matchId]; ok {
		mt.timer.Stop()
		delete(e.timers, matchId)
	}
}

// scheduleLockDisposal reclaims the per-match lock entry once any
// still-in-flight callers have drained naturally.
func (e *Engine) scheduleLockDisposal(matchId string) {
	time.AfterFunc(e.cfg.LockDisposalDelay, func() {
		e.locks.Delete(matchId)
	})
}
