package server

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/codeduel-vn/codeduel/internal/domains/entities"
	"github.com/codeduel-vn/codeduel/pkg/logging"
	"github.com/codeduel-vn/codeduel/pkg/utils"
	"go.uber.org/zap"
)

// presenceChecker is the slice of the presence coordinator the queue
// needs to avoid pairing someone with a ghost.
type presenceChecker interface {
	IsOnline(userId string) bool
}

// startScheduler arms the cancel timer for a freshly paired match, so
// a pairing nobody starts cannot strand its participants.
type startScheduler interface {
	ScheduleStartDeadline(matchId string)
}

type queuedPlayer struct {
	userId     string
	rating     float64
	enqueuedAt time.Time
}

const (
	JoinStatusQueued         = "queued"
	JoinStatusMatched        = "matched"
	JoinStatusAlreadyInMatch = "already_in_match"
)

type JoinResult struct {
	Status     string
	MatchId    string
	OpponentId string
}

/*
Queue holds waiting participants in memory and pairs them by rating
proximity. All mutation happens under one queue-wide lock, so removing
a candidate and creating the match with them is atomic with respect to
other joiners.
*/
type Queue struct {
	mu      sync.Mutex
	entries map[string]queuedPlayer

	store     Store
	presence  presenceChecker
	scheduler startScheduler
	notifier  Notifier
	cfg       Config
}

func NewQueue(store Store, presence presenceChecker, scheduler startScheduler, notifier Notifier, cfg Config) *Queue {
	return &Queue{
		entries:   make(map[string]queuedPlayer),
		store:     store,
		presence:  presence,
		scheduler: scheduler,
		notifier:  notifier,
		cfg:       cfg,
	}
}

/*
Join method    enqueues the participant or pairs them with a waiting
opponent whose rating is within tolerance. Among in-tolerance
candidates the closest rating wins, with enqueue order breaking ties.
A candidate with no live connection is evicted instead of matched.
*/
func (q *Queue) Join(ctx context.Context, userId string) (JoinResult, error) {
	// Cheap short-circuit outside the lock; re-validated inside since
	// a pairing may land in between.
	if match, err := q.store.GetUnresolvedMatchForUser(ctx, userId); err == nil {
		return JoinResult{
			Status:     JoinStatusAlreadyInMatch,
			MatchId:    match.Id,
			OpponentId: match.OpponentOf(userId),
		}, nil
	}

	rating := q.cfg.DefaultRating
	if userRating, err := q.store.GetUserRating(ctx, userId); err == nil {
		rating = userRating.Rating
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.entries[userId]; ok {
		return JoinResult{Status: JoinStatusQueued}, nil
	}
	if match, err := q.store.GetUnresolvedMatchForUser(ctx, userId); err == nil {
		return JoinResult{
			Status:     JoinStatusAlreadyInMatch,
			MatchId:    match.Id,
			OpponentId: match.OpponentOf(userId),
		}, nil
	}

	candidate, found := q.findCandidate(userId, rating)
	if !found {
		q.entries[userId] = queuedPlayer{
			userId:     userId,
			rating:     rating,
			enqueuedAt: time.Now(),
		}
		logging.Info("player queued",
			zap.String("player_id", userId),
			zap.Float64("rating", rating),
		)
		return JoinResult{Status: JoinStatusQueued}, nil
	}

	match, err := q.createMatch(ctx, userId, rating, candidate)
	if err != nil {
		return JoinResult{}, err
	}
	delete(q.entries, candidate.userId)
	q.scheduler.ScheduleStartDeadline(match.Id)

	q.notifier.SendToUser(userId, Event{
		Type: EventQueueMatched,
		Data: queueMatchedEvent{MatchId: match.Id, OpponentId: candidate.userId},
	})
	q.notifier.SendToUser(candidate.userId, Event{
		Type: EventQueueMatched,
		Data: queueMatchedEvent{MatchId: match.Id, OpponentId: userId},
	})
	logging.Info("match found",
		zap.String("match_id", match.Id),
		zap.String("player1_id", userId),
		zap.String("player2_id", candidate.userId),
	)
	return JoinResult{
		Status:     JoinStatusMatched,
		MatchId:    match.Id,
		OpponentId: candidate.userId,
	}, nil
}

// findCandidate scans under the queue lock for the closest-rated
// waiting opponent within tolerance, evicting ghosts along the way.
func (q *Queue) findCandidate(userId string, rating float64) (queuedPlayer, bool) {
	var best queuedPlayer
	bestDiff := math.Inf(1)
	found := false
	for id, entry := range q.entries {
		if id == userId {
			continue
		}
		if !q.presence.IsOnline(id) {
			delete(q.entries, id)
			logging.Info("ghost evicted from queue", zap.String("player_id", id))
			continue
		}
		diff := math.Abs(entry.rating - rating)
		if diff > q.cfg.RatingTolerance {
			continue
		}
		if diff < bestDiff || (diff == bestDiff && entry.enqueuedAt.Before(best.enqueuedAt)) {
			best = entry
			bestDiff = diff
			found = true
		}
	}
	return best, found
}

func (q *Queue) createMatch(
	ctx context.Context,
	userId string,
	rating float64,
	candidate queuedPlayer,
) (entities.Match, error) {
	bucket := utils.RatingBucket((rating + candidate.rating) / 2)
	problem, err := q.store.PickProblem(ctx, bucket)
	if err != nil {
		// A match must always have a problem before STARTING; fail
		// the join loudly instead of creating an unplayable match.
		return entities.Match{}, fmt.Errorf("%w: bucket %d", ErrNoProblemAvailable, bucket)
	}

	match := entities.Match{
		Id:            utils.GenerateUUID(),
		Status:        entities.MatchStarting,
		Player1Id:     userId,
		Player2Id:     candidate.userId,
		ProblemId:     problem.ProblemId,
		ProblemBucket: problem.Bucket,
		Duration:      int(q.cfg.MatchDuration.Seconds()),
		CreatedAt:     time.Now(),
	}
	players := []entities.MatchPlayer{
		{
			MatchId:      match.Id,
			UserId:       userId,
			Result:       entities.ResultPending,
			RatingBefore: rating,
		},
		{
			MatchId:      match.Id,
			UserId:       candidate.userId,
			Result:       entities.ResultPending,
			RatingBefore: candidate.rating,
		},
	}
	if err := q.store.CreateMatchWithPlayers(ctx, match, players); err != nil {
		return entities.Match{}, fmt.Errorf("failed to create match: %w", err)
	}
	return match, nil
}

// Leave method    removes the participant from the queue; idempotent.
func (q *Queue) Leave(userId string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, userId)
}

// CleanupStale method    evicts queued participants whose connections
// are all gone; compensates for clients that close without leaving.
func (q *Queue) CleanupStale() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id := range q.entries {
		if !q.presence.IsOnline(id) {
			delete(q.entries, id)
			logging.Info("stale queue entry evicted", zap.String("player_id", id))
		}
	}
}

// RunCleanup method    runs the stale sweep on an interval until the
// context is cancelled.
func (q *Queue) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(q.cfg.StaleCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.CleanupStale()
		}
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
