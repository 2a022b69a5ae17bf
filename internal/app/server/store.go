package server

import (
	"context"
	"time"

	"github.com/codeduel-vn/codeduel/internal/domains/dtos"
	"github.com/codeduel-vn/codeduel/internal/domains/entities"
)

// Store is the durable match/player/rating record. The in-memory
// coordination state is a cache over it, never the ultimate truth.
type Store interface {
	GetUserRating(ctx context.Context, userId string) (entities.UserRating, error)
	GetMatch(ctx context.Context, matchId string) (entities.Match, error)
	GetMatchPlayers(ctx context.Context, matchId string) ([]entities.MatchPlayer, error)
	GetUnresolvedMatchForUser(ctx context.Context, userId string) (entities.Match, error)
	CreateMatchWithPlayers(ctx context.Context, match entities.Match, players []entities.MatchPlayer) error
	UpdateMatchStarted(ctx context.Context, matchId string, startedAt time.Time) error
	UpdateMatchResolved(ctx context.Context, matchId string, status entities.MatchStatus, endedAt time.Time, winnerId *string) error
	ResolvePlayerRating(ctx context.Context, player entities.MatchPlayer, rating entities.UserRating) error
	GetProblem(ctx context.Context, bucket int, problemId string) (entities.Problem, error)
	PickProblem(ctx context.Context, bucket int) (entities.Problem, error)
}

// Judger is the external AI judge. It always completes: failures come
// back as a zero-confidence JUDGE_ERROR verdict.
type Judger interface {
	Judge(ctx context.Context, problemStatement, code, language string) dtos.JudgeResult
}
