package server

import (
	"context"

	"github.com/codeduel-vn/codeduel/internal/domains/dtos"
	"github.com/codeduel-vn/codeduel/pkg/locker"
)

/*
Gate admits at most one in-flight judged submission per participant.
Different participants' submissions run against the judge fully in
parallel; a participant resubmitting before their previous verdict
returns is rejected without touching shared state.
*/
type Gate struct {
	locks *locker.Locker
	judge Judger
}

func NewGate(judge Judger) *Gate {
	return &Gate{
		locks: locker.New(),
		judge: judge,
	}
}

// Submit method    claims the participant's slot and runs the judge
// call. Returns ok=false if a submission is already in flight. The
// slot is released whatever the judge does.
func (g *Gate) Submit(
	ctx context.Context,
	userId string,
	problemStatement string,
	code string,
	language string,
) (dtos.JudgeResult, bool) {
	if !g.locks.TryLock(userId) {
		return dtos.JudgeResult{}, false
	}
	defer g.locks.Unlock(userId)

	return g.judge.Judge(ctx, problemStatement, code, language), true
}
