package entities

import "time"

type MatchStatus string

const (
	MatchWaiting   MatchStatus = "WAITING"
	MatchStarting  MatchStatus = "STARTING"
	MatchActive    MatchStatus = "ACTIVE"
	MatchCompleted MatchStatus = "COMPLETED"
	MatchAborted   MatchStatus = "ABORTED"
)

// Terminal method    reports whether the status is a sink of the
// lifecycle graph. Terminal matches are immutable.
func (s MatchStatus) Terminal() bool {
	return s == MatchCompleted || s == MatchAborted
}

// CanTransitionTo method    validates a single step along the match
// lifecycle graph. WAITING is reserved for a future ready-up lobby;
// matches are created directly in STARTING today.
func (s MatchStatus) CanTransitionTo(next MatchStatus) bool {
	switch s {
	case MatchWaiting:
		return next == MatchStarting || next == MatchAborted
	case MatchStarting:
		return next == MatchActive || next == MatchAborted
	case MatchActive:
		return next == MatchCompleted || next == MatchAborted
	default:
		return false
	}
}

type Match struct {
	Id            string      `dynamodbav:"MatchId" json:"matchId"`
	Status        MatchStatus `dynamodbav:"Status" json:"status"`
	Player1Id     string      `dynamodbav:"Player1Id" json:"player1Id"`
	Player2Id     string      `dynamodbav:"Player2Id" json:"player2Id"`
	ProblemId     string      `dynamodbav:"ProblemId" json:"problemId"`
	ProblemBucket int         `dynamodbav:"ProblemBucket" json:"problemBucket"`
	Duration      int         `dynamodbav:"Duration" json:"duration"`
	StartedAt     *time.Time  `dynamodbav:"StartedAt" json:"startedAt,omitempty"`
	EndedAt       *time.Time  `dynamodbav:"EndedAt" json:"endedAt,omitempty"`
	WinnerId      *string     `dynamodbav:"WinnerId" json:"winnerId,omitempty"`
	CreatedAt     time.Time   `dynamodbav:"CreatedAt" json:"createdAt"`
}

func (m Match) HasPlayer(userId string) bool {
	return m.Player1Id == userId || m.Player2Id == userId
}

func (m Match) OpponentOf(userId string) string {
	if m.Player1Id == userId {
		return m.Player2Id
	}
	return m.Player1Id
}

func (m Match) PlayerIds() []string {
	return []string{m.Player1Id, m.Player2Id}
}
