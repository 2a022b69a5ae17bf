package server

import (
	"time"

	"github.com/codeduel-vn/codeduel/internal/domains/entities"
)

// Event types pushed to participants over their live connections.
const (
	EventQueueMatched         = "queue_matched"
	EventQueueStatus          = "queue_status"
	EventMatchStart           = "match_start"
	EventMatchSubmission      = "match_submission"
	EventMatchEnd             = "match_end"
	EventOpponentDisconnected = "opponent_disconnected"
	EventOpponentReconnected  = "opponent_reconnected"
)

type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type queueMatchedEvent struct {
	MatchId    string `json:"matchId"`
	OpponentId string `json:"opponentId"`
}

type matchStartEvent struct {
	MatchId  string           `json:"matchId"`
	Problem  entities.Problem `json:"problem"`
	Deadline time.Time        `json:"deadline"`
}

type matchSubmissionEvent struct {
	MatchId    string  `json:"matchId"`
	UserId     string  `json:"userId"`
	Verdict    string  `json:"verdict"`
	Confidence float64 `json:"confidence"`
	Feedback   string  `json:"feedback"`
}

type matchEndEvent struct {
	MatchId  string  `json:"matchId"`
	WinnerId *string `json:"winnerId,omitempty"`
	Reason   string  `json:"reason"`
}

type opponentDisconnectedEvent struct {
	MatchId      string `json:"matchId"`
	OpponentId   string `json:"opponentId"`
	GraceSeconds int    `json:"graceSeconds"`
}

type opponentReconnectedEvent struct {
	MatchId    string `json:"matchId"`
	OpponentId string `json:"opponentId"`
}

type errorResponse struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Notifier delivers events to participants. The websocket hub is the
// production implementation.
type Notifier interface {
	SendToUser(userId string, event Event)
	BroadcastMatch(playerIds []string, event Event)
}
