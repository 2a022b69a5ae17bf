package server

import (
	"context"
	"sync"
	"time"

	"github.com/codeduel-vn/codeduel/pkg/logging"
	"go.uber.org/zap"
)

// Forfeiter is the slice of the match engine the presence coordinator
// drives when a disconnect grace period runs out.
type Forfeiter interface {
	Forfeit(ctx context.Context, matchId, userId, reason string) error
}

type userMatchState struct {
	matchId    string
	opponentId string
}

type disconnectTimer struct {
	timer     *time.Timer
	cancelled bool
}

/*
Presence tracks which participants currently hold at least one live
connection and which match they are registered to. A participant with
several open connections counts as present until the last one drops;
only a full disconnect arms the auto-forfeit grace timer.
*/
type Presence struct {
	mu          sync.Mutex
	sockets     map[string]int
	userMatches map[string]userMatchState
	timers      map[string]*disconnectTimer

	notifier  Notifier
	forfeiter Forfeiter
	grace     time.Duration
}

func NewPresence(notifier Notifier, grace time.Duration) *Presence {
	return &Presence{
		sockets:     make(map[string]int),
		userMatches: make(map[string]userMatchState),
		timers:      make(map[string]*disconnectTimer),
		notifier:    notifier,
		grace:       grace,
	}
}

// Bind method    wires the match engine in after construction; the
// engine needs presence first, so the cycle is closed here.
func (p *Presence) Bind(forfeiter Forfeiter) {
	p.forfeiter = forfeiter
}

func (p *Presence) HandleConnect(userId string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sockets[userId]++
	if t, ok := p.timers[userId]; ok {
		t.cancelled = true
		t.timer.Stop()
		delete(p.timers, userId)
		if state, ok := p.userMatches[userId]; ok {
			logging.Info("player reconnected",
				zap.String("player_id", userId),
				zap.String("match_id", state.matchId),
			)
			p.notifier.SendToUser(state.opponentId, Event{
				Type: EventOpponentReconnected,
				Data: opponentReconnectedEvent{
					MatchId:    state.matchId,
					OpponentId: userId,
				},
			})
		}
	}
}

func (p *Presence) HandleDisconnect(userId string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	count, ok := p.sockets[userId]
	if !ok {
		// Stray disconnect with no tracked connection.
		return
	}
	if count > 1 {
		p.sockets[userId] = count - 1
		return
	}
	delete(p.sockets, userId)

	state, ok := p.userMatches[userId]
	if !ok {
		return
	}
	logging.Info("player disconnected",
		zap.String("player_id", userId),
		zap.String("match_id", state.matchId),
	)
	p.notifier.SendToUser(state.opponentId, Event{
		Type: EventOpponentDisconnected,
		Data: opponentDisconnectedEvent{
			MatchId:      state.matchId,
			OpponentId:   userId,
			GraceSeconds: int(p.grace.Seconds()),
		},
	})
	dt := &disconnectTimer{}
	dt.timer = time.AfterFunc(p.grace, func() {
		p.onGraceExpired(userId, dt)
	})
	p.timers[userId] = dt
}

// onGraceExpired runs on the timer goroutine. Stopping the timer on
// reconnect is best-effort, so the cancelled flag is re-checked under
// the lock after the timer has fired.
func (p *Presence) onGraceExpired(userId string, dt *disconnectTimer) {
	p.mu.Lock()
	if dt.cancelled {
		p.mu.Unlock()
		return
	}
	delete(p.timers, userId)
	state, ok := p.userMatches[userId]
	p.mu.Unlock()
	if !ok {
		return
	}

	logging.Info("grace period expired",
		zap.String("player_id", userId),
		zap.String("match_id", state.matchId),
	)
	err := p.forfeiter.Forfeit(context.Background(), state.matchId, userId, "disconnect")
	if err != nil {
		logging.Error("auto-forfeit failed",
			zap.String("player_id", userId),
			zap.String("match_id", state.matchId),
			zap.Error(err),
		)
	}
}

func (p *Presence) RegisterUserMatch(userId, matchId, opponentId string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userMatches[userId] = userMatchState{
		matchId:    matchId,
		opponentId: opponentId,
	}
}

// ClearUserMatch method    drops the registration and any pending
// disconnect timer; called by the engine once a match resolves.
func (p *Presence) ClearUserMatch(userId string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.userMatches, userId)
	if t, ok := p.timers[userId]; ok {
		t.cancelled = true
		t.timer.Stop()
		delete(p.timers, userId)
	}
}

func (p *Presence) UserMatch(userId string) (matchId, opponentId string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, ok := p.userMatches[userId]
	return state.matchId, state.opponentId, ok
}

// IsOnline method    reports whether the participant has at least one
// live connection. The matchmaking queue uses this to skip ghosts.
func (p *Presence) IsOnline(userId string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sockets[userId] > 0
}
