package server

import (
	"context"
	"sync"
	"time"

	"github.com/codeduel-vn/codeduel/internal/aws/storage"
	"github.com/codeduel-vn/codeduel/internal/domains/dtos"
	"github.com/codeduel-vn/codeduel/internal/domains/entities"
)

// fakeStore is an in-memory Store standing in for DynamoDB.
type fakeStore struct {
	mu       sync.Mutex
	matches  map[string]entities.Match
	players  map[string][]entities.MatchPlayer
	ratings  map[string]entities.UserRating
	problems map[int][]entities.Problem
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		matches:  make(map[string]entities.Match),
		players:  make(map[string][]entities.MatchPlayer),
		ratings:  make(map[string]entities.UserRating),
		problems: make(map[int][]entities.Problem),
	}
}

func (s *fakeStore) GetUserRating(ctx context.Context, userId string) (entities.UserRating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rating, ok := s.ratings[userId]
	if !ok {
		return entities.UserRating{}, storage.ErrUserRatingNotFound
	}
	return rating, nil
}

func (s *fakeStore) GetMatch(ctx context.Context, matchId string) (entities.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	match, ok := s.matches[matchId]
	if !ok {
		return entities.Match{}, storage.ErrMatchNotFound
	}
	return match, nil
}

func (s *fakeStore) GetMatchPlayers(ctx context.Context, matchId string) ([]entities.MatchPlayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	players := make([]entities.MatchPlayer, len(s.players[matchId]))
	copy(players, s.players[matchId])
	return players, nil
}

func (s *fakeStore) GetUnresolvedMatchForUser(ctx context.Context, userId string) (entities.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, match := range s.matches {
		if match.HasPlayer(userId) && !match.Status.Terminal() {
			return match, nil
		}
	}
	return entities.Match{}, storage.ErrMatchNotFound
}

func (s *fakeStore) CreateMatchWithPlayers(ctx context.Context, match entities.Match, players []entities.MatchPlayer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[match.Id] = match
	s.players[match.Id] = players
	return nil
}

func (s *fakeStore) UpdateMatchStarted(ctx context.Context, matchId string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	match := s.matches[matchId]
	match.Status = entities.MatchActive
	match.StartedAt = &startedAt
	s.matches[matchId] = match
	return nil
}

func (s *fakeStore) UpdateMatchResolved(ctx context.Context, matchId string, status entities.MatchStatus, endedAt time.Time, winnerId *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	match := s.matches[matchId]
	match.Status = status
	match.EndedAt = &endedAt
	match.WinnerId = winnerId
	s.matches[matchId] = match
	return nil
}

func (s *fakeStore) ResolvePlayerRating(ctx context.Context, player entities.MatchPlayer, rating entities.UserRating) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratings[rating.UserId] = rating
	players := s.players[player.MatchId]
	for i := range players {
		if players[i].UserId == player.UserId {
			players[i] = player
		}
	}
	s.players[player.MatchId] = players
	return nil
}

func (s *fakeStore) GetProblem(ctx context.Context, bucket int, problemId string) (entities.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, problem := range s.problems[bucket] {
		if problem.ProblemId == problemId {
			return problem, nil
		}
	}
	return entities.Problem{}, storage.ErrProblemNotFound
}

func (s *fakeStore) PickProblem(ctx context.Context, bucket int) (entities.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	problems := s.problems[bucket]
	if len(problems) == 0 {
		return entities.Problem{}, storage.ErrProblemNotFound
	}
	return problems[0], nil
}

func (s *fakeStore) addProblem(problem entities.Problem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.problems[problem.Bucket] = append(s.problems[problem.Bucket], problem)
}

func (s *fakeStore) match(matchId string) entities.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matches[matchId]
}

func (s *fakeStore) matchPlayer(matchId, userId string) entities.MatchPlayer {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, player := range s.players[matchId] {
		if player.UserId == userId {
			return player
		}
	}
	return entities.MatchPlayer{}
}

// fakeNotifier records every event delivered per participant.
type fakeNotifier struct {
	mu     sync.Mutex
	events map[string][]Event
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		events: make(map[string][]Event),
	}
}

func (n *fakeNotifier) SendToUser(userId string, event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events[userId] = append(n.events[userId], event)
}

func (n *fakeNotifier) BroadcastMatch(playerIds []string, event Event) {
	for _, playerId := range playerIds {
		n.SendToUser(playerId, event)
	}
}

func (n *fakeNotifier) countType(userId, eventType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, event := range n.events[userId] {
		if event.Type == eventType {
			count++
		}
	}
	return count
}

func (n *fakeNotifier) lastOfType(userId, eventType string) (Event, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.events[userId]) - 1; i >= 0; i-- {
		if n.events[userId][i].Type == eventType {
			return n.events[userId][i], true
		}
	}
	return Event{}, false
}

// fakeJudge returns a scripted verdict, optionally blocking until
// released so tests can hold a submission in flight.
type fakeJudge struct {
	verdict dtos.JudgeResult
	block   chan struct{}
	entered chan struct{}
}

func (j *fakeJudge) Judge(ctx context.Context, problemStatement, code, language string) dtos.JudgeResult {
	if j.entered != nil {
		j.entered <- struct{}{}
	}
	if j.block != nil {
		<-j.block
	}
	return j.verdict
}

// onlineSet is a presenceChecker with explicit membership.
type onlineSet struct {
	mu     sync.Mutex
	online map[string]bool
}

func newOnlineSet(userIds ...string) *onlineSet {
	set := &onlineSet{online: make(map[string]bool)}
	for _, userId := range userIds {
		set.online[userId] = true
	}
	return set
}

func (s *onlineSet) IsOnline(userId string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online[userId]
}

func (s *onlineSet) set(userId string, online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online[userId] = online
}

// fakeScheduler records the matches a start deadline was armed for.
type fakeScheduler struct {
	mu       sync.Mutex
	matchIds []string
}

func (s *fakeScheduler) ScheduleStartDeadline(matchId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matchIds = append(s.matchIds, matchId)
}

func (s *fakeScheduler) scheduled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(s.matchIds))
	copy(ids, s.matchIds)
	return ids
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.StartDeadline = 40 * time.Millisecond
	cfg.DisconnectGrace = 50 * time.Millisecond
	cfg.LockDisposalDelay = 10 * time.Millisecond
	cfg.StaleCleanupInterval = 20 * time.Millisecond
	return cfg
}

// newTestEngine wires an engine with fakes and one STARTING match
// between p1 (rating 1000) and p2 (rating 1050).
func newTestEngine(cfg Config) (*Engine, *fakeStore, *fakeNotifier, *Presence) {
	store := newFakeStore()
	notifier := newFakeNotifier()
	presence := NewPresence(notifier, cfg.DisconnectGrace)
	engine := NewEngine(store, notifier, presence, cfg)
	presence.Bind(engine)

	store.addProblem(entities.Problem{
		Bucket:    1000,
		ProblemId: "prob-1",
		Title:     "Two Sum",
		Statement: "Find two numbers that add up to a target.",
	})
	store.ratings["p1"] = entities.UserRating{UserId: "p1", Rating: 1000}
	store.ratings["p2"] = entities.UserRating{UserId: "p2", Rating: 1050, Streak: 2}
	match := entities.Match{
		Id:            "m1",
		Status:        entities.MatchStarting,
		Player1Id:     "p1",
		Player2Id:     "p2",
		ProblemId:     "prob-1",
		ProblemBucket: 1000,
		Duration:      300,
		CreatedAt:     time.Now(),
	}
	store.matches[match.Id] = match
	store.players[match.Id] = []entities.MatchPlayer{
		{MatchId: "m1", UserId: "p1", Result: entities.ResultPending, RatingBefore: 1000},
		{MatchId: "m1", UserId: "p2", Result: entities.ResultPending, RatingBefore: 1050},
	}
	return engine, store, notifier, presence
}

func accepted() dtos.JudgeResult {
	return dtos.JudgeResult{Verdict: dtos.VerdictAccepted, Confidence: 0.97, Feedback: "looks correct"}
}
