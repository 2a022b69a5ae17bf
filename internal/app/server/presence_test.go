package server

import (
	"context"
	"testing"
	"time"

	"github.com/codeduel-vn/codeduel/internal/domains/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedMatch(t *testing.T, engine *Engine) {
	t.Helper()
	_, err := engine.Start(context.Background(), "m1", "p1")
	require.NoError(t, err)
}

func TestReconnectWithinGraceCancelsForfeit(t *testing.T) {
	cfg := testConfig()
	engine, store, notifier, presence := newTestEngine(cfg)
	startedMatch(t, engine)

	presence.HandleConnect("p1")
	presence.HandleConnect("p2")

	presence.HandleDisconnect("p1")
	assert.Equal(t, 1, notifier.countType("p2", EventOpponentDisconnected))

	presence.HandleConnect("p1")
	assert.Equal(t, 1, notifier.countType("p2", EventOpponentReconnected))

	// past the grace period the match must still be running
	time.Sleep(3 * cfg.DisconnectGrace)
	assert.Equal(t, entities.MatchActive, store.match("m1").Status)
}

func TestGraceExpiryForfeitsDisconnectedPlayer(t *testing.T) {
	cfg := testConfig()
	engine, store, notifier, presence := newTestEngine(cfg)
	startedMatch(t, engine)

	presence.HandleConnect("p1")
	presence.HandleConnect("p2")
	presence.HandleDisconnect("p1")

	require.Eventually(t, func() bool {
		return store.match("m1").Status == entities.MatchCompleted
	}, time.Second, 5*time.Millisecond)

	match := store.match("m1")
	require.NotNil(t, match.WinnerId)
	assert.Equal(t, "p2", *match.WinnerId)

	end, ok := notifier.lastOfType("p2", EventMatchEnd)
	require.True(t, ok)
	assert.Equal(t, "disconnect", end.Data.(matchEndEvent).Reason)
}

func TestSecondTabKeepsPlayerPresent(t *testing.T) {
	cfg := testConfig()
	engine, store, notifier, presence := newTestEngine(cfg)
	startedMatch(t, engine)

	presence.HandleConnect("p1")
	presence.HandleConnect("p1") // second tab
	presence.HandleConnect("p2")

	presence.HandleDisconnect("p1")
	assert.True(t, presence.IsOnline("p1"))
	assert.Equal(t, 0, notifier.countType("p2", EventOpponentDisconnected))

	time.Sleep(3 * cfg.DisconnectGrace)
	assert.Equal(t, entities.MatchActive, store.match("m1").Status)
}

func TestStrayDisconnectIsIgnored(t *testing.T) {
	cfg := testConfig()
	engine, store, notifier, presence := newTestEngine(cfg)
	startedMatch(t, engine)

	// a disconnect for a connection that was never tracked
	presence.HandleDisconnect("p1")
	assert.Equal(t, 0, notifier.countType("p2", EventOpponentDisconnected))
	presence.mu.Lock()
	assert.Empty(t, presence.timers)
	presence.mu.Unlock()

	// the count was not driven negative: one connect restores presence
	presence.HandleConnect("p1")
	assert.True(t, presence.IsOnline("p1"))

	time.Sleep(3 * cfg.DisconnectGrace)
	assert.Equal(t, entities.MatchActive, store.match("m1").Status)
}

func TestDisconnectWithoutMatchArmsNothing(t *testing.T) {
	notifier := newFakeNotifier()
	presence := NewPresence(notifier, 50*time.Millisecond)

	presence.HandleConnect("loner")
	presence.HandleDisconnect("loner")

	presence.mu.Lock()
	assert.Empty(t, presence.timers)
	presence.mu.Unlock()
}

func TestResolutionClearsPendingDisconnectTimer(t *testing.T) {
	cfg := testConfig()
	engine, store, _, presence := newTestEngine(cfg)
	startedMatch(t, engine)

	presence.HandleConnect("p1")
	presence.HandleConnect("p2")
	presence.HandleDisconnect("p1")

	// p2 solves before the grace period runs out
	result, err := engine.ProcessVerdict(context.Background(), "m1", "p2", accepted())
	require.NoError(t, err)
	require.True(t, result.Ended)

	time.Sleep(3 * cfg.DisconnectGrace)
	match := store.match("m1")
	assert.Equal(t, entities.MatchCompleted, match.Status)
	require.NotNil(t, match.WinnerId)
	assert.Equal(t, "p2", *match.WinnerId)
}

func TestIsOnlineTracksSocketCount(t *testing.T) {
	presence := NewPresence(newFakeNotifier(), time.Second)

	assert.False(t, presence.IsOnline("p1"))
	presence.HandleConnect("p1")
	assert.True(t, presence.IsOnline("p1"))
	presence.HandleDisconnect("p1")
	assert.False(t, presence.IsOnline("p1"))
}
