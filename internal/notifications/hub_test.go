package notifications

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func TestHub_GracePeriodSuppressesOfflineOnRapidReconnect(t *testing.T) {
	hub := NewHub(nil, 0)
	hub.presence.SetOfflineGracePeriod(40 * time.Millisecond)

	clientA, err := hub.Register(10, nil)
	assert.NoError(t, err)

	hub.UnregisterClient(clientA)
	_, err = hub.Register(10, nil)
	assert.NoError(t, err)

	assert.Never(t, func() bool {
		hub.presence.mu.RLock()
		defer hub.presence.mu.RUnlock()
		return hub.presence.offlineNotified[10]
	}, 20*testPollInterval, testPollInterval)
	assert.True(t, hub.IsOnline(10))

	_ = hub.Shutdown(context.Background())
}

func TestHub_MultiConnectionLastDisconnectTriggersOfflineOnce(t *testing.T) {
	hub := NewHub(nil, 0)
	hub.presence.SetOfflineGracePeriod(30 * time.Millisecond)

	clientA, err := hub.Register(15, nil)
	assert.NoError(t, err)
	clientB, err := hub.Register(15, nil)
	assert.NoError(t, err)

	hub.UnregisterClient(clientA)
	assert.Never(t, func() bool {
		hub.presence.mu.RLock()
		defer hub.presence.mu.RUnlock()
		return hub.presence.offlineNotified[15]
	}, 30*testPollInterval, testPollInterval)

	hub.UnregisterClient(clientB)
	assert.Eventually(t, func() bool {
		hub.presence.mu.RLock()
		defer hub.presence.mu.RUnlock()
		return hub.presence.offlineNotified[15]
	}, testEventuallyTimeout, testPollInterval)
	assert.False(t, hub.IsOnline(15))

	_ = hub.Shutdown(context.Background())
}

func TestHub_BroadcastReachesAllUserConnections(t *testing.T) {
	hub := NewHub(nil, 0)

	clientA, err := hub.Register(20, nil)
	require.NoError(t, err)
	clientB, err := hub.Register(20, nil)
	require.NoError(t, err)
	other, err := hub.Register(21, nil)
	require.NoError(t, err)

	delivered := hub.BroadcastEvent(20, Event{Type: EventNewNotification})
	assert.True(t, delivered)

	for _, c := range []*Client{clientA, clientB} {
		select {
		case raw := <-c.Send:
			var ev Event
			require.NoError(t, json.Unmarshal(raw, &ev))
			assert.Equal(t, EventNewNotification, ev.Type)
		default:
			t.Fatal("expected event in client buffer")
		}
	}
	assert.Empty(t, other.Send)

	assert.False(t, hub.BroadcastEvent(99, Event{Type: EventNewNotification}),
		"broadcast to a user without connections reports no delivery")

	_ = hub.Shutdown(context.Background())
}

func TestHub_ReaperRemovesStalePresence(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	hub := NewHub(rdb, 0)

	var offlineCount int32
	hub.SetPresenceCallbacks(nil, func(_ uint) {
		atomic.AddInt32(&offlineCount, 1)
	})

	ctx := context.Background()
	assert.NoError(t, rdb.SAdd(ctx, presenceOnlineSetKey, "44").Err())

	hub.presence.reapOnce(ctx)

	isMember, err := rdb.SIsMember(ctx, presenceOnlineSetKey, "44").Result()
	assert.NoError(t, err)
	assert.False(t, isMember)
	assert.Equal(t, int32(1), atomic.LoadInt32(&offlineCount))

	_ = hub.Shutdown(context.Background())
}

func TestHub_HeartbeatKeepsPresenceAlive(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	hub := NewHub(rdb, 50*time.Millisecond)
	ctx := context.Background()

	client, err := hub.Register(30, nil)
	require.NoError(t, err)

	require.True(t, hub.IsOnline(30))

	// Expire the last-seen key the way a missed heartbeat would.
	mr.FastForward(60 * time.Millisecond)
	hub.UnregisterClient(client)
	assert.False(t, mr.Exists(presenceLastSeenKeyNS+"30"))

	// A heartbeat touch restores the marker.
	hub.TouchPresence(ctx, 30)
	assert.True(t, mr.Exists(presenceLastSeenKeyNS+"30"))

	_ = hub.Shutdown(context.Background())
}

func TestHub_CleanDisconnectClearsPresenceImmediately(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	hub := NewHub(rdb, 0)
	hub.presence.SetOfflineGracePeriod(20 * time.Millisecond)

	var offlineCount int32
	hub.SetPresenceCallbacks(nil, func(_ uint) {
		atomic.AddInt32(&offlineCount, 1)
	})

	ctx := context.Background()
	client, err := hub.Register(60, nil)
	require.NoError(t, err)
	require.True(t, mr.Exists(presenceLastSeenKeyNS+"60"))

	hub.UnregisterClient(client)

	// The markers vanish right after the grace window, well before the
	// last-seen TTL would expire.
	assert.Eventually(t, func() bool {
		return !mr.Exists(presenceLastSeenKeyNS+"60") &&
			atomic.LoadInt32(&offlineCount) == 1
	}, testEventuallyTimeout, testPollInterval)

	isMember, err := rdb.SIsMember(ctx, presenceOnlineSetKey, "60").Result()
	assert.NoError(t, err)
	assert.False(t, isMember)
	assert.False(t, hub.IsOnline(60))

	_ = hub.Shutdown(context.Background())
}

func TestHub_RemoteConnectionsKeepUserOnline(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	hub := NewHub(rdb, 0)
	hub.presence.SetOfflineGracePeriod(20 * time.Millisecond)

	var offlineCount int32
	hub.SetPresenceCallbacks(nil, func(_ uint) {
		atomic.AddInt32(&offlineCount, 1)
	})

	ctx := context.Background()
	// Another instance already holds a socket for this user.
	require.NoError(t, rdb.HIncrBy(ctx, presenceConnCountKey, "61", 1).Err())

	client, err := hub.Register(61, nil)
	require.NoError(t, err)

	hub.UnregisterClient(client)

	assert.Never(t, func() bool {
		return atomic.LoadInt32(&offlineCount) > 0
	}, 20*testPollInterval, testPollInterval)
	assert.True(t, mr.Exists(presenceLastSeenKeyNS+"61"))
	assert.True(t, hub.IsOnline(61))

	_ = hub.Shutdown(context.Background())
}
