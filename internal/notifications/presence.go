package notifications

import (
	"context"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keys backing rider presence. The online set lists rider IDs, the
// last-seen keys expire when heartbeats stop, and the connection-count hash
// tracks how many sockets each rider holds across all instances so a clean
// disconnect can be told apart from a rider still connected elsewhere.
const (
	presenceOnlineSetKey  = "presence:online"
	presenceLastSeenKeyNS = "presence:last_seen:"
	presenceConnCountKey  = "presence:conn_counts"

	defaultPresenceTTL    = 90 * time.Second
	defaultOfflineGrace   = 5 * time.Second
	defaultReaperInterval = 60 * time.Second
)

// PresenceOptions tunes presence behavior. Zero values use the defaults.
type PresenceOptions struct {
	LastSeenTTL        time.Duration
	OfflineGracePeriod time.Duration
	ReaperInterval     time.Duration
	OnRiderOnline      func(userID uint)
	OnRiderOffline     func(userID uint)
}

// PresenceTracker mirrors who is connected into Redis and emits
// online/offline transitions. A short grace window absorbs page reloads;
// the TTL reaper catches riders whose socket teardown was never observed
// (instance crash, dropped network).
type PresenceTracker struct {
	rdb *redis.Client

	mu              sync.RWMutex
	localConns      map[uint]int
	offlineTimers   map[uint]*time.Timer
	offlineNotified map[uint]bool

	lastSeenTTL    time.Duration
	offlineGrace   time.Duration
	reaperInterval time.Duration
	reaperEnabled  atomic.Bool

	onOnline  func(userID uint)
	onOffline func(userID uint)

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewPresenceTracker creates a tracker and starts the reaper loop when Redis
// is available.
func NewPresenceTracker(rdb *redis.Client, opts PresenceOptions) *PresenceTracker {
	p := &PresenceTracker{
		rdb:             rdb,
		localConns:      make(map[uint]int),
		offlineTimers:   make(map[uint]*time.Timer),
		offlineNotified: make(map[uint]bool),
		lastSeenTTL:     defaultPresenceTTL,
		offlineGrace:    defaultOfflineGrace,
		reaperInterval:  defaultReaperInterval,
		onOnline:        opts.OnRiderOnline,
		onOffline:       opts.OnRiderOffline,
		stopCh:          make(chan struct{}),
	}

	if opts.LastSeenTTL > 0 {
		p.lastSeenTTL = opts.LastSeenTTL
	}
	if opts.OfflineGracePeriod > 0 {
		p.offlineGrace = opts.OfflineGracePeriod
	}
	if opts.ReaperInterval > 0 {
		p.reaperInterval = opts.ReaperInterval
	}
	p.reaperEnabled.Store(true)

	if p.rdb != nil && p.reaperInterval > 0 {
		go p.reaperLoop()
	}

	return p
}

func (p *PresenceTracker) SetCallbacks(onOnline, onOffline func(userID uint)) {
	p.mu.Lock()
	p.onOnline = onOnline
	p.onOffline = onOffline
	p.mu.Unlock()
}

func (p *PresenceTracker) SetOfflineGracePeriod(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	p.offlineGrace = d
	p.mu.Unlock()
}

// SetReaperEnabled toggles the periodic stale-presence sweep without tearing
// down the loop.
func (p *PresenceTracker) SetReaperEnabled(enabled bool) {
	p.reaperEnabled.Store(enabled)
}

func (p *PresenceTracker) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.mu.Lock()
		for userID, timer := range p.offlineTimers {
			if timer != nil {
				timer.Stop()
			}
			delete(p.offlineTimers, userID)
		}
		p.mu.Unlock()
	})
}

// Register records a new socket for the rider and bumps the shared
// connection count.
func (p *PresenceTracker) Register(ctx context.Context, userID uint) {
	wasOnline := p.IsOnline(ctx, userID)

	p.mu.Lock()
	if t, ok := p.offlineTimers[userID]; ok {
		t.Stop()
		delete(p.offlineTimers, userID)
	}
	p.localConns[userID]++
	p.offlineNotified[userID] = false
	p.mu.Unlock()

	if p.rdb != nil {
		if err := p.rdb.HIncrBy(ctx, presenceConnCountKey, riderField(userID), 1).Err(); err != nil {
			log.Printf("presence register HINCRBY failed for rider %d: %v", userID, err)
		}
	}
	p.Touch(ctx, userID)
	if !wasOnline {
		p.emitOnline(userID)
	}
}

// Touch refreshes the rider's presence markers in Redis.
func (p *PresenceTracker) Touch(ctx context.Context, userID uint) {
	if p.rdb == nil {
		return
	}
	uid := riderField(userID)
	if err := p.rdb.SAdd(ctx, presenceOnlineSetKey, uid).Err(); err != nil {
		log.Printf("presence touch SADD failed for rider %d: %v", userID, err)
	}
	if err := p.rdb.SetEx(ctx, p.lastSeenKey(userID), strconv.FormatInt(time.Now().Unix(), 10), p.lastSeenTTL).Err(); err != nil {
		log.Printf("presence touch SETEX failed for rider %d: %v", userID, err)
	}
}

// Unregister drops one socket. When the rider's last local socket closes, an
// offline check is scheduled after the grace window.
func (p *PresenceTracker) Unregister(ctx context.Context, userID uint) {
	if p.rdb != nil {
		if err := p.rdb.HIncrBy(ctx, presenceConnCountKey, riderField(userID), -1).Err(); err != nil {
			log.Printf("presence unregister HINCRBY failed for rider %d: %v", userID, err)
		}
	}

	p.mu.Lock()
	if n, ok := p.localConns[userID]; ok {
		n--
		if n > 0 {
			p.localConns[userID] = n
			p.mu.Unlock()
			return
		}
		delete(p.localConns, userID)
	}

	if t, ok := p.offlineTimers[userID]; ok {
		t.Stop()
	}
	p.offlineTimers[userID] = time.AfterFunc(p.offlineGrace, func() {
		p.finalizeOffline(context.Background(), userID)
	})
	p.mu.Unlock()
}

func (p *PresenceTracker) IsOnline(ctx context.Context, userID uint) bool {
	p.mu.RLock()
	if p.localConns[userID] > 0 {
		p.mu.RUnlock()
		return true
	}
	p.mu.RUnlock()

	if p.rdb == nil {
		return false
	}

	exists, err := p.rdb.Exists(ctx, p.lastSeenKey(userID)).Result()
	if err != nil {
		return false
	}
	return exists > 0
}

// OnlineIDs returns online rider IDs from Redis with stale entries filtered
// out, unioned with local connections as a safety net.
func (p *PresenceTracker) OnlineIDs(ctx context.Context) []uint {
	local := p.localRiderIDs()
	if p.rdb == nil {
		return local
	}

	members, err := p.rdb.SMembers(ctx, presenceOnlineSetKey).Result()
	if err != nil {
		return local
	}

	seen := make(map[uint]struct{}, len(members)+len(local))
	result := make([]uint, 0, len(members)+len(local))

	for _, raw := range members {
		id64, parseErr := strconv.ParseUint(raw, 10, 32)
		if parseErr != nil {
			continue
		}
		userID := uint(id64)
		exists, existsErr := p.rdb.Exists(ctx, p.lastSeenKey(userID)).Result()
		if existsErr != nil {
			continue
		}
		if exists == 0 {
			_ = p.rdb.SRem(ctx, presenceOnlineSetKey, raw).Err()
			continue
		}
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		result = append(result, userID)
	}

	for _, userID := range local {
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		result = append(result, userID)
	}

	return result
}

// reapOnce performs one stale-presence sweep: riders in the online set whose
// last-seen key expired are removed and reported offline.
func (p *PresenceTracker) reapOnce(ctx context.Context) {
	if p.rdb == nil {
		return
	}

	members, err := p.rdb.SMembers(ctx, presenceOnlineSetKey).Result()
	if err != nil {
		return
	}

	for _, raw := range members {
		id64, parseErr := strconv.ParseUint(raw, 10, 32)
		if parseErr != nil {
			continue
		}
		userID := uint(id64)
		exists, existsErr := p.rdb.Exists(ctx, p.lastSeenKey(userID)).Result()
		if existsErr != nil {
			continue
		}
		if exists > 0 {
			continue
		}

		_ = p.rdb.SRem(ctx, presenceOnlineSetKey, raw).Err()
		// The counter is stale too: whatever instance owned these sockets
		// stopped heartbeating.
		_ = p.rdb.HDel(ctx, presenceConnCountKey, raw).Err()

		p.mu.RLock()
		hasLocal := p.localConns[userID] > 0
		p.mu.RUnlock()
		if !hasLocal {
			p.emitOffline(userID)
		}
	}
}

func (p *PresenceTracker) reaperLoop() {
	ctx := context.Background()
	ticker := time.NewTicker(p.reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			if p.reaperEnabled.Load() {
				p.reapOnce(ctx)
			}
		}
	}
}

// finalizeOffline runs after the grace window. The shared connection count
// decides: zero sockets anywhere means the rider's Redis markers are cleared
// right away rather than waiting for TTL expiry and a reaper pass.
func (p *PresenceTracker) finalizeOffline(ctx context.Context, userID uint) {
	p.mu.Lock()
	if p.localConns[userID] > 0 {
		delete(p.offlineTimers, userID)
		p.mu.Unlock()
		return
	}
	delete(p.offlineTimers, userID)
	p.mu.Unlock()

	if p.rdb != nil {
		remaining, err := p.rdb.HGet(ctx, presenceConnCountKey, riderField(userID)).Int64()
		if err == nil && remaining > 0 {
			// Still connected through another instance.
			return
		}
		p.clearPresence(ctx, userID)
	}

	p.emitOffline(userID)
}

func (p *PresenceTracker) clearPresence(ctx context.Context, userID uint) {
	uid := riderField(userID)
	_ = p.rdb.Del(ctx, p.lastSeenKey(userID)).Err()
	_ = p.rdb.SRem(ctx, presenceOnlineSetKey, uid).Err()
	_ = p.rdb.HDel(ctx, presenceConnCountKey, uid).Err()
}

func (p *PresenceTracker) emitOnline(userID uint) {
	p.mu.Lock()
	p.offlineNotified[userID] = false
	cb := p.onOnline
	p.mu.Unlock()
	if cb != nil {
		cb(userID)
	}
}

func (p *PresenceTracker) emitOffline(userID uint) {
	p.mu.Lock()
	if p.offlineNotified[userID] {
		p.mu.Unlock()
		return
	}
	p.offlineNotified[userID] = true
	cb := p.onOffline
	p.mu.Unlock()
	if cb != nil {
		cb(userID)
	}
}

func (p *PresenceTracker) localRiderIDs() []uint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]uint, 0, len(p.localConns))
	for userID, count := range p.localConns {
		if count > 0 {
			ids = append(ids, userID)
		}
	}
	return ids
}

func (p *PresenceTracker) lastSeenKey(userID uint) string {
	return presenceLastSeenKeyNS + riderField(userID)
}

func riderField(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}
