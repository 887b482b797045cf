package notifications

import (
	"context"
	"log"
	"runtime/debug"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	userChannelPrefix = "events:user:"
	broadcastChannel  = "events:broadcast"
)

// Notifier publishes realtime events into Redis channels so every instance's
// hub can deliver them to its local sockets. All methods are no-ops without
// Redis.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishUser sends an event payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload []byte) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishUserEvent marshals and publishes an event to a user's channel.
func (n *Notifier) PublishUserEvent(ctx context.Context, userID uint, event Event) error {
	return n.PublishUser(ctx, userID, event.Encode())
}

// PublishBroadcast sends an event payload to all connected users.
func (n *Notifier) PublishBroadcast(ctx context.Context, payload []byte) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, broadcastChannel, payload).Err()
}

// StartPatternSubscriber subscribes to the event channel pattern and calls
// onMessage for each incoming message. onMessage receives channel and payload.
func (n *Notifier) StartPatternSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPrefix+"*", broadcastChannel)
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in PatternSubscriber: %v\n%s", r, debug.Stack())
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}
