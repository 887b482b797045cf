// Package push delivers Web Push notifications to browser subscriptions.
package push

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"peloton/internal/config"
	"peloton/internal/models"

	"github.com/SherClockHolmes/webpush-go"
)

// ErrSubscriptionGone signals that the push service no longer knows the
// endpoint; the caller must prune the subscription.
var ErrSubscriptionGone = errors.New("push subscription gone")

// Sender delivers a payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub models.PushSubscription, payload []byte) error
}

// WebPushSender sends notifications through the Web Push protocol with VAPID
// authentication.
type WebPushSender struct {
	subscriber string
	publicKey  string
	privateKey string
	ttl        int
}

// NewWebPushSender builds a sender from the VAPID configuration.
func NewWebPushSender(cfg *config.Config) *WebPushSender {
	return &WebPushSender{
		subscriber: cfg.VAPIDSubscriber,
		publicKey:  cfg.VAPIDPublicKey,
		privateKey: cfg.VAPIDPrivateKey,
		ttl:        cfg.PushTTLSeconds,
	}
}

// Send pushes the payload to the subscription endpoint. A 404 or 410 from the
// push service maps to ErrSubscriptionGone; other non-2xx statuses are plain
// errors.
func (s *WebPushSender) Send(ctx context.Context, sub models.PushSubscription, payload []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             s.ttl,
	})
	if err != nil {
		return fmt.Errorf("webpush send: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrSubscriptionGone
	case resp.StatusCode >= 400:
		return fmt.Errorf("webpush send: push service returned %d", resp.StatusCode)
	}
	return nil
}
