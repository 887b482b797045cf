package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"peloton/internal/config"
	"peloton/internal/models"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestSubscription generates a subscription with real ECDH keys pointed at
// the given endpoint, so payload encryption succeeds.
func newTestSubscription(t *testing.T, endpoint string) models.PushSubscription {
	t.Helper()

	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)

	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	return models.PushSubscription{
		UserID:   1,
		Endpoint: endpoint,
		P256dh:   base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		Auth:     base64.RawURLEncoding.EncodeToString(auth),
	}
}

func newTestSender(t *testing.T) *WebPushSender {
	t.Helper()

	private, public, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)

	return NewWebPushSender(&config.Config{
		VAPIDSubscriber: "mailto:ops@peloton.test",
		VAPIDPublicKey:  public,
		VAPIDPrivateKey: private,
		PushTTLSeconds:  86400,
	})
}

func TestWebPushSender_Send(t *testing.T) {
	sender := newTestSender(t)

	t.Run("created response is success", func(t *testing.T) {
		var gotTTL string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotTTL = r.Header.Get("TTL")
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()

		sub := newTestSubscription(t, srv.URL)
		err := sender.Send(context.Background(), sub, []byte(`{"title":"hi"}`))
		require.NoError(t, err)
		assert.Equal(t, "86400", gotTTL)
	})

	t.Run("gone endpoint maps to ErrSubscriptionGone", func(t *testing.T) {
		for _, status := range []int{http.StatusNotFound, http.StatusGone} {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))
			sub := newTestSubscription(t, srv.URL)

			err := sender.Send(context.Background(), sub, []byte(`{}`))
			assert.True(t, errors.Is(err, ErrSubscriptionGone), "status %d should map to ErrSubscriptionGone", status)
			srv.Close()
		}
	})

	t.Run("other failures are plain errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		sub := newTestSubscription(t, srv.URL)
		err := sender.Send(context.Background(), sub, []byte(`{}`))
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrSubscriptionGone))
	})
}
