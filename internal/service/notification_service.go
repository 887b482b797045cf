package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"peloton/internal/middleware"
	"peloton/internal/models"
	"peloton/internal/notifications"
	"peloton/internal/observability"
	"peloton/internal/push"
	"peloton/internal/repository"
)

const (
	fanoutQueueSize  = 256
	fanoutWorkers    = 4
	fanoutJobTimeout = 15 * time.Second
)

// SocketEmitter is the realtime surface the dispatcher fans out to: the local
// hub plus the Redis channel for other instances.
type SocketEmitter interface {
	BroadcastEvent(userID uint, event notifications.Event) bool
}

// EventPublisher publishes events to the cross-instance Redis channel.
type EventPublisher interface {
	PublishUserEvent(ctx context.Context, userID uint, event notifications.Event) error
}

// NotificationService persists notifications and fans them out to Web Push
// subscriptions and live sockets. The persist step is synchronous; delivery
// runs on a background worker pool so callers never wait on push endpoints.
type NotificationService struct {
	repo      repository.NotificationRepository
	pushRepo  repository.PushSubscriptionRepository
	sender    push.Sender
	hub       SocketEmitter
	publisher EventPublisher

	jobs chan fanoutJob
	wg   sync.WaitGroup
	once sync.Once
	done chan struct{}
}

type fanoutJob struct {
	notification models.Notification
}

// NewNotificationService returns a NotificationService. sender, hub and
// publisher may each be nil; the corresponding delivery stage is skipped.
func NewNotificationService(
	repo repository.NotificationRepository,
	pushRepo repository.PushSubscriptionRepository,
	sender push.Sender,
	hub SocketEmitter,
	publisher EventPublisher,
) *NotificationService {
	return &NotificationService{
		repo:      repo,
		pushRepo:  pushRepo,
		sender:    sender,
		hub:       hub,
		publisher: publisher,
		jobs:      make(chan fanoutJob, fanoutQueueSize),
		done:      make(chan struct{}),
	}
}

// Start launches the fan-out workers.
func (s *NotificationService) Start() {
	for i := 0; i < fanoutWorkers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
}

// Shutdown stops accepting new jobs and waits for in-flight deliveries, up to
// the context deadline.
func (s *NotificationService) Shutdown(ctx context.Context) error {
	s.once.Do(func() { close(s.done) })

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *NotificationService) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			// Drain what is already queued before exiting.
			for {
				select {
				case job := <-s.jobs:
					s.deliver(job)
				default:
					return
				}
			}
		case job := <-s.jobs:
			s.deliver(job)
		}
	}
}

// Dispatch persists the notification and queues delivery. Persist failures
// are logged and swallowed: a lost notification must never fail the action
// that produced it.
func (s *NotificationService) Dispatch(ctx context.Context, n models.Notification) {
	if !models.ValidNotificationType(n.Type) {
		middleware.Logger.Error("notification dispatch: unknown type",
			slog.String("type", string(n.Type)))
		return
	}

	ctx, span := observability.TraceFanout(ctx, "persist")
	defer span.End()

	if err := s.repo.Create(ctx, &n); err != nil {
		middleware.Logger.Error("notification dispatch: persist failed",
			slog.Uint64("recipient_id", uint64(n.RecipientID)),
			slog.String("type", string(n.Type)),
			slog.String("error", err.Error()))
		return
	}
	observability.NotificationsCreatedTotal.WithLabelValues(string(n.Type)).Inc()

	select {
	case s.jobs <- fanoutJob{notification: n}:
	default:
		middleware.Logger.Warn("notification dispatch: queue full, delivery skipped",
			slog.Uint64("notification_id", uint64(n.ID)))
	}
}

func (s *NotificationService) deliver(job fanoutJob) {
	ctx, cancel := context.WithTimeout(context.Background(), fanoutJobTimeout)
	defer cancel()

	start := time.Now()
	ctx, span := observability.TraceFanout(ctx, "deliver")
	defer span.End()

	s.deliverPush(ctx, job.notification)
	s.emitSocket(ctx, job.notification)

	observability.NotificationFanoutDuration.Observe(time.Since(start).Seconds())
}

func (s *NotificationService) deliverPush(ctx context.Context, n models.Notification) {
	if s.sender == nil {
		return
	}

	subs, err := s.pushRepo.GetForUser(ctx, n.RecipientID)
	if err != nil {
		middleware.Logger.Error("push delivery: list subscriptions failed",
			slog.Uint64("recipient_id", uint64(n.RecipientID)),
			slog.String("error", err.Error()))
		return
	}
	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(pushPayload{
		Type:      string(n.Type),
		Title:     n.Title,
		Body:      n.Message,
		ActionURL: n.ActionURL,
	})
	if err != nil {
		middleware.Logger.Error("push delivery: marshal failed", slog.String("error", err.Error()))
		return
	}

	for _, sub := range subs {
		err := s.sender.Send(ctx, sub, payload)
		switch {
		case err == nil:
			observability.PushDeliveriesTotal.WithLabelValues("delivered").Inc()
		case errors.Is(err, push.ErrSubscriptionGone):
			observability.PushDeliveriesTotal.WithLabelValues("pruned").Inc()
			if derr := s.pushRepo.DeleteByEndpoint(ctx, sub.Endpoint); derr != nil {
				middleware.Logger.Warn("push delivery: prune failed",
					slog.String("endpoint", sub.Endpoint), slog.String("error", derr.Error()))
			}
		default:
			observability.PushDeliveriesTotal.WithLabelValues("failed").Inc()
			middleware.Logger.Warn("push delivery failed",
				slog.Uint64("recipient_id", uint64(n.RecipientID)),
				slog.String("error", err.Error()))
		}
	}
}

type pushPayload struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	ActionURL string `json:"action_url,omitempty"`
}

func (s *NotificationService) emitSocket(ctx context.Context, n models.Notification) {
	event := notifications.Event{
		Type:    notifications.EventNewNotification,
		Payload: n,
	}

	delivered := false
	if s.hub != nil && s.hub.BroadcastEvent(n.RecipientID, event) {
		delivered = true
	}
	if s.publisher != nil {
		if err := s.publisher.PublishUserEvent(ctx, n.RecipientID, event); err != nil {
			observability.RealtimeEmitsTotal.WithLabelValues("dropped").Inc()
			middleware.Logger.Warn("realtime emit: publish failed",
				slog.Uint64("recipient_id", uint64(n.RecipientID)),
				slog.String("error", err.Error()))
			return
		}
		// Another instance may hold the socket; count the publish as delivery.
		delivered = true
	}

	if delivered {
		observability.RealtimeEmitsTotal.WithLabelValues("delivered").Inc()
	} else {
		observability.RealtimeEmitsTotal.WithLabelValues("offline").Inc()
	}
}

// List returns the recipient's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	return s.repo.ListForUser(ctx, userID, unreadOnly, limit, offset)
}

// UnreadCount returns the recipient's unread badge count.
func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}

// MarkRead marks one notification read. Returns NotFound when the
// notification does not exist or belongs to someone else; marking an
// already-read notification is a no-op.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID uint) error {
	changed, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return err
	}
	if !changed {
		// Distinguish "already read" from "not yours / missing".
		existing, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil || existing.RecipientID != userID {
			return models.NewNotFoundError("notification", id)
		}
	}
	return nil
}

// MarkAllRead marks every unread notification read and returns how many
// changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

// Delete removes one of the recipient's notifications.
func (s *NotificationService) Delete(ctx context.Context, id, userID uint) error {
	return s.repo.Delete(ctx, id, userID)
}

// Subscribe stores or refreshes a browser push subscription.
func (s *NotificationService) Subscribe(ctx context.Context, sub *models.PushSubscription) error {
	if sub.Endpoint == "" || sub.P256dh == "" || sub.Auth == "" {
		return models.NewValidationError("endpoint, p256dh and auth are required")
	}
	return s.pushRepo.Upsert(ctx, sub)
}

// Unsubscribe removes one of the user's push subscriptions by endpoint.
func (s *NotificationService) Unsubscribe(ctx context.Context, userID uint, endpoint string) error {
	if endpoint == "" {
		return models.NewValidationError("endpoint is required")
	}
	return s.pushRepo.DeleteForUser(ctx, userID, endpoint)
}

// Typed dispatch helpers. Each builds the denormalized record the feed and
// push payload share.

// FriendRequestReceived notifies the addressee of a new friend request.
func (s *NotificationService) FriendRequestReceived(ctx context.Context, request *models.FriendRequest) {
	actorID := request.RequesterID
	relatedID := request.ID
	s.Dispatch(ctx, models.Notification{
		RecipientID: request.AddresseeID,
		Type:        models.NotificationTypeFriendRequest,
		Title:       "New friend request",
		Message:     fmt.Sprintf("%s wants to ride with you", displayName(&request.Requester)),
		ActorID:     &actorID,
		RelatedID:   &relatedID,
		RelatedType: "friend_request",
		ActionURL:   "/friends/requests",
	})
}

// FriendRequestAccepted notifies the original requester their request was
// accepted.
func (s *NotificationService) FriendRequestAccepted(ctx context.Context, request *models.FriendRequest) {
	actorID := request.AddresseeID
	relatedID := request.ID
	s.Dispatch(ctx, models.Notification{
		RecipientID: request.RequesterID,
		Type:        models.NotificationTypeFriendAccepted,
		Title:       "Friend request accepted",
		Message:     fmt.Sprintf("%s accepted your friend request", displayName(&request.Addressee)),
		ActorID:     &actorID,
		RelatedID:   &relatedID,
		RelatedType: "friend_request",
		ActionURL:   fmt.Sprintf("/riders/%d", request.AddresseeID),
	})
}

// DirectMessage notifies the receiver of a new direct message.
func (s *NotificationService) DirectMessage(ctx context.Context, message *models.Message) {
	actorID := message.SenderID
	relatedID := message.ID
	s.Dispatch(ctx, models.Notification{
		RecipientID: message.ReceiverID,
		Type:        models.NotificationTypeMessage,
		Title:       "New message",
		Message:     fmt.Sprintf("%s sent you a message", displayName(message.Sender)),
		ActorID:     &actorID,
		RelatedID:   &relatedID,
		RelatedType: "message",
		ActionURL:   fmt.Sprintf("/messages/%d", message.SenderID),
	})
}

// GroupMessage notifies every group member except the sender.
func (s *NotificationService) GroupMessage(ctx context.Context, message *models.GroupMessage, groupName string, memberIDs []uint) {
	actorID := message.SenderID
	relatedID := message.GroupID
	for _, memberID := range memberIDs {
		if memberID == message.SenderID {
			continue
		}
		s.Dispatch(ctx, models.Notification{
			RecipientID: memberID,
			Type:        models.NotificationTypeGroupMessage,
			Title:       fmt.Sprintf("New message in %s", groupName),
			Message:     fmt.Sprintf("%s posted in %s", displayName(message.Sender), groupName),
			ActorID:     &actorID,
			RelatedID:   &relatedID,
			RelatedType: "group",
			ActionURL:   fmt.Sprintf("/groups/%d/chat", message.GroupID),
		})
	}
}

// NewPost notifies interested users (friends of the author, or group members)
// of a new post.
func (s *NotificationService) NewPost(ctx context.Context, post *models.Post, recipientIDs []uint) {
	actorID := post.UserID
	relatedID := post.ID
	for _, recipientID := range recipientIDs {
		if recipientID == post.UserID {
			continue
		}
		s.Dispatch(ctx, models.Notification{
			RecipientID: recipientID,
			Type:        models.NotificationTypePost,
			Title:       "New post",
			Message:     fmt.Sprintf("%s published a new post", displayName(&post.User)),
			ActorID:     &actorID,
			RelatedID:   &relatedID,
			RelatedType: "post",
			ActionURL:   fmt.Sprintf("/posts/%d", post.ID),
		})
	}
}

// NewReply notifies the post author of a reply. No-op when replying to your
// own post.
func (s *NotificationService) NewReply(ctx context.Context, reply *models.PostReply, postAuthorID uint) {
	if reply.UserID == postAuthorID {
		return
	}
	actorID := reply.UserID
	relatedID := reply.PostID
	s.Dispatch(ctx, models.Notification{
		RecipientID: postAuthorID,
		Type:        models.NotificationTypeReply,
		Title:       "New reply",
		Message:     fmt.Sprintf("%s replied to your post", displayName(reply.User)),
		ActorID:     &actorID,
		RelatedID:   &relatedID,
		RelatedType: "post",
		ActionURL:   fmt.Sprintf("/posts/%d", reply.PostID),
	})
}

func displayName(u *models.User) string {
	if u == nil || u.Username == "" {
		return "A rider"
	}
	return u.Username
}
