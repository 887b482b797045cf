package service

import (
	"context"

	"peloton/internal/models"
	"peloton/internal/repository"
)

// FriendService owns the friend-request lifecycle and the friendship graph.
type FriendService struct {
	friendRepo    repository.FriendRepository
	userRepo      repository.UserRepository
	notifications *NotificationService
	activity      *ActivityTracker
}

// NewFriendService returns a new FriendService. notifications and activity
// may be nil in tests.
func NewFriendService(
	friendRepo repository.FriendRepository,
	userRepo repository.UserRepository,
	notifications *NotificationService,
	activity *ActivityTracker,
) *FriendService {
	return &FriendService{
		friendRepo:    friendRepo,
		userRepo:      userRepo,
		notifications: notifications,
		activity:      activity,
	}
}

// SendRequest creates a pending friend request from requester to addressee.
// Rejected when the two are the same user, already friends, or a pending
// request already exists in either direction.
func (s *FriendService) SendRequest(ctx context.Context, requesterID, addresseeID uint) (*models.FriendRequest, error) {
	if requesterID == addresseeID {
		return nil, models.NewValidationError("cannot send a friend request to yourself")
	}

	addressee, err := s.userRepo.GetByID(ctx, addresseeID)
	if err != nil {
		return nil, err
	}
	if addressee.IsBanned {
		return nil, models.NewNotFoundError("user", addresseeID)
	}

	friends, err := s.friendRepo.AreFriends(ctx, requesterID, addresseeID)
	if err != nil {
		return nil, err
	}
	if friends {
		return nil, models.NewConflictError("you are already friends")
	}

	pending, err := s.friendRepo.GetPendingRequestBetween(ctx, requesterID, addresseeID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, models.NewConflictError("a friend request is already pending")
	}

	req := &models.FriendRequest{
		RequesterID: requesterID,
		AddresseeID: addresseeID,
		Status:      models.FriendRequestStatusPending,
	}
	if err := s.friendRepo.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	loaded, err := s.friendRepo.GetRequestByID(ctx, req.ID)
	if err == nil && loaded != nil {
		req = loaded
	}

	if s.notifications != nil {
		s.notifications.FriendRequestReceived(ctx, req)
	}
	return req, nil
}

// AcceptRequest transitions a pending request to accepted and creates the
// friendship pair. Only the addressee may accept; replays are no-ops at the
// storage layer but surface as conflicts here.
func (s *FriendService) AcceptRequest(ctx context.Context, requestID, userID uint) (*models.FriendRequest, error) {
	req, err := s.friendRepo.GetRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, models.NewNotFoundError("friend request", requestID)
	}
	if req.AddresseeID != userID {
		return nil, models.NewUnauthorizedError("only the addressee can accept a friend request")
	}

	changed, err := s.friendRepo.MarkRequestAccepted(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, models.NewConflictError("friend request is no longer pending")
	}

	if err := s.friendRepo.CreateFriendshipPair(ctx, req.RequesterID, req.AddresseeID); err != nil {
		return nil, err
	}
	req.Status = models.FriendRequestStatusAccepted

	if s.activity != nil {
		s.activity.Record(ctx, req.RequesterID, ActivityFriendAccepted)
		s.activity.Record(ctx, req.AddresseeID, ActivityFriendAccepted)
	}
	if s.notifications != nil {
		s.notifications.FriendRequestAccepted(ctx, req)
	}
	return req, nil
}

// RejectRequest transitions a pending request to rejected. Only the addressee
// may reject. No notification is sent.
func (s *FriendService) RejectRequest(ctx context.Context, requestID, userID uint) error {
	req, err := s.friendRepo.GetRequestByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return models.NewNotFoundError("friend request", requestID)
	}
	if req.AddresseeID != userID {
		return models.NewUnauthorizedError("only the addressee can reject a friend request")
	}

	changed, err := s.friendRepo.MarkRequestRejected(ctx, requestID)
	if err != nil {
		return err
	}
	if !changed {
		return models.NewConflictError("friend request is no longer pending")
	}
	return nil
}

// PendingRequests lists requests awaiting the user's decision.
func (s *FriendService) PendingRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	return s.friendRepo.GetPendingRequests(ctx, userID)
}

// SentRequests lists the user's outgoing pending requests.
func (s *FriendService) SentRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	return s.friendRepo.GetSentRequests(ctx, userID)
}

// Friends lists the user's friends ordered by interaction score.
func (s *FriendService) Friends(ctx context.Context, userID uint) ([]models.User, error) {
	return s.friendRepo.GetFriends(ctx, userID)
}

// AreFriends reports whether two users are friends.
func (s *FriendService) AreFriends(ctx context.Context, userID1, userID2 uint) (bool, error) {
	return s.friendRepo.AreFriends(ctx, userID1, userID2)
}

// Unfriend removes the friendship in both directions. Removing a
// non-friendship is a no-op.
func (s *FriendService) Unfriend(ctx context.Context, userID, friendID uint) error {
	if userID == friendID {
		return models.NewValidationError("cannot unfriend yourself")
	}
	return s.friendRepo.RemoveFriendship(ctx, userID, friendID)
}
