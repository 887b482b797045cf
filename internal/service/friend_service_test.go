package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peloton/internal/models"
)

type stubFriendRepo struct {
	CreateRequestFunc            func(ctx context.Context, req *models.FriendRequest) error
	GetRequestByIDFunc           func(ctx context.Context, id uint) (*models.FriendRequest, error)
	GetPendingRequestBetweenFunc func(ctx context.Context, userID1, userID2 uint) (*models.FriendRequest, error)
	GetPendingRequestsFunc       func(ctx context.Context, userID uint) ([]models.FriendRequest, error)
	GetSentRequestsFunc          func(ctx context.Context, userID uint) ([]models.FriendRequest, error)
	MarkRequestAcceptedFunc      func(ctx context.Context, requestID uint) (bool, error)
	MarkRequestRejectedFunc      func(ctx context.Context, requestID uint) (bool, error)
	CreateFriendshipPairFunc     func(ctx context.Context, userID1, userID2 uint) error
	AreFriendsFunc               func(ctx context.Context, userID1, userID2 uint) (bool, error)
	GetFriendsFunc               func(ctx context.Context, userID uint) ([]models.User, error)
	RemoveFriendshipFunc         func(ctx context.Context, userID1, userID2 uint) error
}

func (s *stubFriendRepo) CreateRequest(ctx context.Context, req *models.FriendRequest) error {
	return s.CreateRequestFunc(ctx, req)
}

func (s *stubFriendRepo) GetRequestByID(ctx context.Context, id uint) (*models.FriendRequest, error) {
	return s.GetRequestByIDFunc(ctx, id)
}

func (s *stubFriendRepo) GetPendingRequestBetween(ctx context.Context, userID1, userID2 uint) (*models.FriendRequest, error) {
	return s.GetPendingRequestBetweenFunc(ctx, userID1, userID2)
}

func (s *stubFriendRepo) GetPendingRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	return s.GetPendingRequestsFunc(ctx, userID)
}

func (s *stubFriendRepo) GetSentRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	return s.GetSentRequestsFunc(ctx, userID)
}

func (s *stubFriendRepo) MarkRequestAccepted(ctx context.Context, requestID uint) (bool, error) {
	return s.MarkRequestAcceptedFunc(ctx, requestID)
}

func (s *stubFriendRepo) MarkRequestRejected(ctx context.Context, requestID uint) (bool, error) {
	return s.MarkRequestRejectedFunc(ctx, requestID)
}

func (s *stubFriendRepo) CreateFriendshipPair(ctx context.Context, userID1, userID2 uint) error {
	return s.CreateFriendshipPairFunc(ctx, userID1, userID2)
}

func (s *stubFriendRepo) AreFriends(ctx context.Context, userID1, userID2 uint) (bool, error) {
	return s.AreFriendsFunc(ctx, userID1, userID2)
}

func (s *stubFriendRepo) GetFriends(ctx context.Context, userID uint) ([]models.User, error) {
	return s.GetFriendsFunc(ctx, userID)
}

func (s *stubFriendRepo) RemoveFriendship(ctx context.Context, userID1, userID2 uint) error {
	return s.RemoveFriendshipFunc(ctx, userID1, userID2)
}

func assertAppErrCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}

func TestSendRequestToSelf(t *testing.T) {
	svc := NewFriendService(&stubFriendRepo{}, &stubUserRepo{}, nil, nil)

	_, err := svc.SendRequest(context.Background(), 1, 1)
	assertAppErrCode(t, err, models.ErrCodeValidation)
}

func TestSendRequestAlreadyFriends(t *testing.T) {
	friendRepo := &stubFriendRepo{
		AreFriendsFunc: func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
	}
	userRepo := &stubUserRepo{
		GetByIDFunc: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id}, nil
		},
	}
	svc := NewFriendService(friendRepo, userRepo, nil, nil)

	_, err := svc.SendRequest(context.Background(), 1, 2)
	assertAppErrCode(t, err, models.ErrCodeConflict)
}

func TestSendRequestPendingEitherDirection(t *testing.T) {
	friendRepo := &stubFriendRepo{
		AreFriendsFunc: func(_ context.Context, _, _ uint) (bool, error) { return false, nil },
		GetPendingRequestBetweenFunc: func(_ context.Context, _, _ uint) (*models.FriendRequest, error) {
			// Reverse-direction pending request.
			return &models.FriendRequest{ID: 9, RequesterID: 2, AddresseeID: 1}, nil
		},
	}
	userRepo := &stubUserRepo{
		GetByIDFunc: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id}, nil
		},
	}
	svc := NewFriendService(friendRepo, userRepo, nil, nil)

	_, err := svc.SendRequest(context.Background(), 1, 2)
	assertAppErrCode(t, err, models.ErrCodeConflict)
}

func TestSendRequestToBannedUser(t *testing.T) {
	userRepo := &stubUserRepo{
		GetByIDFunc: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, IsBanned: true}, nil
		},
	}
	svc := NewFriendService(&stubFriendRepo{}, userRepo, nil, nil)

	_, err := svc.SendRequest(context.Background(), 1, 2)
	assertAppErrCode(t, err, models.ErrCodeNotFound)
}

func TestSendRequestSucceeds(t *testing.T) {
	friendRepo := &stubFriendRepo{
		AreFriendsFunc: func(_ context.Context, _, _ uint) (bool, error) { return false, nil },
		GetPendingRequestBetweenFunc: func(_ context.Context, _, _ uint) (*models.FriendRequest, error) {
			return nil, nil
		},
		CreateRequestFunc: func(_ context.Context, req *models.FriendRequest) error {
			req.ID = 33
			return nil
		},
		GetRequestByIDFunc: func(_ context.Context, id uint) (*models.FriendRequest, error) {
			return &models.FriendRequest{
				ID: id, RequesterID: 1, AddresseeID: 2,
				Status:    models.FriendRequestStatusPending,
				Requester: models.User{ID: 1, Username: "ada"},
				Addressee: models.User{ID: 2, Username: "bert"},
			}, nil
		},
	}
	userRepo := &stubUserRepo{
		GetByIDFunc: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id}, nil
		},
	}
	svc := NewFriendService(friendRepo, userRepo, nil, nil)

	req, err := svc.SendRequest(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint(33), req.ID)
	assert.Equal(t, models.FriendRequestStatusPending, req.Status)
}

func TestAcceptRequestOnlyAddressee(t *testing.T) {
	friendRepo := &stubFriendRepo{
		GetRequestByIDFunc: func(_ context.Context, id uint) (*models.FriendRequest, error) {
			return &models.FriendRequest{ID: id, RequesterID: 1, AddresseeID: 2}, nil
		},
	}
	svc := NewFriendService(friendRepo, &stubUserRepo{}, nil, nil)

	_, err := svc.AcceptRequest(context.Background(), 5, 1)
	assertAppErrCode(t, err, models.ErrCodeUnauthorized)
}

func TestAcceptRequestCreatesPair(t *testing.T) {
	var pairCreated bool
	friendRepo := &stubFriendRepo{
		GetRequestByIDFunc: func(_ context.Context, id uint) (*models.FriendRequest, error) {
			return &models.FriendRequest{
				ID: id, RequesterID: 1, AddresseeID: 2,
				Status: models.FriendRequestStatusPending,
			}, nil
		},
		MarkRequestAcceptedFunc: func(_ context.Context, _ uint) (bool, error) { return true, nil },
		CreateFriendshipPairFunc: func(_ context.Context, a, b uint) error {
			pairCreated = true
			assert.Equal(t, uint(1), a)
			assert.Equal(t, uint(2), b)
			return nil
		},
	}
	svc := NewFriendService(friendRepo, &stubUserRepo{}, nil, nil)

	req, err := svc.AcceptRequest(context.Background(), 5, 2)
	require.NoError(t, err)
	assert.True(t, pairCreated)
	assert.Equal(t, models.FriendRequestStatusAccepted, req.Status)
}

func TestAcceptRequestReplayConflicts(t *testing.T) {
	friendRepo := &stubFriendRepo{
		GetRequestByIDFunc: func(_ context.Context, id uint) (*models.FriendRequest, error) {
			return &models.FriendRequest{
				ID: id, RequesterID: 1, AddresseeID: 2,
				Status: models.FriendRequestStatusAccepted,
			}, nil
		},
		MarkRequestAcceptedFunc: func(_ context.Context, _ uint) (bool, error) { return false, nil },
	}
	svc := NewFriendService(friendRepo, &stubUserRepo{}, nil, nil)

	_, err := svc.AcceptRequest(context.Background(), 5, 2)
	assertAppErrCode(t, err, models.ErrCodeConflict)
}

func TestRejectRequestMissing(t *testing.T) {
	friendRepo := &stubFriendRepo{
		GetRequestByIDFunc: func(_ context.Context, _ uint) (*models.FriendRequest, error) {
			return nil, nil
		},
	}
	svc := NewFriendService(friendRepo, &stubUserRepo{}, nil, nil)

	err := svc.RejectRequest(context.Background(), 5, 2)
	assertAppErrCode(t, err, models.ErrCodeNotFound)
}

func TestUnfriendSelf(t *testing.T) {
	svc := NewFriendService(&stubFriendRepo{}, &stubUserRepo{}, nil, nil)

	err := svc.Unfriend(context.Background(), 3, 3)
	assertAppErrCode(t, err, models.ErrCodeValidation)
}

func TestUnfriendDelegates(t *testing.T) {
	var removed bool
	friendRepo := &stubFriendRepo{
		RemoveFriendshipFunc: func(_ context.Context, a, b uint) error {
			removed = true
			assert.Equal(t, uint(3), a)
			assert.Equal(t, uint(4), b)
			return nil
		},
	}
	svc := NewFriendService(friendRepo, &stubUserRepo{}, nil, nil)

	require.NoError(t, svc.Unfriend(context.Background(), 3, 4))
	assert.True(t, removed)
}
