package server

import (
	"fmt"
	"net/http"
	"testing"

	"peloton/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage_FriendsOnly(t *testing.T) {
	ts := newTestServer(t)
	_, aliceToken := ts.createUser(t)
	bob, _ := ts.createUser(t)

	resp := ts.request(t, http.MethodPost,
		fmt.Sprintf("/api/messages/%d", bob.ID), aliceToken,
		fiber.Map{"content": "hey, ride this weekend?"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestMessageFlow_SendReadUnread(t *testing.T) {
	ts := newTestServer(t)
	alice, aliceToken := ts.createUser(t)
	bob, bobToken := ts.createUser(t)
	ts.befriend(t, alice, aliceToken, bob, bobToken)

	resp := ts.request(t, http.MethodPost,
		fmt.Sprintf("/api/messages/%d", bob.ID), aliceToken,
		fiber.Map{"content": "up for the gravel loop saturday?"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var msg models.Message
	decodeData(t, resp, &msg)
	assert.Equal(t, alice.ID, msg.SenderID)
	assert.Equal(t, bob.ID, msg.ReceiverID)
	assert.False(t, msg.IsRead)

	resp = ts.request(t, http.MethodGet, "/api/messages/unread-count", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var count struct {
		Count int64 `json:"unread_count"`
	}
	decodeData(t, resp, &count)
	assert.Equal(t, int64(1), count.Count)

	resp = ts.request(t, http.MethodGet,
		fmt.Sprintf("/api/messages/%d", alice.ID), bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history []models.Message
	decodeData(t, resp, &history)
	require.Len(t, history, 1)
	assert.Equal(t, msg.ID, history[0].ID)

	resp = ts.request(t, http.MethodPost,
		fmt.Sprintf("/api/messages/%d/read", alice.ID), bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var marked struct {
		MarkedRead int64 `json:"marked_read"`
	}
	decodeData(t, resp, &marked)
	assert.Equal(t, int64(1), marked.MarkedRead)

	// Replaying the mark is a no-op.
	resp = ts.request(t, http.MethodPost,
		fmt.Sprintf("/api/messages/%d/read", alice.ID), bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, resp, &marked)
	assert.Equal(t, int64(0), marked.MarkedRead)

	resp = ts.request(t, http.MethodGet, "/api/messages/unread-count", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, resp, &count)
	assert.Equal(t, int64(0), count.Count)
}

func TestGetConversationPartners(t *testing.T) {
	ts := newTestServer(t)
	alice, aliceToken := ts.createUser(t)
	bob, bobToken := ts.createUser(t)
	ts.befriend(t, alice, aliceToken, bob, bobToken)

	resp := ts.request(t, http.MethodPost,
		fmt.Sprintf("/api/messages/%d", bob.ID), aliceToken,
		fiber.Map{"content": "first"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = ts.request(t, http.MethodGet, "/api/messages/", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var partners []models.User
	decodeData(t, resp, &partners)
	require.Len(t, partners, 1)
	assert.Equal(t, alice.ID, partners[0].ID)
}

func TestSendMessage_EmptyContentRejected(t *testing.T) {
	ts := newTestServer(t)
	alice, aliceToken := ts.createUser(t)
	bob, bobToken := ts.createUser(t)
	ts.befriend(t, alice, aliceToken, bob, bobToken)

	resp := ts.request(t, http.MethodPost,
		fmt.Sprintf("/api/messages/%d", bob.ID), aliceToken,
		fiber.Map{"content": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGroupMessageFlow(t *testing.T) {
	ts := newTestServer(t)
	_, ownerToken := ts.createUser(t)
	_, memberToken := ts.createUser(t)

	resp := ts.request(t, http.MethodPost, "/api/groups/", ownerToken,
		fiber.Map{"name": "Sunday Climbers", "type": "general"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var group models.Group
	decodeData(t, resp, &group)

	resp = ts.request(t, http.MethodPost,
		fmt.Sprintf("/api/groups/%d/join", group.ID), memberToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.request(t, http.MethodPost,
		fmt.Sprintf("/api/groups/%d/messages", group.ID), ownerToken,
		fiber.Map{"content": "rollout at 8am sharp"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var msg models.GroupMessage
	decodeData(t, resp, &msg)

	// The member has one unread message; the sender has none.
	resp = ts.request(t, http.MethodGet,
		fmt.Sprintf("/api/groups/%d/unread-count", group.ID), memberToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var count struct {
		Count int64 `json:"unread_count"`
	}
	decodeData(t, resp, &count)
	assert.Equal(t, int64(1), count.Count)

	resp = ts.request(t, http.MethodGet,
		fmt.Sprintf("/api/groups/%d/unread-count", group.ID), ownerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, resp, &count)
	assert.Equal(t, int64(0), count.Count)

	resp = ts.request(t, http.MethodPost,
		fmt.Sprintf("/api/groups/%d/messages/%d/read", group.ID, msg.ID), memberToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.request(t, http.MethodGet,
		fmt.Sprintf("/api/groups/%d/unread-count", group.ID), memberToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, resp, &count)
	assert.Equal(t, int64(0), count.Count)
}

func TestGroupMessages_NonMemberRejected(t *testing.T) {
	ts := newTestServer(t)
	_, ownerToken := ts.createUser(t)
	_, outsiderToken := ts.createUser(t)

	resp := ts.request(t, http.MethodPost, "/api/groups/", ownerToken,
		fiber.Map{"name": "Members Only Ride", "type": "general"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var group models.Group
	decodeData(t, resp, &group)

	resp = ts.request(t, http.MethodPost,
		fmt.Sprintf("/api/groups/%d/messages", group.ID), outsiderToken,
		fiber.Map{"content": "can I come?"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ts.request(t, http.MethodGet,
		fmt.Sprintf("/api/groups/%d/messages", group.ID), outsiderToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestMarkGroupMessageRead_GuardsGroupAndMessage(t *testing.T) {
	ts := newTestServer(t)
	_, ownerToken := ts.createUser(t)
	_, outsiderToken := ts.createUser(t)

	resp := ts.request(t, http.MethodPost, "/api/groups/", ownerToken,
		fiber.Map{"name": "Receipt Guard Ride", "type": "general"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var group models.Group
	decodeData(t, resp, &group)

	resp = ts.request(t, http.MethodPost,
		fmt.Sprintf("/api/groups/%d/messages", group.ID), ownerToken,
		fiber.Map{"content": "rolling out at 6"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var msg models.GroupMessage
	decodeData(t, resp, &msg)

	// Non-members cannot write receipts into the group.
	resp = ts.request(t, http.MethodPost,
		fmt.Sprintf("/api/groups/%d/messages/%d/read", group.ID, msg.ID), outsiderToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// A receipt for a message that does not exist is a 404, not a 500.
	resp = ts.request(t, http.MethodPost,
		fmt.Sprintf("/api/groups/%d/messages/%d/read", group.ID, msg.ID+1000), ownerToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// A member of one group cannot mark another group's message through it.
	resp = ts.request(t, http.MethodPost, "/api/groups/", outsiderToken,
		fiber.Map{"name": "Other Crew", "type": "general"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var other models.Group
	decodeData(t, resp, &other)

	resp = ts.request(t, http.MethodPost,
		fmt.Sprintf("/api/groups/%d/messages/%d/read", other.ID, msg.ID), outsiderToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.request(t, http.MethodPost,
		fmt.Sprintf("/api/groups/%d/messages/%d/read", group.ID, msg.ID), ownerToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
