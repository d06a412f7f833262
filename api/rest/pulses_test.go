package rest_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPulseFlow(t *testing.T) {
	e := newEnv(t)
	tokenA, _ := e.login(t, "sender")
	tokenB, idB := e.login(t, "receiver")
	e.befriend(t, tokenA, tokenB, idB)

	// Send a direct pulse.
	w := postJSON(e.r, "/api/pulses/direct",
		map[string]interface{}{"recipient_id": idB, "message": "ping"},
		"Authorization", "Bearer "+tokenA)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	pulseID := int64(p["id"].(float64))

	// It lands in the recipient's inbox, unseen.
	w = getReq(e.r, "/api/pulses/inbox", "Authorization", "Bearer "+tokenB)
	require.Equal(t, http.StatusOK, w.Code)
	var inbox struct {
		Pulses []struct {
			ID      int64  `json:"id"`
			Message string `json:"message"`
			Seen    bool   `json:"seen"`
		} `json:"pulses"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &inbox))
	require.Len(t, inbox.Pulses, 1)
	assert.Equal(t, pulseID, inbox.Pulses[0].ID)
	assert.False(t, inbox.Pulses[0].Seen)

	// Mark seen, twice; the second call is a no-op.
	w = postJSON(e.r, fmtPath("/api/pulses/%d/seen", pulseID), nil,
		"Authorization", "Bearer "+tokenB)
	require.Equal(t, http.StatusOK, w.Code)
	w = postJSON(e.r, fmtPath("/api/pulses/%d/seen", pulseID), nil,
		"Authorization", "Bearer "+tokenB)
	require.Equal(t, http.StatusOK, w.Code)

	// The sender sees the delivery record flip.
	w = getReq(e.r, fmtPath("/api/pulses/%d/recipients", pulseID),
		"Authorization", "Bearer "+tokenA)
	require.Equal(t, http.StatusOK, w.Code)
	var recs struct {
		Recipients []struct {
			RecipientID int64 `json:"recipient_id"`
			Seen        bool  `json:"seen"`
		} `json:"recipients"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recs))
	require.Len(t, recs.Recipients, 1)
	assert.True(t, recs.Recipients[0].Seen)

	// And it shows in the sender's outbox.
	w = getReq(e.r, "/api/pulses/outbox", "Authorization", "Bearer "+tokenA)
	require.Equal(t, http.StatusOK, w.Code)
	var outbox struct {
		Pulses []struct {
			ID int64 `json:"id"`
		} `json:"pulses"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &outbox))
	require.Len(t, outbox.Pulses, 1)
}

func TestSendDirect_NotFriends(t *testing.T) {
	e := newEnv(t)
	tokenA, _ := e.login(t, "loner")
	_, idB := e.login(t, "stranger")

	w := postJSON(e.r, "/api/pulses/direct",
		map[string]interface{}{"recipient_id": idB, "message": "hey"},
		"Authorization", "Bearer "+tokenA)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCirclePulseFlow(t *testing.T) {
	e := newEnv(t)
	tokenA, _ := e.login(t, "owner")
	tokenB, idB := e.login(t, "member1")
	tokenC, idC := e.login(t, "member2")
	e.befriend(t, tokenA, tokenB, idB)
	e.befriend(t, tokenA, tokenC, idC)

	w := postJSON(e.r, "/api/circles",
		map[string]interface{}{"name": "inner circle"},
		"Authorization", "Bearer "+tokenA)
	require.Equal(t, http.StatusCreated, w.Code)
	var c map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &c))
	circleID := int64(c["id"].(float64))

	for _, id := range []int64{idB, idC} {
		w = postJSON(e.r, fmtPath("/api/circles/%d/members", circleID),
			map[string]interface{}{"user_id": id},
			"Authorization", "Bearer "+tokenA)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w = postJSON(e.r, "/api/pulses/circle",
		map[string]interface{}{"circle_id": circleID, "message": "hello circle"},
		"Authorization", "Bearer "+tokenA)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Both members received it.
	for _, token := range []string{tokenB, tokenC} {
		w = getReq(e.r, "/api/pulses/inbox", "Authorization", "Bearer "+token)
		require.Equal(t, http.StatusOK, w.Code)
		var inbox struct {
			Pulses []struct {
				Message string `json:"message"`
			} `json:"pulses"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &inbox))
		require.Len(t, inbox.Pulses, 1)
		assert.Equal(t, "hello circle", inbox.Pulses[0].Message)
	}

	// Only the owner may broadcast.
	w = postJSON(e.r, "/api/pulses/circle",
		map[string]interface{}{"circle_id": circleID, "message": "hijack"},
		"Authorization", "Bearer "+tokenB)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestReactionFlow(t *testing.T) {
	e := newEnv(t)
	tokenA, _ := e.login(t, "poster")
	tokenB, idB := e.login(t, "reactor")
	e.befriend(t, tokenA, tokenB, idB)

	w := postJSON(e.r, "/api/pulses/direct",
		map[string]interface{}{"recipient_id": idB, "message": "react to me"},
		"Authorization", "Bearer "+tokenA)
	require.Equal(t, http.StatusCreated, w.Code)
	var p map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	pulseID := int64(p["id"].(float64))

	w = putJSON(e.r, fmtPath("/api/pulses/%d/reaction", pulseID),
		map[string]interface{}{"type": "heart"},
		"Authorization", "Bearer "+tokenB)
	require.Equal(t, http.StatusOK, w.Code)
	var res struct {
		Action string `json:"action"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "added", res.Action)

	w = getReq(e.r, fmtPath("/api/pulses/%d/reactions", pulseID),
		"Authorization", "Bearer "+tokenA)
	require.Equal(t, http.StatusOK, w.Code)
	var summary struct {
		Reactions []struct {
			Type  string `json:"type"`
			Count int64  `json:"count"`
		} `json:"reactions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	require.Len(t, summary.Reactions, 8)
	assert.Equal(t, "heart", summary.Reactions[0].Type)
	assert.Equal(t, int64(1), summary.Reactions[0].Count)

	w = getReq(e.r, fmtPath("/api/pulses/%d/reactions/heart", pulseID),
		"Authorization", "Bearer "+tokenA)
	require.Equal(t, http.StatusOK, w.Code)
	var reactors struct {
		Reactors []struct {
			UserID int64 `json:"user_id"`
		} `json:"reactors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reactors))
	require.Len(t, reactors.Reactors, 1)
	assert.Equal(t, idB, reactors.Reactors[0].UserID)

	// Invalid type is rejected up front.
	w = putJSON(e.r, fmtPath("/api/pulses/%d/reaction", pulseID),
		map[string]interface{}{"type": "dislike"},
		"Authorization", "Bearer "+tokenB)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
