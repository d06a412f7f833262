package rest

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pulsewire/server/cache"
	mw "github.com/pulsewire/server/middleware"
	"github.com/pulsewire/server/social/friendship"
)

const onlineSetKey = "online"

// FriendsHandler handles the friendship graph REST endpoints.
type FriendsHandler struct {
	svc   *friendship.Service
	cache cache.Cache
}

// NewFriendsHandler creates a new FriendsHandler.
func NewFriendsHandler(svc *friendship.Service, c cache.Cache) *FriendsHandler {
	return &FriendsHandler{svc: svc, cache: c}
}

// List handles GET /api/friends.
func (h *FriendsHandler) List(c *gin.Context) {
	userID := mw.GetAccountID(c)

	friends, err := h.svc.ListActiveFriends(c.Request.Context(), userID)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	type friendInfo struct {
		friendship.Friend
		Online bool `json:"online"`
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	result := make([]friendInfo, len(friends))
	for i, f := range friends {
		online, _ := h.cache.SIsMember(ctx, onlineSetKey, strconv.FormatInt(f.FriendID, 10))
		result[i] = friendInfo{Friend: f, Online: online}
	}
	c.JSON(http.StatusOK, gin.H{"friends": result})
}

type sendRequestBody struct {
	ReceiverID int64  `json:"receiver_id" binding:"required"`
	Message    string `json:"message" binding:"max=280"`
}

// SendRequest handles POST /api/friends/requests.
func (h *FriendsHandler) SendRequest(c *gin.Context) {
	userID := mw.GetAccountID(c)

	var body sendRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := h.svc.SendRequest(c.Request.Context(), userID, body.ReceiverID, body.Message)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

// ListRequests handles GET /api/friends/requests.
func (h *FriendsHandler) ListRequests(c *gin.Context) {
	userID := mw.GetAccountID(c)

	incoming, outgoing, err := h.svc.PendingRequests(c.Request.Context(), userID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"incoming": incoming, "outgoing": outgoing})
}

// Accept handles POST /api/friends/requests/:id/accept.
func (h *FriendsHandler) Accept(c *gin.Context) {
	h.respond(c, friendship.DecisionAccept)
}

// Reject handles POST /api/friends/requests/:id/reject.
func (h *FriendsHandler) Reject(c *gin.Context) {
	h.respond(c, friendship.DecisionReject)
}

func (h *FriendsHandler) respond(c *gin.Context, decision friendship.Decision) {
	userID := mw.GetAccountID(c)
	requestID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	req, err := h.svc.RespondToRequest(c.Request.Context(), requestID, userID, decision)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// Cancel handles POST /api/friends/requests/:id/cancel.
func (h *FriendsHandler) Cancel(c *gin.Context) {
	userID := mw.GetAccountID(c)
	requestID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	req, err := h.svc.CancelRequest(c.Request.Context(), requestID, userID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// ToggleBlock handles POST /api/friends/:id/block.
func (h *FriendsHandler) ToggleBlock(c *gin.Context) {
	userID := mw.GetAccountID(c)
	friendID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	edge, err := h.svc.ToggleBlock(c.Request.Context(), userID, friendID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_blocked": edge.IsBlocked, "blocked_at": edge.BlockedAt})
}

// Unfriend handles DELETE /api/friends/:id.
func (h *FriendsHandler) Unfriend(c *gin.Context) {
	userID := mw.GetAccountID(c)
	friendID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.svc.Unfriend(c.Request.Context(), userID, friendID); err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "unfriended"})
}

// SetFavorite handles PUT /api/friends/:id/favorite.
func (h *FriendsHandler) SetFavorite(c *gin.Context) {
	userID := mw.GetAccountID(c)
	friendID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var body struct {
		Favorite bool `json:"favorite"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.SetFavorite(c.Request.Context(), userID, friendID, body.Favorite); err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorite": body.Favorite})
}

// SetNickname handles PUT /api/friends/:id/nickname.
func (h *FriendsHandler) SetNickname(c *gin.Context) {
	userID := mw.GetAccountID(c)
	friendID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var body struct {
		Nickname string `json:"nickname" binding:"max=64"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.SetNickname(c.Request.Context(), userID, friendID, body.Nickname); err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nickname": body.Nickname})
}
