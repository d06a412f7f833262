package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	mw "github.com/pulsewire/server/middleware"
	"github.com/pulsewire/server/social/reaction"
)

// ReactionsHandler handles reaction REST endpoints.
type ReactionsHandler struct {
	svc *reaction.Service
}

// NewReactionsHandler creates a new ReactionsHandler.
func NewReactionsHandler(svc *reaction.Service) *ReactionsHandler {
	return &ReactionsHandler{svc: svc}
}

// Set handles PUT /api/pulses/:id/reaction.
func (h *ReactionsHandler) Set(c *gin.Context) {
	userID := mw.GetAccountID(c)
	pulseID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var body struct {
		Type string `json:"type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.svc.SetReaction(c.Request.Context(), pulseID, userID, body.Type)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Summary handles GET /api/pulses/:id/reactions.
func (h *ReactionsHandler) Summary(c *gin.Context) {
	userID := mw.GetAccountID(c)
	pulseID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	counts, err := h.svc.ReactionSummary(c.Request.Context(), pulseID, userID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reactions": counts})
}

// Reactors handles GET /api/pulses/:id/reactions/:type.
func (h *ReactionsHandler) Reactors(c *gin.Context) {
	userID := mw.GetAccountID(c)
	pulseID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	reactors, err := h.svc.ReactorsOf(c.Request.Context(), pulseID, c.Param("type"), userID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reactors": reactors})
}
