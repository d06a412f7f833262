package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	mw "github.com/pulsewire/server/middleware"
	"github.com/pulsewire/server/social/circle"
)

// CirclesHandler handles circle REST endpoints.
type CirclesHandler struct {
	svc *circle.Service
}

// NewCirclesHandler creates a new CirclesHandler.
func NewCirclesHandler(svc *circle.Service) *CirclesHandler {
	return &CirclesHandler{svc: svc}
}

type createCircleBody struct {
	Name     string `json:"name" binding:"required,min=1,max=64"`
	IsPublic bool   `json:"is_public"`
}

// Create handles POST /api/circles.
func (h *CirclesHandler) Create(c *gin.Context) {
	userID := mw.GetAccountID(c)

	var body createCircleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.svc.Create(c.Request.Context(), userID, body.Name, body.IsPublic)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// List handles GET /api/circles.
func (h *CirclesHandler) List(c *gin.Context) {
	userID := mw.GetAccountID(c)

	circles, err := h.svc.List(c.Request.Context(), userID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"circles": circles})
}

// Detail handles GET /api/circles/:id.
func (h *CirclesHandler) Detail(c *gin.Context) {
	userID := mw.GetAccountID(c)
	circleID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	info, members, err := h.svc.Detail(c.Request.Context(), circleID, userID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"circle": info, "members": members})
}

// AddMember handles POST /api/circles/:id/members.
func (h *CirclesHandler) AddMember(c *gin.Context) {
	userID := mw.GetAccountID(c)
	circleID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var body struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.AddMember(c.Request.Context(), circleID, userID, body.UserID); err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "member added"})
}

// RemoveMember handles DELETE /api/circles/:id/members/:uid.
func (h *CirclesHandler) RemoveMember(c *gin.Context) {
	userID := mw.GetAccountID(c)
	circleID, err1 := strconv.ParseInt(c.Param("id"), 10, 64)
	memberID, err2 := strconv.ParseInt(c.Param("uid"), 10, 64)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.svc.RemoveMember(c.Request.Context(), circleID, userID, memberID); err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "member removed"})
}

// Delete handles DELETE /api/circles/:id.
func (h *CirclesHandler) Delete(c *gin.Context) {
	userID := mw.GetAccountID(c)
	circleID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.svc.Delete(c.Request.Context(), circleID, userID); err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
