package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	mw "github.com/pulsewire/server/middleware"
	"github.com/pulsewire/server/social/pulse"
)

// PulsesHandler handles pulse REST endpoints.
type PulsesHandler struct {
	svc *pulse.Service
}

// NewPulsesHandler creates a new PulsesHandler.
func NewPulsesHandler(svc *pulse.Service) *PulsesHandler {
	return &PulsesHandler{svc: svc}
}

type sendDirectBody struct {
	RecipientID int64  `json:"recipient_id" binding:"required"`
	Message     string `json:"message" binding:"required,max=280"`
}

// SendDirect handles POST /api/pulses/direct.
func (h *PulsesHandler) SendDirect(c *gin.Context) {
	userID := mw.GetAccountID(c)

	var body sendDirectBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.svc.SendDirect(c.Request.Context(), userID, body.RecipientID, body.Message)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

type sendCircleBody struct {
	CircleID int64  `json:"circle_id" binding:"required"`
	Message  string `json:"message" binding:"required,max=280"`
}

// SendToCircle handles POST /api/pulses/circle.
func (h *PulsesHandler) SendToCircle(c *gin.Context) {
	userID := mw.GetAccountID(c)

	var body sendCircleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.svc.SendToCircle(c.Request.Context(), userID, body.CircleID, body.Message)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// Inbox handles GET /api/pulses/inbox.
func (h *PulsesHandler) Inbox(c *gin.Context) {
	userID := mw.GetAccountID(c)

	entries, err := h.svc.Inbox(c.Request.Context(), userID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pulses": entries})
}

// Outbox handles GET /api/pulses/outbox.
func (h *PulsesHandler) Outbox(c *gin.Context) {
	userID := mw.GetAccountID(c)

	pulses, err := h.svc.Outbox(c.Request.Context(), userID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pulses": pulses})
}

// MarkSeen handles POST /api/pulses/:id/seen.
func (h *PulsesHandler) MarkSeen(c *gin.Context) {
	userID := mw.GetAccountID(c)
	pulseID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	seenAt, err := h.svc.MarkSeen(c.Request.Context(), pulseID, userID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"seen_at": seenAt})
}

// Recipients handles GET /api/pulses/:id/recipients.
func (h *PulsesHandler) Recipients(c *gin.Context) {
	userID := mw.GetAccountID(c)
	pulseID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	recipients, err := h.svc.RecipientsOf(c.Request.Context(), pulseID, userID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipients": recipients})
}
