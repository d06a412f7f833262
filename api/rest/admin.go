package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pulsewire/server/model"
	"github.com/pulsewire/server/scheduler"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	db     *gorm.DB
	sched  *scheduler.Scheduler
	logger *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(db *gorm.DB, sched *scheduler.Scheduler, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{db: db, sched: sched, logger: logger}
}

// AdminAuth requires the X-Admin-Key header to match the configured key.
// An empty key disables the admin endpoints entirely.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" || c.GetHeader("X-Admin-Key") != adminKey {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// Metrics returns table counts and scheduler state.
// GET /api/admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	var accounts, edges, pulses, reactions int64
	h.db.Model(&model.Account{}).Count(&accounts)
	h.db.Model(&model.FriendshipEdge{}).Count(&edges)
	h.db.Model(&model.Pulse{}).Count(&pulses)
	h.db.Model(&model.PulseReaction{}).Count(&reactions)

	c.JSON(http.StatusOK, gin.H{
		"accounts":         accounts,
		"friendship_edges": edges,
		"pulses":           pulses,
		"reactions":        reactions,
		"scheduler_tasks":  h.sched.ListTickers(),
	})
}

// BanAccount handles POST /api/admin/accounts/:id/ban.
func (h *AdminHandler) BanAccount(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	res := h.db.Model(&model.Account{}).Where("id = ?", accountID).Update("status", 0)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	h.logger.Info("account banned", zap.Int64("account_id", accountID))
	c.JSON(http.StatusOK, gin.H{"message": "banned"})
}

// ListSchedulerTasks handles GET /api/admin/scheduler.
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.ListTickers()})
}
