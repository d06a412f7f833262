package rest

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pulsewire/server/cache"
	mw "github.com/pulsewire/server/middleware"
	"github.com/pulsewire/server/model"
	"github.com/pulsewire/server/social/pulse"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const engagementZKey = "engagement:rate"

// StatsHandler serves engagement statistics. The leaderboard lives in a
// cache sorted set refreshed by a scheduler task, not recomputed per read.
type StatsHandler struct {
	db     *gorm.DB
	svc    *pulse.Service
	cache  cache.Cache
	logger *zap.Logger
	top    int
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(db *gorm.DB, svc *pulse.Service, c cache.Cache, top int, logger *zap.Logger) *StatsHandler {
	if top <= 0 {
		top = 100
	}
	return &StatsHandler{db: db, svc: svc, cache: c, logger: logger, top: top}
}

// Engagement handles GET /api/stats/engagement.
func (h *StatsHandler) Engagement(c *gin.Context) {
	userID := mw.GetAccountID(c)

	rate, err := h.svc.EngagementRate(c.Request.Context(), userID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"engagement_rate": rate})
}

// LeaderboardEntry is one row of the engagement leaderboard.
type LeaderboardEntry struct {
	Rank   int     `json:"rank"`
	UserID int64   `json:"user_id"`
	Rate   float64 `json:"rate"`
}

// Leaderboard handles GET /api/stats/leaderboard?limit=20.
func (h *StatsHandler) Leaderboard(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= h.top {
			limit = n
		}
	}

	members, err := h.cache.ZRevRange(c.Request.Context(), engagementZKey, 0, int64(limit-1))
	if err != nil {
		h.logger.Error("leaderboard read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	entries := make([]LeaderboardEntry, 0, len(members))
	for i, m := range members {
		uid, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		score, _ := h.cache.ZScore(c.Request.Context(), engagementZKey, m)
		entries = append(entries, LeaderboardEntry{Rank: i + 1, UserID: uid, Rate: score})
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

// RefreshLeaderboard recomputes every active sender's engagement rate into
// the cache sorted set. Wired as a scheduler ticker task.
func (h *StatsHandler) RefreshLeaderboard(ctx context.Context) error {
	var senderIDs []int64
	if err := h.db.WithContext(ctx).Model(&model.Pulse{}).
		Distinct("sender_id").Pluck("sender_id", &senderIDs).Error; err != nil {
		return err
	}

	for _, uid := range senderIDs {
		rate, err := h.svc.EngagementRate(ctx, uid)
		if err != nil {
			return err
		}
		if err := h.cache.ZAdd(ctx, engagementZKey, rate, strconv.FormatInt(uid, 10)); err != nil {
			return err
		}
	}
	h.logger.Debug("engagement leaderboard refreshed", zap.Int("users", len(senderIDs)))
	return nil
}
