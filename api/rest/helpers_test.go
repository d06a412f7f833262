package rest_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pulsewire/server/api/rest"
	"github.com/pulsewire/server/cache"
	"github.com/pulsewire/server/config"
	mw "github.com/pulsewire/server/middleware"
	"github.com/pulsewire/server/notify"
	"github.com/pulsewire/server/scheduler"
	"github.com/pulsewire/server/social/circle"
	"github.com/pulsewire/server/social/friendship"
	"github.com/pulsewire/server/social/pulse"
	"github.com/pulsewire/server/social/reaction"
	"github.com/pulsewire/server/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testAdminKey = "admin-test-key"

type env struct {
	r     *gin.Engine
	db    *gorm.DB
	cache cache.Cache
	auth  *rest.AuthHandler
	stats *rest.StatsHandler
}

// newEnv wires the full REST surface against an in-memory DB and cache.
func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, _ := testutil.SetupTestCache(t)
	logger := zap.NewNop()
	sec := config.SecurityConfig{JWTSecret: "test-secret", JWTTTLH: 72 * time.Hour}
	pcfg := config.PulseConfig{MaxMessageLen: 280, MaxCircleMembers: 64, LeaderboardSize: 100}

	friendSvc := friendship.NewService(db, notify.Discard{}, pcfg, logger)
	circleSvc := circle.NewService(db, friendSvc, pcfg, logger)
	pulseSvc := pulse.NewService(db, friendSvc, circleSvc, notify.Discard{}, pcfg, logger)
	reactionSvc := reaction.NewService(db, notify.Discard{}, logger)

	authH := rest.NewAuthHandler(db, c, sec)
	friendsH := rest.NewFriendsHandler(friendSvc, c)
	circlesH := rest.NewCirclesHandler(circleSvc)
	pulsesH := rest.NewPulsesHandler(pulseSvc)
	reactionsH := rest.NewReactionsHandler(reactionSvc)
	statsH := rest.NewStatsHandler(db, pulseSvc, c, pcfg.LeaderboardSize, logger)
	sched := scheduler.New(logger)
	t.Cleanup(sched.Stop)
	adminH := rest.NewAdminHandler(db, sched, logger)

	r := gin.New()
	r.POST("/api/auth/login", authH.Login)
	auth := r.Group("/api", mw.Auth(sec, c))
	auth.POST("/auth/logout", authH.Logout)

	auth.GET("/friends", friendsH.List)
	auth.POST("/friends/requests", friendsH.SendRequest)
	auth.GET("/friends/requests", friendsH.ListRequests)
	auth.POST("/friends/requests/:id/accept", friendsH.Accept)
	auth.POST("/friends/requests/:id/reject", friendsH.Reject)
	auth.POST("/friends/requests/:id/cancel", friendsH.Cancel)
	auth.POST("/friends/:id/block", friendsH.ToggleBlock)
	auth.DELETE("/friends/:id", friendsH.Unfriend)
	auth.PUT("/friends/:id/favorite", friendsH.SetFavorite)
	auth.PUT("/friends/:id/nickname", friendsH.SetNickname)

	auth.POST("/circles", circlesH.Create)
	auth.GET("/circles", circlesH.List)
	auth.GET("/circles/:id", circlesH.Detail)
	auth.DELETE("/circles/:id", circlesH.Delete)
	auth.POST("/circles/:id/members", circlesH.AddMember)
	auth.DELETE("/circles/:id/members/:uid", circlesH.RemoveMember)

	auth.POST("/pulses/direct", pulsesH.SendDirect)
	auth.POST("/pulses/circle", pulsesH.SendToCircle)
	auth.GET("/pulses/inbox", pulsesH.Inbox)
	auth.GET("/pulses/outbox", pulsesH.Outbox)
	auth.POST("/pulses/:id/seen", pulsesH.MarkSeen)
	auth.GET("/pulses/:id/recipients", pulsesH.Recipients)
	auth.PUT("/pulses/:id/reaction", reactionsH.Set)
	auth.GET("/pulses/:id/reactions", reactionsH.Summary)
	auth.GET("/pulses/:id/reactions/:type", reactionsH.Reactors)

	auth.GET("/stats/engagement", statsH.Engagement)
	auth.GET("/stats/leaderboard", statsH.Leaderboard)

	admin := r.Group("/api/admin", rest.AdminAuth(testAdminKey))
	admin.GET("/metrics", adminH.Metrics)
	admin.POST("/accounts/:id/ban", adminH.BanAccount)
	admin.GET("/scheduler", adminH.ListSchedulerTasks)

	return &env{r: r, db: db, cache: c, auth: authH, stats: statsH}
}

// login authenticates (auto-registering on first use) and returns the token
// and account ID.
func (e *env) login(t *testing.T, username string) (string, int64) {
	t.Helper()
	w := postJSON(e.r, "/api/auth/login", map[string]string{
		"username": username, "password": "pass1234",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp["token"].(string), int64(resp["account_id"].(float64))
}

// befriend runs the request/accept flow over the REST surface.
func (e *env) befriend(t *testing.T, tokenA string, tokenB string, idB int64) {
	t.Helper()
	w := postJSON(e.r, "/api/friends/requests",
		map[string]interface{}{"receiver_id": idB},
		"Authorization", "Bearer "+tokenA)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var req map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &req))
	reqID := int64(req["id"].(float64))

	w = postJSON(e.r, fmtPath("/api/friends/requests/%d/accept", reqID), nil,
		"Authorization", "Bearer "+tokenB)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func fmtPath(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}

func postJSON(r *gin.Engine, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	return doJSON(r, http.MethodPost, path, body, headers...)
}

func putJSON(r *gin.Engine, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	return doJSON(r, http.MethodPut, path, body, headers...)
}

func doJSON(r *gin.Engine, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func getReq(r *gin.Engine, path string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func deleteReq(r *gin.Engine, path string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodDelete, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
