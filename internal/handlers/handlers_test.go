package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/trailsocial/engagement/internal/auth"
	"github.com/trailsocial/engagement/internal/config"
	"github.com/trailsocial/engagement/internal/database"
	"github.com/trailsocial/engagement/internal/engagement"
	"github.com/trailsocial/engagement/internal/middleware"
	"github.com/trailsocial/engagement/internal/models"
	"github.com/trailsocial/engagement/internal/permalink"
	"github.com/trailsocial/engagement/internal/repository"
	"github.com/trailsocial/engagement/internal/viewer"
	"gorm.io/gorm"
)

// stubValidator accepts "user-<id>" and "admin-<id>" bearer tokens.
type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*auth.Claims, error) {
	kind, rawID, ok := strings.Cut(token, "-")
	if !ok {
		return nil, errors.New("bad token")
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "user":
		return &auth.Claims{UserID: id}, nil
	case "admin":
		return &auth.Claims{UserID: id, IsAdmin: true}, nil
	}
	return nil, errors.New("bad token")
}

// HandlersTestSuite drives the HTTP surface against a temp-file SQLite database.
type HandlersTestSuite struct {
	suite.Suite
	db         *gorm.DB
	router     *gin.Engine
	obfuscator *permalink.Obfuscator
	counters   *engagement.CounterCache
}

func (suite *HandlersTestSuite) SetupTest() {
	t := suite.T()

	db, err := database.Open(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "handlers.db"),
	}, false)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.MigrateContent(db))

	require.NoError(t, db.Create([]models.User{
		{ID: 1, Nickname: "alice"},
		{ID: 2, Nickname: "bob"},
		{ID: 3, Nickname: "carol", IsAdmin: true},
	}).Error)
	require.NoError(t, db.Create([]models.Entry{
		{ID: 10, UserID: 1, Text: "first"},
		{ID: 11, UserID: 1, Text: "second"},
	}).Error)
	require.NoError(t, db.Create(&models.Comment{ID: 20, EntryID: 10, UserID: 2, Text: "nice"}).Error)

	obfuscator, err := permalink.New("handlers-test-salt")
	require.NoError(t, err)

	counters := engagement.NewCounterCache(db, engagement.NewLocalLocker())
	h := NewHandlers(Deps{
		DB:         db,
		Obfuscator: obfuscator,
		Resolver:   viewer.NewResolver(true),
		Recorder:   engagement.NewRecorder(db, counters, engagement.DefaultDedupWindow),
		Counters:   counters,
		Claps:      engagement.NewClapLedger(db),
		Content:    repository.NewContentRepository(db),
	})

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.OptionalAuth(stubValidator{}))
	h.RegisterRoutes(router, RouteOptions{})

	suite.db = db
	suite.router = router
	suite.obfuscator = obfuscator
	suite.counters = counters
}

func (suite *HandlersTestSuite) TearDownTest() {
	if sqlDB, err := suite.db.DB(); err == nil {
		sqlDB.Close()
	}
}

type request struct {
	method string
	path   string
	token  string
	body   interface{}
	ua     string
}

func (suite *HandlersTestSuite) do(r request) (*httptest.ResponseRecorder, map[string]interface{}) {
	var body bytes.Buffer
	if r.body != nil {
		require.NoError(suite.T(), json.NewEncoder(&body).Encode(r.body))
	}
	req := httptest.NewRequest(r.method, r.path, &body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0")
	if r.ua != "" {
		req.Header.Set("User-Agent", r.ua)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	var payload map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &payload), w.Body.String())
	}
	return w, payload
}

func (suite *HandlersTestSuite) tok(id int64) string {
	return suite.obfuscator.MustEncode(id)
}

func (suite *HandlersTestSuite) eventCount() int64 {
	var n int64
	require.NoError(suite.T(), suite.db.Model(&models.ViewEvent{}).Count(&n).Error)
	return n
}

func (suite *HandlersTestSuite) TestRecordEntryViewDeduplicates() {
	t := suite.T()
	path := "/api/entries/" + suite.tok(10) + "/views"

	w, body := suite.do(request{method: "POST", path: path})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["recorded"])
	assert.Equal(t, float64(1), body["view_count"])

	w, body = suite.do(request{method: "POST", path: path})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["recorded"])
	assert.Equal(t, float64(1), body["view_count"])

	// Another browser on the same address is another anonymous viewer.
	_, body = suite.do(request{method: "POST", path: path, ua: "curl/8.0"})
	assert.Equal(t, true, body["recorded"])

	// A client fingerprint separates viewers sharing address and agent.
	_, body = suite.do(request{method: "POST", path: path, body: gin.H{"fingerprint": "device-a"}})
	assert.Equal(t, true, body["recorded"])

	_, body = suite.do(request{method: "POST", path: path, token: "user-2"})
	assert.Equal(t, true, body["recorded"])
	assert.Equal(t, float64(4), body["view_count"])

	_, body = suite.do(request{method: "POST", path: path, token: "user-2", ua: "curl/8.0"})
	assert.Equal(t, false, body["recorded"])

	w, body = suite.do(request{method: "GET", path: path})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(4), body["view_count"])
}

func (suite *HandlersTestSuite) TestRecordCommentView() {
	t := suite.T()
	path := "/api/comments/" + suite.tok(20) + "/views"

	_, body := suite.do(request{method: "POST", path: path, token: "user-1"})
	assert.Equal(t, true, body["recorded"])

	w, body := suite.do(request{method: "GET", path: path})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["view_count"])
}

func (suite *HandlersTestSuite) TestInvalidAndUnknownTokens() {
	t := suite.T()

	w, body := suite.do(request{method: "POST", path: "/api/entries/not-a-token/views"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_TOKEN", body["code"])
	assert.Equal(t, "Invalid entry ID", body["error"])

	// A token from another deployment never resolves here.
	foreign, err := permalink.New("some-other-salt")
	require.NoError(t, err)
	w, _ = suite.do(request{method: "POST", path: "/api/entries/" + foreign.MustEncode(10) + "/views"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = suite.do(request{method: "POST", path: "/api/entries/" + suite.tok(999) + "/views"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Entry not found", body["error"])

	w, _ = suite.do(request{method: "GET", path: "/api/comments/" + suite.tok(999) + "/claps"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, int64(0), suite.eventCount())
}

func (suite *HandlersTestSuite) TestProfileViews() {
	t := suite.T()

	// Owners looking at their own profile are not counted.
	w, body := suite.do(request{method: "POST", path: "/api/users/alice/views", token: "user-1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["recorded"])
	assert.Equal(t, float64(0), body["view_count"])
	assert.Equal(t, int64(0), suite.eventCount())

	_, body = suite.do(request{method: "POST", path: "/api/users/ALICE/views", token: "user-2"})
	assert.Equal(t, true, body["recorded"])
	assert.Equal(t, float64(1), body["view_count"])

	_, body = suite.do(request{method: "POST", path: "/api/users/alice/views", token: "user-1"})
	assert.Equal(t, false, body["recorded"])
	assert.Equal(t, float64(1), body["view_count"])

	w, body = suite.do(request{method: "POST", path: "/api/users/nobody/views"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", body["error"])
}

func (suite *HandlersTestSuite) TestEntryClaps() {
	t := suite.T()
	path := "/api/entries/" + suite.tok(10) + "/claps"

	w, _ := suite.do(request{method: "POST", path: path, body: gin.H{"count": 3}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body := suite.do(request{method: "POST", path: path, token: "user-1", body: gin.H{"count": 3}})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", body["code"])

	w, body = suite.do(request{method: "POST", path: path, token: "user-2", body: gin.H{"count": 3}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(3), body["total_claps"])
	assert.Equal(t, float64(3), body["user_claps"])

	// Counts are absolute totals, not increments.
	_, body = suite.do(request{method: "POST", path: path, token: "user-2", body: gin.H{"count": 8}})
	assert.Equal(t, float64(8), body["total_claps"])
	assert.Equal(t, float64(8), body["user_claps"])

	w, body = suite.do(request{method: "POST", path: path, token: "user-2", body: gin.H{"count": 51}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	assert.Equal(t, "count", body["field"])
	assert.Equal(t, "Clap count must be between 1 and 50", body["error"])

	w, body = suite.do(request{method: "POST", path: path, token: "user-2", body: gin.H{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "count", body["field"])

	w, _ = suite.do(request{method: "POST", path: path, token: "user-2", body: gin.H{"count": 0}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Non-admins cannot raise the cap.
	w, _ = suite.do(request{method: "POST", path: path, token: "user-2", body: gin.H{"count": 60, "max_claps": 100}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = suite.do(request{method: "POST", path: path, token: "admin-3", body: gin.H{"count": 500, "max_claps": 1000}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(508), body["total_claps"])
	assert.Equal(t, float64(500), body["user_claps"])

	w, body = suite.do(request{method: "GET", path: path})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(508), body["total"])
	assert.Nil(t, body["user_claps"])

	_, body = suite.do(request{method: "GET", path: path, token: "user-2"})
	assert.Equal(t, float64(8), body["user_claps"])
}

func (suite *HandlersTestSuite) TestCommentClapsUseDefaultCap() {
	t := suite.T()
	path := "/api/comments/" + suite.tok(20) + "/claps"

	w, _ := suite.do(request{method: "POST", path: path, token: "user-2", body: gin.H{"count": 5}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body := suite.do(request{method: "POST", path: path, token: "admin-3", body: gin.H{"count": 500, "max_claps": 1000}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Clap count must be between 1 and 50", body["error"])

	w, body = suite.do(request{method: "POST", path: path, token: "user-1", body: gin.H{"count": 50}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(50), body["total_claps"])

	w, _ = suite.do(request{method: "GET", path: "/api/entries/" + suite.tok(20) + "/claps"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func (suite *HandlersTestSuite) TestBatchViewCounts() {
	t := suite.T()

	suite.do(request{method: "POST", path: "/api/entries/" + suite.tok(10) + "/views", token: "user-2"})
	suite.do(request{method: "POST", path: "/api/entries/" + suite.tok(10) + "/views", token: "user-3"})

	ids := strings.Join([]string{suite.tok(10), suite.tok(11), "garbage!", suite.tok(10)}, ",")
	w, body := suite.do(request{method: "GET", path: "/api/views?type=entry&ids=" + ids})
	require.Equal(t, http.StatusOK, w.Code)

	counts, ok := body["view_counts"].(map[string]interface{})
	require.True(t, ok)
	assert.Len(t, counts, 2)
	assert.Equal(t, float64(2), counts[suite.tok(10)])
	assert.Equal(t, float64(0), counts[suite.tok(11)])

	w, _ = suite.do(request{method: "GET", path: "/api/views?type=profile&ids=" + ids})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = suite.do(request{method: "GET", path: "/api/views?type=entry"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["view_counts"])
}

func (suite *HandlersTestSuite) TestBatchClapCounts() {
	t := suite.T()

	suite.do(request{method: "POST", path: "/api/entries/" + suite.tok(10) + "/claps", token: "user-2", body: gin.H{"count": 4}})
	suite.do(request{method: "POST", path: "/api/entries/" + suite.tok(10) + "/claps", token: "user-3", body: gin.H{"count": 6}})

	path := "/api/claps?type=entry&ids=" + suite.tok(10) + "," + suite.tok(11)
	w, body := suite.do(request{method: "GET", path: path, token: "user-2"})
	require.Equal(t, http.StatusOK, w.Code)

	claps := body["claps"].(map[string]interface{})
	first := claps[suite.tok(10)].(map[string]interface{})
	assert.Equal(t, float64(10), first["total"])
	assert.Equal(t, float64(4), first["user_claps"])

	second := claps[suite.tok(11)].(map[string]interface{})
	assert.Equal(t, float64(0), second["total"])
	assert.Equal(t, float64(0), second["user_claps"])

	_, body = suite.do(request{method: "GET", path: path})
	first = body["claps"].(map[string]interface{})[suite.tok(10)].(map[string]interface{})
	assert.NotContains(t, first, "user_claps")
}

func (suite *HandlersTestSuite) TestProfileViewStats() {
	t := suite.T()

	suite.do(request{method: "POST", path: "/api/entries/" + suite.tok(10) + "/views", token: "user-2"})
	suite.do(request{method: "POST", path: "/api/entries/" + suite.tok(11) + "/views", token: "user-2"})
	suite.do(request{method: "POST", path: "/api/comments/" + suite.tok(20) + "/views", token: "user-1"})
	suite.do(request{method: "POST", path: "/api/users/alice/views", token: "user-3"})

	w, body := suite.do(request{method: "GET", path: "/api/users/alice/view-stats"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["total_entry_views"])
	assert.Equal(t, float64(0), body["total_comment_views"])
	assert.Equal(t, float64(1), body["total_profile_views"])

	_, body = suite.do(request{method: "GET", path: "/api/users/bob/view-stats"})
	assert.Equal(t, float64(1), body["total_comment_views"])
}

func (suite *HandlersTestSuite) TestAdminRebuild() {
	t := suite.T()

	suite.do(request{method: "POST", path: "/api/entries/" + suite.tok(10) + "/views", token: "user-2"})
	suite.do(request{method: "POST", path: "/api/entries/" + suite.tok(11) + "/views", token: "user-2"})
	require.NoError(t, suite.db.Model(&models.ViewCount{}).Where("1 = 1").Update("view_count", 99).Error)

	w, _ := suite.do(request{method: "POST", path: "/api/admin/view-counts/rebuild"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = suite.do(request{method: "POST", path: "/api/admin/view-counts/rebuild", token: "user-2"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body := suite.do(request{method: "POST", path: "/api/admin/view-counts/rebuild", token: "admin-3"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["rows_written"])

	_, body = suite.do(request{method: "GET", path: "/api/entries/" + suite.tok(10) + "/views"})
	assert.Equal(t, float64(1), body["view_count"])
}

func (suite *HandlersTestSuite) TestHealth() {
	w, body := suite.do(request{method: "GET", path: "/health"})
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), "ok", body["status"])
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}
