package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/trailsocial/engagement/internal/auth"
	"github.com/trailsocial/engagement/internal/util"
)

// stubValidator accepts "good-<kind>" tokens.
type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*auth.Claims, error) {
	switch token {
	case "good-user":
		return &auth.Claims{UserID: 7}, nil
	case "good-admin":
		return &auth.Claims{UserID: 1, IsAdmin: true}, nil
	}
	return nil, errors.New("bad token")
}

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(OptionalAuth(stubValidator{}))
	router.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":  util.OptionalUserID(c),
			"is_admin": util.IsAdmin(c),
		})
	})
	router.POST("/private", RequireAuth(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.POST("/admin", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return router
}

func call(router *gin.Engine, method, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestOptionalAuth(t *testing.T) {
	router := newAuthRouter()

	w := call(router, "GET", "/whoami", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":null,"is_admin":false}`, w.Body.String())

	w = call(router, "GET", "/whoami", "Bearer good-user")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":7,"is_admin":false}`, w.Body.String())

	w = call(router, "GET", "/whoami", "Bearer good-admin")
	assert.JSONEq(t, `{"user_id":1,"is_admin":true}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, call(router, "GET", "/whoami", "Bearer nope").Code)
	assert.Equal(t, http.StatusUnauthorized, call(router, "GET", "/whoami", "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, call(router, "GET", "/whoami", "Bearer ").Code)
}

func TestRequireAuth(t *testing.T) {
	router := newAuthRouter()

	assert.Equal(t, http.StatusUnauthorized, call(router, "POST", "/private", "").Code)
	assert.Equal(t, http.StatusNoContent, call(router, "POST", "/private", "Bearer good-user").Code)
}

func TestRequireAdmin(t *testing.T) {
	router := newAuthRouter()

	assert.Equal(t, http.StatusUnauthorized, call(router, "POST", "/admin", "").Code)
	assert.Equal(t, http.StatusForbidden, call(router, "POST", "/admin", "Bearer good-user").Code)
	assert.Equal(t, http.StatusNoContent, call(router, "POST", "/admin", "Bearer good-admin").Code)
}
