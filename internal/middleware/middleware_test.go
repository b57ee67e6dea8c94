package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hoiku-portal/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Should redirect anonymous requests to login", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", http.NoBody)

		RequireAuth()(c)

		assert.True(t, c.IsAborted())
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
	})

	t.Run("Should pass signed-in users", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		SetCurrentUser(c, &models.User{ID: 1, Role: models.RoleClient})

		RequireAuth()(c)

		assert.False(t, c.IsAborted())
	})
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)

	run := func(u *models.User) (*httptest.ResponseRecorder, *gin.Context) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/template/new", http.NoBody)
		if u != nil {
			SetCurrentUser(c, u)
		}
		RequireRole(models.RoleMaster)(c)
		return w, c
	}

	t.Run("Should forbid other roles", func(t *testing.T) {
		w, c := run(&models.User{ID: 2, Role: models.RoleClient})
		assert.True(t, c.IsAborted())
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "access denied")
	})

	t.Run("Should allow the role", func(t *testing.T) {
		_, c := run(&models.User{ID: 1, Role: models.RoleMaster})
		assert.False(t, c.IsAborted())
	})

	t.Run("Should redirect anonymous requests", func(t *testing.T) {
		w, c := run(nil)
		assert.True(t, c.IsAborted())
		assert.Equal(t, http.StatusFound, w.Code)
	})
}

func TestLimitBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/upload", LimitBody(16), func(c *gin.Context) {
		if _, err := c.MultipartForm(); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too large")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	t.Run("Should refuse a declared oversized body before reading", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("x"))
		req.ContentLength = 16 + multipartSlack + 1
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Contains(t, w.Body.String(), "size limit")
	})
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	_, err := RateLimit("not-a-rate")
	require.Error(t, err)

	mw, err := RateLimit("2-M")
	require.NoError(t, err)
	r := gin.New()
	r.POST("/login", mw, func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", http.NoBody)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestCSRFTokenSource(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newCtx := func(req *http.Request) (*httptest.ResponseRecorder, *gin.Context) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = req
		return w, c
	}

	t.Run("Should prefer the header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("_csrf=from-form"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set(CSRFHeader, "from-header")
		_, c := newCtx(req)

		assert.Equal(t, "from-header", csrfTokenFrom(c))
	})

	t.Run("Should read the form field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("_csrf=from-form"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		_, c := newCtx(req)

		assert.Equal(t, "from-form", csrfTokenFrom(c))
	})

	t.Run("Should answer 413 when the body is too large", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("_csrf="+strings.Repeat("a", 64)))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w, c := newCtx(req)
		req.Body = http.MaxBytesReader(w, req.Body, 8)

		assert.Empty(t, csrfTokenFrom(c))
		csrfRejected(c)

		assert.True(t, c.IsAborted())
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("Should answer 403 on a token mismatch", func(t *testing.T) {
		w, c := newCtx(httptest.NewRequest(http.MethodPost, "/", http.NoBody))

		csrfRejected(c)

		assert.True(t, c.IsAborted())
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "invalid csrf token", w.Body.String())
	})
}
