package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/id", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/id", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(RequestIDHeader, "ui-123")
	w = serve(r, req)
	assert.Equal(t, "ui-123", w.Body.String())
}

func TestCacheBypass(t *testing.T) {
	r := gin.New()
	r.Use(CacheBypass())
	r.GET("/docs", func(c *gin.Context) {
		if NoCache(c) {
			c.String(http.StatusOK, "fresh")
			return
		}
		c.String(http.StatusOK, "cached")
	})

	cases := []struct {
		header, value, want string
	}{
		{"", "", "cached"},
		{NoCacheHeader, "1", "fresh"},
		{NoCacheHeader, "true", "fresh"},
		{NoCacheHeader, "0", "cached"},
		{"Cache-Control", "no-cache", "fresh"},
		{"Cache-Control", "max-age=0, No-Cache", "fresh"},
		{"Cache-Control", "no-store", "cached"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/docs", nil)
		if tc.header != "" {
			req.Header.Set(tc.header, tc.value)
		}
		assert.Equal(t, tc.want, serve(r, req).Body.String(), "%s: %s", tc.header, tc.value)
	}
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	r := gin.New()
	r.POST("/chat", RateLimitMiddleware(rdb, 2, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for i := 0; i < 2; i++ {
		w := serve(r, httptest.NewRequest(http.MethodPost, "/chat", nil))
		require.Equal(t, http.StatusNoContent, w.Code)
	}
	w := serve(r, httptest.NewRequest(http.MethodPost, "/chat", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	mr.FastForward(time.Minute + time.Second)
	w = serve(r, httptest.NewRequest(http.MethodPost, "/chat", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateLimitFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	mr.Close()

	r := gin.New()
	r.POST("/chat", RateLimitMiddleware(rdb, 1, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for i := 0; i < 3; i++ {
		w := serve(r, httptest.NewRequest(http.MethodPost, "/chat", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
}

func TestRequestSizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(RequestSizeLimit(8))
	r.POST("/upload", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("0123")))
	assert.Equal(t, http.StatusOK, w.Code)
}
