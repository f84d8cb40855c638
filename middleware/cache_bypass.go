package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	NoCacheHeader = "X-No-Cache"
	noCacheKey    = "no_cache"
)

// CacheBypass marks requests that ask for a fresh corpus read, either with
// "X-No-Cache: 1" (or true) or with "Cache-Control: no-cache"
func CacheBypass() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(noCacheKey, bypassRequested(c))
		c.Next()
	}
}

func bypassRequested(c *gin.Context) bool {
	switch strings.ToLower(strings.TrimSpace(c.GetHeader(NoCacheHeader))) {
	case "1", "true", "yes":
		return true
	}
	for _, directive := range strings.Split(c.GetHeader("Cache-Control"), ",") {
		if strings.EqualFold(strings.TrimSpace(directive), "no-cache") {
			return true
		}
	}
	return false
}

// NoCache reports whether the current request bypasses the corpus cache
func NoCache(c *gin.Context) bool {
	if v, ok := c.Get(noCacheKey); ok {
		return v.(bool)
	}
	return bypassRequested(c)
}
