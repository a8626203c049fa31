package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rzzdr/option-greeks-engine/pkg/metrics"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/backpressure"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/errors"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/logger"
)

// LoggingMiddleware logs request information
func LoggingMiddleware() gin.HandlerFunc {
	log := logger.GetLogger("api.middleware")

	return func(c *gin.Context) {
		// Start timer
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		// Process request
		c.Next()

		log.Infof("%s %s [%d] %v", method, path, c.Writer.Status(), time.Since(start))
	}
}

// MetricsMiddleware captures API metrics, labelled by route template
func MetricsMiddleware(recorder *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Process request
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		recorder.RecordAPIRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

// CORSMiddleware handles Cross-Origin Resource Sharing
func CORSMiddleware(origins, methods, headers []string) gin.HandlerFunc {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	if len(methods) == 0 {
		methods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(headers) == 0 {
		headers = []string{"Content-Type", "Authorization"}
	}
	allowMethods := strings.Join(methods, ", ")
	allowHeaders := strings.Join(headers, ", ")

	return func(c *gin.Context) {
		if origin := allowedOrigin(origins, c.GetHeader("Origin")); origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Methods", allowMethods)
			c.Writer.Header().Set("Access-Control-Allow-Headers", allowHeaders)
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func allowedOrigin(allowed []string, origin string) string {
	for _, o := range allowed {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

// ErrorMiddleware catches panics and returns an error response
func ErrorMiddleware() gin.HandlerFunc {
	log := logger.GetLogger("api.error")

	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Errorf("API panic recovered: %v", err)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
					"kind":  errors.ErrorTypeInternal.String(),
				})
			}
		}()

		c.Next()
	}
}

// RateLimitMiddleware limits the number of requests per client address
func RateLimitMiddleware(limiters *backpressure.RateLimiterManager) gin.HandlerFunc {
	log := logger.GetLogger("api.ratelimit")

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		limiter := limiters.Get(clientIP)

		allowed := limiter.Allow()
		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Burst()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.TokensRemaining()))
		if !allowed {
			log.Warnf("Rate limit exceeded for client: %s", clientIP)
			abortWithError(c, errors.ResourceExhausted("rate limit exceeded"))
			return
		}

		c.Next()
	}
}
