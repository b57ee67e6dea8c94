package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// multipartSlack covers multipart boundaries and the other form fields.
const multipartSlack = 64 << 10

// LimitBody refuses request bodies larger than maxFileBytes plus form
// overhead. Declared lengths are checked up front; the body itself is
// wrapped so undeclared lengths fail while parsing.
func LimitBody(maxFileBytes int64) gin.HandlerFunc {
	limit := maxFileBytes + multipartSlack
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			c.String(http.StatusRequestEntityTooLarge, "upload exceeds the size limit")
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// RateLimit throttles by client IP using a formatted rate such as "10-M".
func RateLimit(formatted string) (gin.HandlerFunc, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", formatted, err)
	}
	instance := limiter.New(memory.NewStore(), rate)
	return mgin.NewMiddleware(instance, mgin.WithLimitReachedHandler(func(c *gin.Context) {
		c.String(http.StatusTooManyRequests, "too many attempts, try again later")
	})), nil
}
