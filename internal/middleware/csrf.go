package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	csrf "github.com/utrack/gin-csrf"
)

const (
	CSRFField  = "_csrf"
	CSRFHeader = "X-CSRF-Token"

	formErrorKey    = "csrfFormError"
	multipartMemory = 32 << 20
)

// CSRF rejects state-changing requests whose token does not match the salt
// kept in the session. Must run after the sessions middleware.
func CSRF(secret string) gin.HandlerFunc {
	return csrf.Middleware(csrf.Options{
		Secret:      secret,
		TokenGetter: csrfTokenFrom,
		ErrorFunc:   csrfRejected,
	})
}

// CSRFToken returns the token to embed in forms rendered for c.
func CSRFToken(c *gin.Context) string {
	return csrf.GetToken(c)
}

func csrfTokenFrom(c *gin.Context) string {
	if t := c.GetHeader(CSRFHeader); t != "" {
		return t
	}
	err := c.Request.ParseMultipartForm(multipartMemory)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		c.Set(formErrorKey, err)
		return ""
	}
	return c.Request.PostFormValue(CSRFField)
}

func csrfRejected(c *gin.Context) {
	if v, ok := c.Get(formErrorKey); ok {
		var mbe *http.MaxBytesError
		if err, _ := v.(error); errors.As(err, &mbe) {
			c.String(http.StatusRequestEntityTooLarge, "upload exceeds the size limit")
		} else {
			c.String(http.StatusBadRequest, "invalid form")
		}
		c.Abort()
		return
	}

	slog.WarnContext(c.Request.Context(), "csrf token mismatch",
		"method", c.Request.Method, "path", c.Request.URL.Path, "ip", c.ClientIP())
	c.String(http.StatusForbidden, "invalid csrf token")
	c.Abort()
}
