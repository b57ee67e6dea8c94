package handlers

import (
	"encoding/gob"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"hoiku-portal/internal/middleware"
	"hoiku-portal/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type flash struct {
	Kind    string // success, danger, warning
	Message string
}

func init() {
	// flashes travel in the cookie session
	gob.Register(flash{})
}

// render wraps c.HTML and passes the current user and pending flashes to
// every page.
func render(c *gin.Context, status int, tmpl string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}

	data["csrf"] = middleware.CSRFToken(c)

	if u := middleware.CurrentUser(c); u != nil {
		data["CurrentUser"] = u
		data["IsMaster"] = u.IsMaster()
	}

	sess := sessions.Default(c)
	if raw := sess.Flashes(); len(raw) > 0 {
		flashes := make([]flash, 0, len(raw))
		for _, f := range raw {
			if fl, ok := f.(flash); ok {
				flashes = append(flashes, fl)
			}
		}
		data["Flashes"] = flashes
		_ = sess.Save()
	}

	c.HTML(status, tmpl, data)
}

func addFlash(c *gin.Context, kind, msg string) {
	sess := sessions.Default(c)
	sess.AddFlash(flash{Kind: kind, Message: msg})
	_ = sess.Save()
}

func redirectWithFlash(c *gin.Context, location, kind, msg string) {
	addFlash(c, kind, msg)
	c.Redirect(http.StatusFound, location)
}

// fail maps service errors that are not form validation problems.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrForbidden):
		c.String(http.StatusForbidden, "access denied")
	case errors.Is(err, services.ErrNotFound):
		c.String(http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrFileTooLarge) || isBodyTooLarge(err):
		c.String(http.StatusRequestEntityTooLarge, "upload exceeds the size limit")
	default:
		_ = c.Error(err)
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
		c.String(http.StatusInternalServerError, "internal server error")
	}
	c.Abort()
}

// isFieldError reports whether a bind error came from field validation
// rather than from reading the body.
func isFieldError(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs)
}

// badForm answers a request body that could not be read or parsed.
func badForm(c *gin.Context, err error) {
	if isBodyTooLarge(err) {
		fail(c, err)
		return
	}
	c.String(http.StatusBadRequest, "invalid form")
	c.Abort()
}

func isBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.String(http.StatusBadRequest, "invalid id")
		c.Abort()
		return 0, false
	}
	return uint(id), true
}
