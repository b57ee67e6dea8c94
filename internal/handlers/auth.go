package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"hoiku-portal/internal/logging"
	"hoiku-portal/internal/middleware"
	"hoiku-portal/internal/models"
	"hoiku-portal/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type registerForm struct {
	Email     string `form:"email" binding:"required,email"`
	Password  string `form:"password" binding:"required,min=6,max=72"`
	Password2 string `form:"password2" binding:"required,eqfield=Password"`
	Role      string `form:"role" binding:"required,oneof=client master"`
	Category  string `form:"category"`
}

func registerPage(form registerForm, errMsg string) gin.H {
	return gin.H{
		"error":      errMsg,
		"form":       form,
		"categories": models.Categories(),
	}
}

func (h *Handlers) ShowRegister(c *gin.Context) {
	render(c, http.StatusOK, "register.html", registerPage(registerForm{Role: string(models.RoleClient)}, ""))
}

func (h *Handlers) Register(c *gin.Context) {
	var form registerForm
	if err := c.ShouldBind(&form); err != nil {
		form.Password, form.Password2 = "", ""
		render(c, http.StatusBadRequest, "register.html", registerPage(form, "入力内容を確認してください (invalid input)"))
		return
	}

	_, err := h.users.Register(c.Request.Context(), services.RegisterInput{
		Email:    form.Email,
		Password: form.Password,
		Role:     models.UserRole(form.Role),
		Category: models.Category(form.Category),
	})
	if err != nil {
		form.Password, form.Password2 = "", ""
		switch {
		case errors.Is(err, services.ErrDuplicateEmail):
			render(c, http.StatusConflict, "register.html", registerPage(form, "Email already registered"))
		case services.IsValidation(err):
			render(c, http.StatusBadRequest, "register.html", registerPage(form, err.Error()))
		default:
			fail(c, err)
		}
		return
	}

	redirectWithFlash(c, "/login", "success", "Registered. Please log in.")
}

type loginForm struct {
	Email    string `form:"email" binding:"required,email"`
	Password string `form:"password" binding:"required"`
}

func (h *Handlers) ShowLogin(c *gin.Context) {
	render(c, http.StatusOK, "login.html", gin.H{"error": "", "email": ""})
}

func (h *Handlers) Login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		render(c, http.StatusBadRequest, "login.html", gin.H{"error": "Invalid credentials", "email": form.Email})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), form.Email, form.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			slog.InfoContext(c.Request.Context(), "login failed",
				"email", logging.MaskEmail(form.Email), "ip", c.ClientIP())
			render(c, http.StatusUnauthorized, "login.html", gin.H{"error": "Invalid credentials", "email": form.Email})
			return
		}
		fail(c, err)
		return
	}

	sess := sessions.Default(c)
	sess.Clear()
	sess.Set(middleware.SessionUserID, user.ID)
	if err := sess.Save(); err != nil {
		fail(c, err)
		return
	}

	c.Redirect(http.StatusFound, "/")
}

func (h *Handlers) Logout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	_ = sess.Save()
	c.Redirect(http.StatusFound, "/login")
}
