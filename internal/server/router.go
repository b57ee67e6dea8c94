package server

import (
	"fmt"
	"net/http"

	"hoiku-portal/internal/config"
	"hoiku-portal/internal/handlers"
	"hoiku-portal/internal/middleware"
	"hoiku-portal/internal/models"
	"hoiku-portal/internal/services"
	"hoiku-portal/web"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const sessionName = "hoiku_session"

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	DB          *gorm.DB
	Users       *services.UserService
	Templates   *services.TemplateService
	Submissions *services.SubmissionService
}

func NewRouter(cfg *config.Config, deps Deps) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.SentryDSN != "" {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Metrics())
	r.Use(middleware.LimitBody(cfg.MaxUploadBytes))

	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	r.SetHTMLTemplate(tmpl)

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 3600,
		HttpOnly: true,
		Secure:   cfg.AppEnv == "production",
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(middleware.CSRF(cfg.SessionSecret))
	r.Use(middleware.InjectUser(deps.Users))

	loginLimit, err := middleware.RateLimit(cfg.LoginRateLimit)
	if err != nil {
		return nil, err
	}

	h := handlers.New(deps.Users, deps.Templates, deps.Submissions, cfg.MaxUploadBytes)

	r.GET("/health", handlers.Health(deps.DB))

	// AUTH
	r.GET("/register", h.ShowRegister)
	r.POST("/register", h.Register)
	r.GET("/login", h.ShowLogin)
	r.POST("/login", loginLimit, h.Login)
	r.GET("/logout", h.Logout)

	auth := r.Group("/")
	auth.Use(middleware.RequireAuth())

	auth.GET("/", h.Dashboard)
	auth.GET("/template/:id/download", h.DownloadTemplate)
	auth.GET("/submission/:id/download", h.DownloadSubmission)

	// MASTER
	master := auth.Group("/")
	master.Use(middleware.RequireRole(models.RoleMaster))
	master.GET("/template/new", h.ShowNewTemplate)
	master.POST("/template/new", h.CreateTemplate)
	master.POST("/template/:id/delete", h.DeleteTemplate)
	master.GET("/template/:id/submissions", h.TemplateSubmissions)
	master.GET("/submission/:id/review", h.ShowReview)
	master.POST("/submission/:id/review", h.Review)

	// CLIENT
	client := auth.Group("/")
	client.Use(middleware.RequireRole(models.RoleClient))
	client.GET("/template/:id/upload", h.ShowUpload)
	client.POST("/template/:id/upload", h.Upload)

	return r, nil
}
