// Package server exposes the site over HTTP.
package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ticsummit/ticsite/api/responses"
	"github.com/ticsummit/ticsite/common/apiutil"
	"github.com/ticsummit/ticsite/internal/auth"
	"github.com/ticsummit/ticsite/internal/config"
	"github.com/ticsummit/ticsite/internal/content"
	"github.com/ticsummit/ticsite/internal/database"
	"github.com/ticsummit/ticsite/internal/engagement"
	"github.com/ticsummit/ticsite/internal/events"
	"github.com/ticsummit/ticsite/internal/middleware/ratelimit"
	"github.com/ticsummit/ticsite/internal/search"
	"github.com/ticsummit/ticsite/internal/upload"
	"github.com/ticsummit/ticsite/pkg/errors"
	"github.com/ticsummit/ticsite/pkg/models"
)

// Pages mounts server rendered pages on the router. NotFound renders the
// page for unmatched non-API paths.
type Pages interface {
	Register(r gin.IRouter)
	NotFound(c *gin.Context)
}

// Deps are the services the HTTP layer depends on. Limiter, Events and
// Pages are optional.
type Deps struct {
	Config     *config.Config
	Logger     *zap.Logger
	DB         *gorm.DB
	Catalog    *content.Catalog
	Engagement *engagement.Service
	Auth       *auth.Service
	Uploader   upload.Uploader
	Search     *search.Service
	Events     events.Publisher
	Limiter    *ratelimit.Limiter
	Pages      Pages
}

// Server represents the HTTP server
type Server struct {
	cfg        *config.Config
	logger     *zap.Logger
	db         *gorm.DB
	catalog    *content.Catalog
	engagement *engagement.Service
	auth       *auth.Service
	uploader   upload.Uploader
	validator  *upload.Validator
	search     *search.Service
	events     events.Publisher
	limiter    *ratelimit.Limiter
	pages      Pages
}

// NewServer creates a new HTTP server
func NewServer(d Deps) *Server {
	return &Server{
		cfg:        d.Config,
		logger:     d.Logger,
		db:         d.DB,
		catalog:    d.Catalog,
		engagement: d.Engagement,
		auth:       d.Auth,
		uploader:   d.Uploader,
		validator:  upload.NewValidator(d.Config.Upload.MaxBytes, d.Config.Upload.AllowedTypes),
		search:     d.Search,
		events:     d.Events,
		limiter:    d.Limiter,
		pages:      d.Pages,
	}
}

// Router creates a new HTTP router
func (s *Server) Router() *gin.Engine {
	apiutil.RegisterValidators()

	router := gin.New()
	if err := router.SetTrustedProxies(s.cfg.Server.TrustedProxies); err != nil {
		s.logger.Warn("invalid trusted proxies", zap.Error(err))
	}

	router.Use(apiutil.RequestID())
	router.Use(ginzap.GinzapWithConfig(s.logger, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/health", "/metrics"},
	}))
	router.Use(ginzap.RecoveryWithZap(s.logger, true))
	router.Use(otelgin.Middleware(s.cfg.Telemetry.ServiceName))
	router.Use(cors.New(s.corsConfig()))
	router.Use(apiutil.MetricsMiddleware())
	router.Use(s.auth.Middleware())

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if local, ok := s.uploader.(*upload.LocalUploader); ok && strings.HasPrefix(local.PublicBase(), "/") {
		router.Static(local.PublicBase(), local.Dir())
	}

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", s.limiter.Middleware("register"), s.handleRegister)
			authGroup.POST("/login", s.limiter.Middleware("login"), s.handleLogin)
			authGroup.POST("/logout", s.handleLogout)
			authGroup.GET("/session", s.handleSession)

			totp := authGroup.Group("/totp", auth.RequireRole(models.RoleMember))
			{
				totp.POST("/setup", s.handleTOTPSetup)
				totp.POST("/enable", s.handleTOTPEnable)
				totp.POST("/disable", s.handleTOTPDisable)
			}
		}

		posts := registerContent(s, api, "posts", s.catalog.Posts)
		registerEngagement(s, posts, engagement.TargetPost, s.catalog.Posts)
		projects := registerContent(s, api, "projects", s.catalog.Projects)
		registerEngagement(s, projects, engagement.TargetProject, s.catalog.Projects)
		registerContent(s, api, "mentors", s.catalog.Mentors)
		registerContent(s, api, "alumni", s.catalog.Alumni)
		registerContent(s, api, "ambassadors", s.catalog.Ambassadors)
		registerContent(s, api, "team", s.catalog.Team)
		registerContent(s, api, "faqs", s.catalog.FAQs)

		settings := api.Group("/settings")
		{
			settings.GET("", s.handleListSettings)
			settings.GET("/:key", s.handleGetSetting)
			settings.PUT("/:key", auth.RequireRole(models.RoleAdmin), s.handlePutSetting)
			settings.DELETE("/:key", auth.RequireRole(models.RoleAdmin), s.handleDeleteSetting)
		}

		api.POST("/contact", s.limiter.Middleware("contact"), s.handleSubmitContact)
		api.GET("/search", s.handleSearch)

		uploads := api.Group("/uploads", auth.RequireRole(models.RoleEditor))
		{
			uploads.POST("", s.handleUpload)
			uploads.DELETE("/*key", s.handleDeleteUpload)
		}

		admin := api.Group("/admin", auth.RequireRole(models.RoleAdmin))
		{
			admin.GET("/users", s.handleListUsers)
			admin.PATCH("/users/:id", s.handleUpdateUser)
			admin.DELETE("/users/:id", s.handleDeleteUser)

			admin.GET("/contact", s.handleListContact)
			admin.PATCH("/contact/:id", s.handleUpdateContact)
			admin.DELETE("/contact/:id", s.handleDeleteContact)

			admin.POST("/engagement/reconcile", s.handleReconcile)
		}
	}
	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			responses.Fail(c, errors.NotFound.Explain("route %s not found", c.Request.URL.Path))
			return
		}
		if s.pages != nil {
			s.pages.NotFound(c)
			return
		}
		c.String(http.StatusNotFound, "404 page not found")
	})

	if s.pages != nil {
		s.pages.Register(router)
	}
	return router
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", apiutil.RequestIDHeader)
	cfg.ExposeHeaders = []string{apiutil.RequestIDHeader, "Retry-After"}

	origins := s.cfg.Server.CORSOrigins
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		// Credentialed CORS cannot use a wildcard origin.
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowCredentials = true
	return cfg
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := database.Ping(c.Request.Context(), s.db); err != nil {
		responses.Fail(c, errors.Unavailable.Explain("database unreachable").Wrap(err))
		return
	}
	responses.OK(c, gin.H{"status": "ok"})
}
