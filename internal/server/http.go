package server

import (
	"context"
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lk2023060901/startpage-backend/internal/admin"
	analyticsservice "github.com/lk2023060901/startpage-backend/internal/analytics/service"
	"github.com/lk2023060901/startpage-backend/internal/conf"
	"github.com/lk2023060901/startpage-backend/internal/middleware"
	"github.com/lk2023060901/startpage-backend/internal/movies"
	navservice "github.com/lk2023060901/startpage-backend/internal/navigation/service"
	apperrors "github.com/lk2023060901/startpage-backend/internal/pkg/errors"
	"github.com/lk2023060901/startpage-backend/internal/pkg/logger"
	"github.com/lk2023060901/startpage-backend/internal/pkg/metrics"
	"github.com/lk2023060901/startpage-backend/internal/pkg/redis"
	"github.com/lk2023060901/startpage-backend/internal/pkg/response"
	"github.com/lk2023060901/startpage-backend/internal/proxysession"
	settingsservice "github.com/lk2023060901/startpage-backend/internal/settings/service"
	"github.com/lk2023060901/startpage-backend/internal/turnstile"
	"github.com/lk2023060901/startpage-backend/internal/visitor"
)

// Services are the HTTP handlers the router mounts.
type Services struct {
	Settings   *settingsservice.SettingsService
	Navigation *navservice.NavigationService
	Analytics  *analyticsservice.AnalyticsService
	Turnstile  *turnstile.Service
	Sessions   *proxysession.Service
	Movies     *movies.Handler
	Admin      *admin.Service
	AdminAuth  *admin.Authenticator
}

type HTTPServer struct {
	server *http.Server
	logger *logger.Logger
}

// NewRouter builds the gin engine. Middleware order: recovery, request log,
// metrics, security headers, path filter, visitor cookie, rate limit, mobile
// redirect.
func NewRouter(config *conf.Config, log *logger.Logger, rdb *redis.Client, m *metrics.Metrics, svc Services) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(config.Server.TrustedProxies); err != nil {
		return nil, err
	}

	router.Use(
		logger.GinRecovery(log),
		logger.GinLogger(log, logger.MiddlewareOptions{
			SkipPaths:        []string{"/health", "/metrics"},
			SkipPathPrefixes: []string{"/assets/"},
		}),
		metrics.Middleware(m),
		middleware.SecurityHeaders(config.Security.CSP),
		middleware.BlockMaliciousPaths(log.Named("security")),
		visitor.Middleware(visitor.Options{
			CookieName: config.Visitor.CookieName,
			MaxAge:     config.Visitor.MaxAge,
			Secure:     config.Visitor.Secure,
		}),
	)

	if rl := config.Security.RateLimit; rl.Enabled {
		rules, err := rl.ParsedRules()
		if err != nil {
			return nil, err
		}
		router.Use(middleware.RateLimiter(rdb, middleware.RateLimiterConfig{
			Window:  rl.Window,
			Default: rl.Default,
			Rules:   rules,
		}, m, log))
	}

	if config.Mobile.Enabled {
		skip := []string{"/api/", "/uv/", "/go", "/health", "/metrics"}
		if config.Proxy.Prefix != "" {
			skip = append(skip, config.Proxy.Prefix)
		}
		if config.Proxy.Bare != "" {
			skip = append(skip, config.Proxy.Bare)
		}
		router.Use(middleware.MobileRedirect(middleware.MobileOptions{
			PhonePage:    config.Mobile.PhonePage,
			AllowedPaths: config.Mobile.AllowedPaths,
			Skip:         skip,
		}))
	}

	router.GET("/health", health(rdb))
	router.GET("/metrics", gin.WrapH(m.Handler()))

	api := router.Group("/api",
		middleware.CORS(config.Security.CORSOrigins),
		middleware.BlockSuspiciousAgents(config.Security.BlockedUserAgents, m, log.Named("security")),
	)
	// CORS preflights never reach a route otherwise
	api.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	svc.Analytics.RegisterRoutes(api, admin.RequireAdmin(svc.AdminAuth))
	svc.Turnstile.RegisterRoutes(api)
	svc.Admin.RegisterRoutes(api.Group("/admin"))

	v1 := api.Group("/v1")
	svc.Settings.RegisterRoutes(v1)
	svc.Navigation.RegisterRoutes(v1)
	svc.Movies.RegisterRoutes(v1)

	svc.Navigation.RegisterRedirect(router)
	svc.Sessions.RegisterRoutes(router)

	router.NoRoute(static(config.Server.WebRoot))
	return router, nil
}

// NewHTTPServer 创建 HTTP 服务
func NewHTTPServer(config *conf.Config, log *logger.Logger, rdb *redis.Client, m *metrics.Metrics, svc Services) (*HTTPServer, error) {
	router, err := NewRouter(config, log, rdb, m, svc)
	if err != nil {
		return nil, err
	}
	return &HTTPServer{
		server: &http.Server{
			Addr:         config.Server.Addr(),
			Handler:      router,
			ReadTimeout:  config.Server.ReadTimeout,
			WriteTimeout: config.Server.WriteTimeout,
		},
		logger: log,
	}, nil
}

func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

func health(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status, code := "ok", http.StatusOK
		if err := rdb.Ping(ctx); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	}
}

// static serves files under root. Unknown page paths get index.html so
// client-side links keep working; unknown /api paths get a JSON 404.
func static(root string) gin.HandlerFunc {
	fsys := gin.Dir(root, false)
	return func(c *gin.Context) {
		p := c.Request.URL.Path
		if strings.HasPrefix(p, "/api/") {
			response.ErrorWithCode(c, apperrors.ErrNotFound)
			return
		}
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			response.ErrorWithCode(c, apperrors.ErrNotFound)
			return
		}

		if servable(fsys, p) {
			c.FileFromFS(p, fsys)
			return
		}
		if ext := path.Ext(p); ext != "" && ext != ".html" {
			c.Status(http.StatusNotFound)
			return
		}
		// the root directory serves its index.html
		c.FileFromFS("/", fsys)
	}
}

// servable reports whether name is a file, or a directory holding an
// index.html.
func servable(fsys http.FileSystem, name string) bool {
	f, err := fsys.Open(name)
	if err != nil {
		return false
	}
	info, err := f.Stat()
	_ = f.Close()
	if err != nil {
		return false
	}
	if !info.IsDir() {
		return true
	}
	idx, err := fsys.Open(path.Join(name, "index.html"))
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}
