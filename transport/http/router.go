package http

import (
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/layer-3/wallet2fa/service"
)

// RouterOptions wires the optional parts of the router
type RouterOptions struct {
	Clock  clock.Clock
	Logger logrus.FieldLogger
	// "*" or empty allows any origin
	CORSOrigins []string
	// proxies whose X-Forwarded-For is trusted; nil uses the socket address
	TrustedProxies []string
	// rate limiting on /auth is skipped when nil
	Redis     *redis.Client
	RateLimit int
	// /metrics is mounted when set
	Gatherer prometheus.Gatherer
}

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, opts RouterOptions) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	router := gin.New()
	if err := router.SetTrustedProxies(opts.TrustedProxies); err != nil {
		opts.Logger.WithError(err).Warn("invalid trusted proxies, using the socket address")
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(
		RequestID(),
		Logger(opts.Logger),
		Recovery(opts.Logger),
		cors.New(corsConfig(opts.CORSOrigins)),
	)

	handlers := NewAuthHandlers(authService, opts.Clock)

	router.GET("/", handlers.Index)
	router.GET("/api", handlers.Index)
	registerRoutes(router.Group("/"), authService, handlers, opts)
	registerRoutes(router.Group("/api"), authService, handlers, opts)

	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	router.NoRoute(handlers.NotFound)

	return router
}

func registerRoutes(rg *gin.RouterGroup, authService *service.AuthService, handlers *AuthHandlers, opts RouterOptions) {
	rg.GET("/health", handlers.Health)
	rg.POST("/proof/verify", handlers.VerifyProof)

	auth := rg.Group("/auth")
	auth.Use(RateLimit(opts.Redis, opts.RateLimit))
	{
		auth.POST("/nonce", handlers.Nonce)
		auth.POST("/verify", handlers.Verify)
	}

	user := rg.Group("/user")
	user.Use(AuthMiddleware(authService))
	{
		user.GET("/profile", handlers.Profile)
		user.GET("/milestone", handlers.Milestone)
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}

	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
		return cfg
	}

	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
