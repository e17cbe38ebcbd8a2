package router

import (
	"fmt"
	"time"

	"github.com/chantier/backend/internal/infrastructure/auth"
	"github.com/chantier/backend/internal/infrastructure/config"
	"github.com/chantier/backend/internal/infrastructure/logger"
	"github.com/chantier/backend/internal/interfaces/http/handler"
	"github.com/chantier/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// EngineConfig holds everything NewEngine wires together
type EngineConfig struct {
	HTTP     config.HTTPConfig
	Auth     config.AuthConfig
	Swagger  config.SwaggerConfig
	Tracing  middleware.TracingConfig
	Security middleware.SecurityConfig
	Logger   *zap.Logger
	Handlers Handlers
	Health   *handler.HealthHandler
	// DocumentsDir is served under /api/v1/documents when set
	DocumentsDir   string
	RequestTimeout time.Duration
}

// NewEngine builds the gin engine with the full middleware chain and routes
func NewEngine(cfg EngineConfig) (*gin.Engine, error) {
	log := logger.OrNop(cfg.Logger)

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	cors := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		middleware.Tracing(cfg.Tracing),
		middleware.SpanEnricher(),
		logger.GinMiddleware(log),
		middleware.Secure(cfg.Security),
		middleware.CORS(cors),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.Timeout(cfg.RequestTimeout),
	)

	if cfg.Health != nil {
		engine.GET("/health", cfg.Health.Check)
	}

	var apiMiddleware []gin.HandlerFunc
	var jwtAuth gin.HandlerFunc
	admin := func(c *gin.Context) { c.Next() }
	if cfg.Auth.Enabled {
		verifier := auth.NewVerifier(cfg.Auth)
		jwtAuth = middleware.JWTAuth(middleware.JWTMiddlewareConfig{
			Verifier: verifier,
			Logger:   log,
		})
		apiMiddleware = append(apiMiddleware, jwtAuth)
		admin = middleware.RequireAdmin(verifier)
	} else {
		log.Warn("API authentication is disabled")
	}

	// the route stays registered when disabled so it answers 404 in the API envelope
	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(cfg.Swagger, jwtAuth),
		ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := engine.Group(APIPrefix, apiMiddleware...)
	endpoints := Mount(api, LedgerRoutes(cfg.Handlers, admin)...)
	log.Debug("ledger API mounted", zap.Int("routes", len(endpoints)), zap.Strings("endpoints", endpoints))

	if cfg.DocumentsDir != "" {
		api.Static("/documents", cfg.DocumentsDir)
	}

	return engine, nil
}
