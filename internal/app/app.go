package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmorozov-pr/identity-service/internal/config"
	"github.com/dmorozov-pr/identity-service/internal/handler"
	"github.com/dmorozov-pr/identity-service/internal/identity"
	"github.com/dmorozov-pr/identity-service/internal/repository"
	"github.com/dmorozov-pr/identity-service/internal/service"
	"github.com/dmorozov-pr/identity-service/internal/utils"
	"github.com/dmorozov-pr/identity-service/pkg/observability"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	infra   Infrastructure
	config  *config.Config
	router  *gin.Engine
	server  *http.Server
	sweeper *Sweeper
}

func NewApp(infra Infrastructure, cfg *config.Config) *App {
	repos := repository.NewRepositories(infra.Postgres())

	jwtManager := utils.NewJWTManager(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.AccessTokenExpiry.Duration,
	)

	var idp identity.ExternalIdentityProvider = identity.Noop{}
	if cfg.Identity.Enabled() {
		idp = identity.NewHTTPProvider(cfg.Identity)
	}

	blacklistService := service.NewTokenBlacklistService(infra.Redis())
	rateLimiter := service.NewRateLimiter(infra.Redis())
	healthChecker := NewHealthChecker(infra)

	tokenService := service.NewTokenService(
		repos.RefreshToken,
		repos.User,
		jwtManager,
		cfg.JWT.RefreshTokenExpiry.Duration,
		infra.Logger(),
	)
	otpService := service.NewOTPService(
		repos.OTP,
		repos.User,
		infra.SMSSender(),
		cfg.OTP,
		infra.Logger(),
	)
	verificationService := service.NewEmailVerificationService(
		repos.Verification,
		repos.User,
		infra.Mailer(),
		cfg.Verify,
		cfg.Mail.BaseURL,
		infra.Logger(),
	)
	resetService := service.NewPasswordResetService(
		repos.PasswordReset,
		repos.User,
		tokenService,
		infra.Mailer(),
		cfg.Reset,
		cfg.Security.BCryptCost,
		cfg.Mail.BaseURL,
		infra.Logger(),
	)
	roleService := service.NewRoleService(
		repos.Role,
		repos.User,
		idp,
		infra.Logger(),
	)
	authService := service.NewAuthService(
		repos.User,
		tokenService,
		otpService,
		verificationService,
		roleService,
		blacklistService,
		idp,
		cfg.Security.BCryptCost,
		infra.Logger(),
	)

	authHandler := handler.NewAuthHandler(
		authService,
		tokenService,
		otpService,
		verificationService,
		resetService,
		blacklistService,
		cfg.JWT.AccessTokenExpiry.Duration,
	)
	roleHandler := handler.NewRoleHandler(roleService)
	wellKnownHandler := handler.NewWellKnownHandler(cfg.JWT.Issuer, cfg.Mail.BaseURL)

	sweeper := NewSweeper(
		cfg.Sweeper,
		tokenService,
		otpService,
		verificationService,
		resetService,
		infra.Logger(),
	)

	router := gin.Default()
	router.Use(otelgin.Middleware("identity-service"))
	router.Use(handler.LoggerMiddleware(infra.Logger()))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	setupRoutes(router, cfg, authHandler, roleHandler, wellKnownHandler, authService, roleService, rateLimiter, healthChecker, infra.MetricsHandler())

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:   infra,
		config:  cfg,
		router:  router,
		server:  srv,
		sweeper: sweeper,
	}
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	authHandler *handler.AuthHandler,
	roleHandler *handler.RoleHandler,
	wellKnownHandler *handler.WellKnownHandler,
	authService service.AuthService,
	roleService service.RoleService,
	rateLimiter *service.RateLimiter,
	healthChecker *HealthChecker,
	metricsHandler http.Handler,
) {
	router.GET("/metrics", observability.PrometheusHandler(metricsHandler))
	router.GET("/health", healthChecker.Handler)
	router.GET("/.well-known/jwks.json", wellKnownHandler.JWKS)
	router.GET("/.well-known/openid_configuration", wellKnownHandler.OpenIDConfiguration)

	limited := func() gin.HandlerFunc {
		return handler.RateLimitMiddleware(rateLimiter, cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow.Duration, handler.IPBasedKey)
	}
	authorized := handler.AuthMiddleware(authService)

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", limited(), authHandler.Register)
			auth.POST("/login", limited(), authHandler.Login)
			auth.POST("/send-otp", limited(), authHandler.SendOTP)
			auth.POST("/verify-otp", limited(), authHandler.VerifyOTP)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/revoke", authHandler.Revoke)
			auth.POST("/revoke-all", authorized, authHandler.RevokeAll)
			auth.GET("/verify-email", authHandler.VerifyEmail)
			auth.POST("/resend-verification", limited(), authHandler.ResendVerification)
			auth.POST("/forgot-password", limited(), authHandler.ForgotPassword)
			auth.GET("/reset-password/validate", authHandler.ValidateResetToken)
			auth.POST("/reset-password", limited(), authHandler.ResetPassword)
			auth.GET("/me", authorized, authHandler.GetMe)
		}

		roles := api.Group("/roles", authorized)
		{
			roles.POST("/assign", roleHandler.Assign)
			roles.POST("/revoke", handler.RequirePermission(roleService, "roles:revoke"), roleHandler.Revoke)
			roles.GET("/statistics", handler.RequirePermission(roleService, "roles:read"), roleHandler.Statistics)
			roles.GET("/users/:user_id/history", handler.RequirePermission(roleService, "roles:read"), roleHandler.History)
			roles.GET("/:role/users", handler.RequirePermission(roleService, "roles:read"), roleHandler.UsersWithRole)
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	sweepCtx, stopSweeps := context.WithCancel(ctx)
	defer stopSweeps()
	a.sweeper.Start(sweepCtx)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	stopSweeps()
	a.sweeper.Wait()

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := make(chan error, 2)

	go func() {
		errs <- a.server.Shutdown(ctx)
	}()

	go func() {
		errs <- a.infra.Shutdown(ctx)
	}()

	err := errors.Join(<-errs, <-errs)
	if err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
