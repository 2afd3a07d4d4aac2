// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/polisku/commission-engine/app/dto"
	"github.com/polisku/commission-engine/app/handlers"
	"github.com/polisku/commission-engine/app/middleware"
	"github.com/polisku/commission-engine/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app               *fiber.App
	authMiddleware    *middleware.AuthMiddleware
	authHandler       handlers.AuthHandlerInterface
	referralHandler   handlers.ReferralHandlerInterface
	paymentHandler    handlers.PaymentHandlerInterface
	walletHandler     handlers.WalletHandlerInterface
	withdrawalHandler handlers.WithdrawalHandlerInterface
	rateAdminHandler  handlers.RateAdminHandlerInterface
	reportHandler     handlers.ReportAdminHandlerInterface
	allowedOrigins    []string
	serviceToken      string
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	authMiddleware *middleware.AuthMiddleware,
	authHandler handlers.AuthHandlerInterface,
	referralHandler handlers.ReferralHandlerInterface,
	paymentHandler handlers.PaymentHandlerInterface,
	walletHandler handlers.WalletHandlerInterface,
	withdrawalHandler handlers.WithdrawalHandlerInterface,
	rateAdminHandler handlers.RateAdminHandlerInterface,
	reportHandler handlers.ReportAdminHandlerInterface,
	allowedOrigins []string,
	serviceToken string,
) Router {
	app := fiber.New(fiber.Config{
		AppName:      "Commission Engine API",
		ServerHeader: "commission-engine",
		ErrorHandler: errorHandler,
		BodyLimit:    1 * 1024 * 1024, // 1MB
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:               app,
		authMiddleware:    authMiddleware,
		authHandler:       authHandler,
		referralHandler:   referralHandler,
		paymentHandler:    paymentHandler,
		walletHandler:     walletHandler,
		withdrawalHandler: withdrawalHandler,
		rateAdminHandler:  rateAdminHandler,
		reportHandler:     reportHandler,
		allowedOrigins:    allowedOrigins,
		serviceToken:      serviceToken,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	r.setupMiddleware()

	// Prometheus scrape endpoint, outside the API group and rate limiter
	r.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := r.app.Group("/api/v1")

	api.Get("/health", r.healthCheck)

	api.Use(limiter.New(limiter.Config{
		Max:        2000,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/api/v1/health"
		},
	}))

	// Authentication
	auth := api.Group("/auth")
	auth.Post("/admin/login", r.authHandler.AdminLogin)
	auth.Post("/refresh", r.authHandler.RefreshToken)
	auth.Post("/logout", r.authHandler.Logout)

	// Event intake from collaborator services (registration, payment
	// verification). Callers authenticate with the shared service token.
	serviceAuth := middleware.ServiceAuthenticate(r.serviceToken)
	api.Post("/referrals", serviceAuth, r.referralHandler.RecordReferral)
	api.Post("/payments/verified", serviceAuth, r.paymentHandler.PaymentVerified)

	// Referral queries
	api.Get("/referrals/:agent_code/upline", r.referralHandler.GetUplineChain)
	api.Get("/referrals/:agent_code/downline", r.referralHandler.GetDownlineCounts)

	// Agent-facing endpoints
	wallet := api.Group("/wallet", r.authMiddleware.Authenticate())
	wallet.Get("/summary", r.walletHandler.GetWalletSummary)
	wallet.Get("/commissions", r.walletHandler.GetCommissionHistory)

	withdrawals := api.Group("/withdrawals", r.authMiddleware.Authenticate())
	withdrawals.Post("/", r.withdrawalHandler.RequestWithdrawal)
	withdrawals.Get("/", r.withdrawalHandler.ListMyWithdrawals)

	// Back-office endpoints
	admin := api.Group("/admin", r.authMiddleware.AdminAuthenticate())
	admin.Post("/agents/tokens", r.authHandler.IssueAgentTokens)
	admin.Get("/withdrawals", r.withdrawalHandler.ListWithdrawals)
	admin.Post("/withdrawals/:uuid/approve", r.withdrawalHandler.ApproveWithdrawal)
	admin.Post("/withdrawals/:uuid/reject", r.withdrawalHandler.RejectWithdrawal)
	admin.Post("/withdrawals/:uuid/pay", r.withdrawalHandler.MarkWithdrawalPaid)
	admin.Put("/commission-rates", r.rateAdminHandler.UpsertCommissionRate)
	admin.Get("/commission-rates/:plan_id", r.rateAdminHandler.ListCommissionRates)
	admin.Get("/reports/commissions", r.reportHandler.GetCommissionReport)
	admin.Get("/reports/commissions/export", r.reportHandler.ExportCommissionReport)

	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'; frame-ancestors 'none';",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins: r.allowedOrigins,
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Requested-With",
			"X-Request-ID",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
		},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Structured request logging
	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","pid":"${pid}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/api/v1/health" || c.Path() == "/metrics"
		},
	}))

	r.app.Use(middleware.Metrics())

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e interface{}) {
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				c.Locals("requestid"),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Health check endpoint
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"version":   "1.0.0",
			"service":   "commission-engine",
		},
	})
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	requestID := c.Locals("requestid")

	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestID,
			},
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("Error %d: %v", code, err)

	requestID := c.Locals("requestid")

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: "An internal server error occurred",
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestID,
			},
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
