// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"time"

	"github.com/clearledger/portal-api/app/dto"
	"github.com/clearledger/portal-api/app/handlers"
	"github.com/clearledger/portal-api/app/middleware"
	"github.com/clearledger/portal-api/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// Handlers bundles every handler the router mounts
type Handlers struct {
	Auth      handlers.AuthHandlerInterface
	AdminAuth *handlers.AdminAuthHandler
	Account   *handlers.AccountHandler
	Partner   *handlers.PartnerHandler
	Consent   *handlers.ConsentHandler
	Purchase  *handlers.PurchaseHandler
	Admin     *handlers.AdminHandler
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app      *fiber.App
	handlers Handlers
	authMw   *middleware.AuthMiddleware
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(h Handlers, authMw *middleware.AuthMiddleware) Router {
	app := fiber.New(fiber.Config{
		AppName:      "ClearLedger Portal API",
		ServerHeader: "ClearLedger",
		ErrorHandler: errorHandler,
		BodyLimit:    4 * 1024 * 1024, // 4MB
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:      app,
		handlers: h,
		authMw:   authMw,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	r.setupMiddleware()

	r.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	// General rate limiting for all API routes
	api.Use(limiter.New(limiter.Config{
		Max:        2000,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: rateLimitReached,
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/api/v1/health"
		},
	}))

	// Auth routes with stricter rate limiting
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:        20,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: rateLimitReached,
	}))

	auth.Post("/signup", r.handlers.Auth.Signup)
	auth.Post("/login", r.handlers.Auth.Login)
	auth.Post("/refresh", r.handlers.Auth.Refresh)
	auth.Post("/logout", r.handlers.Auth.Logout, r.authMw.Authenticate())

	// Back-office login shares the auth rate limit profile
	adminAuth := api.Group("/admin/auth")
	adminAuth.Use(limiter.New(limiter.Config{
		Max:        20,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: rateLimitReached,
	}))
	adminAuth.Post("/captcha/init", r.handlers.AdminAuth.CaptchaInit)
	adminAuth.Post("/login", r.handlers.AdminAuth.Login)

	// Service catalogue is public
	api.Get("/services", r.handlers.Purchase.ListServices)

	// Payment gateway webhook: authenticated by signature, not by token
	api.Post("/payments/stripe/webhook", r.handlers.Purchase.StripeWebhook)

	// Account routes
	accounts := api.Group("/accounts", r.authMw.Authenticate())
	accounts.Post("/", r.handlers.Account.Create)
	accounts.Get("/", r.handlers.Account.List)
	accounts.Get("/:uuid", r.handlers.Account.Get)
	accounts.Put("/:uuid", r.handlers.Account.Update)
	accounts.Delete("/:uuid", r.handlers.Account.Delete)
	accounts.Post("/:uuid/submit", r.handlers.Account.Submit)
	accounts.Post("/:uuid/close", r.handlers.Account.Close)
	accounts.Post("/:uuid/reopen", r.handlers.Account.Reopen)
	accounts.Get("/:uuid/partners", r.handlers.Partner.ListByAccount)
	accounts.Get("/:uuid/partners/check-email", r.handlers.Partner.CheckEmail)
	accounts.Get("/:uuid/consents", r.handlers.Consent.List)
	accounts.Get("/:uuid/consents/check", r.handlers.Consent.Check)
	accounts.Get("/:uuid/purchases", r.handlers.Purchase.ListByAccount)

	// Partner routes. "/invitations" is registered before "/:uuid" so
	// the literal segment wins.
	partners := api.Group("/partners", r.authMw.Authenticate())
	partners.Get("/invitations", r.handlers.Partner.MyInvitations)
	partners.Post("/company", r.handlers.Partner.AddCompanyPartner)
	partners.Post("/trust", r.handlers.Partner.AddTrustPartner)
	partners.Post("/partnership", r.handlers.Partner.AddPartnershipPartner)
	partners.Put("/:uuid", r.handlers.Partner.Update)
	partners.Delete("/:uuid", r.handlers.Partner.Remove)
	partners.Post("/:uuid/respond", r.handlers.Partner.Respond)
	partners.Post("/:uuid/resend", r.handlers.Partner.Resend)

	// Consent routes
	api.Post("/consents", r.handlers.Consent.Accept, r.authMw.Authenticate())

	// Purchase routes
	api.Post("/purchases", r.handlers.Purchase.Purchase, r.authMw.Authenticate())

	// Back-office routes
	admin := api.Group("/admin", r.authMw.AdminAuthenticate())
	admin.Get("/purchases", r.handlers.Admin.ListPurchases)
	admin.Get("/purchases/export", r.handlers.Admin.ExportPurchases)
	admin.Patch("/purchases/:uuid/status", r.handlers.Admin.UpdatePurchaseStatus)
	admin.Get("/accounts", r.handlers.Admin.ListAccounts)
	admin.Post("/accounts/:uuid/activate", r.handlers.Admin.ActivateAccount)
	admin.Post("/accounts/:uuid/suspend", r.handlers.Admin.SuspendAccount)

	// Not found handler
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

	// Security headers middleware
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		HSTSMaxAge:                31536000, // 1 year
		HSTSExcludeSubdomains:     false,
		ContentSecurityPolicy:     "default-src 'self'; frame-ancestors 'none';",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginEmbedderPolicy: "require-corp",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		OriginAgentCluster:        "?1",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	// CORS middleware with production settings
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"https://clearledger.com.au",
			"https://app.clearledger.com.au",
			"https://admin.clearledger.com.au",
		},
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
			"Stripe-Signature",
			"Cache-Control",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
			"X-Response-Time",
		},
		AllowCredentials: true,
		MaxAge:           utils.CORSMaxAge,
	}))

	// Compression middleware for performance
	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
		Next: func(c fiber.Ctx) bool {
			// XLSX downloads are already deflate-compressed
			contentType := c.Get("Content-Type")
			return contentType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		},
	}))

	// Request metrics
	r.app.Use(middleware.Metrics())

	// Structured request logging
	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","pid":"${pid}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent},"referer":"${referer}"}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/api/v1/health" || c.Path() == "/metrics"
		},
	}))

	// Recovery middleware with custom error handling
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
			"service":   "clearledger-portal-api",
		},
	})
}

// Not found handler
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

func rateLimitReached(c fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
		Success: false,
		Message: "Too many requests. Please try again later.",
		Error: dto.ErrorDetail{
			Code: "RATE_LIMIT_EXCEEDED",
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
