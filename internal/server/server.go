package server

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"speakwise-feedback/internal/backend"
	"speakwise-feedback/internal/cache"
	"speakwise-feedback/internal/common"
	"speakwise-feedback/internal/config"
	"speakwise-feedback/internal/email"
	"speakwise-feedback/internal/feedback"
	"speakwise-feedback/internal/handlers"

	"github.com/go-playground/validator"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	resend "github.com/resend/resend-go/v2"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// CustomValidator Source: https://echo.labstack.com/docs/request#validate-data
type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

type SentryLogger struct {
	echo.Logger
}

func (l *SentryLogger) Error(i ...interface{}) {
	if err, ok := i[0].(error); ok {
		handlers.CaptureError(err)
	} else {
		handlers.CaptureError(fmt.Errorf("%v", i...))
	}
	l.Logger.Error(i...)
}

func (l *SentryLogger) Errorf(format string, args ...interface{}) {
	handlers.CaptureError(fmt.Errorf(format, args...))
	l.Logger.Errorf(format, args...)
}

type Server struct {
	common.ServerState
}

func New(cfg *config.Config) *Server {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}
	e.Logger = &SentryLogger{Logger: e.Logger}
	e.Logger.SetLevel(log.INFO)
	if cfg.Server.Debug {
		e.Logger.SetLevel(log.DEBUG)
	}

	return &Server{
		common.ServerState{
			Echo:   e,
			Config: cfg,
		},
	}
}

func (s *Server) Initialize() error {
	if err := s.setupStore(); err != nil {
		return err
	}

	s.setupRedis()

	s.setupCache()

	s.setupEmailClient()

	s.setupPipeline()

	if err := s.setupMetrics(); err != nil {
		return err
	}

	s.setupRoutes()

	// Keep last to avoid Recover middleware and panic if something goes wrong on init
	s.setupMiddleware()

	return nil
}

// setupStore talks to the REST backend when one is configured and otherwise
// serves feedback from the local database.
func (s *Server) setupStore() error {
	if s.Config.Backend.URL != "" {
		s.Echo.Logger.Infof("Using conference backend at %s", s.Config.Backend.URL)
		s.Store = backend.NewRemoteClient(s.Config.Backend.URL, s.Config.Backend.APIToken, s.Config.Backend.Timeout, s.Echo.Logger)
		return nil
	}

	if err := s.setupDatabase(); err != nil {
		return err
	}
	local := backend.NewLocalStore(s.DB)
	if err := local.Migrate(); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	s.Store = local
	return nil
}

func (s *Server) setupDatabase() error {
	dsn := s.Config.Database.DSN
	if dsn == "" {
		return fmt.Errorf("DATABASE_DSN is required when BACKEND_URL is not set")
	}

	var db *gorm.DB
	var err error

	// SQLite DSNs start with "file:"
	if strings.HasPrefix(dsn, "file:") {
		db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true, Logger: logger.Default.LogMode(logger.Silent)})
	} else {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true, Logger: logger.Default.LogMode(logger.Silent)})
	}

	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	s.DB = db
	return nil
}

func (s *Server) setupRedis() {
	url := s.Config.Database.RedisURI

	// Redis is optional, the in-process cache is used without it
	if url == "" {
		s.Echo.Logger.Warn("REDIS_URI not configured, using in-process cache")
		s.Redis = nil
		return
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		s.Echo.Logger.Warnf("Failed to parse Redis URL: %v, using in-process cache", err)
		s.Redis = nil
		return
	}

	s.Redis = redis.NewClient(opts)

	ctx := context.Background()
	result := s.Redis.Ping(ctx)
	if result.Err() != nil {
		s.Echo.Logger.Warnf("Redis connection failed: %v, using in-process cache", result.Err())
		s.Redis = nil
		return
	}
}

func (s *Server) setupCache() {
	if s.Redis != nil {
		s.Cache = cache.NewRedis(s.Redis)
		return
	}
	s.Cache = cache.NewMemory()
}

func (s *Server) setupEmailClient() {
	apiKey := s.Config.Resend.APIKey
	if apiKey == "" {
		s.Echo.Logger.Warn("RESEND_API_KEY not configured, feedback receipts will be disabled")
		return
	}

	resendClient := resend.NewClient(apiKey)
	s.EmailClient = email.NewResendEmailClient(resendClient,
		s.Config.Resend.DefaultSender,
		s.Echo.Logger)
}

func (s *Server) setupPipeline() {
	cfg := s.Config

	s.Verifier = handlers.NewVerificationAuth(cfg.Feedback.VerificationSecret, cfg.Feedback.VerificationTTL, s.Cache)
	s.Gate = feedback.NewGate(s.Store, cfg.Feedback.VirtualEmail, s.Echo.Logger)

	s.Feedback = feedback.NewService(s.Store, cfg.Feedback.VirtualAttendeeID, s.Echo.Logger)
	if s.EmailClient != nil {
		s.Feedback.SetNotifier(s.EmailClient)
	}

	s.Resolver = feedback.NewResolver(s.Store, s.Cache, cfg.Cache.TTL, cfg.Feedback.EnrichConcurrency, s.Echo.Logger)
	s.Resolver.SetErrorReporter(handlers.CaptureError)

	s.Source = feedback.NewSource(s.Store, s.Cache, cfg.Cache.TTL, s.Echo.Logger)
}

func (s *Server) setupMiddleware() {
	s.Echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			handlers.VerificationHeader,
		},
	}))
	s.Echo.Use(middleware.RequestID())
	s.Echo.Use(middleware.Recover())
	// Try to add prometheus middleware, but don't panic if already registered (e.g., in tests)
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok && err.Error() == "duplicate metrics collector registration attempted" {
				s.Echo.Logger.Warn("Prometheus middleware already registered, skipping")
			} else {
				panic(r)
			}
		}
	}()
	s.Echo.Use(echoprometheus.NewMiddleware("speakwise_feedback"))
}

func (s *Server) setupMetrics() error {
	if err := feedback.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	// Only register Redis metrics if Redis is available
	if s.Redis == nil {
		return nil
	}

	err := prometheus.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Subsystem: "redis",
			Name:      "connected_clients",
			Help:      "The number of clients currently connected to Redis",
		},
		func() float64 {
			ctx := context.Background()
			connectedClientsRaw := s.Redis.InfoMap(ctx).Item("Clients", "connected_clients")

			connectedClients, err := strconv.ParseFloat(connectedClientsRaw, 64)
			if err != nil {
				return math.NaN()
			}

			return connectedClients
		},
	))
	if err != nil {
		s.Echo.Logger.Warnf("Redis metrics not registered: %v", err)
	}
	return nil
}

func (s *Server) setupRoutes() {
	handlers.SetupSentry(s.Echo, s.Config)

	fh := handlers.NewFeedbackHandler(s.ServerState)

	// API routes group
	api := s.Echo.Group("/api")

	// Public API endpoints
	api.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	api.GET("/metrics", echoprometheus.NewHandler())

	// Verification gate and submission
	api.POST("/attendees/verify", fh.VerifyAttendee)
	api.POST("/feedback", fh.SubmitFeedback, s.Verifier.Middleware())

	// Routes acting on behalf of a signed-in backend user
	protectedAPI := api.Group("/auth", handlers.ForwardBearer())

	protectedAPI.GET("/feedback", fh.ListFeedback)
	protectedAPI.PATCH("/feedback/:id", fh.EditFeedback)
	protectedAPI.GET("/feedback/trends", fh.FeedbackTrends)
	protectedAPI.GET("/sessions/summaries", fh.SessionSummaries)

	s.Echo.Any("/*", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "API endpoint not found")
	})
}

func (s *Server) Start() error {
	serverURL := s.Config.Server.Host + ":" + s.Config.Server.Port
	return s.Echo.Start(serverURL)
}

// Shutdown stops the HTTP server and closes the connections it owns.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Echo.Shutdown(ctx)
	if s.Redis != nil {
		s.Redis.Close()
	}
	if closer, ok := s.Cache.(io.Closer); ok {
		closer.Close()
	}
	if s.DB != nil {
		if sqlDB, dbErr := s.DB.DB(); dbErr == nil {
			sqlDB.Close()
		}
	}
	return err
}
