package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/obot-platform/pagerduty-app/pkg/apps"
	"github.com/obot-platform/pagerduty-app/pkg/bindings"
	"github.com/obot-platform/pagerduty-app/pkg/db"
	"github.com/obot-platform/pagerduty-app/pkg/encryption"
	"github.com/obot-platform/pagerduty-app/pkg/handlerutils"
	"github.com/obot-platform/pagerduty-app/pkg/kvstore"
	"github.com/obot-platform/pagerduty-app/pkg/oauth/account"
	"github.com/obot-platform/pagerduty-app/pkg/oauth/complete"
	"github.com/obot-platform/pagerduty-app/pkg/oauth/configure"
	"github.com/obot-platform/pagerduty-app/pkg/oauth/connect"
	"github.com/obot-platform/pagerduty-app/pkg/oauth/flow"
	"github.com/obot-platform/pagerduty-app/pkg/providers"
	"github.com/obot-platform/pagerduty-app/pkg/ratelimit"
	"github.com/obot-platform/pagerduty-app/pkg/types"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	DefaultCleanupSchedule = "@every 5m"
	RequestIDHeader        = "X-Request-Id"
)

type Server struct {
	config      *types.Config
	version     string
	db          *db.Store
	kv          *kvstore.Store
	flow        *flow.Orchestrator
	rateLimiter *ratelimit.RateLimiter
	appSecret   []byte
	cron        *cron.Cron
}

func New(config *types.Config, version string) (*Server, error) {
	if config.AppSecret == "" {
		return nil, fmt.Errorf("app secret is required")
	}
	if config.CorrelationTTL <= 0 {
		config.CorrelationTTL = flow.DefaultCorrelationTTL
	}
	if config.TokenTimeout <= 0 {
		config.TokenTimeout = providers.DefaultTokenTimeout
	}
	if config.OAuthScope == "" {
		config.OAuthScope = providers.DefaultScope
	}
	if config.CleanupSchedule == "" {
		config.CleanupSchedule = DefaultCleanupSchedule
	}
	if _, err := cron.ParseStandard(config.CleanupSchedule); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", config.CleanupSchedule, err)
	}
	if config.PublicURL != "" {
		if _, err := providers.ValidateBaseURL(config.PublicURL); err != nil {
			return nil, fmt.Errorf("invalid public URL: %w", err)
		}
	}

	encryptionKey, err := encryption.DecodeKey(config.EncryptionKey)
	if err != nil {
		return nil, err
	}

	if config.DatabaseDSN == "" {
		log.Info().Msg("DATABASE_DSN not set, using SQLite database at data/pagerduty_app.db")
	} else if db.IsPostgres(config.DatabaseDSN) {
		log.Info().Msg("Using PostgreSQL database")
	} else {
		log.Info().Str("path", config.DatabaseDSN).Msg("Using SQLite database")
	}

	store, err := db.New(config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	kv := kvstore.NewStore(encryptionKey)
	provider := providers.NewPagerDutyProvider(config.OAuthScope, config.TokenTimeout)

	return &Server{
		config:  config,
		version: version,
		db:      store,
		kv:      kv,
		flow: flow.New(store, kv, provider, kv, flow.Options{
			CorrelationTTL: config.CorrelationTTL,
		}),
		rateLimiter: ratelimit.NewRateLimiter(15*time.Minute, 5000),
		appSecret:   []byte(config.AppSecret),
		cron:        cron.New(),
	}, nil
}

func (s *Server) Close() error {
	<-s.cron.Stop().Done()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Start schedules the background cleanup of expired correlation entries and
// idle rate limiter buckets until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.config.CleanupSchedule, func() {
		if err := s.db.CleanupExpiredCorrelations(); err != nil {
			log.Error().Err(err).Msg("Failed to cleanup expired correlation entries")
		}
		s.rateLimiter.Cleanup()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}

	s.cron.Start()
	context.AfterFunc(ctx, func() {
		s.cron.Stop()
	})
	return nil
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /manifest.json", s.manifestHandler)

	mux.Handle("POST /oauth2/connect", s.withCall(connect.NewHandler(s.flow, s.config.PublicURL)))
	mux.Handle("POST "+connect.CompletePath, s.withCall(complete.NewHandler(s.flow)))
	mux.Handle("POST /bindings", s.withCall(bindings.NewHandler()))
	mux.Handle("POST "+bindings.ConfigurePath, s.withCall(configure.NewHandler(s.kv)))
	mux.Handle("POST "+bindings.ConnectPath, s.withCall(account.NewHandler()))
}

// GetHandler returns an http.Handler for the app
func (s *Server) GetHandler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)

	handler := withRequestLogger(mux)
	handler = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{}))(handler)
	return handlers.LoggingHandler(log.Logger, handler)
}

func (s *Server) withCall(next http.Handler) http.Handler {
	return s.withRateLimit(apps.WithCallAuthentication(s.appSecret, next))
}

// withRateLimit wraps a handler with rate limiting
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.rateLimiter != nil {
			clientIP := handlerutils.GetClientIP(r, s.config.TrustProxyHeaders)
			if !s.rateLimiter.Allow(clientIP) {
				apps.WriteResponse(w, http.StatusTooManyRequests, apps.NewErrorResponse("Rate limit exceeded"))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	handlerutils.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) manifestHandler(w http.ResponseWriter, r *http.Request) {
	rootURL := strings.TrimSuffix(s.config.PublicURL, "/")
	if rootURL == "" {
		rootURL = handlerutils.GetBaseURL(r, s.config.TrustProxyHeaders)
	}
	handlerutils.JSON(w, http.StatusOK, apps.NewManifest(rootURL, s.version))
}

// withRequestLogger tags every request with an id and a logger carrying it.
func withRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		logger := log.With().Str("request_id", requestID).Logger()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
	})
}

type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	log.Error().Msg(fmt.Sprint(v...))
}
