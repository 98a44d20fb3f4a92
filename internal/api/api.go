// Package api provides the HTTP REST API server.
package api

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/good-yellow-bee/projectdesk/internal/api/auth"
	"github.com/good-yellow-bee/projectdesk/internal/api/chats"
	"github.com/good-yellow-bee/projectdesk/internal/api/files"
	"github.com/good-yellow-bee/projectdesk/internal/api/health"
	"github.com/good-yellow-bee/projectdesk/internal/api/middleware"
	"github.com/good-yellow-bee/projectdesk/internal/chat"
	"github.com/good-yellow-bee/projectdesk/internal/collab"
	"github.com/good-yellow-bee/projectdesk/internal/filestore"
	"github.com/good-yellow-bee/projectdesk/internal/storage"
)

// Config contains HTTP API server configuration.
type Config struct {
	Address          string
	JWTSecret        []byte
	HTTPTLSEnabled   bool
	HTTPTLSCertFile  string
	HTTPTLSKeyFile   string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	RateLimitPerIP   int // requests per minute on auth endpoints
	RateLimitPerUser int // requests per minute per authenticated user
	LockoutThreshold int
	LockoutDuration  time.Duration
	MaxUploadFiles   int
	MaxUploadBytes   int64
	// PublicListing lets anonymous callers list every project.
	PublicListing bool
	Chat          chats.Config
	Verbose       bool
}

// SetDefaults applies default values for missing configuration.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = time.Hour
	}
	if c.RefreshTokenTTL == 0 {
		c.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if c.RateLimitPerIP == 0 {
		c.RateLimitPerIP = 20
	}
	if c.RateLimitPerUser == 0 {
		c.RateLimitPerUser = 300
	}
	if c.LockoutThreshold == 0 {
		c.LockoutThreshold = auth.DefaultLockoutThreshold
	}
	if c.LockoutDuration == 0 {
		c.LockoutDuration = auth.DefaultLockoutDuration
	}
	if c.MaxUploadFiles == 0 {
		c.MaxUploadFiles = collab.DefaultMaxFiles
	}
	if c.MaxUploadBytes == 0 {
		c.MaxUploadBytes = files.DefaultMaxBytes
	}
	defaults := chats.DefaultConfig()
	if c.Chat.Client == (chat.ClientConfig{}) {
		c.Chat.Client = defaults.Client
	}
	if c.Chat.Heartbeat == 0 {
		c.Chat.Heartbeat = defaults.Heartbeat
	}
	if c.Chat.MaxStreamDuration == 0 {
		c.Chat.MaxStreamDuration = defaults.MaxStreamDuration
	}
	if c.Chat.Reconnect == 0 {
		c.Chat.Reconnect = defaults.Reconnect
	}
}

// Deps are the collaborators the server is built on.
type Deps struct {
	Store storage.Storage
	Files *filestore.Store
	Hub   *chat.Hub
	// Publisher fans out posted chat messages. Defaults to Hub; set it to a
	// chat.RedisRelay to reach other processes.
	Publisher collab.Publisher
}

// Services are the domain services behind the routes.
type Services struct {
	Projects *collab.ProjectService
	Files    *collab.FileService
	Tasks    *collab.TaskService
	Chat     *collab.ChatService
	Explore  *collab.ExploreService
	Calendar *collab.CalendarService
	Accounts *collab.AccountService
}

// NewServices wires the domain services over store, files and publisher.
func NewServices(store storage.Storage, fs *filestore.Store, publisher collab.Publisher, maxFiles int) *Services {
	projects := collab.NewProjectService(store, fs)
	return &Services{
		Projects: projects,
		Files:    collab.NewFileService(store, fs, maxFiles),
		Tasks:    collab.NewTaskService(store),
		Chat:     collab.NewChatService(store, publisher),
		Explore:  collab.NewExploreService(store, projects),
		Calendar: collab.NewCalendarService(store),
		Accounts: collab.NewAccountService(store),
	}
}

// Server is the HTTP API server.
type Server struct {
	config        *Config
	deps          Deps
	services      *Services
	jwt           *auth.JWTService
	tokens        *auth.TokenService
	lockout       *auth.LockoutTracker
	ipLimiter     *middleware.RateLimiter
	userLimiter   *middleware.RateLimiter
	server        *http.Server
	healthHandler *health.Handler
}

// New creates a new API server.
func New(cfg *Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if deps.Files == nil {
		return nil, fmt.Errorf("file store is required")
	}
	if deps.Hub == nil {
		return nil, fmt.Errorf("chat hub is required")
	}
	if len(cfg.JWTSecret) == 0 {
		return nil, fmt.Errorf("JWT secret is required")
	}
	cfg.SetDefaults()
	if deps.Publisher == nil {
		deps.Publisher = deps.Hub
	}

	s := &Server{
		config:        cfg,
		deps:          deps,
		services:      NewServices(deps.Store, deps.Files, deps.Publisher, cfg.MaxUploadFiles),
		jwt:           auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL),
		tokens:        auth.NewTokenService(deps.Store, cfg.RefreshTokenTTL),
		lockout:       auth.NewLockoutTracker(cfg.LockoutThreshold, cfg.LockoutDuration),
		ipLimiter:     middleware.NewRateLimiter(cfg.RateLimitPerIP),
		userLimiter:   middleware.NewRateLimiter(cfg.RateLimitPerUser),
		healthHandler: health.NewHandler(),
	}

	s.server = &http.Server{
		Addr:        cfg.Address,
		Handler:     s.setupRouter(),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: chat streams and websockets are long-lived.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	if cfg.HTTPTLSEnabled {
		s.server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
	}
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Services returns the domain services used by the routes.
func (s *Server) Services() *Services {
	return s.services
}

// Run starts the HTTP server and its housekeeping loops and blocks until
// ctx is canceled. Request contexts derive from ctx, so open websockets
// and streams end on shutdown.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	s.server.BaseContext = func(net.Listener) context.Context { return ctx }

	g.Go(func() error {
		log.WithField("address", s.config.Address).Info("HTTP API listening")
		var err error
		if s.config.HTTPTLSEnabled {
			err = s.server.ListenAndServeTLS(s.config.HTTPTLSCertFile, s.config.HTTPTLSKeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down HTTP API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	})

	g.Go(func() error { return s.lockout.Run(ctx, time.Minute) })
	g.Go(func() error { return s.ipLimiter.Run(ctx, 10*time.Minute) })
	g.Go(func() error { return s.userLimiter.Run(ctx, 10*time.Minute) })
	g.Go(func() error { return s.cleanupTokens(ctx, time.Hour) })

	return g.Wait()
}

func (s *Server) cleanupTokens(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.tokens.Cleanup(ctx)
			if err != nil {
				log.WithError(err).Warn("refresh token cleanup failed")
				continue
			}
			if n > 0 {
				log.WithField("count", n).Debug("expired refresh tokens removed")
			}
		}
	}
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.config.Address
}

// RegisterHealthChecker adds a health checker to the server.
func (s *Server) RegisterHealthChecker(c health.Checker) {
	if s.healthHandler != nil {
		s.healthHandler.RegisterChecker(c)
	}
}
