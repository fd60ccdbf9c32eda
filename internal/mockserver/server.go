// Package mockserver is an in-memory stand-in for the university administration backend.
//
// It issues short lived access tokens with refresh sessions, and serves the resource
// collections the client manages, so the client can be exercised end to end.
package mockserver

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/moweilong/univadmin/pkg/gin/middleware"
	"github.com/moweilong/univadmin/pkg/gin/validator"
)

var initValidator sync.Once

// Server represents the mock backend.
type Server struct {
	cfg    *Config
	engine *gin.Engine
	log    *zap.Logger

	collections map[string]*collection

	mu      sync.Mutex
	issued  map[string]struct{} // access tokens handed out
	revoked map[string]struct{} // access tokens expired on demand
}

// NewServer initializes and returns a new Server instance.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if err := cfg.complete(); err != nil {
		return nil, err
	}

	initValidator.Do(func() {
		binding.Validator = validator.Init()
	})

	s := &Server{
		cfg:         cfg,
		log:         cfg.Logger,
		collections: make(map[string]*collection, len(collectionDefs)),
		issued:      make(map[string]struct{}),
		revoked:     make(map[string]struct{}),
	}
	for _, def := range collectionDefs {
		s.collections[def.path] = newCollection(def)
	}
	seed(s.collections)

	s.engine = s.newEngine()
	return s, nil
}

func (s *Server) newEngine() *gin.Engine {
	r := gin.New()

	corsCfg := cors.DefaultConfig()
	if len(s.cfg.CORSOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.cfg.CORSOrigins
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsCfg.AddAllowHeaders("Authorization", middleware.HeaderXRequestIDKey)
	corsCfg.AddExposeHeaders("Content-Disposition", middleware.HeaderXRequestIDKey)

	r.Use(
		gin.Recovery(),
		cors.New(corsCfg),
		middleware.RequestID(),
		middleware.Logging(
			middleware.WithLog(s.log),
			middleware.WithHideBodyRoutes("/auth/login/", "/auth/token/refresh/"),
		),
	)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Format(time.RFC3339)})
	})

	r.POST("/auth/login/", s.login)
	r.POST("/auth/token/refresh/", s.refresh)
	r.POST("/auth/logout/", s.logout)
	r.POST("/_mock/expire-tokens/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"expired": s.ExpireAccessTokens()})
	})

	api := r.Group("/", middleware.Auth(
		middleware.WithSignKey([]byte(s.cfg.JWTKey)),
		middleware.WithExtraVerify(s.verifySession),
	))
	api.GET("/auth/me/", s.me)
	for _, def := range collectionDefs {
		s.registerCollection(api, def.path)
	}
	api.GET("/documents/:id/download/", s.downloadDocument)
	api.POST("/templates/:id/generate/", s.generateFromTemplate)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
	})
	return r
}

// Handler returns the http handler of the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ExpireAccessTokens makes every access token issued so far answer 401, as if it had expired.
// Refresh sessions are untouched. It returns how many tokens were expired.
func (s *Server) ExpireAccessTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.issued)
	for tok := range s.issued {
		s.revoked[tok] = struct{}{}
	}
	s.issued = make(map[string]struct{})
	return n
}

func (s *Server) trackAccess(token string) {
	s.mu.Lock()
	s.issued[token] = struct{}{}
	// same claims signed within the same second give the same token again
	delete(s.revoked, token)
	s.mu.Unlock()
}

func (s *Server) isRevoked(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[token]
	return ok
}

// Run starts the server and blocks until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("mock backend listening", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	s.log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	s.log.Info("server exited successfully")
	return nil
}
