// Package statusapi exposes a read-only REST view over a running Gibbs
// driver: overall score, per-relation cluster counts, and the outer HIRM
// partition, modeled on the teacher's REST API server shape but with no
// mutating routes (§6's external-interfaces surface is driver-internal;
// this is purely an observability window onto it).
package statusapi

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/pclean-go/pclean/internal/hirm"
	"github.com/pclean-go/pclean/internal/obslog"
	"github.com/pclean-go/pclean/internal/ratelimit"
	"github.com/pclean-go/pclean/internal/relation"
	"github.com/pclean-go/pclean/pkg/config"
)

// Server is a read-only HTTP status server over a *hirm.HIRM.
type Server struct {
	router     *gin.Engine
	h          *hirm.HIRM
	cfg        config.StatusAPIConfig
	httpServer *http.Server
	log        *obslog.Logger
	limiter    *ratelimit.Limiter
}

// NewServer returns a status server over h, configured by cfg.
func NewServer(h *hirm.HIRM, cfg config.StatusAPIConfig) *Server {
	log := obslog.GetLogger("statusapi")

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	if cfg.CORS {
		router.Use(cors.New(cors.Config{
			AllowMethods:     []string{"GET", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			AllowAllOrigins:  true,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	limiter := ratelimit.NewLimiter(&cfg.RateLimit)
	s := &Server{router: router, h: h, cfg: cfg, log: log, limiter: limiter}
	router.Use(s.rateLimit)
	s.setupRoutes()
	return s
}

// rateLimit gates every route behind the configured global token bucket —
// there are no per-route tool names here, so every request draws from the
// limiter's global bucket.
func (s *Server) rateLimit(c *gin.Context) {
	result := s.limiter.Allow(c.FullPath())
	if !result.Allowed {
		c.Header("Retry-After", fmt.Sprintf("%.0f", result.RetryAfter.Seconds()))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded", "retry_after_seconds": result.RetryAfter.Seconds()})
		return
	}
	c.Next()
}

// Limiter returns the server's rate limiter, for diagnostics and testing.
func (s *Server) Limiter() *ratelimit.Limiter { return s.limiter }

func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/health", s.health)
		v1.GET("/score", s.score)
		v1.GET("/relations", s.listRelations)
		v1.GET("/relations/:name", s.getRelation)
		v1.GET("/tables", s.listTables)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) score(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"logp_score": s.h.LogpScore()})
}

func (s *Server) listRelations(c *gin.Context) {
	names := make([]string, 0, len(s.h.Relations))
	for name := range s.h.Relations {
		names = append(names, name)
	}
	sort.Strings(names)
	c.JSON(http.StatusOK, gin.H{"relations": names})
}

func (s *Server) getRelation(c *gin.Context) {
	name := c.Param("name")
	rel, ok := s.h.Relations[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("relation %q not found", name)})
		return
	}
	table, _ := s.h.Outer.Assignment(s.h.NameToCode[name])
	c.JSON(http.StatusOK, gin.H{
		"name":       name,
		"schema":     s.h.Schemas[name],
		"irm_table":  table,
		"domains":    domainNames(rel),
		"logp_score": rel.LogpScore(),
	})
}

func domainNames(rel relation.Relation) []string {
	domains := rel.DomainsList()
	names := make([]string, len(domains))
	for i, d := range domains {
		names[i] = d.Name
	}
	return names
}

func (s *Server) listTables(c *gin.Context) {
	out := make(map[int][]string, len(s.h.TableToIRM))
	for table, irmModel := range s.h.TableToIRM {
		names := make([]string, 0, len(irmModel.Relations))
		for name := range irmModel.Relations {
			names = append(names, name)
		}
		sort.Strings(names)
		out[table] = names
	}
	c.JSON(http.StatusOK, gin.H{"tables": out})
}

// Start runs the status server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("starting status API server", "address", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("status api server error: %w", err)
	}
}

// Router returns the underlying Gin router, for testing.
func (s *Server) Router() *gin.Engine { return s.router }
