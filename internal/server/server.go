// Package server exposes the catalog and recommender over a read-only HTTP
// API. There is deliberately no execution endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/DaltonGOO/dyn-advisor/internal/catalog"
	"github.com/DaltonGOO/dyn-advisor/internal/observability"
	"github.com/DaltonGOO/dyn-advisor/internal/recommend"
)

// ErrGraphNotFound maps to 404 on the API surface.
var ErrGraphNotFound = errors.New("graph not found")

// DefaultCacheSize bounds the recommendation result cache.
const DefaultCacheSize = 128

// Server serves the indexed catalog. The catalog is built once before the
// server starts and never mutated, so handlers need no locking around it.
type Server struct {
	catalog *catalog.Catalog
	engine  *recommend.Engine
	cache   *lru.Cache[string, []recommend.Summary]
	metrics *observability.AdvisorMetrics
	logger  *slog.Logger
	router  *gin.Engine
	httpSrv *http.Server
}

// New wires the HTTP server around an already-built catalog.
func New(cat *catalog.Catalog, eng *recommend.Engine, cacheSize int, logger *slog.Logger) (*Server, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, []recommend.Summary](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating result cache: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		catalog: cat,
		engine:  eng,
		cache:   cache,
		metrics: observability.NewAdvisorMetrics(),
		logger:  logger,
	}
	s.router = s.buildRouter()
	return s, nil
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api/v1")
	api.GET("/graphs", s.handleListGraphs)
	api.GET("/graphs/:name", s.handleGetGraph)
	api.GET("/recommend", s.handleRecommend)

	return r
}

// RecordIndex records the startup catalog build in the metrics exposition.
func (s *Server) RecordIndex(indexed, skipped int, start time.Time) {
	s.metrics.ObserveIndex(indexed, skipped, start)
}

// Handler returns the HTTP handler, primarily for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run blocks serving HTTP on addr until Shutdown is called.
func (s *Server) Run(addr string) error {
	s.logger.Info("serving catalog API", "addr", addr, "graphs", s.catalog.Len())
	s.httpSrv = &http.Server{Addr: addr, Handler: s.router}
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"graphs": s.catalog.Len(),
	})
}

func (s *Server) handleListGraphs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"count":  s.catalog.Len(),
		"graphs": s.catalog.All(),
	})
}

func (s *Server) handleGetGraph(c *gin.Context) {
	name := c.Param("name")
	rec, ok := s.catalog.ByName(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":       ErrGraphNotFound.Error(),
			"name":        name,
			"suggestions": recommend.Suggest(name, s.catalog.Names(), 3),
		})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleRecommend(c *gin.Context) {
	query := c.Query("q")
	opts := recommend.DefaultOptions()
	if raw := c.Query("max_results"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max_results must be an integer"})
			return
		}
		opts.MaxResults = n
	}
	opts.Explain = c.Query("explain") == "true"

	start := time.Now()
	summaries, err := s.recommendCached(query, opts)
	if err != nil {
		var optErr *recommend.OptionsError
		if errors.As(err, &optErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": optErr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.metrics.ObserveRecommend(start)

	resp := gin.H{
		"query":   query,
		"count":   len(summaries),
		"results": summaries,
	}
	if !opts.Explain {
		// Reasons are still computed; presentation strips them on request.
		stripped := make([]recommend.Summary, len(summaries))
		copy(stripped, summaries)
		for i := range stripped {
			stripped[i].Reasons = nil
		}
		resp["results"] = stripped
	}
	c.JSON(http.StatusOK, resp)
}

// recommendCached serves repeated queries from a bounded LRU. The key covers
// everything that affects the computed output.
func (s *Server) recommendCached(query string, opts *recommend.Options) ([]recommend.Summary, error) {
	key := fmt.Sprintf("%s|%d", strings.Join(recommend.Tokenize(query), " "), opts.MaxResults)
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.CacheHit()
		return cached, nil
	}

	recs, err := s.engine.Recommend(s.catalog, query, opts)
	if err != nil {
		return nil, err
	}
	s.metrics.CacheMiss()

	summaries := make([]recommend.Summary, len(recs))
	for i := range recs {
		summaries[i] = recs[i].Summary()
	}
	s.cache.Add(key, summaries)
	return summaries, nil
}
