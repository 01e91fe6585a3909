package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zeu5/counting-rm/automaton"
)

// Server exposes compiled machines over HTTP for inspection and manual stepping.
//
//	GET  /health
//	GET  /v1/machines
//	GET  /v1/machines/:name
//	POST /v1/machines/:name/transition
//	POST /v1/machines/:name/counterfactual
//	GET  /metrics
type Server struct {
	Addr   string
	server *http.Server
	logger *slog.Logger

	lock     *sync.RWMutex
	machines map[string]*automaton.Machine
}

func NewServer(addr string, logger *slog.Logger, gatherer prometheus.Gatherer) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Addr:     addr,
		logger:   logger,
		lock:     new(sync.RWMutex),
		machines: make(map[string]*automaton.Machine),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())
	r.GET("/health", s.handleHealth)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	RegisterRoutes(r.Group("/v1"), s)

	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// RegisterRoutes adds the machine endpoints to the group
func RegisterRoutes(g *gin.RouterGroup, s *Server) {
	g.GET("/machines", s.handleList)
	g.GET("/machines/:name", s.handleGet)
	g.POST("/machines/:name/transition", s.handleTransition)
	g.POST("/machines/:name/counterfactual", s.handleCounterfactual)
}

// Register makes the machine available under its name
func (s *Server) Register(m *automaton.Machine) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.machines[m.Name()] = m
}

func (s *Server) machine(name string) (*automaton.Machine, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	m, ok := s.machines[name]
	return m, ok
}

func (s *Server) names() []string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	names := make([]string, 0, len(s.machines))
	for name := range s.machines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving machines", "addr", s.Addr, "machines", s.names())
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
