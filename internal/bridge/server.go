// Package bridge is the request router: the local HTTP endpoint the
// GraphQL worker uses to reach the relational store, the search subsystem
// and the resolver proxy.
//
// Every request-scoped failure is converted into an ErrorBody at this
// boundary. The router enforces no timeouts of its own; on a reload it
// stops accepting connections and lets in-flight requests finish.
package bridge

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/devbridge/internal/event"
	"github.com/roach88/devbridge/internal/scalar"
	"github.com/roach88/devbridge/internal/search"
	"github.com/roach88/devbridge/internal/store"
)

// Route paths.
const (
	PathQuery          = "/query"
	PathMutation       = "/mutation"
	PathSearch         = "/search"
	PathInvokeResolver = "/invoke-resolver"
	PathHealth         = "/health"
	PathMetrics        = "/metrics"
)

// Executor runs relational operations.
type Executor interface {
	Query(ctx context.Context, op store.Operation) ([]scalar.Record, error)
	Mutate(ctx context.Context, m store.Mutation) error
}

// Searcher executes search requests.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (*search.Response, error)
}

// Invoker forwards resolver invocations.
type Invoker interface {
	Invoke(ctx context.Context, name string, payload json.RawMessage) (json.RawMessage, error)
}

// Deps are the collaborators a Server routes to.
type Deps struct {
	Executor Executor
	Searcher Searcher
	Invoker  Invoker
	Bus      *event.Bus

	// RequestIDs defaults to UUIDv7Generator.
	RequestIDs IDGenerator
	// Metrics defaults to a fresh private registry.
	Metrics *Metrics
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server routes protocol requests to the bridge's subsystems.
type Server struct {
	executor Executor
	searcher Searcher
	invoker  Invoker
	bus      *event.Bus
	ids      IDGenerator
	metrics  *Metrics
	logger   *slog.Logger

	engine *gin.Engine
}

// NewServer builds the router.
func NewServer(d Deps) *Server {
	s := &Server{
		executor: d.Executor,
		searcher: d.Searcher,
		invoker:  d.Invoker,
		bus:      d.Bus,
		ids:      d.RequestIDs,
		metrics:  d.Metrics,
		logger:   d.Logger,
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.bus == nil {
		s.bus = event.NewBus()
	}
	if s.ids == nil {
		s.ids = UUIDv7Generator{}
	}

	r := gin.New()
	r.Use(s.requestID(), s.metrics.middleware(), s.trace(), gin.CustomRecoveryWithWriter(io.Discard, s.recover))

	r.POST(PathQuery, s.handleQuery)
	r.POST(PathMutation, s.handleMutation)
	r.POST(PathSearch, s.handleSearch)
	r.POST(PathInvokeResolver, s.handleInvokeResolver)
	r.GET(PathHealth, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET(PathMetrics, gin.WrapH(s.metrics.Handler()))

	s.engine = r
	return s
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Metrics returns the router's metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

func (s *Server) handleQuery(c *gin.Context) {
	var op store.Operation
	if err := c.ShouldBindJSON(&op); err != nil {
		s.fail(c, &badRequest{err: err})
		return
	}

	records, err := s.executor.Query(c.Request.Context(), op)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) handleMutation(c *gin.Context) {
	var m store.Mutation
	if err := c.ShouldBindJSON(&m); err != nil {
		s.fail(c, &badRequest{err: err})
		return
	}

	if err := s.executor.Mutate(c.Request.Context(), m); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) handleSearch(c *gin.Context) {
	var req search.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, &badRequest{err: err})
		return
	}

	resp, err := s.searcher.Search(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// invokeRequest is the body of POST /invoke-resolver.
type invokeRequest struct {
	ResolverName string          `json:"resolver_name"`
	Payload      json.RawMessage `json:"payload"`
}

func (s *Server) handleInvokeResolver(c *gin.Context) {
	var req invokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, &badRequest{err: err})
		return
	}
	if req.ResolverName == "" {
		s.fail(c, &badRequest{err: errMissingResolverName})
		return
	}

	out, err := s.invoker.Invoke(c.Request.Context(), req.ResolverName, req.Payload)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", out)
}

// fail writes the protocol error body for err and records its kind as the
// request outcome.
func (s *Server) fail(c *gin.Context, err error) {
	status, detail := classify(err, s.logger.With("request_id", requestIDFrom(c)))
	c.Set(outcomeKey, string(detail.Kind))
	c.AbortWithStatusJSON(status, ErrorBody{Error: detail})
}

func (s *Server) recover(c *gin.Context, rec any) {
	s.logger.Error("handler panic", "request_id", requestIDFrom(c), "panic", rec)
	c.Set(outcomeKey, string(KindInternal))
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorBody{Error: ErrorDetail{
		Kind:    KindInternal,
		Message: "internal error",
	}})
}
