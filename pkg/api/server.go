// Package api exposes the engine over HTTP: the JSON-RPC endpoint at
// POST /rpc, the A2A agent-card well-known endpoint, and a health probe.
package api

import (
	"context"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/maestro/pkg/agent"
	"github.com/codeready-toolchain/maestro/pkg/config"
	"github.com/codeready-toolchain/maestro/pkg/models"
	"github.com/codeready-toolchain/maestro/pkg/services"
	"github.com/codeready-toolchain/maestro/pkg/workflow"
)

// SessionStore manages sessions for the RPC surface.
type SessionStore interface {
	Create(ctx context.Context, title string, metadata map[string]any) (*models.Session, error)
	Get(ctx context.Context, id string) (*models.Session, error)
	List(ctx context.Context, limit int) ([]models.Session, error)
}

// AgentStore extends the executor's store view with the version management
// calls only the RPC surface uses.
type AgentStore interface {
	agent.AgentStore
	SetActiveVersion(ctx context.Context, agentID, versionID string) error
	ListVersions(ctx context.Context, agentID string) ([]models.AgentVersion, error)
}

// RunStore manages runs for the RPC surface.
type RunStore interface {
	Create(ctx context.Context, req services.CreateRunRequest) (*models.Run, error)
	Get(ctx context.Context, id string) (*models.Run, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.Run, error)
}

// EventStore reads per-run event streams.
type EventStore interface {
	ListSince(ctx context.Context, runID string, sinceSeq int) ([]models.Event, error)
}

// WorkflowStore manages saved workflow definitions.
type WorkflowStore interface {
	Save(ctx context.Context, req services.SaveWorkflowRequest) (*models.Workflow, error)
	Get(ctx context.Context, id string) (*models.Workflow, error)
	List(ctx context.Context) ([]models.Workflow, error)
}

// Executor drives a run to completion.
type Executor interface {
	Execute(ctx context.Context, runID string) error
}

// WorkflowRunner evaluates a saved workflow.
type WorkflowRunner interface {
	Run(ctx context.Context, wf *models.Workflow, sessionID, userMessage string) (*workflow.Result, error)
}

// HealthChecker reports store connectivity.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server is the HTTP server.
type Server struct {
	cfg       *config.Config
	echo      *echo.Echo
	http      *http.Server
	health    HealthChecker
	sessions  SessionStore
	agents    AgentStore
	runs      RunStore
	events    EventStore
	workflows WorkflowStore
	executor  Executor
	runner    WorkflowRunner
	methods   map[string]rpcHandler
}

// NewServer creates the HTTP server and registers its routes.
func NewServer(cfg *config.Config, health HealthChecker, sessions SessionStore, agents AgentStore,
	runs RunStore, events EventStore, workflows WorkflowStore, executor Executor, runner WorkflowRunner) *Server {
	s := &Server{
		cfg:       cfg,
		echo:      echo.New(),
		health:    health,
		sessions:  sessions,
		agents:    agents,
		runs:      runs,
		events:    events,
		workflows: workflows,
		executor:  executor,
		runner:    runner,
	}
	s.methods = s.rpcMethods()

	s.echo.Use(requestLogger())
	s.echo.Use(securityHeaders())
	s.echo.Use(corsHeaders())
	s.echo.POST("/rpc", s.rpcHandlerFunc)
	s.echo.GET("/.well-known/agent-card.json", s.agentCardHandler)
	s.echo.GET("/api/v1/health", s.healthHandler)
	return s
}

// Start serves HTTP on addr and blocks until the listener closes.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.echo}
	return s.http.ListenAndServe()
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// healthHandler handles GET /api/v1/health.
func (s *Server) healthHandler(c *echo.Context) error {
	if s.health != nil {
		if err := s.health.Health(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "healthy"})
}
