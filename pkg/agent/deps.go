// Package agent contains the run executor: the recursive plan/final
// interpreter, its routing policy enforcement, and the agent resolver that
// deduplicates plan-spawned agents against the existing roster.
package agent

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/maestro/pkg/models"
	"github.com/codeready-toolchain/maestro/pkg/services"
)

// AgentStore is the slice of the agent service the executor and resolver
// need. Defined here so tests can run against in-memory fakes.
type AgentStore interface {
	GetByID(ctx context.Context, id string) (*models.Agent, error)
	GetBySlug(ctx context.Context, slug string) (*models.Agent, error)
	GetByNameInsensitive(ctx context.Context, name string) (*models.Agent, error)
	FindByAnyTag(ctx context.Context, tags []string) ([]models.Agent, error)
	List(ctx context.Context, includeHidden bool) ([]models.Agent, error)
	CreateAgent(ctx context.Context, req services.CreateAgentRequest) (*models.Agent, *models.AgentVersion, error)
	AppendVersion(ctx context.Context, agentID string, req services.AppendVersionRequest) (*models.AgentVersion, error)
	UpdateMetadata(ctx context.Context, agentID string, metadata models.AgentMetadata) error
	GetVersion(ctx context.Context, versionID string) (*models.AgentVersion, error)
	LatestVersion(ctx context.Context, agentID string) (*models.AgentVersion, error)
}

// RunStore is the slice of the run service used by the executor.
type RunStore interface {
	Get(ctx context.Context, id string) (*models.Run, error)
	Create(ctx context.Context, req services.CreateRunRequest) (*models.Run, error)
	CountByRoot(ctx context.Context, rootRunID string) (int, error)
	MarkSucceeded(ctx context.Context, runID string, result any) error
	MarkFailed(ctx context.Context, runID, message string, lastEventSeq int) error
}

// EventSink appends to the per-run event stream.
type EventSink interface {
	Append(ctx context.Context, runID, eventType string, payload map[string]any) (*models.Event, error)
	MaxSeq(ctx context.Context, runID string) (int, error)
}

// PolicyError reports a violated delegation policy: depth, fan-out,
// anti-loop, spawn cap or role discipline. The message is surfaced
// verbatim on the failed run.
type PolicyError struct {
	Message string
}

func (e *PolicyError) Error() string {
	return e.Message
}

func policyErrorf(format string, args ...any) error {
	return &PolicyError{Message: fmt.Sprintf(format, args...)}
}
