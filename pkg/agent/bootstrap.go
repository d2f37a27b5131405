package agent

import (
	"context"
	"errors"

	"github.com/codeready-toolchain/maestro/pkg/models"
	"github.com/codeready-toolchain/maestro/pkg/services"
)

// bootstrapPrompt seeds the directory router. It is the only agent that
// sees the full roster in its context.
const bootstrapPrompt = `You are the directory router. You receive a user request together with a
full index of available agents. Decide how to fulfil the request:
- If an existing agent fits, delegate to it by slug.
- If no agent fits, create a focused new agent with a clear system prompt
  and delegate to it.
- If the request needs no delegation, answer it yourself with a final result.
Prefer reusing existing agents over creating near-duplicates. Keep plans
small: delegate to the fewest agents that can complete the work.`

// EnsureDirectoryAgent returns the directory (bootstrap) agent and its
// active version, creating both lazily on first use. Safe under concurrent
// callers: a lost creation race falls back to the winner's document.
func EnsureDirectoryAgent(ctx context.Context, agents AgentStore, slug, name string) (*models.Agent, *models.AgentVersion, error) {
	existing, err := agents.GetBySlug(ctx, slug)
	if err == nil {
		version, err := agents.GetVersion(ctx, existing.ActiveVersionID)
		if err != nil {
			return nil, nil, err
		}
		return existing, version, nil
	}
	if !errors.Is(err, services.ErrNotFound) {
		return nil, nil, err
	}

	created, version, err := agents.CreateAgent(ctx, services.CreateAgentRequest{
		Slug:         slug,
		Name:         name,
		Description:  "Directory router with full visibility of the agent roster.",
		SystemPrompt: bootstrapPrompt,
		RoutingHints: models.RoutingHints{Tags: []string{"router", "system"}},
		Metadata: models.AgentMetadata{
			Role:   models.RoleRouter,
			Tags:   []string{"router", "system"},
			System: true,
		},
		CreatedBy: models.CreatedBySystem,
	})
	if errors.Is(err, services.ErrAlreadyExists) {
		existing, err = agents.GetBySlug(ctx, slug)
		if err != nil {
			return nil, nil, err
		}
		version, err := agents.GetVersion(ctx, existing.ActiveVersionID)
		if err != nil {
			return nil, nil, err
		}
		return existing, version, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return created, version, nil
}
