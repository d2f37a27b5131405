package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/maestro/pkg/models"
	"github.com/codeready-toolchain/maestro/pkg/services"
)

type agentListParams struct {
	IncludeHidden bool `json:"includeHidden"`
}

func (s *Server) agentList(ctx context.Context, params json.RawMessage) (any, error) {
	var p agentListParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	agents, err := s.agents.List(ctx, p.IncludeHidden)
	if err != nil {
		return nil, err
	}
	return map[string]any{"agents": agents}, nil
}

type agentGetParams struct {
	AgentID string `json:"agentId"`
	Slug    string `json:"slug"`
}

func (s *Server) agentGet(ctx context.Context, params json.RawMessage) (any, error) {
	var p agentGetParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.AgentID == "" && p.Slug == "" {
		return nil, services.NewValidationError("agentId", "agentId or slug is required")
	}

	var agent *models.Agent
	var err error
	if p.AgentID != "" {
		agent, err = s.agents.GetByID(ctx, p.AgentID)
	} else {
		agent, err = s.agents.GetBySlug(ctx, p.Slug)
	}
	if err != nil {
		return nil, err
	}

	activeVersion, err := s.agents.GetVersion(ctx, agent.ActiveVersionID)
	if err != nil {
		return nil, err
	}
	versions, err := s.agents.ListVersions(ctx, agent.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"agent":         agent,
		"activeVersion": activeVersion,
		"versions":      versions,
	}, nil
}

type agentVersionGetParams struct {
	VersionID string `json:"versionId"`
	AgentID   string `json:"agentId"`
}

func (s *Server) agentVersionGet(ctx context.Context, params json.RawMessage) (any, error) {
	var p agentVersionGetParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.VersionID == "" {
		return nil, services.NewValidationError("versionId", "required")
	}
	version, err := s.agents.GetVersion(ctx, p.VersionID)
	if err != nil {
		return nil, err
	}
	if p.AgentID != "" && version.AgentID != p.AgentID {
		return nil, fmt.Errorf("agent version %s: %w", p.VersionID, services.ErrNotFound)
	}
	return map[string]any{"version": version}, nil
}

type agentUpdatePromptParams struct {
	AgentID         string `json:"agentId"`
	NewSystemPrompt string `json:"newSystemPrompt"`
	Editor          string `json:"editor"`
}

// agentUpdatePrompt appends a new version carrying the edited prompt while
// preserving the latest version's resources and routing hints.
func (s *Server) agentUpdatePrompt(ctx context.Context, params json.RawMessage) (any, error) {
	var p agentUpdatePromptParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.AgentID == "" {
		return nil, services.NewValidationError("agentId", "required")
	}
	if p.NewSystemPrompt == "" {
		return nil, services.NewValidationError("newSystemPrompt", "required")
	}

	latest, err := s.agents.LatestVersion(ctx, p.AgentID)
	if err != nil {
		return nil, err
	}
	editor := p.Editor
	if editor == "" {
		editor = models.CreatedByUser
	}
	version, err := s.agents.AppendVersion(ctx, p.AgentID, services.AppendVersionRequest{
		SystemPrompt: p.NewSystemPrompt,
		Resources:    latest.Resources,
		IOSchema:     latest.IOSchema,
		RoutingHints: latest.RoutingHints,
		CreatedBy:    editor,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"agentVersionId": version.ID,
		"version":        version.Version,
	}, nil
}

type agentSetActiveVersionParams struct {
	AgentID   string `json:"agentId"`
	VersionID string `json:"versionId"`
}

func (s *Server) agentSetActiveVersion(ctx context.Context, params json.RawMessage) (any, error) {
	var p agentSetActiveVersionParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.AgentID == "" {
		return nil, services.NewValidationError("agentId", "required")
	}
	if p.VersionID == "" {
		return nil, services.NewValidationError("versionId", "required")
	}
	if err := s.agents.SetActiveVersion(ctx, p.AgentID, p.VersionID); err != nil {
		return nil, err
	}
	return map[string]any{"activeVersionId": p.VersionID}, nil
}
