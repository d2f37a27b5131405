package api

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/codeready-toolchain/maestro/pkg/agent"
	"github.com/codeready-toolchain/maestro/pkg/models"
	"github.com/codeready-toolchain/maestro/pkg/services"
)

type runStartParams struct {
	SessionID   string         `json:"sessionId"`
	UserMessage string         `json:"userMessage"`
	AgentSlug   string         `json:"agentSlug"`
	AgentID     string         `json:"agentId"`
	ParentRunID string         `json:"parentRunId"`
	Context     map[string]any `json:"context"`
}

// runStart creates a run and executes it to completion before responding.
// Pre-execution problems (bad params, unknown session or parent) and
// validation or policy failures surface as RPC errors; model and child
// failures do not — the caller reads the terminal run via run.get.
func (s *Server) runStart(ctx context.Context, params json.RawMessage) (any, error) {
	var p runStartParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.SessionID == "" {
		return nil, services.NewValidationError("sessionId", "required")
	}
	if p.UserMessage == "" {
		return nil, services.NewValidationError("userMessage", "required")
	}
	if _, err := s.sessions.Get(ctx, p.SessionID); err != nil {
		return nil, err
	}

	rootRunID := ""
	if p.ParentRunID != "" {
		parent, err := s.runs.Get(ctx, p.ParentRunID)
		if err != nil {
			return nil, err
		}
		rootRunID = parent.RootRunID
	}

	agentID, versionID, err := s.resolveRunAgent(ctx, p.AgentID, p.AgentSlug)
	if err != nil {
		return nil, err
	}

	run, err := s.runs.Create(ctx, services.CreateRunRequest{
		SessionID:      p.SessionID,
		AgentID:        agentID,
		AgentVersionID: versionID,
		ParentRunID:    p.ParentRunID,
		RootRunID:      rootRunID,
		UserMessage:    p.UserMessage,
		Context:        p.Context,
	})
	if err != nil {
		return nil, err
	}

	if err := s.executor.Execute(ctx, run.ID); err != nil && isRPCFatal(err) {
		return nil, err
	}
	return map[string]any{"runId": run.ID}, nil
}

// resolveRunAgent resolves the requested agent by id, then slug, falling
// back to the directory agent when neither matches.
func (s *Server) resolveRunAgent(ctx context.Context, agentID, agentSlug string) (string, string, error) {
	if agentID != "" {
		a, err := s.agents.GetByID(ctx, agentID)
		if err == nil {
			return a.ID, a.ActiveVersionID, nil
		}
		if !errors.Is(err, services.ErrNotFound) {
			return "", "", err
		}
	}
	if agentSlug != "" {
		a, err := s.agents.GetBySlug(ctx, agentSlug)
		if err == nil {
			return a.ID, a.ActiveVersionID, nil
		}
		if !errors.Is(err, services.ErrNotFound) {
			return "", "", err
		}
	}
	directory, version, err := agent.EnsureDirectoryAgent(ctx, s.agents, s.cfg.MainRouterSlug, s.cfg.MainRouterName)
	if err != nil {
		return "", "", err
	}
	return directory.ID, version.ID, nil
}

// isRPCFatal reports whether a run failure should also fail the RPC call.
// Model errors and child failures leave the terminal run as the record.
func isRPCFatal(err error) bool {
	var policyErr *agent.PolicyError
	return services.IsValidationError(err) ||
		errors.As(err, &policyErr) ||
		errors.Is(err, services.ErrNotFound)
}

type runGetParams struct {
	RunID string `json:"runId"`
}

func (s *Server) runGet(ctx context.Context, params json.RawMessage) (any, error) {
	var p runGetParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.RunID == "" {
		return nil, services.NewValidationError("runId", "required")
	}
	run, err := s.runs.Get(ctx, p.RunID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"run": run}, nil
}

type runEventsParams struct {
	RunID    string `json:"runId"`
	SinceSeq int    `json:"sinceSeq"`
}

// runEvents returns events with seq > sinceSeq and the cursor for the next
// poll.
func (s *Server) runEvents(ctx context.Context, params json.RawMessage) (any, error) {
	var p runEventsParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.RunID == "" {
		return nil, services.NewValidationError("runId", "required")
	}
	events, err := s.events.ListSince(ctx, p.RunID, p.SinceSeq)
	if err != nil {
		return nil, err
	}
	nextSeq := p.SinceSeq
	if len(events) > 0 {
		nextSeq = events[len(events)-1].Seq + 1
	}
	if events == nil {
		events = []models.Event{}
	}
	return map[string]any{"events": events, "nextSeq": nextSeq}, nil
}

type runTreeParams struct {
	SessionID string `json:"sessionId"`
}

// runTree lists a session's runs denormalized with their agent identity.
func (s *Server) runTree(ctx context.Context, params json.RawMessage) (any, error) {
	var p runTreeParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.SessionID == "" {
		return nil, services.NewValidationError("sessionId", "required")
	}
	runs, err := s.runs.ListBySession(ctx, p.SessionID)
	if err != nil {
		return nil, err
	}

	agentByID := make(map[string]*models.Agent)
	entries := make([]models.RunTreeEntry, 0, len(runs))
	for _, run := range runs {
		entry := models.RunTreeEntry{Run: run}
		if run.AgentID != "" {
			a, ok := agentByID[run.AgentID]
			if !ok {
				loaded, err := s.agents.GetByID(ctx, run.AgentID)
				if err != nil && !errors.Is(err, services.ErrNotFound) {
					return nil, err
				}
				a = loaded // nil when the agent vanished
				agentByID[run.AgentID] = a
			}
			if a != nil {
				entry.AgentSlug = a.Slug
				entry.AgentName = a.Name
			}
		}
		entries = append(entries, entry)
	}
	return map[string]any{"runs": entries}, nil
}
