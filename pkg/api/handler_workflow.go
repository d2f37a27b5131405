package api

import (
	"context"
	"encoding/json"

	"github.com/codeready-toolchain/maestro/pkg/models"
	"github.com/codeready-toolchain/maestro/pkg/services"
)

type workflowSaveParams struct {
	WorkflowID  string                `json:"workflowId"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Nodes       []models.WorkflowNode `json:"nodes"`
}

func (s *Server) workflowSave(ctx context.Context, params json.RawMessage) (any, error) {
	var p workflowSaveParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	wf, err := s.workflows.Save(ctx, services.SaveWorkflowRequest{
		WorkflowID:  p.WorkflowID,
		Name:        p.Name,
		Description: p.Description,
		Nodes:       p.Nodes,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"workflowId": wf.ID}, nil
}

func (s *Server) workflowList(ctx context.Context, _ json.RawMessage) (any, error) {
	workflows, err := s.workflows.List(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"workflows": workflows}, nil
}

type workflowGetParams struct {
	WorkflowID string `json:"workflowId"`
}

func (s *Server) workflowGet(ctx context.Context, params json.RawMessage) (any, error) {
	var p workflowGetParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.WorkflowID == "" {
		return nil, services.NewValidationError("workflowId", "required")
	}
	wf, err := s.workflows.Get(ctx, p.WorkflowID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"workflow": wf}, nil
}

type workflowRunParams struct {
	WorkflowID  string `json:"workflowId"`
	SessionID   string `json:"sessionId"`
	UserMessage string `json:"userMessage"`
}

func (s *Server) workflowRun(ctx context.Context, params json.RawMessage) (any, error) {
	var p workflowRunParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.WorkflowID == "" {
		return nil, services.NewValidationError("workflowId", "required")
	}
	if p.SessionID == "" {
		return nil, services.NewValidationError("sessionId", "required")
	}
	if _, err := s.sessions.Get(ctx, p.SessionID); err != nil {
		return nil, err
	}
	wf, err := s.workflows.Get(ctx, p.WorkflowID)
	if err != nil {
		return nil, err
	}
	result, err := s.runner.Run(ctx, wf, p.SessionID, p.UserMessage)
	if err != nil {
		return nil, err
	}
	return map[string]any{"runs": result.Nodes, "finalOutput": result.FinalOutput}, nil
}
