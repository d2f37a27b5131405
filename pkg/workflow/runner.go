// Package workflow evaluates saved linear DAGs of agent invocations. The
// runner walks nodes in persisted order and drives each one through the run
// executor; it performs no topological sorting of its own.
package workflow

import (
	"context"
	"errors"

	"github.com/codeready-toolchain/maestro/pkg/models"
	"github.com/codeready-toolchain/maestro/pkg/services"
)

// continuationMessage is the user message for nodes that do not opt into
// the workflow's original prompt.
const continuationMessage = "Continue from previous agent output and produce the next step."

// RunExecutor drives one run to a terminal state.
type RunExecutor interface {
	Execute(ctx context.Context, runID string) error
}

// AgentDirectory resolves workflow node slugs to agents.
type AgentDirectory interface {
	GetBySlug(ctx context.Context, slug string) (*models.Agent, error)
}

// RunStore is the slice of the run service the runner needs.
type RunStore interface {
	Create(ctx context.Context, req services.CreateRunRequest) (*models.Run, error)
	Get(ctx context.Context, id string) (*models.Run, error)
}

// Runner executes workflows node by node.
type Runner struct {
	runs     RunStore
	agents   AgentDirectory
	executor RunExecutor
}

// NewRunner creates a workflow Runner.
func NewRunner(runs RunStore, agents AgentDirectory, executor RunExecutor) *Runner {
	return &Runner{runs: runs, agents: agents, executor: executor}
}

// Result is the outcome of one workflow execution. FinalOutput is the last
// node's output.
type Result struct {
	WorkflowID  string                      `json:"workflowId"`
	Nodes       []models.WorkflowNodeResult `json:"nodes"`
	FinalOutput any                         `json:"finalOutput,omitempty"`
}

// Run executes every node of the workflow in persisted order. A node whose
// declared parents have not all completed successfully aborts the workflow;
// an individual node failure is recorded in its result and execution
// continues as long as no later node depends on it.
func (r *Runner) Run(ctx context.Context, wf *models.Workflow, sessionID, userMessage string) (*Result, error) {
	outputs := make(map[string]any, len(wf.Nodes))
	results := make([]models.WorkflowNodeResult, 0, len(wf.Nodes))

	for _, node := range wf.Nodes {
		parentOutputs := make(map[string]any, len(node.Parents))
		for _, parent := range node.Parents {
			output, ok := outputs[parent]
			if !ok {
				return nil, errors.New("Parent outputs missing")
			}
			parentOutputs[parent] = output
		}

		message := continuationMessage
		if node.IncludeUserPrompt {
			message = userMessage
		}

		// An unknown slug leaves the run unpinned; the executor then falls
		// back to the directory agent.
		var agentID, versionID string
		agent, err := r.agents.GetBySlug(ctx, node.AgentSlug)
		if err == nil {
			agentID = agent.ID
			versionID = agent.ActiveVersionID
		} else if !errors.Is(err, services.ErrNotFound) {
			return nil, err
		}

		run, err := r.runs.Create(ctx, services.CreateRunRequest{
			SessionID:      sessionID,
			AgentID:        agentID,
			AgentVersionID: versionID,
			UserMessage:    message,
			Context: map[string]any{
				"parentOutputs":       parentOutputs,
				"workflowUserMessage": userMessage,
				"nodeLabel":           node.Label,
			},
		})
		if err != nil {
			return nil, err
		}

		// Run failures surface through the stored run, not through the
		// error return.
		_ = r.executor.Execute(ctx, run.ID)
		stored, err := r.runs.Get(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		var output any
		if stored.Output != nil {
			output = stored.Output.Result
			outputs[node.ID] = output
		}
		results = append(results, models.WorkflowNodeResult{
			NodeID:    node.ID,
			AgentSlug: node.AgentSlug,
			RunID:     run.ID,
			Status:    stored.Status,
			Output:    output,
		})
	}

	result := &Result{WorkflowID: wf.ID, Nodes: results}
	if len(results) > 0 {
		result.FinalOutput = results[len(results)-1].Output
	}
	return result, nil
}
