package models

import "time"

// Workflow is a saved linear DAG of agent invocations. Nodes execute in
// persisted order; parents must precede their children in that order.
type Workflow struct {
	ID          string         `bson:"id" json:"id"`
	Name        string         `bson:"name" json:"name"`
	Description string         `bson:"description,omitempty" json:"description,omitempty"`
	Nodes       []WorkflowNode `bson:"nodes" json:"nodes"`
	CreatedAt   time.Time      `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time      `bson:"updatedAt" json:"updatedAt"`
}

// WorkflowNode names one agent invocation within a workflow.
type WorkflowNode struct {
	ID                string   `bson:"id" json:"id"`
	AgentSlug         string   `bson:"agentSlug" json:"agentSlug"`
	Label             string   `bson:"label,omitempty" json:"label,omitempty"`
	IncludeUserPrompt bool     `bson:"includeUserPrompt,omitempty" json:"includeUserPrompt,omitempty"`
	Parents           []string `bson:"parents,omitempty" json:"parents,omitempty"`
}

// WorkflowNodeResult is the per-node outcome of a workflow execution.
type WorkflowNodeResult struct {
	NodeID    string `json:"nodeId"`
	AgentSlug string `json:"agentSlug"`
	RunID     string `json:"runId"`
	Status    string `json:"status"`
	Output    any    `json:"output,omitempty"`
}
