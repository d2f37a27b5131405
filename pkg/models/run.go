package models

import "time"

// Run status values. A run is created as running and transitions exactly
// once to succeeded or failed.
const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// Run is one execution of one agent version. AgentVersionID is pinned when
// the run is created and never changes afterwards.
type Run struct {
	ID             string     `bson:"id" json:"id"`
	SessionID      string     `bson:"sessionId" json:"sessionId"`
	AgentID        string     `bson:"agentId,omitempty" json:"agentId,omitempty"`
	AgentVersionID string     `bson:"agentVersionId,omitempty" json:"agentVersionId,omitempty"`
	Status         string     `bson:"status" json:"status"`
	ParentRunID    string     `bson:"parentRunId,omitempty" json:"parentRunId,omitempty"`
	RootRunID      string     `bson:"rootRunId" json:"rootRunId"`
	Input          RunInput   `bson:"input" json:"input"`
	Output         *RunOutput `bson:"output,omitempty" json:"output,omitempty"`
	Error          *RunError  `bson:"error,omitempty" json:"error,omitempty"`
	StartedAt      time.Time  `bson:"startedAt" json:"startedAt"`
	EndedAt        *time.Time `bson:"endedAt,omitempty" json:"endedAt,omitempty"`
}

// RunInput carries the user message and the opaque context object composed
// by the parent run (nil for root runs started directly by a client).
type RunInput struct {
	UserMessage string         `bson:"userMessage" json:"userMessage"`
	Context     map[string]any `bson:"context,omitempty" json:"context,omitempty"`
}

// RunOutput wraps the opaque result produced by a succeeded run.
type RunOutput struct {
	Result any `bson:"result" json:"result"`
}

// RunError records why a run failed and the event seq at failure time.
type RunError struct {
	Message      string `bson:"message" json:"message"`
	LastEventSeq int    `bson:"lastEventSeq" json:"lastEventSeq"`
}

// RunTreeEntry is a run denormalized with its agent identity for the
// session run-tree view.
type RunTreeEntry struct {
	Run       `bson:",inline"`
	AgentSlug string `json:"agentSlug,omitempty"`
	AgentName string `json:"agentName,omitempty"`
}
