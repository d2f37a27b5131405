package models

import "time"

// Event types emitted on a run's event stream, in lifecycle order.
// RUN_STARTED is always first and RUN_FINISHED always last.
const (
	EventRunStarted        = "RUN_STARTED"
	EventPromptLoaded      = "PROMPT_LOADED"
	EventModelRequest      = "MODEL_REQUEST"
	EventModelResponse     = "MODEL_RESPONSE"
	EventSpawnAgentRequest = "SPAWN_AGENT_REQUEST"
	EventSpawnAgentCreated = "SPAWN_AGENT_CREATED"
	EventChildRunStarted   = "CHILD_RUN_STARTED"
	EventChildRunFinished  = "CHILD_RUN_FINISHED"
	EventRunFinished       = "RUN_FINISHED"
	EventError             = "ERROR"
)

// Event is one entry of a run's append-only event stream. Seq is 1-based,
// gapless and unique per run — the (runId, seq) unique index is the
// authoritative invariant.
type Event struct {
	ID      string         `bson:"id" json:"id"`
	RunID   string         `bson:"runId" json:"runId"`
	Seq     int            `bson:"seq" json:"seq"`
	TS      time.Time      `bson:"ts" json:"ts"`
	Type    string         `bson:"type" json:"type"`
	Payload map[string]any `bson:"payload,omitempty" json:"payload,omitempty"`
}
