package models

// AgentSpec is one entry of a plan's agentsToCreate array. Slug, Name and
// SystemPrompt are required; everything else is optional.
type AgentSpec struct {
	Slug         string         `bson:"slug" json:"slug"`
	Name         string         `bson:"name" json:"name"`
	Description  string         `bson:"description,omitempty" json:"description,omitempty"`
	SystemPrompt string         `bson:"systemPrompt" json:"systemPrompt"`
	Resources    []string       `bson:"resources,omitempty" json:"resources,omitempty"`
	IOSchema     any            `bson:"ioSchema,omitempty" json:"ioSchema,omitempty"`
	RoutingHints RoutingHints   `bson:"routingHints,omitempty" json:"routingHints,omitempty"`
	Metadata     map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

// PlanRun is one entry of a plan's runsToExecute array.
type PlanRun struct {
	Slug        string         `bson:"slug" json:"slug"`
	UserMessage string         `bson:"userMessage,omitempty" json:"userMessage,omitempty"`
	Context     map[string]any `bson:"context,omitempty" json:"context,omitempty"`
}

// Plan is the normalized delegation directive parsed from a model response
// of type "plan". Legacy key aliases (agents/runs) are resolved at parse
// time — see agent.ParsePlan.
type Plan struct {
	AgentsToCreate []AgentSpec `bson:"agentsToCreate" json:"agentsToCreate"`
	RunsToExecute  []PlanRun   `bson:"runsToExecute" json:"runsToExecute"`
}

// AgentResolution records how one AgentSpec was matched against the agent
// collection: reuse, new version on an existing agent, or a brand-new agent.
// It is persisted verbatim inside SPAWN_AGENT_CREATED event payloads, so the
// bson tags must mirror the json tags to keep the stored keys camelCase.
type AgentResolution struct {
	RequestedSlug     string `bson:"requestedSlug" json:"requestedSlug"`
	Slug              string `bson:"slug" json:"slug"`
	AgentID           string `bson:"agentId" json:"agentId"`
	AgentVersionID    string `bson:"agentVersionId" json:"agentVersionId"`
	Reused            bool   `bson:"reused" json:"reused"`
	MatchedOn         string `bson:"matchedOn,omitempty" json:"matchedOn,omitempty"`
	CreatedNewAgent   bool   `bson:"createdNewAgent,omitempty" json:"createdNewAgent,omitempty"`
	CreatedNewVersion bool   `bson:"createdNewVersion,omitempty" json:"createdNewVersion,omitempty"`
}
