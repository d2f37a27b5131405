package models

import "time"

// Agent creator values.
const (
	CreatedBySystem = "system"
	CreatedByUser   = "user"
	CreatedByAgent  = "agent"
)

// Agent role values (metadata.role).
const (
	RoleSystem     = "system"
	RoleRouter     = "router"
	RoleSpecialist = "specialist"
)

// Agent is the stable identity of a versioned LLM persona.
// The prompt itself lives in AgentVersion; ActiveVersionID points at the
// version used for new runs.
type Agent struct {
	ID              string        `bson:"id" json:"id"`
	Slug            string        `bson:"slug" json:"slug"`
	Name            string        `bson:"name" json:"name"`
	Description     string        `bson:"description,omitempty" json:"description,omitempty"`
	ActiveVersionID string        `bson:"activeVersionId" json:"activeVersionId"`
	CreatedAt       time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time     `bson:"updatedAt" json:"updatedAt"`
	CreatedBy       string        `bson:"createdBy" json:"createdBy"`
	Metadata        AgentMetadata `bson:"metadata" json:"metadata"`
}

// AgentMetadata carries routing information and provenance for an agent.
// Card is an opaque A2A descriptor served via the well-known endpoint.
type AgentMetadata struct {
	Role         string         `bson:"role,omitempty" json:"role,omitempty"`
	Domains      []string       `bson:"domains,omitempty" json:"domains,omitempty"`
	Capabilities []string       `bson:"capabilities,omitempty" json:"capabilities,omitempty"`
	Tags         []string       `bson:"tags,omitempty" json:"tags,omitempty"`
	Hidden       bool           `bson:"hidden,omitempty" json:"hidden,omitempty"`
	System       bool           `bson:"system,omitempty" json:"system,omitempty"`
	Card         map[string]any `bson:"card,omitempty" json:"card,omitempty"`
	Origin       *AgentOrigin   `bson:"origin,omitempty" json:"origin,omitempty"`
}

// AgentOrigin records which run spawned an agent and why.
type AgentOrigin struct {
	ParentRunID      string `bson:"parentRunId,omitempty" json:"parentRunId,omitempty"`
	RootRunID        string `bson:"rootRunId,omitempty" json:"rootRunId,omitempty"`
	CreatedByAgentID string `bson:"createdByAgentId,omitempty" json:"createdByAgentId,omitempty"`
	UserMessage      string `bson:"userMessage,omitempty" json:"userMessage,omitempty"`
}

// AgentVersion is an immutable snapshot of an agent's prompt and routing
// configuration. Versions are 1-based and strictly increasing per agent.
type AgentVersion struct {
	ID           string       `bson:"id" json:"id"`
	AgentID      string       `bson:"agentId" json:"agentId"`
	Version      int          `bson:"version" json:"version"`
	SystemPrompt string       `bson:"systemPrompt" json:"systemPrompt"`
	Resources    []string     `bson:"resources,omitempty" json:"resources,omitempty"`
	IOSchema     any          `bson:"ioSchema,omitempty" json:"ioSchema,omitempty"`
	RoutingHints RoutingHints `bson:"routingHints,omitempty" json:"routingHints,omitempty"`
	CreatedAt    time.Time    `bson:"createdAt" json:"createdAt"`
	CreatedBy    string       `bson:"createdBy" json:"createdBy"`
}

// RoutingHints influence how a version is selected and invoked.
type RoutingHints struct {
	Tags           []string `bson:"tags,omitempty" json:"tags,omitempty"`
	PreferredModel string   `bson:"preferredModel,omitempty" json:"preferredModel,omitempty"`
	Temperature    float64  `bson:"temperature,omitempty" json:"temperature,omitempty"`
}

// AgentSummary is the bounded projection of an agent injected into model
// context. Built by routing.BuildAgentSummary.
type AgentSummary struct {
	Slug         string   `json:"slug"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Domains      []string `json:"domains,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	Role         string   `json:"role,omitempty"`
	System       bool     `json:"system,omitempty"`
	Hidden       bool     `json:"hidden,omitempty"`
}

// AgentIndexEntry is the projection used for router/specialist indexes.
type AgentIndexEntry struct {
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Domains     []string `json:"domains,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}
