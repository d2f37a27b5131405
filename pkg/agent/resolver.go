package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/codeready-toolchain/maestro/pkg/models"
	"github.com/codeready-toolchain/maestro/pkg/routing"
	"github.com/codeready-toolchain/maestro/pkg/services"
)

// cardProtocolVersion is stamped on synthesized A2A agent cards.
const cardProtocolVersion = "0.3.0"

// Resolver deduplicates plan-proposed agent specs against the stored roster.
// The search order is slug, then case-insensitive name, then any overlapping
// tag; only when all three miss is a new agent created.
type Resolver struct {
	agents AgentStore
}

// NewResolver creates a new Resolver.
func NewResolver(agents AgentStore) *Resolver {
	return &Resolver{agents: agents}
}

// Resolve maps one agent spec to a concrete agent and version. Matched
// agents are reused when the latest prompt equals the spec's (trimmed);
// otherwise a new version is appended and activated. Resolving the same
// spec twice is idempotent: no second version appears.
func (r *Resolver) Resolve(ctx context.Context, spec models.AgentSpec, origin *models.AgentOrigin) (*models.AgentResolution, error) {
	tags := effectiveTags(spec)

	matched, matchedOn, err := r.match(ctx, spec, tags)
	if err != nil {
		return nil, err
	}
	if matched == nil {
		return r.createNew(ctx, spec, tags, origin)
	}

	merged, changed := mergeMetadata(matched, spec, tags)
	if changed {
		if err := r.agents.UpdateMetadata(ctx, matched.ID, merged); err != nil {
			return nil, err
		}
	}

	latest, err := r.agents.LatestVersion(ctx, matched.ID)
	if err != nil {
		return nil, err
	}
	resolution := &models.AgentResolution{
		RequestedSlug: spec.Slug,
		Slug:          matched.Slug,
		AgentID:       matched.ID,
		MatchedOn:     matchedOn,
	}
	if strings.TrimSpace(latest.SystemPrompt) == strings.TrimSpace(spec.SystemPrompt) {
		resolution.AgentVersionID = matched.ActiveVersionID
		resolution.Reused = true
		return resolution, nil
	}

	version, err := r.agents.AppendVersion(ctx, matched.ID, services.AppendVersionRequest{
		SystemPrompt: spec.SystemPrompt,
		Resources:    spec.Resources,
		IOSchema:     spec.IOSchema,
		RoutingHints: spec.RoutingHints,
		CreatedBy:    models.CreatedByAgent,
	})
	if err != nil {
		return nil, err
	}
	resolution.AgentVersionID = version.ID
	resolution.MatchedOn = matchedOn + "-updated"
	resolution.CreatedNewVersion = true
	return resolution, nil
}

func (r *Resolver) match(ctx context.Context, spec models.AgentSpec, tags []string) (*models.Agent, string, error) {
	if spec.Slug != "" {
		agent, err := r.agents.GetBySlug(ctx, spec.Slug)
		if err == nil {
			return agent, "slug", nil
		}
		if !errors.Is(err, services.ErrNotFound) {
			return nil, "", err
		}
	}
	if spec.Name != "" {
		agent, err := r.agents.GetByNameInsensitive(ctx, spec.Name)
		if err == nil {
			return agent, "name", nil
		}
		if !errors.Is(err, services.ErrNotFound) {
			return nil, "", err
		}
	}
	if len(tags) > 0 {
		candidates, err := r.agents.FindByAnyTag(ctx, tags)
		if err != nil {
			return nil, "", err
		}
		if len(candidates) > 0 {
			return &candidates[0], "tags", nil
		}
	}
	return nil, "", nil
}

func (r *Resolver) createNew(ctx context.Context, spec models.AgentSpec, tags []string, origin *models.AgentOrigin) (*models.AgentResolution, error) {
	agent, version, err := r.agents.CreateAgent(ctx, services.CreateAgentRequest{
		Slug:         spec.Slug,
		Name:         spec.Name,
		Description:  spec.Description,
		SystemPrompt: spec.SystemPrompt,
		Resources:    spec.Resources,
		IOSchema:     spec.IOSchema,
		RoutingHints: spec.RoutingHints,
		Metadata:     buildMetadata(spec, tags, origin),
		CreatedBy:    models.CreatedByAgent,
	})
	if errors.Is(err, services.ErrAlreadyExists) {
		// Lost a creation race on the slug index; the slug match will hit now.
		return r.Resolve(ctx, spec, origin)
	}
	if err != nil {
		return nil, err
	}
	return &models.AgentResolution{
		RequestedSlug:   spec.Slug,
		Slug:            agent.Slug,
		AgentID:         agent.ID,
		AgentVersionID:  version.ID,
		CreatedNewAgent: true,
	}, nil
}

// effectiveTags is the union of routing-hint tags and metadata tags.
func effectiveTags(spec models.AgentSpec) []string {
	return routing.MergeUnique(
		routing.NormalizeStrings(spec.RoutingHints.Tags),
		routing.NormalizeStrings(spec.Metadata["tags"]),
	)
}

// buildMetadata derives the stored metadata for a newly spawned agent:
// explicit spec metadata first, tag and naming inference for the gaps, plus
// provenance and a synthesized card.
func buildMetadata(spec models.AgentSpec, tags []string, origin *models.AgentOrigin) models.AgentMetadata {
	role, _ := spec.Metadata["role"].(string)
	if role == "" {
		role = routing.InferRoleFromTags(tags)
	}
	if role == "" {
		role = routing.InferRoleFromLabel(spec.Name, spec.Slug)
	}

	domains := routing.NormalizeStrings(spec.Metadata["domains"])
	if len(domains) == 0 {
		domains = routing.ExtractDomainsFromTags(tags)
	}
	if len(domains) == 0 {
		if domain := routing.InferDomainFromLabel(spec.Name, spec.Slug); domain != "" {
			domains = []string{domain}
		}
	}

	hidden, _ := spec.Metadata["hidden"].(bool)
	return models.AgentMetadata{
		Role:         role,
		Domains:      domains,
		Capabilities: routing.NormalizeStrings(spec.Metadata["capabilities"]),
		Tags:         tags,
		Hidden:       hidden,
		Card:         buildCard(spec, tags),
		Origin:       origin,
	}
}

// buildCard synthesizes the A2A-style descriptor served from the well-known
// endpoint. The single skill carries the spec's effective tags.
func buildCard(spec models.AgentSpec, tags []string) map[string]any {
	return map[string]any{
		"protocolVersion": cardProtocolVersion,
		"name":            spec.Name,
		"description":     spec.Description,
		"skills": []any{
			map[string]any{
				"id":          spec.Slug,
				"name":        spec.Name,
				"description": spec.Description,
				"tags":        tags,
			},
		},
	}
}

// mergeMetadata folds new spec information into an existing agent's
// metadata. Existing values are never overwritten, only gaps are filled and
// list fields extended.
func mergeMetadata(agent *models.Agent, spec models.AgentSpec, tags []string) (models.AgentMetadata, bool) {
	meta := agent.Metadata
	changed := false

	if mergedTags := routing.MergeUnique(meta.Tags, tags); len(mergedTags) != len(meta.Tags) {
		meta.Tags = mergedTags
		changed = true
	}

	specDomains := routing.NormalizeStrings(spec.Metadata["domains"])
	if len(specDomains) == 0 {
		specDomains = routing.ExtractDomainsFromTags(tags)
	}
	if merged := routing.MergeUnique(meta.Domains, specDomains); len(merged) != len(meta.Domains) {
		meta.Domains = merged
		changed = true
	}

	if caps := routing.NormalizeStrings(spec.Metadata["capabilities"]); len(caps) > 0 {
		if merged := routing.MergeUnique(meta.Capabilities, caps); len(merged) != len(meta.Capabilities) {
			meta.Capabilities = merged
			changed = true
		}
	}

	if meta.Role == "" {
		if role := routing.InferRoleFromTags(meta.Tags); role != "" {
			meta.Role = role
			changed = true
		}
	}
	if meta.Card == nil {
		meta.Card = buildCard(spec, meta.Tags)
		changed = true
	}
	return meta, changed
}
