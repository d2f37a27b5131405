package agent

import (
	"context"

	"github.com/codeready-toolchain/maestro/pkg/models"
	"github.com/codeready-toolchain/maestro/pkg/routing"
)

// a2aInstruction is appended to every agent's system prompt. It pins the
// output contract the executor parses and restates the delegation rules the
// validator enforces, so well-behaved models never trip a policy failure.
const a2aInstruction = `A2A protocol: reply with a single JSON object and nothing else.
To answer directly, reply {"type":"final","result":<any JSON value>}.
To delegate, reply {"type":"plan","agentsToCreate":[...],"runsToExecute":[...]};
a plan is the only way to delegate. Never delegate to yourself, to any slug in
routingState.visitedSlugs, or to the same slug twice within one plan. Respect
routingPolicy.maxDepth and routingPolicy.maxChildren. Specialist agents must
not create agents and may delegate to at most one router. Only the directory
agent sees the full roster; delegate to a2a.directoryAgent when no visible
agent fits.`

const directoryPurpose = "Knows the full agent roster; delegate here when no visible agent fits."

// childContextKeys are copied from a child run's stored input context into
// its model context.
var childContextKeys = []string{"parentPlan", "previousResults", "explicitContext"}

// buildContext assembles the context object injected into the model prompt.
// Indexes are capped by policy; the full roster is exposed only to the
// directory agent.
func (e *Executor) buildContext(ctx context.Context, run *models.Run, self models.AgentSummary, state routing.RoutingState) (map[string]any, error) {
	roster, err := e.agents.List(ctx, true)
	if err != nil {
		return nil, err
	}

	contextObj := map[string]any{
		"availableAgentsSummary": routing.SummarizeAgents(roster),
		"availableRouters":       routing.BuildRouterIndex(roster, e.policy.RouterIndexLimit),
		"routingPolicy": map[string]any{
			"maxDepth":    e.policy.MaxDepth,
			"maxChildren": e.policy.MaxChildren,
		},
		"routingState": map[string]any{
			"visitedSlugs": routing.MergeUnique(state.VisitedSlugs, []string{self.Slug}),
			"routingDepth": state.RoutingDepth,
		},
		"self": self,
		"a2a": map[string]any{
			"directoryAgent": map[string]any{
				"slug":    e.directorySlug,
				"purpose": directoryPurpose,
			},
		},
	}

	if self.Role == models.RoleRouter {
		contextObj["availableSpecialists"] = routing.BuildSpecialistIndex(roster, e.policy.SpecialistIndexLimit, self.Domains)
	}
	if self.Slug == e.directorySlug {
		all := make([]models.AgentSummary, 0, len(roster))
		for i := range roster {
			all = append(all, routing.BuildAgentSummary(&roster[i]))
		}
		contextObj["availableAgents"] = all
	}

	for _, key := range childContextKeys {
		if v, ok := run.Input.Context[key]; ok {
			contextObj[key] = v
		}
	}
	return contextObj, nil
}
