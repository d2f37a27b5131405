package agent

import (
	"encoding/json"

	"github.com/codeready-toolchain/maestro/pkg/models"
)

// ParsePlan normalizes a decoded model response of type "plan" into a Plan.
// Older prompts produced the key aliases "agents" and "runs"; both spellings
// are accepted, with the canonical keys winning when present. Missing keys
// default to empty arrays; the plan is rejected only when both keys resolve
// to non-array values.
func ParsePlan(parsed map[string]any) (*models.Plan, error) {
	rawAgents, agentsOK := planValue(parsed, "agentsToCreate", "agents")
	rawRuns, runsOK := planValue(parsed, "runsToExecute", "runs")
	if !agentsOK && !runsOK {
		return nil, &PolicyError{Message: "Plan has no agentsToCreate or runsToExecute arrays"}
	}

	plan := &models.Plan{}
	if err := reparse(rawAgents, &plan.AgentsToCreate); err != nil {
		return nil, &PolicyError{Message: "Plan agentsToCreate entries are malformed"}
	}
	if err := reparse(rawRuns, &plan.RunsToExecute); err != nil {
		return nil, &PolicyError{Message: "Plan runsToExecute entries are malformed"}
	}
	return plan, nil
}

// planValue resolves a plan key with its legacy alias. An absent key counts
// as an empty array; a key that is present with a non-array value does not.
func planValue(parsed map[string]any, key, alias string) ([]any, bool) {
	for _, k := range []string{key, alias} {
		v, present := parsed[k]
		if !present {
			continue
		}
		arr, ok := v.([]any)
		return arr, ok
	}
	return nil, true
}

// reparse round-trips a decoded JSON array into a typed slice.
func reparse(raw []any, out any) error {
	if len(raw) == 0 {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
