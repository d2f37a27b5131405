package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codeready-toolchain/maestro/pkg/config"
	"github.com/codeready-toolchain/maestro/pkg/llm"
	"github.com/codeready-toolchain/maestro/pkg/models"
	"github.com/codeready-toolchain/maestro/pkg/routing"
	"github.com/codeready-toolchain/maestro/pkg/services"
)

const (
	// spawnCap bounds descendants per run tree (11 runs including the root).
	spawnCap = 10

	defaultTemperature = 0.2
	promptHashLen      = 12
)

// Policy is the routing policy applied to every run tree.
type Policy struct {
	MaxDepth             int
	MaxChildren          int
	RouterIndexLimit     int
	SpecialistIndexLimit int
}

// Executor drives one run to a terminal state: load agent, build context,
// call the model, then either store the final result or validate the plan
// and execute its children depth-first. Children run strictly sequentially;
// a child failure is captured into the parent's result, never rethrown.
type Executor struct {
	policy        Policy
	modelName     string
	directorySlug string
	directoryName string

	runs     RunStore
	agents   AgentStore
	events   EventSink
	model    llm.Client
	resolver *Resolver
	logger   *slog.Logger
}

// NewExecutor creates an Executor wired to the given stores and model
// caller.
func NewExecutor(cfg *config.Config, runs RunStore, agents AgentStore, events EventSink, model llm.Client) *Executor {
	modelName := cfg.ModelName
	if model.Provider() == "fireworks" {
		modelName = cfg.FireworksModel
	}
	return &Executor{
		policy: Policy{
			MaxDepth:             cfg.MaxDepth,
			MaxChildren:          cfg.MaxChildren,
			RouterIndexLimit:     cfg.RouterIndexLimit,
			SpecialistIndexLimit: cfg.SpecialistIndexLimit,
		},
		modelName:     modelName,
		directorySlug: cfg.MainRouterSlug,
		directoryName: cfg.MainRouterName,
		runs:          runs,
		agents:        agents,
		events:        events,
		model:         model,
		resolver:      NewResolver(agents),
		logger:        slog.Default().With("component", "executor"),
	}
}

// Execute runs one run to completion and returns the error that failed it,
// if any. Every failure past the initial load is trapped here: the run is
// marked failed and ERROR + RUN_FINISHED events are appended, so callers
// holding child runs observe failures through the stored run, not through
// control flow.
func (e *Executor) Execute(ctx context.Context, runID string) error {
	run, err := e.runs.Get(ctx, runID)
	if err != nil {
		// No run document to fail; nothing to emit against.
		return err
	}
	if _, err := e.events.Append(ctx, run.ID, models.EventRunStarted, map[string]any{"sessionId": run.SessionID}); err != nil {
		return e.failRun(ctx, run, err)
	}
	if err := e.run(ctx, run); err != nil {
		return e.failRun(ctx, run, err)
	}
	return nil
}

// run is the fallible body of Execute between RUN_STARTED and the terminal
// transition.
func (e *Executor) run(ctx context.Context, run *models.Run) error {
	agent, version, err := e.loadAgent(ctx, run)
	if err != nil {
		return err
	}
	if _, err := e.events.Append(ctx, run.ID, models.EventPromptLoaded, map[string]any{
		"agentId":        agent.ID,
		"agentVersionId": version.ID,
		"slug":           agent.Slug,
	}); err != nil {
		return err
	}

	self := routing.BuildAgentSummary(agent)
	state := routing.ReadRoutingState(run.Input.Context)
	contextObj, err := e.buildContext(ctx, run, self, state)
	if err != nil {
		return err
	}

	systemPrompt := version.SystemPrompt + "\n" + a2aInstruction
	modelName := e.modelName
	if version.RoutingHints.PreferredModel != "" {
		modelName = version.RoutingHints.PreferredModel
	}
	if _, err := e.events.Append(ctx, run.ID, models.EventModelRequest, map[string]any{
		"model":      modelName,
		"promptHash": promptHash(systemPrompt, run.Input.UserMessage),
	}); err != nil {
		return err
	}

	contextJSON, err := json.MarshalIndent(contextObj, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run context: %w", err)
	}
	temperature := defaultTemperature
	if version.RoutingHints.Temperature > 0 {
		temperature = version.RoutingHints.Temperature
	}
	resp, err := e.model.Call(ctx, llm.Request{
		Model: modelName,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: run.Input.UserMessage + "\n\nContext:\n" + string(contextJSON)},
		},
		Temperature: temperature,
	})
	if err != nil {
		return err
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		return &llm.ModelError{Message: "response is not valid JSON"}
	}
	responseType, _ := parsed["type"].(string)
	if responseType != "plan" && responseType != "final" {
		return errors.New("Model response missing type plan/final")
	}
	if _, err := e.events.Append(ctx, run.ID, models.EventModelResponse, parsed); err != nil {
		return err
	}

	if responseType == "final" {
		if err := e.runs.MarkSucceeded(ctx, run.ID, parsed["result"]); err != nil {
			return err
		}
		_, err := e.events.Append(ctx, run.ID, models.EventRunFinished, map[string]any{"status": models.RunStatusSucceeded})
		return err
	}
	return e.executePlan(ctx, run, agent, self, state, parsed)
}

// loadAgent resolves the agent and pinned version for a run. Runs without
// an agent fall back to the lazily-created directory agent.
func (e *Executor) loadAgent(ctx context.Context, run *models.Run) (*models.Agent, *models.AgentVersion, error) {
	if run.AgentID == "" {
		return EnsureDirectoryAgent(ctx, e.agents, e.directorySlug, e.directoryName)
	}
	agent, err := e.agents.GetByID(ctx, run.AgentID)
	if errors.Is(err, services.ErrNotFound) {
		return nil, nil, errors.New("Agent not found")
	}
	if err != nil {
		return nil, nil, err
	}
	versionID := run.AgentVersionID
	if versionID == "" {
		versionID = agent.ActiveVersionID
	}
	version, err := e.agents.GetVersion(ctx, versionID)
	if errors.Is(err, services.ErrNotFound) {
		return nil, nil, errors.New("Agent version not found")
	}
	if err != nil {
		return nil, nil, err
	}
	return agent, version, nil
}

// executePlan validates a plan, resolves its agent specs and executes its
// children sequentially, then merges child results into this run's output.
func (e *Executor) executePlan(ctx context.Context, run *models.Run, agent *models.Agent, self models.AgentSummary, state routing.RoutingState, parsed map[string]any) error {
	plan, err := ParsePlan(parsed)
	if err != nil {
		return err
	}
	visited := routing.MergeUnique(state.VisitedSlugs, []string{self.Slug})
	if err := e.validatePlan(ctx, run.RootRunID, self, state, visited, plan); err != nil {
		return err
	}

	specSlugs := make([]string, 0, len(plan.AgentsToCreate))
	for _, spec := range plan.AgentsToCreate {
		specSlugs = append(specSlugs, spec.Slug)
	}
	runSlugs := make([]string, 0, len(plan.RunsToExecute))
	for _, child := range plan.RunsToExecute {
		runSlugs = append(runSlugs, child.Slug)
	}
	if _, err := e.events.Append(ctx, run.ID, models.EventSpawnAgentRequest, map[string]any{
		"agentsToCreate": specSlugs,
		"runsToExecute":  runSlugs,
	}); err != nil {
		return err
	}

	origin := &models.AgentOrigin{
		ParentRunID:      run.ID,
		RootRunID:        run.RootRunID,
		CreatedByAgentID: agent.ID,
		UserMessage:      run.Input.UserMessage,
	}
	resolutions := make(map[string]*models.AgentResolution, len(plan.AgentsToCreate))
	createdAgents := make([]string, 0, len(plan.AgentsToCreate))
	for _, spec := range plan.AgentsToCreate {
		resolution, err := e.resolver.Resolve(ctx, spec, origin)
		if err != nil {
			return err
		}
		resolutions[resolution.RequestedSlug] = resolution
		createdAgents = append(createdAgents, resolution.Slug)
		if _, err := e.events.Append(ctx, run.ID, models.EventSpawnAgentCreated, map[string]any{"resolution": resolution}); err != nil {
			return err
		}
	}

	// Children share one visited set covering the whole sibling group, so no
	// descendant can route back into any part of this plan.
	childVisited := routing.MergeUnique(visited, runSlugs)
	childResults := make(map[string]any, len(plan.RunsToExecute))
	executedAgents := make([]string, 0, len(plan.RunsToExecute))
	for _, child := range plan.RunsToExecute {
		previous := make(map[string]any, len(childResults))
		for slug, output := range childResults {
			previous[slug] = routing.SummarizeResult(output)
		}
		var explicit any
		if child.Context != nil {
			explicit = child.Context
		}
		childContext := map[string]any{
			"parentPlan":      parsed,
			"previousResults": previous,
			"explicitContext": explicit,
			"routingPolicy": map[string]any{
				"maxDepth":    e.policy.MaxDepth,
				"maxChildren": e.policy.MaxChildren,
			},
			"routingState": map[string]any{
				"visitedSlugs": childVisited,
				"routingDepth": state.RoutingDepth + 1,
			},
		}

		agentID, versionID, err := e.childAgent(ctx, resolutions, child.Slug)
		if err != nil {
			return err
		}
		childRun, err := e.runs.Create(ctx, services.CreateRunRequest{
			SessionID:      run.SessionID,
			AgentID:        agentID,
			AgentVersionID: versionID,
			ParentRunID:    run.ID,
			RootRunID:      run.RootRunID,
			UserMessage:    child.UserMessage,
			Context:        childContext,
		})
		if err != nil {
			return err
		}
		if _, err := e.events.Append(ctx, run.ID, models.EventChildRunStarted, map[string]any{
			"childRunId": childRun.ID,
			"slug":       child.Slug,
		}); err != nil {
			return err
		}

		status := models.RunStatusSucceeded
		if execErr := e.Execute(ctx, childRun.ID); execErr != nil {
			// Sibling failures do not abort the plan.
			status = models.RunStatusFailed
			childResults[child.Slug] = map[string]any{"error": execErr.Error()}
		} else {
			finished, err := e.runs.Get(ctx, childRun.ID)
			if err != nil {
				return err
			}
			var result any
			if finished.Output != nil {
				result = finished.Output.Result
			}
			childResults[child.Slug] = result
		}
		executedAgents = append(executedAgents, child.Slug)
		if _, err := e.events.Append(ctx, run.ID, models.EventChildRunFinished, map[string]any{
			"childRunId": childRun.ID,
			"status":     status,
		}); err != nil {
			return err
		}
	}

	merged := map[string]any{
		"childResultsBySlug": childResults,
		"planSummary": map[string]any{
			"createdAgents":  createdAgents,
			"executedAgents": executedAgents,
		},
	}
	if err := e.runs.MarkSucceeded(ctx, run.ID, merged); err != nil {
		return err
	}
	_, err = e.events.Append(ctx, run.ID, models.EventRunFinished, map[string]any{"status": models.RunStatusSucceeded})
	return err
}

// validatePlan applies the delegation policy checks, in order: role
// discipline, depth, fan-out, per-plan slug uniqueness, anti-loop, spawn
// cap, agent spec validity.
func (e *Executor) validatePlan(ctx context.Context, rootRunID string, self models.AgentSummary, state routing.RoutingState, visited []string, plan *models.Plan) error {
	if self.Role == models.RoleSpecialist {
		if len(plan.AgentsToCreate) > 0 {
			return &PolicyError{Message: "Specialist agents cannot create new agents"}
		}
		if len(plan.RunsToExecute) > 1 {
			return &PolicyError{Message: "Specialist agents may delegate to at most one router"}
		}
		for _, child := range plan.RunsToExecute {
			target, err := e.agents.GetBySlug(ctx, child.Slug)
			if errors.Is(err, services.ErrNotFound) {
				return policyErrorf("Specialist agents may only delegate to known routers: %s", child.Slug)
			}
			if err != nil {
				return err
			}
			if routing.BuildAgentSummary(target).Role != models.RoleRouter {
				return policyErrorf("Specialist agents may only delegate to known routers: %s", child.Slug)
			}
		}
	}

	if state.RoutingDepth >= e.policy.MaxDepth && len(plan.RunsToExecute) > 0 {
		return &PolicyError{Message: "Routing depth exceeded"}
	}
	if len(plan.RunsToExecute) > e.policy.MaxChildren {
		return policyErrorf("Fan-out limit exceeded: %d children, max %d", len(plan.RunsToExecute), e.policy.MaxChildren)
	}

	seen := make(map[string]bool, len(plan.RunsToExecute))
	visitedSet := make(map[string]bool, len(visited))
	for _, slug := range visited {
		visitedSet[slug] = true
	}
	for _, child := range plan.RunsToExecute {
		slug := strings.TrimSpace(child.Slug)
		if slug == "" {
			return &PolicyError{Message: "Plan run requires a non-empty slug"}
		}
		if seen[slug] {
			return policyErrorf("Duplicate slug in plan: %s", slug)
		}
		seen[slug] = true
		if visitedSet[slug] {
			return policyErrorf("Slug already executed in this run tree: %s", slug)
		}
	}

	if len(plan.RunsToExecute) > 0 {
		total, err := e.runs.CountByRoot(ctx, rootRunID)
		if err != nil {
			return err
		}
		alreadySpawned := total - 1
		if alreadySpawned+len(plan.RunsToExecute) > spawnCap {
			return &PolicyError{Message: "Spawn cap exceeded"}
		}
	}

	for _, spec := range plan.AgentsToCreate {
		if strings.TrimSpace(spec.Slug) == "" || strings.TrimSpace(spec.Name) == "" || strings.TrimSpace(spec.SystemPrompt) == "" {
			return services.NewValidationError("agentsToCreate",
				fmt.Sprintf("agent spec %q requires slug, name and systemPrompt", spec.Slug))
		}
	}
	return nil
}

// childAgent picks the agent and version a child run executes: the plan's
// resolution for that slug, else an existing agent's active version, else
// the directory agent.
func (e *Executor) childAgent(ctx context.Context, resolutions map[string]*models.AgentResolution, slug string) (string, string, error) {
	if resolution, ok := resolutions[slug]; ok {
		return resolution.AgentID, resolution.AgentVersionID, nil
	}
	agent, err := e.agents.GetBySlug(ctx, slug)
	if err == nil {
		return agent.ID, agent.ActiveVersionID, nil
	}
	if !errors.Is(err, services.ErrNotFound) {
		return "", "", err
	}
	directory, version, err := EnsureDirectoryAgent(ctx, e.agents, e.directorySlug, e.directoryName)
	if err != nil {
		return "", "", err
	}
	return directory.ID, version.ID, nil
}

// failRun traps a run failure: record the message with the last event seq,
// then append ERROR and RUN_FINISHED. Bookkeeping errors on this path are
// logged, not propagated; the original cause is always returned.
func (e *Executor) failRun(ctx context.Context, run *models.Run, cause error) error {
	lastSeq, err := e.events.MaxSeq(ctx, run.ID)
	if err != nil {
		e.logger.Error("failed to read last event seq", "runId", run.ID, "error", err)
	}
	if err := e.runs.MarkFailed(ctx, run.ID, cause.Error(), lastSeq); err != nil {
		e.logger.Error("failed to mark run failed", "runId", run.ID, "error", err)
	}
	e.emit(ctx, run.ID, models.EventError, map[string]any{"message": cause.Error()})
	e.emit(ctx, run.ID, models.EventRunFinished, map[string]any{"status": models.RunStatusFailed})
	return cause
}

func (e *Executor) emit(ctx context.Context, runID, eventType string, payload map[string]any) {
	if _, err := e.events.Append(ctx, runID, eventType, payload); err != nil {
		e.logger.Error("failed to append event", "runId", runID, "type", eventType, "error", err)
	}
}

// promptHash fingerprints a prompt pair for the MODEL_REQUEST event.
func promptHash(systemPrompt, userMessage string) string {
	sum := sha256.Sum256([]byte(systemPrompt + userMessage))
	return hex.EncodeToString(sum[:])[:promptHashLen]
}
