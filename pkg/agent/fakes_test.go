package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/maestro/pkg/config"
	"github.com/codeready-toolchain/maestro/pkg/llm"
	"github.com/codeready-toolchain/maestro/pkg/models"
	"github.com/codeready-toolchain/maestro/pkg/services"
)

// memStore is an in-memory backend implementing AgentStore, RunStore and
// EventSink, mirroring the service-layer semantics the executor depends on.
type memStore struct {
	nextID     int
	agentOrder []string
	agents     map[string]*models.Agent
	versions   map[string]*models.AgentVersion
	runs       map[string]*models.Run
	events     map[string][]models.Event
}

func newMemStore() *memStore {
	return &memStore{
		agents:   make(map[string]*models.Agent),
		versions: make(map[string]*models.AgentVersion),
		runs:     make(map[string]*models.Run),
		events:   make(map[string][]models.Event),
	}
}

func (s *memStore) id(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func (s *memStore) CreateAgent(_ context.Context, req services.CreateAgentRequest) (*models.Agent, *models.AgentVersion, error) {
	if req.Slug == "" {
		return nil, nil, services.NewValidationError("slug", "required")
	}
	if req.Name == "" {
		return nil, nil, services.NewValidationError("name", "required")
	}
	if req.SystemPrompt == "" {
		return nil, nil, services.NewValidationError("systemPrompt", "required")
	}
	for _, id := range s.agentOrder {
		if s.agents[id].Slug == req.Slug {
			return nil, nil, fmt.Errorf("agent slug %s: %w", req.Slug, services.ErrAlreadyExists)
		}
	}
	now := time.Now().UTC()
	version := &models.AgentVersion{
		ID:           s.id("version"),
		AgentID:      s.id("agent"),
		Version:      1,
		SystemPrompt: req.SystemPrompt,
		Resources:    req.Resources,
		IOSchema:     req.IOSchema,
		RoutingHints: req.RoutingHints,
		CreatedAt:    now,
		CreatedBy:    req.CreatedBy,
	}
	agent := &models.Agent{
		ID:              version.AgentID,
		Slug:            req.Slug,
		Name:            req.Name,
		Description:     req.Description,
		ActiveVersionID: version.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
		CreatedBy:       req.CreatedBy,
		Metadata:        req.Metadata,
	}
	s.agents[agent.ID] = agent
	s.agentOrder = append(s.agentOrder, agent.ID)
	s.versions[version.ID] = version
	return cloneAgent(agent), cloneVersion(version), nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*models.Agent, error) {
	if agent, ok := s.agents[id]; ok {
		return cloneAgent(agent), nil
	}
	return nil, fmt.Errorf("agent: %w", services.ErrNotFound)
}

func (s *memStore) GetBySlug(_ context.Context, slug string) (*models.Agent, error) {
	for _, id := range s.agentOrder {
		if s.agents[id].Slug == slug {
			return cloneAgent(s.agents[id]), nil
		}
	}
	return nil, fmt.Errorf("agent: %w", services.ErrNotFound)
}

func (s *memStore) GetByNameInsensitive(_ context.Context, name string) (*models.Agent, error) {
	for _, id := range s.agentOrder {
		if strings.EqualFold(s.agents[id].Name, name) {
			return cloneAgent(s.agents[id]), nil
		}
	}
	return nil, fmt.Errorf("agent: %w", services.ErrNotFound)
}

func (s *memStore) FindByAnyTag(_ context.Context, tags []string) ([]models.Agent, error) {
	want := make(map[string]bool, len(tags))
	for _, tag := range tags {
		want[tag] = true
	}
	var out []models.Agent
	for _, id := range s.agentOrder {
		for _, tag := range s.agents[id].Metadata.Tags {
			if want[tag] {
				out = append(out, *cloneAgent(s.agents[id]))
				break
			}
		}
	}
	return out, nil
}

func (s *memStore) List(_ context.Context, includeHidden bool) ([]models.Agent, error) {
	var out []models.Agent
	for _, id := range s.agentOrder {
		if !includeHidden && s.agents[id].Metadata.Hidden {
			continue
		}
		out = append(out, *cloneAgent(s.agents[id]))
	}
	return out, nil
}

func (s *memStore) UpdateMetadata(_ context.Context, agentID string, metadata models.AgentMetadata) error {
	agent, ok := s.agents[agentID]
	if !ok {
		return fmt.Errorf("agent %s: %w", agentID, services.ErrNotFound)
	}
	agent.Metadata = metadata
	agent.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memStore) AppendVersion(ctx context.Context, agentID string, req services.AppendVersionRequest) (*models.AgentVersion, error) {
	if req.SystemPrompt == "" {
		return nil, services.NewValidationError("systemPrompt", "required")
	}
	latest, err := s.LatestVersion(ctx, agentID)
	if err != nil {
		return nil, err
	}
	version := &models.AgentVersion{
		ID:           s.id("version"),
		AgentID:      agentID,
		Version:      latest.Version + 1,
		SystemPrompt: req.SystemPrompt,
		Resources:    req.Resources,
		IOSchema:     req.IOSchema,
		RoutingHints: req.RoutingHints,
		CreatedAt:    time.Now().UTC(),
		CreatedBy:    req.CreatedBy,
	}
	s.versions[version.ID] = version
	s.agents[agentID].ActiveVersionID = version.ID
	return cloneVersion(version), nil
}

func (s *memStore) GetVersion(_ context.Context, versionID string) (*models.AgentVersion, error) {
	if version, ok := s.versions[versionID]; ok {
		return cloneVersion(version), nil
	}
	return nil, fmt.Errorf("agent version %s: %w", versionID, services.ErrNotFound)
}

func (s *memStore) LatestVersion(_ context.Context, agentID string) (*models.AgentVersion, error) {
	var latest *models.AgentVersion
	for _, version := range s.versions {
		if version.AgentID != agentID {
			continue
		}
		if latest == nil || version.Version > latest.Version {
			latest = version
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("agent %s has no versions: %w", agentID, services.ErrNotFound)
	}
	return cloneVersion(latest), nil
}

func (s *memStore) versionCount(agentID string) int {
	n := 0
	for _, version := range s.versions {
		if version.AgentID == agentID {
			n++
		}
	}
	return n
}

func (s *memStore) Create(_ context.Context, req services.CreateRunRequest) (*models.Run, error) {
	if req.SessionID == "" {
		return nil, services.NewValidationError("sessionId", "required")
	}
	run := &models.Run{
		ID:             s.id("run"),
		SessionID:      req.SessionID,
		AgentID:        req.AgentID,
		AgentVersionID: req.AgentVersionID,
		Status:         models.RunStatusRunning,
		ParentRunID:    req.ParentRunID,
		RootRunID:      req.RootRunID,
		Input:          models.RunInput{UserMessage: req.UserMessage, Context: req.Context},
		StartedAt:      time.Now().UTC(),
	}
	if run.RootRunID == "" {
		run.RootRunID = run.ID
	}
	s.runs[run.ID] = run
	return cloneRun(run), nil
}

func (s *memStore) Get(_ context.Context, id string) (*models.Run, error) {
	if run, ok := s.runs[id]; ok {
		return cloneRun(run), nil
	}
	return nil, fmt.Errorf("run %s: %w", id, services.ErrNotFound)
}

func (s *memStore) CountByRoot(_ context.Context, rootRunID string) (int, error) {
	n := 0
	for _, run := range s.runs {
		if run.RootRunID == rootRunID {
			n++
		}
	}
	return n, nil
}

func (s *memStore) MarkSucceeded(_ context.Context, runID string, result any) error {
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run %s: %w", runID, services.ErrNotFound)
	}
	now := time.Now().UTC()
	run.Status = models.RunStatusSucceeded
	run.Output = &models.RunOutput{Result: result}
	run.EndedAt = &now
	return nil
}

func (s *memStore) MarkFailed(_ context.Context, runID, message string, lastEventSeq int) error {
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run %s: %w", runID, services.ErrNotFound)
	}
	now := time.Now().UTC()
	run.Status = models.RunStatusFailed
	run.Error = &models.RunError{Message: message, LastEventSeq: lastEventSeq}
	run.EndedAt = &now
	return nil
}

func (s *memStore) Append(_ context.Context, runID, eventType string, payload map[string]any) (*models.Event, error) {
	event := models.Event{
		ID:      s.id("event"),
		RunID:   runID,
		Seq:     len(s.events[runID]) + 1,
		TS:      time.Now().UTC(),
		Type:    eventType,
		Payload: payload,
	}
	s.events[runID] = append(s.events[runID], event)
	return &event, nil
}

func (s *memStore) MaxSeq(_ context.Context, runID string) (int, error) {
	return len(s.events[runID]), nil
}

func cloneAgent(a *models.Agent) *models.Agent {
	c := *a
	return &c
}

func cloneVersion(v *models.AgentVersion) *models.AgentVersion {
	c := *v
	return &c
}

func cloneRun(r *models.Run) *models.Run {
	c := *r
	return &c
}

// scriptedModel serves canned response strings in call order.
type scriptedModel struct {
	responses []string
	calls     int
}

func (m *scriptedModel) Call(_ context.Context, _ llm.Request) (llm.Response, error) {
	if m.calls >= len(m.responses) {
		return llm.Response{}, &llm.ModelError{Message: "no scripted response left"}
	}
	resp := m.responses[m.calls]
	m.calls++
	return llm.Response{Content: resp}, nil
}

func (m *scriptedModel) Provider() string {
	return "mock"
}

func testConfig() *config.Config {
	return &config.Config{
		ModelName:            "gpt-4o",
		MaxDepth:             config.DefaultMaxDepth,
		MaxChildren:          config.DefaultMaxChildren,
		RouterIndexLimit:     config.DefaultRouterIndexLimit,
		SpecialistIndexLimit: config.DefaultSpecialistIndexLimit,
		MainRouterSlug:       "bootstrap",
		MainRouterName:       "Bootstrap Router",
	}
}

func seedAgent(t *testing.T, store *memStore, slug, name, prompt string, metadata models.AgentMetadata) *models.Agent {
	t.Helper()
	agent, _, err := store.CreateAgent(context.Background(), services.CreateAgentRequest{
		Slug:         slug,
		Name:         name,
		SystemPrompt: prompt,
		Metadata:     metadata,
		CreatedBy:    models.CreatedByUser,
	})
	require.NoError(t, err)
	return agent
}

func eventTypes(events []models.Event) []string {
	out := make([]string, 0, len(events))
	for _, event := range events {
		out = append(out, event.Type)
	}
	return out
}

// requireWellFormedStream asserts the per-run event invariants: seqs are
// 1..N gapless, the stream starts with RUN_STARTED and ends with
// RUN_FINISHED.
func requireWellFormedStream(t *testing.T, events []models.Event) {
	t.Helper()
	require.NotEmpty(t, events)
	for i, event := range events {
		require.Equal(t, i+1, event.Seq, "event seqs must be gapless")
	}
	require.Equal(t, models.EventRunStarted, events[0].Type)
	require.Equal(t, models.EventRunFinished, events[len(events)-1].Type)
}
