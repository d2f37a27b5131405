package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/codeready-toolchain/maestro/pkg/config"
	"github.com/codeready-toolchain/maestro/pkg/models"
	"github.com/codeready-toolchain/maestro/pkg/services"
)

// apiStore is an in-memory backend implementing every store interface the
// server consumes, so handler tests exercise the real executor and runner
// without MongoDB.
type apiStore struct {
	nextID       int
	agentOrder   []string
	agents       map[string]*models.Agent
	versions     map[string]*models.AgentVersion
	sessions     map[string]*models.Session
	sessionOrder []string
	runs         map[string]*models.Run
	runOrder     []string
	events       map[string][]models.Event
	workflows    map[string]*models.Workflow
}

func newAPIStore() *apiStore {
	return &apiStore{
		agents:    make(map[string]*models.Agent),
		versions:  make(map[string]*models.AgentVersion),
		sessions:  make(map[string]*models.Session),
		runs:      make(map[string]*models.Run),
		events:    make(map[string][]models.Event),
		workflows: make(map[string]*models.Workflow),
	}
}

func (s *apiStore) id(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func (s *apiStore) CreateAgent(_ context.Context, req services.CreateAgentRequest) (*models.Agent, *models.AgentVersion, error) {
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
	return agent, version, nil
}

func (s *apiStore) GetByID(_ context.Context, id string) (*models.Agent, error) {
	if agent, ok := s.agents[id]; ok {
		return agent, nil
	}
	return nil, fmt.Errorf("agent: %w", services.ErrNotFound)
}

func (s *apiStore) GetBySlug(_ context.Context, slug string) (*models.Agent, error) {
	for _, id := range s.agentOrder {
		if s.agents[id].Slug == slug {
			return s.agents[id], nil
		}
	}
	return nil, fmt.Errorf("agent: %w", services.ErrNotFound)
}

func (s *apiStore) GetByNameInsensitive(_ context.Context, name string) (*models.Agent, error) {
	for _, id := range s.agentOrder {
		if strings.EqualFold(s.agents[id].Name, name) {
			return s.agents[id], nil
		}
	}
	return nil, fmt.Errorf("agent: %w", services.ErrNotFound)
}

func (s *apiStore) FindByAnyTag(_ context.Context, tags []string) ([]models.Agent, error) {
	want := make(map[string]bool, len(tags))
	for _, tag := range tags {
		want[tag] = true
	}
	var out []models.Agent
	for _, id := range s.agentOrder {
		for _, tag := range s.agents[id].Metadata.Tags {
			if want[tag] {
				out = append(out, *s.agents[id])
				break
			}
		}
	}
	return out, nil
}

func (s *apiStore) List(_ context.Context, includeHidden bool) ([]models.Agent, error) {
	var out []models.Agent
	for _, id := range s.agentOrder {
		if !includeHidden && s.agents[id].Metadata.Hidden {
			continue
		}
		out = append(out, *s.agents[id])
	}
	return out, nil
}

func (s *apiStore) UpdateMetadata(_ context.Context, agentID string, metadata models.AgentMetadata) error {
	agent, ok := s.agents[agentID]
	if !ok {
		return fmt.Errorf("agent %s: %w", agentID, services.ErrNotFound)
	}
	agent.Metadata = metadata
	return nil
}

func (s *apiStore) AppendVersion(ctx context.Context, agentID string, req services.AppendVersionRequest) (*models.AgentVersion, error) {
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
	return version, nil
}

func (s *apiStore) SetActiveVersion(ctx context.Context, agentID, versionID string) error {
	version, err := s.GetVersion(ctx, versionID)
	if err != nil {
		return err
	}
	if version.AgentID != agentID {
		return services.NewValidationError("versionId", "version does not belong to agent")
	}
	agent, ok := s.agents[agentID]
	if !ok {
		return fmt.Errorf("agent %s: %w", agentID, services.ErrNotFound)
	}
	agent.ActiveVersionID = versionID
	return nil
}

func (s *apiStore) GetVersion(_ context.Context, versionID string) (*models.AgentVersion, error) {
	if version, ok := s.versions[versionID]; ok {
		return version, nil
	}
	return nil, fmt.Errorf("agent version %s: %w", versionID, services.ErrNotFound)
}

func (s *apiStore) ListVersions(_ context.Context, agentID string) ([]models.AgentVersion, error) {
	var out []models.AgentVersion
	for v := 1; ; v++ {
		found := false
		for _, version := range s.versions {
			if version.AgentID == agentID && version.Version == v {
				out = append(out, *version)
				found = true
				break
			}
		}
		if !found {
			return out, nil
		}
	}
}

func (s *apiStore) LatestVersion(_ context.Context, agentID string) (*models.AgentVersion, error) {
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
	return latest, nil
}

func (s *apiStore) CreateSession(_ context.Context, title string, metadata map[string]any) (*models.Session, error) {
	session := &models.Session{
		ID:        s.id("session"),
		Title:     title,
		CreatedAt: time.Now().UTC(),
		Metadata:  metadata,
	}
	s.sessions[session.ID] = session
	s.sessionOrder = append(s.sessionOrder, session.ID)
	return session, nil
}

func (s *apiStore) GetSession(_ context.Context, id string) (*models.Session, error) {
	if session, ok := s.sessions[id]; ok {
		return session, nil
	}
	return nil, fmt.Errorf("session %s: %w", id, services.ErrNotFound)
}

func (s *apiStore) ListSessions(_ context.Context, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.Session
	for i := len(s.sessionOrder) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *s.sessions[s.sessionOrder[i]])
	}
	return out, nil
}

func (s *apiStore) CreateRun(_ context.Context, req services.CreateRunRequest) (*models.Run, error) {
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
	s.runOrder = append(s.runOrder, run.ID)
	return run, nil
}

func (s *apiStore) GetRun(_ context.Context, id string) (*models.Run, error) {
	if run, ok := s.runs[id]; ok {
		return run, nil
	}
	return nil, fmt.Errorf("run %s: %w", id, services.ErrNotFound)
}

func (s *apiStore) CountByRoot(_ context.Context, rootRunID string) (int, error) {
	n := 0
	for _, run := range s.runs {
		if run.RootRunID == rootRunID {
			n++
		}
	}
	return n, nil
}

func (s *apiStore) ListBySession(_ context.Context, sessionID string) ([]models.Run, error) {
	var out []models.Run
	for _, id := range s.runOrder {
		if s.runs[id].SessionID == sessionID {
			out = append(out, *s.runs[id])
		}
	}
	return out, nil
}

func (s *apiStore) MarkSucceeded(_ context.Context, runID string, result any) error {
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

func (s *apiStore) MarkFailed(_ context.Context, runID, message string, lastEventSeq int) error {
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

func (s *apiStore) Append(_ context.Context, runID, eventType string, payload map[string]any) (*models.Event, error) {
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

func (s *apiStore) MaxSeq(_ context.Context, runID string) (int, error) {
	return len(s.events[runID]), nil
}

func (s *apiStore) ListSince(_ context.Context, runID string, sinceSeq int) ([]models.Event, error) {
	var out []models.Event
	for _, event := range s.events[runID] {
		if event.Seq > sinceSeq {
			out = append(out, event)
		}
	}
	return out, nil
}

func (s *apiStore) SaveWorkflow(_ context.Context, req services.SaveWorkflowRequest) (*models.Workflow, error) {
	if req.Name == "" {
		return nil, services.NewValidationError("name", "required")
	}
	if len(req.Nodes) == 0 {
		return nil, services.NewValidationError("nodes", "at least one node is required")
	}
	wf := &models.Workflow{
		ID:          req.WorkflowID,
		Name:        req.Name,
		Description: req.Description,
		Nodes:       req.Nodes,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if wf.ID == "" {
		wf.ID = s.id("wf")
	}
	s.workflows[wf.ID] = wf
	return wf, nil
}

func (s *apiStore) GetWorkflow(_ context.Context, id string) (*models.Workflow, error) {
	if wf, ok := s.workflows[id]; ok {
		return wf, nil
	}
	return nil, fmt.Errorf("workflow %s: %w", id, services.ErrNotFound)
}

func (s *apiStore) ListWorkflows(_ context.Context) ([]models.Workflow, error) {
	var out []models.Workflow
	for _, wf := range s.workflows {
		out = append(out, *wf)
	}
	return out, nil
}

// The session, run and workflow store interfaces all name their methods
// Create/Get/List, so a single fake cannot implement them directly. These
// views delegate to the shared apiStore under the interface's names.

type sessionView struct{ s *apiStore }

func (v sessionView) Create(ctx context.Context, title string, metadata map[string]any) (*models.Session, error) {
	return v.s.CreateSession(ctx, title, metadata)
}

func (v sessionView) Get(ctx context.Context, id string) (*models.Session, error) {
	return v.s.GetSession(ctx, id)
}

func (v sessionView) List(ctx context.Context, limit int) ([]models.Session, error) {
	return v.s.ListSessions(ctx, limit)
}

type runView struct{ s *apiStore }

func (v runView) Create(ctx context.Context, req services.CreateRunRequest) (*models.Run, error) {
	return v.s.CreateRun(ctx, req)
}

func (v runView) Get(ctx context.Context, id string) (*models.Run, error) {
	return v.s.GetRun(ctx, id)
}

func (v runView) ListBySession(ctx context.Context, sessionID string) ([]models.Run, error) {
	return v.s.ListBySession(ctx, sessionID)
}

func (v runView) CountByRoot(ctx context.Context, rootRunID string) (int, error) {
	return v.s.CountByRoot(ctx, rootRunID)
}

func (v runView) MarkSucceeded(ctx context.Context, runID string, result any) error {
	return v.s.MarkSucceeded(ctx, runID, result)
}

func (v runView) MarkFailed(ctx context.Context, runID, message string, lastEventSeq int) error {
	return v.s.MarkFailed(ctx, runID, message, lastEventSeq)
}

type workflowView struct{ s *apiStore }

func (v workflowView) Save(ctx context.Context, req services.SaveWorkflowRequest) (*models.Workflow, error) {
	return v.s.SaveWorkflow(ctx, req)
}

func (v workflowView) Get(ctx context.Context, id string) (*models.Workflow, error) {
	return v.s.GetWorkflow(ctx, id)
}

func (v workflowView) List(ctx context.Context) ([]models.Workflow, error) {
	return v.s.ListWorkflows(ctx)
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
