package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/codeready-toolchain/maestro/pkg/database"
	"github.com/codeready-toolchain/maestro/pkg/models"
)

// AgentService manages agent identities and their append-only version
// history.
type AgentService struct {
	agents   *mongo.Collection
	versions *mongo.Collection
}

// NewAgentService creates a new AgentService.
func NewAgentService(db *mongo.Database) *AgentService {
	return &AgentService{
		agents:   db.Collection(database.CollAgents),
		versions: db.Collection(database.CollAgentVersions),
	}
}

// CreateAgentRequest contains fields for creating a new agent with its
// first version.
type CreateAgentRequest struct {
	Slug         string
	Name         string
	Description  string
	SystemPrompt string
	Resources    []string
	IOSchema     any
	RoutingHints models.RoutingHints
	Metadata     models.AgentMetadata
	CreatedBy    string
}

// CreateAgent inserts a new agent together with version 1 and returns both.
// A duplicate slug surfaces as ErrAlreadyExists — concurrent plans that
// propose the same new slug race on the unique slug index by design.
func (s *AgentService) CreateAgent(ctx context.Context, req CreateAgentRequest) (*models.Agent, *models.AgentVersion, error) {
	if req.Slug == "" {
		return nil, nil, NewValidationError("slug", "required")
	}
	if req.Name == "" {
		return nil, nil, NewValidationError("name", "required")
	}
	if req.SystemPrompt == "" {
		return nil, nil, NewValidationError("systemPrompt", "required")
	}

	now := time.Now().UTC()
	version := &models.AgentVersion{
		ID:           uuid.NewString(),
		AgentID:      uuid.NewString(),
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

	// Insert the agent first so the unique slug index settles races before
	// any version document exists.
	if _, err := s.agents.InsertOne(ctx, agent); err != nil {
		if database.IsDup(err) {
			return nil, nil, fmt.Errorf("agent slug %s: %w", req.Slug, ErrAlreadyExists)
		}
		return nil, nil, fmt.Errorf("failed to create agent: %w", err)
	}
	if _, err := s.versions.InsertOne(ctx, version); err != nil {
		return nil, nil, fmt.Errorf("failed to create agent version: %w", err)
	}
	return agent, version, nil
}

// GetByID loads an agent by id.
func (s *AgentService) GetByID(ctx context.Context, id string) (*models.Agent, error) {
	return s.findOne(ctx, bson.M{"id": id})
}

// GetBySlug loads an agent by its unique slug.
func (s *AgentService) GetBySlug(ctx context.Context, slug string) (*models.Agent, error) {
	return s.findOne(ctx, bson.M{"slug": slug})
}

// GetByNameInsensitive loads an agent whose name matches exactly, ignoring
// case.
func (s *AgentService) GetByNameInsensitive(ctx context.Context, name string) (*models.Agent, error) {
	pattern := primitive.Regex{Pattern: "^" + regexp.QuoteMeta(name) + "$", Options: "i"}
	return s.findOne(ctx, bson.M{"name": pattern})
}

// FindByAnyTag returns agents whose metadata tags intersect the given set,
// in stable creation order.
func (s *AgentService) FindByAnyTag(ctx context.Context, tags []string) ([]models.Agent, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	cursor, err := s.agents.Find(ctx, bson.M{"metadata.tags": bson.M{"$in": tags}},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query agents by tags: %w", err)
	}
	var agents []models.Agent
	if err := cursor.All(ctx, &agents); err != nil {
		return nil, fmt.Errorf("failed to decode agents: %w", err)
	}
	return agents, nil
}

// List returns all agents in creation order. Hidden agents are excluded
// unless includeHidden is set.
func (s *AgentService) List(ctx context.Context, includeHidden bool) ([]models.Agent, error) {
	filter := bson.M{}
	if !includeHidden {
		filter["metadata.hidden"] = bson.M{"$ne": true}
	}
	cursor, err := s.agents.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	var agents []models.Agent
	if err := cursor.All(ctx, &agents); err != nil {
		return nil, fmt.Errorf("failed to decode agents: %w", err)
	}
	return agents, nil
}

// UpdateMetadata replaces an agent's metadata document.
func (s *AgentService) UpdateMetadata(ctx context.Context, agentID string, metadata models.AgentMetadata) error {
	res, err := s.agents.UpdateOne(ctx, bson.M{"id": agentID}, bson.M{
		"$set": bson.M{"metadata": metadata, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("failed to update agent metadata: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("agent %s: %w", agentID, ErrNotFound)
	}
	return nil
}

// AppendVersionRequest contains the content of a new agent version.
type AppendVersionRequest struct {
	SystemPrompt string
	Resources    []string
	IOSchema     any
	RoutingHints models.RoutingHints
	CreatedBy    string
}

// AppendVersion appends a new version (latest+1) on an agent and makes it
// the active version. Version content is immutable once inserted.
func (s *AgentService) AppendVersion(ctx context.Context, agentID string, req AppendVersionRequest) (*models.AgentVersion, error) {
	if req.SystemPrompt == "" {
		return nil, NewValidationError("systemPrompt", "required")
	}
	latest, err := s.LatestVersion(ctx, agentID)
	if err != nil {
		return nil, err
	}
	version := &models.AgentVersion{
		ID:           uuid.NewString(),
		AgentID:      agentID,
		Version:      latest.Version + 1,
		SystemPrompt: req.SystemPrompt,
		Resources:    req.Resources,
		IOSchema:     req.IOSchema,
		RoutingHints: req.RoutingHints,
		CreatedAt:    time.Now().UTC(),
		CreatedBy:    req.CreatedBy,
	}
	if _, err := s.versions.InsertOne(ctx, version); err != nil {
		return nil, fmt.Errorf("failed to append agent version: %w", err)
	}
	if _, err := s.agents.UpdateOne(ctx, bson.M{"id": agentID}, bson.M{
		"$set": bson.M{"activeVersionId": version.ID, "updatedAt": version.CreatedAt},
	}); err != nil {
		return nil, fmt.Errorf("failed to activate agent version: %w", err)
	}
	return version, nil
}

// SetActiveVersion points an agent's activeVersionId at an existing version
// of that same agent.
func (s *AgentService) SetActiveVersion(ctx context.Context, agentID, versionID string) error {
	version, err := s.GetVersion(ctx, versionID)
	if err != nil {
		return err
	}
	if version.AgentID != agentID {
		return NewValidationError("versionId", "version does not belong to agent")
	}
	res, err := s.agents.UpdateOne(ctx, bson.M{"id": agentID}, bson.M{
		"$set": bson.M{"activeVersionId": versionID, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("failed to set active version: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("agent %s: %w", agentID, ErrNotFound)
	}
	return nil
}

// GetVersion loads a version by id.
func (s *AgentService) GetVersion(ctx context.Context, versionID string) (*models.AgentVersion, error) {
	var version models.AgentVersion
	err := s.versions.FindOne(ctx, bson.M{"id": versionID}).Decode(&version)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("agent version %s: %w", versionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load agent version: %w", err)
	}
	return &version, nil
}

// ListVersions returns all versions of an agent, oldest first.
func (s *AgentService) ListVersions(ctx context.Context, agentID string) ([]models.AgentVersion, error) {
	cursor, err := s.versions.Find(ctx, bson.M{"agentId": agentID},
		options.Find().SetSort(bson.D{{Key: "version", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list agent versions: %w", err)
	}
	var versions []models.AgentVersion
	if err := cursor.All(ctx, &versions); err != nil {
		return nil, fmt.Errorf("failed to decode agent versions: %w", err)
	}
	return versions, nil
}

// LatestVersion returns the highest-numbered version of an agent.
func (s *AgentService) LatestVersion(ctx context.Context, agentID string) (*models.AgentVersion, error) {
	var version models.AgentVersion
	err := s.versions.FindOne(ctx, bson.M{"agentId": agentID},
		options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})).Decode(&version)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("agent %s has no versions: %w", agentID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest agent version: %w", err)
	}
	return &version, nil
}

func (s *AgentService) findOne(ctx context.Context, filter bson.M) (*models.Agent, error) {
	var agent models.Agent
	err := s.agents.FindOne(ctx, filter).Decode(&agent)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("agent: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load agent: %w", err)
	}
	return &agent, nil
}
