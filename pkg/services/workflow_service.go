package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/codeready-toolchain/maestro/pkg/database"
	"github.com/codeready-toolchain/maestro/pkg/models"
)

// WorkflowService manages saved workflow definitions.
type WorkflowService struct {
	coll *mongo.Collection
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(db *mongo.Database) *WorkflowService {
	return &WorkflowService{coll: db.Collection(database.CollWorkflows)}
}

// SaveWorkflowRequest contains fields for creating or replacing a workflow.
type SaveWorkflowRequest struct {
	WorkflowID  string // empty to create
	Name        string
	Description string
	Nodes       []models.WorkflowNode
}

// Save upserts a workflow. Node order is the execution order, so every
// declared parent must appear before the node that references it.
func (s *WorkflowService) Save(ctx context.Context, req SaveWorkflowRequest) (*models.Workflow, error) {
	if req.Name == "" {
		return nil, NewValidationError("name", "required")
	}
	if len(req.Nodes) == 0 {
		return nil, NewValidationError("nodes", "at least one node is required")
	}
	seen := make(map[string]bool, len(req.Nodes))
	for i, node := range req.Nodes {
		if node.ID == "" {
			return nil, NewValidationError("nodes", fmt.Sprintf("node %d is missing an id", i))
		}
		if node.AgentSlug == "" {
			return nil, NewValidationError("nodes", fmt.Sprintf("node %s is missing an agentSlug", node.ID))
		}
		if seen[node.ID] {
			return nil, NewValidationError("nodes", fmt.Sprintf("duplicate node id %s", node.ID))
		}
		for _, parent := range node.Parents {
			if !seen[parent] {
				return nil, NewValidationError("nodes",
					fmt.Sprintf("node %s references parent %s which does not precede it", node.ID, parent))
			}
		}
		seen[node.ID] = true
	}

	now := time.Now().UTC()
	wf := &models.Workflow{
		ID:          req.WorkflowID,
		Name:        req.Name,
		Description: req.Description,
		Nodes:       req.Nodes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if wf.ID == "" {
		wf.ID = uuid.NewString()
	}

	_, err := s.coll.UpdateOne(ctx, bson.M{"id": wf.ID}, bson.M{
		"$set": bson.M{
			"name":        wf.Name,
			"description": wf.Description,
			"nodes":       wf.Nodes,
			"updatedAt":   now,
		},
		"$setOnInsert": bson.M{"id": wf.ID, "createdAt": now},
	}, options.Update().SetUpsert(true))
	if err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}
	return wf, nil
}

// Get loads a workflow by id.
func (s *WorkflowService) Get(ctx context.Context, id string) (*models.Workflow, error) {
	var wf models.Workflow
	err := s.coll.FindOne(ctx, bson.M{"id": id}).Decode(&wf)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("workflow %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}
	return &wf, nil
}

// List returns all workflows, newest first.
func (s *WorkflowService) List(ctx context.Context) ([]models.Workflow, error) {
	cursor, err := s.coll.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	var workflows []models.Workflow
	if err := cursor.All(ctx, &workflows); err != nil {
		return nil, fmt.Errorf("failed to decode workflows: %w", err)
	}
	return workflows, nil
}
