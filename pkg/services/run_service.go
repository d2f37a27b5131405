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

// RunService manages run documents. Each run is written only by the
// executor driving it; status transitions happen exactly once.
type RunService struct {
	coll *mongo.Collection
}

// NewRunService creates a new RunService.
func NewRunService(db *mongo.Database) *RunService {
	return &RunService{coll: db.Collection(database.CollRuns)}
}

// CreateRunRequest contains fields for starting a new run.
type CreateRunRequest struct {
	SessionID      string
	AgentID        string
	AgentVersionID string
	ParentRunID    string
	RootRunID      string // empty for root runs; defaults to the run's own id
	UserMessage    string
	Context        map[string]any
}

// Create persists a new run with status running. For root runs (no
// RootRunID given) rootRunId is the run's own id.
func (s *RunService) Create(ctx context.Context, req CreateRunRequest) (*models.Run, error) {
	if req.SessionID == "" {
		return nil, NewValidationError("sessionId", "required")
	}
	run := &models.Run{
		ID:             uuid.NewString(),
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
	if _, err := s.coll.InsertOne(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// Get loads a run by id.
func (s *RunService) Get(ctx context.Context, id string) (*models.Run, error) {
	var run models.Run
	err := s.coll.FindOne(ctx, bson.M{"id": id}).Decode(&run)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	return &run, nil
}

// CountByRoot counts all runs sharing a rootRunId, the root included.
// Spawn-cap bookkeeping reads this between sequential children, so it is
// race-free within one run tree.
func (s *RunService) CountByRoot(ctx context.Context, rootRunID string) (int, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"rootRunId": rootRunID})
	if err != nil {
		return 0, fmt.Errorf("failed to count runs for root %s: %w", rootRunID, err)
	}
	return int(n), nil
}

// ListBySession returns all runs of a session, oldest first.
func (s *RunService) ListBySession(ctx context.Context, sessionID string) ([]models.Run, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"sessionId": sessionID},
		options.Find().SetSort(bson.D{{Key: "startedAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	var runs []models.Run
	if err := cursor.All(ctx, &runs); err != nil {
		return nil, fmt.Errorf("failed to decode runs: %w", err)
	}
	return runs, nil
}

// MarkSucceeded transitions a run to succeeded with its result.
func (s *RunService) MarkSucceeded(ctx context.Context, runID string, result any) error {
	now := time.Now().UTC()
	return s.finish(ctx, runID, bson.M{
		"status":  models.RunStatusSucceeded,
		"output":  models.RunOutput{Result: result},
		"endedAt": now,
	})
}

// MarkFailed transitions a run to failed, recording the failure message and
// the last event seq observed before the ERROR event was emitted.
func (s *RunService) MarkFailed(ctx context.Context, runID, message string, lastEventSeq int) error {
	now := time.Now().UTC()
	return s.finish(ctx, runID, bson.M{
		"status":  models.RunStatusFailed,
		"error":   models.RunError{Message: message, LastEventSeq: lastEventSeq},
		"endedAt": now,
	})
}

func (s *RunService) finish(ctx context.Context, runID string, set bson.M) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"id": runID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return nil
}
