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

// EventService manages the append-only per-run event stream.
type EventService struct {
	coll *mongo.Collection
}

// NewEventService creates a new EventService.
func NewEventService(db *mongo.Database) *EventService {
	return &EventService{coll: db.Collection(database.CollEvents)}
}

// Append allocates the next seq for the run (current max + 1) and inserts
// the event. There is exactly one writer per run at a time, so the
// read-then-write has no in-tree contention; the (runId, seq) unique index
// still backstops the invariant, and a duplicate key here is a protocol bug.
func (s *EventService) Append(ctx context.Context, runID, eventType string, payload map[string]any) (*models.Event, error) {
	maxSeq, err := s.MaxSeq(ctx, runID)
	if err != nil {
		return nil, err
	}
	evt := &models.Event{
		ID:      uuid.NewString(),
		RunID:   runID,
		Seq:     maxSeq + 1,
		TS:      time.Now().UTC(),
		Type:    eventType,
		Payload: payload,
	}
	if _, err := s.coll.InsertOne(ctx, evt); err != nil {
		if database.IsDup(err) {
			return nil, fmt.Errorf("duplicate event seq %d for run %s: %w", evt.Seq, runID, err)
		}
		return nil, fmt.Errorf("failed to append event: %w", err)
	}
	return evt, nil
}

// ListSince returns a run's events with seq > sinceSeq, in seq order.
func (s *EventService) ListSince(ctx context.Context, runID string, sinceSeq int) ([]models.Event, error) {
	cursor, err := s.coll.Find(ctx,
		bson.M{"runId": runID, "seq": bson.M{"$gt": sinceSeq}},
		options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	var events []models.Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	return events, nil
}

// MaxSeq returns the highest seq recorded for a run, 0 when the stream is
// empty.
func (s *EventService) MaxSeq(ctx context.Context, runID string) (int, error) {
	var evt models.Event
	err := s.coll.FindOne(ctx, bson.M{"runId": runID},
		options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}})).Decode(&evt)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read max event seq: %w", err)
	}
	return evt.Seq, nil
}
