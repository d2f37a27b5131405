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

const (
	sessionListDefault = 50
	sessionListMax     = 200
)

// SessionService manages conversation sessions.
type SessionService struct {
	coll *mongo.Collection
}

// NewSessionService creates a new SessionService.
func NewSessionService(db *mongo.Database) *SessionService {
	return &SessionService{coll: db.Collection(database.CollSessions)}
}

// Create inserts a new session and returns it.
func (s *SessionService) Create(ctx context.Context, title string, metadata map[string]any) (*models.Session, error) {
	session := &models.Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now().UTC(),
		Metadata:  metadata,
	}
	if _, err := s.coll.InsertOne(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// Get loads a session by id.
func (s *SessionService) Get(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := s.coll.FindOne(ctx, bson.M{"id": id}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &session, nil
}

// List returns sessions newest first. limit is clamped to 1..200 with a
// default of 50.
func (s *SessionService) List(ctx context.Context, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = sessionListDefault
	}
	if limit > sessionListMax {
		limit = sessionListMax
	}
	cursor, err := s.coll.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	var sessions []models.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}
	return sessions, nil
}
