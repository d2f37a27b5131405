package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates every index the engine relies on. CreateMany is
// idempotent, so this is safe to run on every startup.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		CollAgents: {
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "metadata.role", Value: 1}}},
			{Keys: bson.D{{Key: "metadata.domains", Value: 1}}},
			{Keys: bson.D{{Key: "metadata.tags", Value: 1}}},
		},
		CollAgentVersions: {
			{Keys: bson.D{{Key: "agentId", Value: 1}, {Key: "version", Value: -1}}, Options: options.Index().SetUnique(true)},
		},
		CollRuns: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "sessionId", Value: 1}, {Key: "startedAt", Value: -1}}},
			{Keys: bson.D{{Key: "parentRunId", Value: 1}}},
			{Keys: bson.D{{Key: "rootRunId", Value: 1}}},
		},
		CollEvents: {
			{Keys: bson.D{{Key: "runId", Value: 1}, {Key: "seq", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "runId", Value: 1}, {Key: "ts", Value: 1}}},
		},
		CollSessions: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		CollWorkflows: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for coll, models := range specs {
		if _, err := c.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
