// Package database wraps the MongoDB client used by the store gateway:
// connection lifecycle, collection names, index bootstrap and health.
package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names.
const (
	CollAgents        = "agents"
	CollAgentVersions = "agent_versions"
	CollSessions      = "sessions"
	CollRuns          = "runs"
	CollEvents        = "events"
	CollWorkflows     = "workflows"
)

const connectTimeout = 10 * time.Second

// Config holds MongoDB connection settings.
type Config struct {
	URI      string
	Database string
}

// Client wraps a connected mongo client and the engine database handle.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewClient connects to MongoDB, verifies the connection with a ping and
// ensures all required indexes exist.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongodb uri is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("database name is required")
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	mc, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := mc.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = mc.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	c := &Client{client: mc, db: mc.Database(cfg.Database)}
	if err := c.EnsureIndexes(connectCtx); err != nil {
		_ = mc.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}
	return c, nil
}

// DB returns the engine database handle.
func (c *Client) DB() *mongo.Database {
	return c.db
}

// Close disconnects the underlying mongo client.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// IsDup reports whether err is a duplicate-key error from a unique index.
// A duplicate on (runId, seq) or agents.slug signals either a protocol bug
// or a lost race on concurrent agent creation.
func IsDup(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
