package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const healthTimeout = 5 * time.Second

// Health pings the primary and returns an error when the store is
// unreachable. Used by the health endpoint.
func (c *Client) Health(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return c.client.Ping(pingCtx, readpref.Primary())
}
