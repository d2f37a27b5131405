package models

import "time"

// Session groups the runs of one conversation.
type Session struct {
	ID        string         `bson:"id" json:"id"`
	Title     string         `bson:"title,omitempty" json:"title,omitempty"`
	CreatedAt time.Time      `bson:"createdAt" json:"createdAt"`
	Metadata  map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
}
