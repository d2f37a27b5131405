package api

import (
	"context"
	"encoding/json"
)

type sessionCreateParams struct {
	Title    string         `json:"title"`
	Metadata map[string]any `json:"metadata"`
}

func (s *Server) sessionCreate(ctx context.Context, params json.RawMessage) (any, error) {
	var p sessionCreateParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	session, err := s.sessions.Create(ctx, p.Title, p.Metadata)
	if err != nil {
		return nil, err
	}
	return map[string]any{"sessionId": session.ID}, nil
}

type sessionListParams struct {
	Limit int `json:"limit"`
}

func (s *Server) sessionList(ctx context.Context, params json.RawMessage) (any, error) {
	var p sessionListParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	sessions, err := s.sessions.List(ctx, p.Limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"sessions": sessions}, nil
}
