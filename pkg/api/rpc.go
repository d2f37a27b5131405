package api

import (
	"context"
	"encoding/json"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/maestro/pkg/services"
)

// JSON-RPC 2.0 error codes.
const (
	codeMethodNotFound = -32601
	codeServerError    = -32000
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      any           `json:"id"`
	Result  any           `json:"result,omitempty"`
	Error   *rpcErrorBody `json:"error,omitempty"`
}

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcHandler executes one RPC method against decoded params.
type rpcHandler func(ctx context.Context, params json.RawMessage) (any, error)

func (s *Server) rpcMethods() map[string]rpcHandler {
	return map[string]rpcHandler{
		"session.create":         s.sessionCreate,
		"session.list":           s.sessionList,
		"agent.list":             s.agentList,
		"agent.get":              s.agentGet,
		"agent.version.get":      s.agentVersionGet,
		"agent.updatePrompt":     s.agentUpdatePrompt,
		"agent.setActiveVersion": s.agentSetActiveVersion,
		"run.start":              s.runStart,
		"run.get":                s.runGet,
		"run.events":             s.runEvents,
		"run.tree":               s.runTree,
		"workflow.save":          s.workflowSave,
		"workflow.list":          s.workflowList,
		"workflow.get":           s.workflowGet,
		"workflow.run":           s.workflowRun,
	}
}

// rpcHandlerFunc handles POST /rpc: decode the envelope, dispatch by method
// name, wrap the outcome. Envelope problems are HTTP 400; everything past
// the envelope is reported inside the JSON-RPC response.
func (s *Server) rpcHandlerFunc(c *echo.Context) error {
	var req rpcRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed JSON-RPC envelope")
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed JSON-RPC envelope")
	}

	handler, ok := s.methods[req.Method]
	if !ok {
		return c.JSON(http.StatusOK, rpcResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &rpcErrorBody{Code: codeMethodNotFound, Message: "method not found: " + req.Method},
		})
	}

	result, err := handler(c.Request().Context(), req.Params)
	if err != nil {
		return c.JSON(http.StatusOK, rpcResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &rpcErrorBody{Code: codeServerError, Message: err.Error()},
		})
	}
	return c.JSON(http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
}

// decodeParams decodes params into out; absent params decode into the zero
// value.
func decodeParams(params json.RawMessage, out any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		return services.NewValidationError("params", "malformed params object")
	}
	return nil
}
