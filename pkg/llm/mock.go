package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// finalMarker switches the mock from its canned plan to a canned final.
const finalMarker = "final only"

// MockClient is the offline provider used when no credentials are present.
// It answers with a canned plan that spawns a single echo agent, or with a
// canned final when the user content contains the "final only" marker.
type MockClient struct{}

// NewMockClient creates the offline mock provider.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Provider implements Client.
func (c *MockClient) Provider() string {
	return "mock"
}

// Call implements Client.
func (c *MockClient) Call(_ context.Context, req Request) (Response, error) {
	user := lastUserMessage(req.Messages)
	if strings.Contains(user, finalMarker) {
		return cannedFinal(user)
	}
	return cannedPlan()
}

func lastUserMessage(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

// cannedFinal echoes the raw user message, stripped of the context block
// the executor appends.
func cannedFinal(user string) (Response, error) {
	echo := user
	if idx := strings.Index(echo, "\n\nContext:\n"); idx >= 0 {
		echo = echo[:idx]
	}
	payload := map[string]any{
		"type": "final",
		"result": map[string]any{
			"mock": true,
			"echo": echo,
		},
	}
	return marshalResponse(payload)
}

// cannedPlan proposes one new echo agent and runs it. The child's message
// carries the final marker so the recursion terminates after one level.
func cannedPlan() (Response, error) {
	payload := map[string]any{
		"type": "plan",
		"agentsToCreate": []any{
			map[string]any{
				"slug":         "mock-echo",
				"name":         "Mock Echo",
				"description":  "Echoes its input back as a final result.",
				"systemPrompt": "You are an echo agent. Respond with a JSON object of type final whose result echoes the user message.",
				"routingHints": map[string]any{
					"tags": []any{"mock", "echo"},
				},
			},
		},
		"runsToExecute": []any{
			map[string]any{
				"slug":        "mock-echo",
				"userMessage": "final only: echo this back",
			},
		},
	}
	return marshalResponse(payload)
}

func marshalResponse(payload map[string]any) (Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Response{}, &ModelError{Message: err.Error()}
	}
	return Response{Content: string(data)}, nil
}
