package llm

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const fireworksBaseURL = "https://api.fireworks.ai/inference/v1"

// errorBodyLimit caps the provider error body captured into ModelError.
const errorBodyLimit = 200

// openAIClient serves both the OpenAI and Fireworks providers: Fireworks
// exposes an OpenAI-compatible chat-completions endpoint, so the only
// differences are the base URL, the default model and whether the
// JSON-object response format is requested.
type openAIClient struct {
	client       openai.Client
	provider     string
	defaultModel string
	jsonMode     bool
}

func newOpenAIClient(cfg Config) *openAIClient {
	return &openAIClient{
		client:       openai.NewClient(option.WithAPIKey(cfg.OpenAIKey)),
		provider:     "openai",
		defaultModel: cfg.ModelName,
		jsonMode:     true,
	}
}

func newFireworksClient(cfg Config) *openAIClient {
	model := cfg.FireworksModel
	if model == "" {
		model = cfg.ModelName
	}
	return &openAIClient{
		client: openai.NewClient(
			option.WithAPIKey(cfg.FireworksKey),
			option.WithBaseURL(fireworksBaseURL),
		),
		provider:     "fireworks",
		defaultModel: model,
	}
}

func (c *openAIClient) Provider() string {
	return c.provider
}

func (c *openAIClient) Call(ctx context.Context, req Request) (Response, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if c.jsonMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			body := apiErr.RawJSON()
			if len(body) > errorBodyLimit {
				body = body[:errorBodyLimit]
			}
			return Response{}, &ModelError{Status: apiErr.StatusCode, Message: body}
		}
		return Response{}, &ModelError{Message: err.Error()}
	}

	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return Response{}, &ModelError{Message: "missing content"}
	}
	return Response{Content: completion.Choices[0].Message.Content}, nil
}
