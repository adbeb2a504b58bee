package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"triagehq.app/triage/internal/model"
)

// OpenAIConfig configures the model-backed scorer.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

const sentimentSystemPrompt = `You are a sentiment analyzer for customer support messages.
Score the message sentiment on a scale from -5.0 (very negative) to 5.0 (very positive),
with 0 meaning neutral. List the words that most influenced your score.`

// sentimentCompletion is the structured-output contract for the model.
type sentimentCompletion struct {
	Score  float64  `json:"score" jsonschema_description:"Sentiment score from -5.0 to 5.0"`
	Tokens []string `json:"tokens" jsonschema_description:"Words that contributed to the score"`
}

var sentimentSchema = generateSchema[sentimentCompletion]()

type openAIScorer struct {
	client openai.Client
	model  string
}

// NewOpenAIScorer builds a scorer backed by the chat completions API with a
// strict JSON-schema response format. The label is still derived from the
// returned score, never from the model.
func NewOpenAIScorer(cfg OpenAIConfig) (Scorer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	m := cfg.Model
	if m == "" {
		m = "gpt-4o-mini"
	}

	return &openAIScorer{
		client: openai.NewClient(opts...),
		model:  m,
	}, nil
}

func (s *openAIScorer) Score(ctx context.Context, text string) (Result, error) {
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "sentiment",
		Description: openai.String("Sentiment score for a support message"),
		Schema:      sentimentSchema,
		Strict:      openai.Bool(true),
	}

	params := openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(sentimentSystemPrompt),
			openai.UserMessage(text),
		},
		MaxTokens:   openai.Int(200),
		Temperature: openai.Float(0),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
	}

	start := time.Now()
	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Result{}, fmt.Errorf("openai chat: %w", err)
	}

	slog.DebugContext(ctx, "sentiment completion finished",
		"model", s.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("no choices in response")
	}

	var out sentimentCompletion
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		return Result{}, fmt.Errorf("unmarshal response: %w", err)
	}

	return Result{
		Score:  out.Score,
		Label:  model.SentimentLabelForScore(out.Score),
		Tokens: out.Tokens,
	}, nil
}

func generateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}
