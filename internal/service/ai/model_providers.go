package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

type JSONProvider interface {
	Name() string
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (ProviderResult, error)
	Ping(ctx context.Context) error
}

type ProviderResult struct {
	Text  string
	Model string
}

// GeminiProvider wraps the Gemini client for schema-constrained JSON generation.
type GeminiProvider struct {
	client       *genai.Client
	defaultModel string
	logger       *zap.Logger
}

func NewGeminiProvider(client *genai.Client, defaultModel string, logger *zap.Logger) *GeminiProvider {
	return &GeminiProvider{
		client:       client,
		defaultModel: defaultModel,
		logger:       logger,
	}
}

func (g *GeminiProvider) Name() string {
	return "Gemini"
}

func (g *GeminiProvider) DefaultModel() string {
	return g.defaultModel
}

func (g *GeminiProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (ProviderResult, error) {
	if g.client == nil {
		return ProviderResult{}, fmt.Errorf("gemini client not initialized")
	}

	genConfig := buildGeminiConfig(opts)

	g.logger.Debug("Generating with Gemini",
		zap.String("model", g.defaultModel),
		zap.Float32("temperature", opts.Sampling.Temperature),
		zap.Bool("schema", genConfig.ResponseSchema != nil),
	)

	resp, err := g.client.Models.GenerateContent(ctx, g.defaultModel, []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}, genConfig)
	if err != nil {
		g.logger.Error("Gemini generation failed", zap.Error(err))
		return ProviderResult{}, err
	}

	text := extractTextFromGeminiResponse(resp)
	if text == "" {
		return ProviderResult{}, fmt.Errorf("empty response from Gemini")
	}

	g.logger.Debug("Gemini response received", zap.Int("length", len(text)))
	return ProviderResult{Text: text, Model: g.defaultModel}, nil
}

func buildGeminiConfig(opts GenerateOptions) *genai.GenerateContentConfig {
	sampling := opts.Sampling
	topK := float32(sampling.TopK)
	genConfig := &genai.GenerateContentConfig{
		Temperature:      &sampling.Temperature,
		TopP:             &sampling.TopP,
		TopK:             &topK,
		MaxOutputTokens:  int32(sampling.MaxOutputTokens),
		ResponseMIMEType: "application/json",
		ResponseSchema:   opts.ResponseSchema,
	}

	if opts.SystemInstruction != "" {
		genConfig.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: opts.SystemInstruction}},
		}
	}

	return genConfig
}

func (g *GeminiProvider) Ping(ctx context.Context) error {
	if g.client == nil {
		return fmt.Errorf("gemini client not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	temp := float32(0)
	resp, err := g.client.Models.GenerateContent(ctx, g.defaultModel, []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: "ping"}}},
	}, &genai.GenerateContentConfig{Temperature: &temp, MaxOutputTokens: 10})
	if err != nil {
		return err
	}
	if extractTextFromGeminiResponse(resp) == "" {
		return fmt.Errorf("empty ping response from Gemini")
	}
	return nil
}

// OpenAIProvider wraps the OpenAI chat completion client.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
	logger       *zap.Logger
}

// NewOpenAIProvider returns nil when apiKey is empty.
func NewOpenAIProvider(apiKey string, defaultModel string, logger *zap.Logger, extra ...option.RequestOption) *OpenAIProvider {
	if apiKey == "" {
		return nil
	}
	opts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, extra...)
	client := openai.NewClient(opts...)
	return &OpenAIProvider{
		client:       &client,
		defaultModel: defaultModel,
		logger:       logger,
	}
}

func (o *OpenAIProvider) Name() string {
	return "OpenAI"
}

func (o *OpenAIProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (ProviderResult, error) {
	if o.client == nil {
		return ProviderResult{}, fmt.Errorf("OpenAI client not initialized")
	}

	modelName := o.defaultModel
	sampling := opts.Sampling

	o.logger.Info("Fallback: Generating with OpenAI", zap.String("model", modelName))

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(modelName),
		Messages:            buildOpenAIMessages(prompt, opts),
		MaxCompletionTokens: openai.Int(int64(sampling.MaxOutputTokens)),
	}

	// gpt-5 family rejects sampling parameters.
	if !strings.HasPrefix(modelName, "gpt-5") {
		params.Temperature = openai.Float(float64(sampling.Temperature))
		params.TopP = openai.Float(float64(sampling.TopP))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		o.logger.Error("OpenAI generation failed", zap.Error(err))
		return ProviderResult{}, err
	}

	if len(resp.Choices) == 0 {
		return ProviderResult{}, fmt.Errorf("no choices in OpenAI response")
	}

	text := resp.Choices[0].Message.Content

	o.logger.Info("OpenAI response received",
		zap.Int("length", len(text)),
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
	)

	return ProviderResult{Text: text, Model: modelName}, nil
}

func buildOpenAIMessages(prompt string, opts GenerateOptions) []openai.ChatCompletionMessageParamUnion {
	system := []string{"You must respond with valid JSON only. Do not include any text outside the JSON object."}
	if opts.SystemInstruction != "" {
		system = append([]string{opts.SystemInstruction}, system...)
	}
	if opts.ResponseSchema != nil {
		system = append(system, "The JSON object must contain the keys: "+strings.Join(schemaKeys(opts.ResponseSchema), ", ")+".")
	}

	return []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(strings.Join(system, "\n")),
		openai.UserMessage(prompt),
	}
}

func schemaKeys(schema *genai.Schema) []string {
	if schema == nil {
		return nil
	}
	if len(schema.Required) > 0 {
		return schema.Required
	}
	keys := make([]string, 0, len(schema.Properties))
	for key := range schema.Properties {
		keys = append(keys, key)
	}
	return keys
}

func (o *OpenAIProvider) Ping(ctx context.Context) error {
	if o.client == nil {
		return fmt.Errorf("OpenAI client not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.defaultModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage("ping"),
		},
		MaxCompletionTokens: openai.Int(16),
	})
	if err != nil {
		return err
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("no choices in OpenAI ping response")
	}
	return nil
}

func extractTextFromGeminiResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return ""
	}

	var texts []string
	for _, part := range candidate.Content.Parts {
		if part.Text != "" && !part.Thought {
			texts = append(texts, part.Text)
		}
	}

	return strings.Join(texts, "")
}
