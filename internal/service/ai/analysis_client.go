package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kapu/kokoro-diary-go/internal/constants"
	"github.com/kapu/kokoro-diary-go/internal/domain"
	"github.com/kapu/kokoro-diary-go/internal/prompt"
	"github.com/kapu/kokoro-diary-go/internal/util"
	"github.com/kapu/kokoro-diary-go/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// AnalysisClient turns one diary entry into a validated AnalysisResult. It either returns a
// complete result or an *errors.AnalysisError, never a partial payload.
type AnalysisClient struct {
	invoker ModelInvoker
	prompts *prompt.PromptBuilder
	logger  *zap.Logger
}

func NewAnalysisClient(invoker ModelInvoker, prompts *prompt.PromptBuilder, logger *zap.Logger) *AnalysisClient {
	if prompts == nil {
		prompts = prompt.DefaultPromptBuilder()
	}
	return &AnalysisClient{
		invoker: invoker,
		prompts: prompts,
		logger:  logger,
	}
}

func (c *AnalysisClient) Analyze(ctx context.Context, text string, category domain.MusicCategory) (*domain.AnalysisResult, error) {
	if !category.IsValid() {
		return nil, errors.NewAnalysisError("unsupported music category", "", errors.NewValidationError("invalid category", "category", category))
	}

	diary := util.NormalizeDiaryText(text, constants.DiaryInputLimits.MaxRunes)
	if diary == "" {
		return nil, errors.NewAnalysisError("diary text is empty", "", nil)
	}

	data := prompt.NewDiaryAnalysisData(diary, category)
	rendered, err := c.prompts.Render(prompt.TemplateDiaryAnalysis, data)
	if err != nil {
		c.logger.Warn("Prompt template unavailable, using fallback", zap.Error(err))
		rendered = prompt.FallbackDiaryAnalysis(data)
	}

	start := time.Now()
	var raw domain.RawAnalysis
	metadata, err := c.invoker.GenerateJSON(ctx, rendered.User, &raw, &GenerateOptions{
		Sampling:          DiaryAnalysisSampling,
		SystemInstruction: rendered.System,
		ResponseSchema:    analysisSchema(),
	})
	if err != nil {
		c.logger.Error("Diary analysis failed",
			zap.String("category", category.String()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, errors.NewAnalysisError("analysis request failed", "", err)
	}

	provider := ""
	if metadata != nil {
		provider = metadata.Provider
	}

	result, err := validateAnalysis(raw)
	if err != nil {
		c.logger.Error("Analysis payload rejected",
			zap.String("provider", provider),
			zap.Error(err),
		)
		return nil, errors.NewAnalysisError("analysis payload invalid", provider, err)
	}

	c.logger.Info("Diary analyzed",
		zap.String("provider", provider),
		zap.Bool("fallback", metadata != nil && metadata.UsedFallback),
		zap.String("category", category.String()),
		zap.String("dominant", result.Emotions.Dominant().String()),
		zap.Duration("elapsed", time.Since(start)),
	)

	return result, nil
}

func validateAnalysis(raw domain.RawAnalysis) (*domain.AnalysisResult, error) {
	emotions, err := domain.ValidateEmotions(raw.Emotions)
	if err != nil {
		return nil, err
	}

	colors := make([]string, 0, len(raw.Colors))
	for _, color := range raw.Colors {
		if color = strings.TrimSpace(color); color != "" {
			colors = append(colors, color)
		}
	}
	if len(colors) == 0 {
		return nil, fmt.Errorf("colors: empty palette")
	}

	spotifyQuery := strings.TrimSpace(raw.SpotifyQuery)
	if spotifyQuery == "" {
		return nil, fmt.Errorf("spotify_query: empty")
	}
	youtubeQuery := strings.TrimSpace(raw.YouTubeQuery)
	if youtubeQuery == "" {
		return nil, fmt.Errorf("youtube_query: empty")
	}

	hashtags := make([]string, 0, len(raw.Hashtags))
	for _, tag := range raw.Hashtags {
		tag = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(tag), "#＃"))
		if tag != "" {
			hashtags = append(hashtags, tag)
		}
	}

	return &domain.AnalysisResult{
		Emotions:     emotions,
		Colors:       colors,
		SpotifyQuery: spotifyQuery,
		YouTubeQuery: youtubeQuery,
		Comment:      strings.TrimSpace(raw.Comment),
		Hashtags:     hashtags,
	}, nil
}

func analysisSchema() *genai.Schema {
	lower, upper := 0.0, 1.0
	unit := func() *genai.Schema {
		return &genai.Schema{
			Type:        genai.TypeNumber,
			Description: "Value between 0.0 and 1.0",
			Minimum:     &lower,
			Maximum:     &upper,
		}
	}

	channels := make(map[string]*genai.Schema)
	required := make([]string, 0, len(domain.Channels()))
	for _, ch := range domain.Channels() {
		channels[ch.String()] = unit()
		required = append(required, ch.String())
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"emotions": {
				Type:       genai.TypeObject,
				Properties: channels,
				Required:   required,
			},
			"colors": {
				Type:        genai.TypeArray,
				Items:       &genai.Schema{Type: genai.TypeString, Description: "Hex color code e.g. #FF5500"},
				Description: "An array of 2-3 hex colors that represent the detected mood. Use soft, pastel, or deep colors depending on emotion.",
			},
			"spotify_query": {
				Type:        genai.TypeString,
				Description: "A specific search query for Spotify. Format: 'Artist - Song Title'.",
			},
			"youtube_query": {
				Type:        genai.TypeString,
				Description: "A specific search query for YouTube. Format: 'Artist - Song Title'.",
			},
			"comment": {
				Type:        genai.TypeString,
				Description: "A short, empathetic, 1-sentence comment to the user based on their diary entry. In Japanese.",
			},
			"hashtags": {
				Type:        genai.TypeArray,
				Items:       &genai.Schema{Type: genai.TypeString},
				Description: "3 hashtags relevant to the content and mood (without # symbol).",
			},
		},
		Required: []string{"emotions", "colors", "spotify_query", "youtube_query", "comment", "hashtags"},
	}
}
