package prompt

import (
	"testing"

	"github.com/kapu/kokoro-diary-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderDiaryAnalysis(t *testing.T) {
	data := NewDiaryAnalysisData("今日は海に行った。", domain.CategoryJPop)

	rendered, err := NewPromptBuilder().Render(TemplateDiaryAnalysis, data)
	require.NoError(t, err)

	assert.Equal(t, analysisSystemInstruction, rendered.System)
	assert.Contains(t, rendered.User, "Suggest a song based on the user's preference: J-Pop.")
	assert.Contains(t, rendered.User, "The song must be by a Japanese artist.")
	assert.Contains(t, rendered.User, "\"\"\"\n今日は海に行った。\n\"\"\"")
}

func TestRenderWesternExcludesJapaneseArtists(t *testing.T) {
	rendered, err := DefaultPromptBuilder().Render(TemplateDiaryAnalysis, NewDiaryAnalysisData("rainy day", domain.CategoryWestern))
	require.NoError(t, err)
	assert.Contains(t, rendered.User, "Strictly exclude Japanese artists.")
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := NewPromptBuilder().Render(TemplateName("missing.yaml"), nil)
	assert.Error(t, err)
}

func TestFallbackMatchesTemplateShape(t *testing.T) {
	data := NewDiaryAnalysisData("疲れた", domain.CategoryWestern)
	fallback := FallbackDiaryAnalysis(data)
	rendered, err := NewPromptBuilder().Render(TemplateDiaryAnalysis, data)
	require.NoError(t, err)

	assert.Equal(t, rendered.System, fallback.System)
	assert.Equal(t, rendered.User, fallback.User)
}
