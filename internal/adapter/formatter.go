package adapter

import (
	"fmt"
	"strings"

	"github.com/kapu/kokoro-diary-go/internal/domain"
	"github.com/kapu/kokoro-diary-go/internal/export"
	"github.com/kapu/kokoro-diary-go/internal/util"
)

const (
	barWidth       = 10
	previewRunes   = 40
	historyTimeFmt = "01/02 15:04"
)

// ResponseFormatter renders lifecycle states and history for the terminal.
type ResponseFormatter struct{}

func NewResponseFormatter() *ResponseFormatter {
	return &ResponseFormatter{}
}

type emotionRow struct {
	Label string
	Bar   string
	Value string
}

type resultView struct {
	Palette      []string
	Comment      string
	Emotions     []emotionRow
	Track        *domain.MusicTrack
	SpotifyEmbed string
	DirectVideo  bool
	YouTubeEmbed string
	Links        domain.SearchLinks
	Hashtags     []string
}

// FormatState formats any lifecycle state.
func (f *ResponseFormatter) FormatState(state domain.RequestState) string {
	switch state.Phase {
	case domain.PhaseResult:
		return f.FormatResult(state.Bundle)
	case domain.PhaseError:
		return f.FormatError(state.Notice)
	case domain.PhaseAnalyzing:
		return "⏳ 分析中..."
	default:
		return "📝 日記を書いてください。"
	}
}

// FormatResult formats a result bundle
func (f *ResponseFormatter) FormatResult(bundle *domain.ResultBundle) string {
	if bundle == nil {
		return f.FormatError("結果がありません。")
	}

	view := resultView{
		Palette:      bundle.Palette,
		Comment:      bundle.Analysis.Comment,
		Emotions:     emotionRows(bundle.Analysis.Emotions),
		Track:        bundle.Track,
		SpotifyEmbed: bundle.Embeds.Spotify,
		DirectVideo:  bundle.Embeds.YouTubeIsDirect,
		YouTubeEmbed: bundle.Embeds.YouTube,
		Links:        bundle.Links,
		Hashtags:     bundle.Analysis.Hashtags,
	}

	out, err := executeFormatterTemplate("result", view)
	if err != nil {
		return f.formatResultPlain(view)
	}
	return out
}

// formatResultPlain is used when the template cannot be executed.
func (f *ResponseFormatter) formatResultPlain(view resultView) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("💬 %s\n", view.Comment))
	for _, row := range view.Emotions {
		sb.WriteString(fmt.Sprintf("  %s %s\n", row.Label, row.Value))
	}
	if view.Track != nil {
		sb.WriteString(fmt.Sprintf("🎵 %s / %s\n", view.Track.Name, view.Track.Artist))
	}
	sb.WriteString(fmt.Sprintf("▶️ %s", view.YouTubeEmbed))
	return sb.String()
}

// FormatHistory formats the recent-entries list
func (f *ResponseFormatter) FormatHistory(entries []domain.DiaryLogEntry) string {
	if len(entries) == 0 {
		return "📭 日記はまだありません。"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📖 最近の日記 (%d件)\n\n", len(entries)))

	for i, entry := range entries {
		dominant := entry.Emotions.Dominant()
		sb.WriteString(fmt.Sprintf("%d. %s  [%s %s]\n",
			i+1,
			util.FormatJST(entry.CreatedAt, historyTimeFmt),
			domain.EmotionLabels[dominant],
			formatScore(entry.Emotions.Get(dominant)),
		))
		sb.WriteString(fmt.Sprintf("   %s\n", f.preview(entry.Content)))
		sb.WriteString(fmt.Sprintf("   %s", export.FormatEmotions(entry.Emotions)))

		if i < len(entries)-1 {
			sb.WriteString("\n\n")
		}
	}

	return sb.String()
}

// FormatError formats error message
func (f *ResponseFormatter) FormatError(message string) string {
	return fmt.Sprintf("❌ %s", message)
}

// FormatNotice formats an informational notice
func (f *ResponseFormatter) FormatNotice(message string) string {
	return fmt.Sprintf("ℹ️ %s", message)
}

func (f *ResponseFormatter) preview(content string) string {
	line := strings.Join(strings.Fields(content), " ")
	return util.TruncateString(line, previewRunes)
}

func emotionRows(v domain.EmotionVector) []emotionRow {
	rows := make([]emotionRow, 0, len(domain.Channels()))
	for _, ch := range domain.Channels() {
		value := v.Get(ch)
		rows = append(rows, emotionRow{
			Label: domain.EmotionLabels[ch],
			Bar:   bar(value),
			Value: formatScore(value),
		})
	}
	return rows
}

func bar(value float64) string {
	filled := int(value*barWidth + 0.5)
	if filled < 0 {
		filled = 0
	}
	if filled > barWidth {
		filled = barWidth
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

func formatScore(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
