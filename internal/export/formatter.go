package export

import (
	"strconv"
	"strings"

	"github.com/kapu/kokoro-diary-go/internal/constants"
	"github.com/kapu/kokoro-diary-go/internal/domain"
	"github.com/kapu/kokoro-diary-go/internal/util"
)

const dateLayout = "2006/1/2 15:04:05"

// Format renders entries in the given order as one plain-text document. Each entry becomes
// a self-contained block; the output depends only on the input.
func Format(entries []domain.DiaryLogEntry) string {
	blocks := make([]string, 0, len(entries))
	for _, entry := range entries {
		blocks = append(blocks, formatEntry(entry))
	}
	return strings.Join(blocks, "\n")
}

func formatEntry(entry domain.DiaryLogEntry) string {
	var sb strings.Builder

	sb.WriteString("【日付】")
	sb.WriteString(util.FormatJST(entry.CreatedAt, dateLayout))
	sb.WriteString("\n【感情スコア】")
	sb.WriteString(FormatEmotions(entry.Emotions))
	sb.WriteString("\n【本文】\n")
	sb.WriteString(entry.Content)
	sb.WriteString("\n\n")
	sb.WriteString(constants.HistoryConfig.ExportSeparator)
	sb.WriteString("\n")

	return sb.String()
}

// FormatEmotions renders the fixed-label summary line (export label order, not channel order).
func FormatEmotions(v domain.EmotionVector) string {
	return "Joy:" + formatScore(v.Joy) +
		" / Sad:" + formatScore(v.Sad) +
		" / Calm:" + formatScore(v.Calm) +
		" / Energy:" + formatScore(v.Energy) +
		" / Stress:" + formatScore(v.Stress)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
