package adapter

import (
	"strings"
	"testing"
	"time"

	"github.com/kapu/kokoro-diary-go/internal/domain"
	"github.com/stretchr/testify/assert"
)

func bundle(track *domain.MusicTrack, direct bool) *domain.ResultBundle {
	b := &domain.ResultBundle{
		RequestID: "req-1",
		Analysis: domain.AnalysisResult{
			Emotions: domain.EmotionVector{Joy: 0.8, Sad: 0.05, Energy: 0.6, Calm: 0.7, Stress: 0.1},
			Comment:  "気持ちのいい一日でしたね。",
			Hashtags: []string{"散歩", "晴れ"},
		},
		Track:   track,
		Palette: []string{"#E0F2FE", "#FCE7F3"},
		Embeds: domain.Embeds{
			YouTube:         "https://www.youtube.com/embed?listType=search&list=q",
			YouTubeIsDirect: direct,
		},
		Links: domain.SearchLinks{
			Spotify:    "https://open.spotify.com/search/q",
			AppleMusic: "https://music.apple.com/jp/search?term=q",
			YouTube:    "https://www.youtube.com/results?search_query=q",
		},
	}
	if track != nil {
		b.Embeds.Spotify = "https://open.spotify.com/embed/track/" + track.ID
	}
	return b
}

func TestFormatResultWithTrack(t *testing.T) {
	f := NewResponseFormatter()

	out := f.FormatResult(bundle(&domain.MusicTrack{ID: "t1", Name: "群青", Artist: "YOASOBI"}, true))

	assert.Contains(t, out, "🎨 #E0F2FE #FCE7F3")
	assert.Contains(t, out, "💬 気持ちのいい一日でしたね。")
	assert.Contains(t, out, "喜び ████████░░ 0.80")
	assert.Contains(t, out, "🎵 群青 / YOASOBI")
	assert.Contains(t, out, "https://open.spotify.com/embed/track/t1")
	assert.NotContains(t, out, "(検索リスト)")
	assert.Contains(t, out, "#散歩 #晴れ")
	assert.False(t, strings.HasSuffix(out, "\n"))
}

func TestFormatResultWithoutLookups(t *testing.T) {
	out := NewResponseFormatter().FormatResult(bundle(nil, false))

	assert.Contains(t, out, "Spotify: 曲が見つかりませんでした")
	assert.Contains(t, out, "(検索リスト)")
}

func TestFormatState(t *testing.T) {
	f := NewResponseFormatter()
	now := time.Now()

	assert.Equal(t, "❌ failed", f.FormatState(domain.ErrorState("r", "failed", nil, now)))
	assert.Contains(t, f.FormatState(domain.AnalyzingState("r", nil, now)), "分析中")
	assert.Contains(t, f.FormatState(domain.IdleState(nil, now)), "日記")
}

func TestFormatHistory(t *testing.T) {
	f := NewResponseFormatter()

	assert.Contains(t, f.FormatHistory(nil), "日記はまだありません")

	out := f.FormatHistory([]domain.DiaryLogEntry{
		{
			CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			Content:   "散歩していて\n気持ちよかった",
			Emotions:  domain.EmotionVector{Joy: 0.8, Calm: 0.7},
		},
	})

	assert.Contains(t, out, "最近の日記 (1件)")
	assert.Contains(t, out, "1. 05/01 09:00  [喜び 0.80]")
	assert.Contains(t, out, "散歩していて 気持ちよかった")
	assert.Contains(t, out, "Joy:0.8 / Sad:0 / Calm:0.7 / Energy:0 / Stress:0")
}

func TestBarClamps(t *testing.T) {
	assert.Equal(t, "░░░░░░░░░░", bar(0))
	assert.Equal(t, "██████████", bar(1))
	assert.Equal(t, "█████░░░░░", bar(0.5))
}
