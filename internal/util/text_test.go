package util

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDiaryText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain sentence is unchanged",
			input: "今日は晴れて気分が良かった。",
			want:  "今日は晴れて気分が良かった。",
		},
		{
			name:  "spaces collapse",
			input: "今日は  とても　　楽しかった",
			want:  "今日は とても 楽しかった",
		},
		{
			name:  "typed markdown characters are kept",
			input: "# 最悪の日\n- 雨\n- [傘](https://example.com) を忘れた",
			want:  "# 最悪の日\n- 雨\n- [傘](https://example.com) を忘れた",
		},
		{
			name:  "typed emphasis is kept",
			input: "今日は **とても** 疲れた",
			want:  "今日は **とても** 疲れた",
		},
		{
			name:  "pasted html is rendered to text",
			input: "<p>今日は<b>晴れ</b></p><p>散歩した</p>",
			want:  "今日は晴れ\n散歩した",
		},
		{
			name:  "inline line break tag",
			input: "ねむい<br>一日だった",
			want:  "ねむい\n一日だった",
		},
		{
			name:  "comparison signs are not markup",
			input: "気分は 3 < 5 > 1 くらい",
			want:  "気分は 3 < 5 > 1 くらい",
		},
		{
			name:  "control characters are dropped",
			input: "ねむい\x00\x07日",
			want:  "ねむい日",
		},
		{
			name:  "blank input",
			input: " \n\t ",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDiaryText(tt.input, 0))
		})
	}
}

func TestHasRichMarkup(t *testing.T) {
	assert.True(t, HasRichMarkup("<div>日記</div>"))
	assert.True(t, HasRichMarkup(`<a href="https://example.com">リンク</a>`))
	assert.True(t, HasRichMarkup("改行<br/>あり"))
	assert.False(t, HasRichMarkup("# 見出し\n- 箇条書き"))
	assert.False(t, HasRichMarkup("<3 うれしい"))
}

func TestNormalizeDiaryTextClipsLongEntries(t *testing.T) {
	long := strings.Repeat("あ", 2100)
	got := NormalizeDiaryText(long, 2000)
	assert.Equal(t, 2000, utf8.RuneCountInString(got))
}

func TestClipRunes(t *testing.T) {
	assert.Equal(t, "日記", ClipRunes("日記帳", 2))
	assert.Equal(t, "日記帳", ClipRunes("日記帳", 5))
	assert.Equal(t, "", ClipRunes("日記帳", 0))
}
