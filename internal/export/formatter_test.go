package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kapu/kokoro-diary-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func entries() []domain.DiaryLogEntry {
	return []domain.DiaryLogEntry{
		{
			ID:        "2",
			CreatedAt: time.Date(2024, 5, 2, 12, 30, 5, 0, time.UTC),
			Content:   "雨だったけど読書がはかどった",
			Emotions:  domain.EmotionVector{Joy: 0.5, Sad: 0.2, Energy: 0.3, Calm: 0.9, Stress: 0.1},
		},
		{
			ID:        "1",
			CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			Content:   "散歩していて気持ちよかった",
			Emotions:  domain.EmotionVector{Joy: 0.8, Sad: 0.05, Energy: 0.6, Calm: 0.7, Stress: 0.1},
		},
	}
}

func TestFormatEntryBlock(t *testing.T) {
	out := Format(entries()[1:])

	want := "【日付】2024/5/1 09:00:00\n" +
		"【感情スコア】Joy:0.8 / Sad:0.05 / Calm:0.7 / Energy:0.6 / Stress:0.1\n" +
		"【本文】\n" +
		"散歩していて気持ちよかった\n" +
		"\n" +
		"--------------------------------------------------\n"
	assert.Equal(t, want, out)
}

func TestFormatIsIdempotent(t *testing.T) {
	assert.Equal(t, Format(entries()), Format(entries()))
}

func TestFormatPreservesOrder(t *testing.T) {
	in := entries()
	forward := Format(in)
	reversed := Format([]domain.DiaryLogEntry{in[1], in[0]})

	first := Format(in[:1])
	second := Format(in[1:])

	assert.Equal(t, first+"\n"+second, forward)
	assert.Equal(t, second+"\n"+first, reversed)
	assert.Less(t, strings.Index(forward, "雨だった"), strings.Index(forward, "散歩"))
}

func TestFormatEmotionsWholeNumbers(t *testing.T) {
	assert.Equal(t, "Joy:1 / Sad:0 / Calm:0 / Energy:0 / Stress:0", FormatEmotions(domain.EmotionVector{Joy: 1}))
}

func TestFormatEmpty(t *testing.T) {
	assert.Equal(t, "", Format(nil))
}

type fakeSource struct {
	all    []domain.DiaryLogEntry
	err    error
	called bool
	limit  int
}

func (f *fakeSource) FetchRecent(_ context.Context, limit int) ([]domain.DiaryLogEntry, error) {
	f.limit = limit
	return f.all, f.err
}

func (f *fakeSource) FetchAll(context.Context) ([]domain.DiaryLogEntry, error) {
	f.called = true
	return f.all, f.err
}

func TestExportAll(t *testing.T) {
	source := &fakeSource{all: entries()}
	exporter := NewExporter(source, zap.NewNop())

	now := time.Date(2024, 5, 2, 23, 30, 0, 0, time.FixedZone("JST", 9*60*60))
	artifact, err := exporter.ExportAll(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, "diary_all_2024-05-02.txt", artifact.FileName)
	assert.Equal(t, ContentType, artifact.ContentType)
	assert.Equal(t, 2, artifact.Entries)
	assert.Equal(t, Format(entries()), string(artifact.Body))
}

func TestExportAllEmpty(t *testing.T) {
	exporter := NewExporter(&fakeSource{all: []domain.DiaryLogEntry{}}, zap.NewNop())

	artifact, err := exporter.ExportAll(context.Background(), time.Now())

	assert.ErrorIs(t, err, ErrNothingToExport)
	assert.Nil(t, artifact)
}

func TestExportAllPropagatesStoreFailure(t *testing.T) {
	storeErr := errors.New("connection refused")
	exporter := NewExporter(&fakeSource{err: storeErr}, zap.NewNop())

	_, err := exporter.ExportAll(context.Background(), time.Now())

	assert.ErrorIs(t, err, storeErr)
}

func TestRecentUsesHistoryLimit(t *testing.T) {
	source := &fakeSource{all: entries()}
	got, err := NewExporter(source, zap.NewNop()).Recent(context.Background())

	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 10, source.limit)
}

func TestFileNameUsesUTCDate(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	assert.Equal(t, "diary_all_2024-04-30.txt", FileName(time.Date(2024, 5, 1, 8, 0, 0, 0, jst)))
}
