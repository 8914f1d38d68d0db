package export

import (
	"context"
	"errors"
	"time"

	"github.com/kapu/kokoro-diary-go/internal/constants"
	"github.com/kapu/kokoro-diary-go/internal/domain"
	"go.uber.org/zap"
)

// ErrNothingToExport means the store has no entries. Callers show a notice instead of an error.
var ErrNothingToExport = errors.New("nothing to export")

const ContentType = "text/plain; charset=utf-8"

// HistorySource is the read side of the diary store.
type HistorySource interface {
	FetchRecent(ctx context.Context, limit int) ([]domain.DiaryLogEntry, error)
	FetchAll(ctx context.Context) ([]domain.DiaryLogEntry, error)
}

// Artifact is a downloadable export file.
type Artifact struct {
	FileName    string
	ContentType string
	Body        []byte
	Entries     int
}

type Exporter struct {
	source HistorySource
	logger *zap.Logger
}

func NewExporter(source HistorySource, logger *zap.Logger) *Exporter {
	return &Exporter{source: source, logger: logger}
}

// Recent returns the latest entries for the history view.
func (e *Exporter) Recent(ctx context.Context) ([]domain.DiaryLogEntry, error) {
	return e.source.FetchRecent(ctx, constants.HistoryConfig.RecentLimit)
}

// All returns every entry, newest first.
func (e *Exporter) All(ctx context.Context) ([]domain.DiaryLogEntry, error) {
	return e.source.FetchAll(ctx)
}

// ExportAll builds the full-history file. An empty history yields ErrNothingToExport and the
// formatter is never run.
func (e *Exporter) ExportAll(ctx context.Context, now time.Time) (*Artifact, error) {
	entries, err := e.source.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNothingToExport
	}

	artifact := &Artifact{
		FileName:    FileName(now),
		ContentType: ContentType,
		Body:        []byte(Format(entries)),
		Entries:     len(entries),
	}

	e.logger.Info("History exported",
		zap.String("file", artifact.FileName),
		zap.Int("entries", artifact.Entries),
		zap.Int("bytes", len(artifact.Body)),
	)

	return artifact, nil
}

// FileName is diary_all_<UTC date>.txt.
func FileName(now time.Time) string {
	return constants.HistoryConfig.ExportFilePrefix + now.UTC().Format("2006-01-02") + ".txt"
}
