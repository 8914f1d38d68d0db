package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kapu/kokoro-diary-go/internal/adapter"
	"github.com/kapu/kokoro-diary-go/internal/app"
	"github.com/kapu/kokoro-diary-go/internal/config"
	"github.com/kapu/kokoro-diary-go/internal/constants"
	"github.com/kapu/kokoro-diary-go/internal/domain"
	"github.com/kapu/kokoro-diary-go/internal/export"
	"github.com/kapu/kokoro-diary-go/internal/pipeline"
	"github.com/kapu/kokoro-diary-go/internal/util"
	"github.com/spf13/cobra"
)

func analyzeCmd() *cobra.Command {
	var (
		category     string
		spotifyToken string
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <text>",
		Short: "Analyze one diary entry and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if util.RuneLen(strings.TrimSpace(text)) < constants.DiaryInputLimits.MinRunes {
				return fmt.Errorf("text must be at least %d characters", constants.DiaryInputLimits.MinRunes)
			}

			parsed, err := domain.ParseMusicCategory(category)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			logger := util.NewCLILogger()
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			buildCtx, cancel := context.WithTimeout(ctx, buildTimeout)
			container, err := app.Build(buildCtx, cfg, logger)
			cancel()
			if err != nil {
				return err
			}
			defer container.Close()

			state, submitErr := container.Lifecycle.Submit(ctx, pipeline.Submission{
				Text:         text,
				Category:     parsed,
				SpotifyToken: spotifyToken,
			})

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(state); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(out, adapter.NewResponseFormatter().FormatState(state))
			}
			return submitErr
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", string(domain.CategoryJPop), "Music category (J-Pop or Western)")
	cmd.Flags().StringVar(&spotifyToken, "spotify-token", "", "Spotify access token for this request")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw state as JSON")
	return cmd
}

func historyCmd() *cobra.Command {
	var (
		all    bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent diary entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd.Context(), func(history *export.Exporter) error {
				var (
					entries []domain.DiaryLogEntry
					err     error
				)
				if all {
					entries, err = history.All(cmd.Context())
				} else {
					entries, err = history.Recent(cmd.Context())
				}
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(entries)
				}
				fmt.Fprintln(out, adapter.NewResponseFormatter().FormatHistory(entries))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "List every entry instead of the latest ten")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	return cmd
}

func exportCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the full history to diary_all_<date>.txt",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd.Context(), func(history *export.Exporter) error {
				formatter := adapter.NewResponseFormatter()

				artifact, err := history.ExportAll(cmd.Context(), time.Now())
				if errors.Is(err, export.ErrNothingToExport) {
					fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatNotice(constants.Notices.NothingToExport))
					return nil
				}
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), formatter.FormatError(constants.Notices.ExportFailed))
					return err
				}

				if err := os.MkdirAll(outDir, 0755); err != nil {
					return err
				}
				path := filepath.Join(outDir, artifact.FileName)
				if err := os.WriteFile(path, artifact.Body, 0644); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "✅ %s (%d件)\n", path, artifact.Entries)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory")
	return cmd
}

// withHistory opens only the diary store; these commands work without AI credentials.
func withHistory(ctx context.Context, fn func(history *export.Exporter) error) error {
	cfg, err := config.LoadStorage()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := util.NewCLILogger()
	defer func() { _ = logger.Sync() }()

	history, closeFn, err := app.OpenHistory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	return fn(history)
}
