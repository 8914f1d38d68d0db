package pipeline

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/kapu/kokoro-diary-go/internal/constants"
	"github.com/kapu/kokoro-diary-go/internal/domain"
)

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9A-Fa-f]{3}|[0-9A-Fa-f]{6})$`)

// Aggregate merges the analysis and both lookup outcomes into one bundle. It never fails:
// a missing track or video only changes which embed and links are produced.
func Aggregate(requestID string, analysis domain.AnalysisResult, lookups domain.Lookups, now time.Time) *domain.ResultBundle {
	palette := DerivePalette(analysis.Colors)
	analysis.Colors = append([]string(nil), analysis.Colors...)
	analysis.Hashtags = append([]string(nil), analysis.Hashtags...)

	return &domain.ResultBundle{
		RequestID: requestID,
		Analysis:  analysis,
		Track:     lookups.Track,
		Video:     lookups.Video,
		Palette:   palette,
		Embeds:    buildEmbeds(analysis.YouTubeQuery, lookups),
		Links:     buildLinks(analysis),
		CreatedAt: now,
	}
}

// DerivePalette returns a copy of colors when every entry is a #RGB or #RRGGBB colour,
// otherwise the default palette.
func DerivePalette(colors []string) []string {
	if len(colors) == 0 {
		return constants.DefaultPaletteCopy()
	}

	palette := make([]string, 0, len(colors))
	for _, c := range colors {
		c = strings.TrimSpace(c)
		if !hexColorPattern.MatchString(c) {
			return constants.DefaultPaletteCopy()
		}
		palette = append(palette, c)
	}
	return palette
}

func buildEmbeds(youtubeQuery string, lookups domain.Lookups) domain.Embeds {
	var embeds domain.Embeds

	if lookups.Video != nil && lookups.Video.VideoID != "" {
		embeds.YouTube = constants.APIConfig.YouTubeEmbedURL + "/" + url.PathEscape(lookups.Video.VideoID)
		embeds.YouTubeIsDirect = true
	} else {
		embeds.YouTube = constants.APIConfig.YouTubeEmbedURL + "?listType=search&list=" + encodeComponent(youtubeQuery)
	}

	if lookups.Track != nil && lookups.Track.ID != "" {
		embeds.Spotify = constants.APIConfig.SpotifyEmbedURL + url.PathEscape(lookups.Track.ID) + "?utm_source=generator&theme=0"
	}

	return embeds
}

func buildLinks(analysis domain.AnalysisResult) domain.SearchLinks {
	return domain.SearchLinks{
		Spotify:    constants.APIConfig.SpotifySearchURL + encodeComponent(analysis.SpotifyQuery),
		AppleMusic: constants.APIConfig.AppleMusicURL + "?term=" + encodeComponent(analysis.SpotifyQuery),
		YouTube:    constants.APIConfig.YouTubeSearchURL + "?search_query=" + encodeComponent(analysis.YouTubeQuery),
	}
}

// encodeComponent escapes s for use inside a path segment or query value (spaces as %20).
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
