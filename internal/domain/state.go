package domain

import "time"

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseAnalyzing Phase = "analyzing"
	PhaseResult    Phase = "result"
	PhaseError     Phase = "error"
)

func (p Phase) String() string {
	return string(p)
}

// Embeds lists player URLs for the result view. YouTube always has one: a direct embed when
// a video was found, otherwise a search-list embed.
type Embeds struct {
	YouTube         string `json:"youtube"`
	YouTubeIsDirect bool   `json:"youtube_is_direct"`
	Spotify         string `json:"spotify,omitempty"`
}

type SearchLinks struct {
	Spotify    string `json:"spotify"`
	AppleMusic string `json:"apple_music"`
	YouTube    string `json:"youtube"`
}

// ResultBundle is the merged, immutable outcome of one successful request.
type ResultBundle struct {
	RequestID string          `json:"request_id"`
	Analysis  AnalysisResult  `json:"analysis"`
	Track     *MusicTrack     `json:"track"`
	Video     *VideoReference `json:"video"`
	Palette   []string        `json:"palette"`
	Embeds    Embeds          `json:"embeds"`
	Links     SearchLinks     `json:"links"`
	CreatedAt time.Time       `json:"created_at"`
}

// AccentColor is the primary palette colour.
func (b *ResultBundle) AccentColor() string {
	if b == nil || len(b.Palette) == 0 {
		return ""
	}
	return b.Palette[0]
}

// RequestState is a tagged variant: only the fields of the active phase are set. Build it
// through the constructors below.
type RequestState struct {
	Phase     Phase         `json:"phase"`
	RequestID string        `json:"request_id,omitempty"`
	Bundle    *ResultBundle `json:"result,omitempty"`
	Notice    string        `json:"notice,omitempty"`
	Palette   []string      `json:"palette"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func IdleState(palette []string, at time.Time) RequestState {
	return RequestState{Phase: PhaseIdle, Palette: clonePalette(palette), UpdatedAt: at}
}

func AnalyzingState(requestID string, palette []string, at time.Time) RequestState {
	return RequestState{Phase: PhaseAnalyzing, RequestID: requestID, Palette: clonePalette(palette), UpdatedAt: at}
}

func ResultState(bundle *ResultBundle, at time.Time) RequestState {
	return RequestState{
		Phase:     PhaseResult,
		RequestID: bundle.RequestID,
		Bundle:    bundle,
		Palette:   clonePalette(bundle.Palette),
		UpdatedAt: at,
	}
}

func ErrorState(requestID, notice string, palette []string, at time.Time) RequestState {
	return RequestState{
		Phase:     PhaseError,
		RequestID: requestID,
		Notice:    notice,
		Palette:   clonePalette(palette),
		UpdatedAt: at,
	}
}

func (s RequestState) IsIdle() bool      { return s.Phase == PhaseIdle }
func (s RequestState) IsAnalyzing() bool { return s.Phase == PhaseAnalyzing }
func (s RequestState) IsResult() bool    { return s.Phase == PhaseResult }
func (s RequestState) IsError() bool     { return s.Phase == PhaseError }

// Track returns the result track, or nil outside the Result phase.
func (s RequestState) Track() *MusicTrack {
	if s.Bundle == nil {
		return nil
	}
	return s.Bundle.Track
}

// Video returns the result video, or nil outside the Result phase.
func (s RequestState) Video() *VideoReference {
	if s.Bundle == nil {
		return nil
	}
	return s.Bundle.Video
}

func clonePalette(palette []string) []string {
	out := make([]string, len(palette))
	copy(out, palette)
	return out
}
