package domain

// AnalysisResult is the validated output of one analysis call. It is produced once per
// request and never mutated afterwards.
type AnalysisResult struct {
	Emotions     EmotionVector `json:"emotions"`
	Colors       []string      `json:"colors"`
	SpotifyQuery string        `json:"spotify_query"`
	YouTubeQuery string        `json:"youtube_query"`
	Comment      string        `json:"comment"`
	Hashtags     []string      `json:"hashtags"`
}

// RawAnalysis mirrors the model payload before validation. Emotions stay a map so that a
// missing channel can be told apart from a zero value.
type RawAnalysis struct {
	Emotions     map[string]float64 `json:"emotions"`
	Colors       []string           `json:"colors"`
	SpotifyQuery string             `json:"spotify_query"`
	YouTubeQuery string             `json:"youtube_query"`
	Comment      string             `json:"comment"`
	Hashtags     []string           `json:"hashtags"`
}
