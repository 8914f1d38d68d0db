package constants

import "time"

// DefaultPalette is the idle background (soft warm gradient).
var DefaultPalette = []string{"#E0F2FE", "#F3E8FF", "#FCE7F3"}

// DefaultPaletteCopy returns a fresh copy so callers cannot mutate the shared slice.
func DefaultPaletteCopy() []string {
	out := make([]string, len(DefaultPalette))
	copy(out, DefaultPalette)
	return out
}

var Notices = struct {
	AnalysisFailed  string
	NothingToExport string
	ExportFailed    string
}{
	AnalysisFailed:  "分析中にエラーが発生しました。もう一度お試しください。",
	NothingToExport: "ダウンロードする日記がありません。",
	ExportFailed:    "ダウンロードに失敗しました。",
}

var DiaryInputLimits = struct {
	MinRunes int
	MaxRunes int
}{
	MinRunes: 5,
	MaxRunes: 2000,
}

var HistoryConfig = struct {
	RecentLimit      int
	ExportSeparator  string
	ExportFilePrefix string
}{
	RecentLimit:      10,
	ExportSeparator:  "--------------------------------------------------",
	ExportFilePrefix: "diary_all_",
}

var PipelineTimeouts = struct {
	Analysis time.Duration
	Lookup   time.Duration
}{
	Analysis: 60 * time.Second,
	Lookup:   10 * time.Second,
}

var CacheTTL = struct {
	TrackLookup time.Duration
	VideoLookup time.Duration
}{
	TrackLookup: 6 * time.Hour,
	VideoLookup: 6 * time.Hour,
}

var CircuitBreakerConfig = struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	RateLimitTimeout    time.Duration
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
}{
	FailureThreshold:    3,                // 3회 연속 실패 시 Circuit OPEN
	ResetTimeout:        30 * time.Second, // 기본 재시도 대기 시간
	RateLimitTimeout:    10 * time.Minute, // 429 전용
	HealthCheckInterval: 5 * time.Minute,
	HealthCheckTimeout:  10 * time.Second,
}

var APIConfig = struct {
	SpotifyBaseURL   string
	SpotifyTokenURL  string
	SpotifyEmbedURL  string
	SpotifySearchURL string
	AppleMusicURL    string
	YouTubeEmbedURL  string
	YouTubeSearchURL string
	HTTPTimeout      time.Duration
}{
	SpotifyBaseURL:   "https://api.spotify.com/v1",
	SpotifyTokenURL:  "https://accounts.spotify.com/api/token",
	SpotifyEmbedURL:  "https://open.spotify.com/embed/track/",
	SpotifySearchURL: "https://open.spotify.com/search/",
	AppleMusicURL:    "https://music.apple.com/jp/search",
	YouTubeEmbedURL:  "https://www.youtube.com/embed",
	YouTubeSearchURL: "https://www.youtube.com/results",
	HTTPTimeout:      15 * time.Second,
}

var YouTubeQuota = struct {
	DailyLimit    int
	SearchCost    int
	SafetyMargin  int
	ResetLocation string
}{
	DailyLimit:    10000,
	SearchCost:    100, // search.list cost
	SafetyMargin:  500,
	ResetLocation: "America/Los_Angeles",
}
