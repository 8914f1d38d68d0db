package domain

// MusicTrack is present only when the token-gated Spotify lookup succeeded.
type MusicTrack struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Artist      string `json:"artist"`
	AlbumArtURL string `json:"album_art_url"`
	URI         string `json:"uri"`
}

// VideoReference identifies an embeddable YouTube video.
type VideoReference struct {
	VideoID string `json:"video_id"`
	Title   string `json:"title,omitempty"`
}

// Lookups holds the outcome of both music lookups; either side may be nil.
type Lookups struct {
	Track *MusicTrack     `json:"track"`
	Video *VideoReference `json:"video"`
}
