package spotify

import (
	"strings"

	"github.com/kapu/kokoro-diary-go/internal/domain"
)

type searchResponse struct {
	Tracks struct {
		Items []spotifyTrack `json:"items"`
	} `json:"tracks"`
}

type spotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	URI     string          `json:"uri"`
	Artists []spotifyArtist `json:"artists"`
	Album   spotifyAlbum    `json:"album"`
}

type spotifyArtist struct {
	Name string `json:"name"`
}

type spotifyAlbum struct {
	Images []spotifyImage `json:"images"`
}

type spotifyImage struct {
	URL string `json:"url"`
}

func (st spotifyTrack) toDomain() *domain.MusicTrack {
	names := make([]string, 0, len(st.Artists))
	for _, artist := range st.Artists {
		if artist.Name != "" {
			names = append(names, artist.Name)
		}
	}

	albumArt := ""
	if len(st.Album.Images) > 0 {
		albumArt = st.Album.Images[0].URL
	}

	return &domain.MusicTrack{
		ID:          st.ID,
		Name:        st.Name,
		Artist:      strings.Join(names, ", "),
		AlbumArtURL: albumArt,
		URI:         st.URI,
	}
}
