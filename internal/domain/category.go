package domain

import (
	"strings"

	"github.com/kapu/kokoro-diary-go/pkg/errors"
)

type MusicCategory string

const (
	CategoryJPop    MusicCategory = "J-Pop"
	CategoryWestern MusicCategory = "Western"
)

func (c MusicCategory) String() string {
	return string(c)
}

func (c MusicCategory) IsValid() bool {
	switch c {
	case CategoryJPop, CategoryWestern:
		return true
	default:
		return false
	}
}

// ParseMusicCategory accepts the canonical labels and a few loose spellings.
func ParseMusicCategory(raw string) (MusicCategory, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "j-pop", "jpop", "j_pop":
		return CategoryJPop, nil
	case "western":
		return CategoryWestern, nil
	default:
		return "", errors.NewValidationError("unknown music category", "category", raw)
	}
}
