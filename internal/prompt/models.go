package prompt

import "github.com/kapu/kokoro-diary-go/internal/domain"

type DiaryAnalysisData struct {
	DiaryText           string
	Category            string
	CategoryInstruction string
}

// NewDiaryAnalysisData fills the category instruction for the requested music category.
func NewDiaryAnalysisData(text string, category domain.MusicCategory) DiaryAnalysisData {
	return DiaryAnalysisData{
		DiaryText:           text,
		Category:            category.String(),
		CategoryInstruction: CategoryInstruction(category),
	}
}

func CategoryInstruction(category domain.MusicCategory) string {
	if category == domain.CategoryJPop {
		return "Suggest Japanese artists (J-Pop/J-Rock/etc) that match the mood. The song must be by a Japanese artist."
	}
	return "Suggest Western artists (US/UK/etc). Strictly exclude Japanese artists."
}
