package prompt

import "fmt"

const analysisSystemInstruction = "You are an empathetic emotional analysis AI. Your goal is to help the user understand their feelings through data and music."

// FallbackDiaryAnalysis is used when the embedded template cannot be rendered.
func FallbackDiaryAnalysis(data DiaryAnalysisData) Rendered {
	return Rendered{
		System: analysisSystemInstruction,
		User: fmt.Sprintf(`Analyze the following diary entry.
Determine the emotional state.
Select a color palette that matches the mood.
Suggest a song based on the user's preference: %s.
%s
Provide a short empathetic comment in Japanese.
Generate hashtags.

Diary Entry:
"""
%s
"""`, data.Category, data.CategoryInstruction, data.DiaryText),
	}
}
