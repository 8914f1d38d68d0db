package ai

import "google.golang.org/genai"

// SamplingConfig is shared by both providers. OpenAI reads MaxOutputTokens as its completion cap
// and ignores TopK.
type SamplingConfig struct {
	Temperature     float32
	TopP            float32
	TopK            int
	MaxOutputTokens int
}

// DiaryAnalysisSampling favours varied palettes and comments over repeatable output.
var DiaryAnalysisSampling = SamplingConfig{
	Temperature:     0.8,
	TopP:            0.95,
	TopK:            40,
	MaxOutputTokens: 2048,
}

type GenerateMetadata struct {
	Provider     string
	Model        string
	UsedFallback bool
}

// GenerateOptions describes one JSON generation request.
type GenerateOptions struct {
	Sampling          SamplingConfig
	SystemInstruction string
	// ResponseSchema constrains Gemini output. The OpenAI fallback only gets the key list.
	ResponseSchema *genai.Schema
}
