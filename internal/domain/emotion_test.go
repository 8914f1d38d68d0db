package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRaw() map[string]float64 {
	return map[string]float64{
		"joy":    0.8,
		"sad":    0.05,
		"energy": 0.6,
		"calm":   0.7,
		"stress": 0.1,
	}
}

func TestValidateEmotionsAcceptsCompleteVector(t *testing.T) {
	vec, err := ValidateEmotions(validRaw())
	require.NoError(t, err)
	assert.Equal(t, EmotionVector{Joy: 0.8, Sad: 0.05, Energy: 0.6, Calm: 0.7, Stress: 0.1}, vec)
}

func TestValidateEmotionsBoundsAreInclusive(t *testing.T) {
	raw := map[string]float64{"joy": 0, "sad": 1, "energy": 0, "calm": 1, "stress": 0.5}
	vec, err := ValidateEmotions(raw)
	require.NoError(t, err)
	assert.Equal(t, 1.0, vec.Sad)
	assert.Equal(t, 0.0, vec.Joy)
}

func TestValidateEmotionsRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(map[string]float64)
		kind    error
		channel EmotionChannel
	}{
		{
			name:    "missing stress",
			mutate:  func(m map[string]float64) { delete(m, "stress") },
			kind:    ErrMissingChannel,
			channel: ChannelStress,
		},
		{
			name:    "missing joy reported before later channels",
			mutate:  func(m map[string]float64) { delete(m, "joy"); delete(m, "calm") },
			kind:    ErrMissingChannel,
			channel: ChannelJoy,
		},
		{
			name:    "above one",
			mutate:  func(m map[string]float64) { m["energy"] = 1.2 },
			kind:    ErrOutOfRange,
			channel: ChannelEnergy,
		},
		{
			name:    "negative",
			mutate:  func(m map[string]float64) { m["sad"] = -0.01 },
			kind:    ErrOutOfRange,
			channel: ChannelSad,
		},
		{
			name:    "not a number",
			mutate:  func(m map[string]float64) { m["calm"] = math.NaN() },
			kind:    ErrOutOfRange,
			channel: ChannelCalm,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			tt.mutate(raw)

			_, err := ValidateEmotions(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "unexpected kind: %v", err)

			var emotionErr *EmotionError
			require.True(t, errors.As(err, &emotionErr))
			assert.Equal(t, tt.channel, emotionErr.Channel)
		})
	}
}

func TestValidateEmotionsIgnoresExtraKeys(t *testing.T) {
	raw := validRaw()
	raw["anger"] = 3
	_, err := ValidateEmotions(raw)
	assert.NoError(t, err)
}

func TestDominant(t *testing.T) {
	vec := EmotionVector{Joy: 0.2, Sad: 0.9, Energy: 0.1, Calm: 0.9, Stress: 0.3}
	assert.Equal(t, ChannelSad, vec.Dominant())
}
