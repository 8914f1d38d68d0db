package domain

import (
	"errors"
	"fmt"
	"math"
)

type EmotionChannel string

const (
	ChannelJoy    EmotionChannel = "joy"
	ChannelSad    EmotionChannel = "sad"
	ChannelEnergy EmotionChannel = "energy"
	ChannelCalm   EmotionChannel = "calm"
	ChannelStress EmotionChannel = "stress"
)

func (c EmotionChannel) String() string {
	return string(c)
}

// Channels returns the five channels in validation order.
func Channels() []EmotionChannel {
	return []EmotionChannel{ChannelJoy, ChannelSad, ChannelEnergy, ChannelCalm, ChannelStress}
}

var (
	ErrMissingChannel = errors.New("missing emotion channel")
	ErrOutOfRange     = errors.New("emotion value out of range")
)

// EmotionError reports which channel failed validation and why.
type EmotionError struct {
	Kind    error
	Channel EmotionChannel
	Value   float64
}

func (e *EmotionError) Error() string {
	if errors.Is(e.Kind, ErrOutOfRange) {
		return fmt.Sprintf("%v: %s=%v (expected 0.0-1.0)", e.Kind, e.Channel, e.Value)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Channel)
}

func (e *EmotionError) Unwrap() error {
	return e.Kind
}

type EmotionVector struct {
	Joy    float64 `json:"joy"`
	Sad    float64 `json:"sad"`
	Energy float64 `json:"energy"`
	Calm   float64 `json:"calm"`
	Stress float64 `json:"stress"`
}

// ValidateEmotions converts a raw channel map into an EmotionVector. Values are never
// clamped: a value outside [0,1] is rejected.
func ValidateEmotions(raw map[string]float64) (EmotionVector, error) {
	var vec EmotionVector
	for _, ch := range Channels() {
		value, ok := raw[string(ch)]
		if !ok {
			return EmotionVector{}, &EmotionError{Kind: ErrMissingChannel, Channel: ch}
		}
		if math.IsNaN(value) || value < 0 || value > 1 {
			return EmotionVector{}, &EmotionError{Kind: ErrOutOfRange, Channel: ch, Value: value}
		}
		vec.set(ch, value)
	}
	return vec, nil
}

func (v EmotionVector) Get(ch EmotionChannel) float64 {
	switch ch {
	case ChannelJoy:
		return v.Joy
	case ChannelSad:
		return v.Sad
	case ChannelEnergy:
		return v.Energy
	case ChannelCalm:
		return v.Calm
	case ChannelStress:
		return v.Stress
	default:
		return 0
	}
}

func (v *EmotionVector) set(ch EmotionChannel, value float64) {
	switch ch {
	case ChannelJoy:
		v.Joy = value
	case ChannelSad:
		v.Sad = value
	case ChannelEnergy:
		v.Energy = value
	case ChannelCalm:
		v.Calm = value
	case ChannelStress:
		v.Stress = value
	}
}

// Dominant returns the strongest channel. Ties resolve to the earlier channel.
func (v EmotionVector) Dominant() EmotionChannel {
	best := ChannelJoy
	for _, ch := range Channels()[1:] {
		if v.Get(ch) > v.Get(best) {
			best = ch
		}
	}
	return best
}

// EmotionLabels maps channels to their display labels.
var EmotionLabels = map[EmotionChannel]string{
	ChannelJoy:    "喜び",
	ChannelSad:    "悲しみ",
	ChannelEnergy: "活力",
	ChannelCalm:   "穏やか",
	ChannelStress: "ストレス",
}
