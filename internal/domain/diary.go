package domain

import "time"

// DiaryLogEntry is a persisted diary row. The store owns it; the pipeline only reads.
type DiaryLogEntry struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	Content   string        `json:"content"`
	Emotions  EmotionVector `json:"emotions"`
}
