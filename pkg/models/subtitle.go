package models

import "time"

// SubtitleVersion describes one stored subtitle version of a video
type SubtitleVersion struct {
	Version      int        `json:"version"`
	DisplayName  string     `json:"displayName,omitempty"`
	UserID       string     `json:"userId,omitempty"`
	SubmittedAt  *time.Time `json:"submittedAt,omitempty"`
	SizeBytes    int64      `json:"sizeBytes"`
	AddedLines   int        `json:"addedLines"`
	RemovedLines int        `json:"removedLines"`
	IsCurrent    bool       `json:"isCurrent"`
}

// SubtitleFormat constants
const (
	SubtitleFormatSRT      = "srt"
	SubtitleContentType    = "text/plain; charset=utf-8"
	SubtitleFileExtension  = ".srt"
	SubtitleMaxUploadBytes = 2 << 20
)
