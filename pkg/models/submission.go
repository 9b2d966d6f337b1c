package models

import "time"

// Submission is a pending change awaiting admin review
type Submission struct {
	ID          string                  `json:"id"`
	Type        string                  `json:"type"`
	Status      string                  `json:"status"`
	SubmittedAt time.Time               `json:"submitted_at"`
	SubmittedBy string                  `json:"submitted_by"`
	ReviewedAt  *time.Time              `json:"reviewed_at,omitempty"`
	ReviewerID  string                  `json:"reviewer_id,omitempty"`
	Reason      string                  `json:"reason,omitempty"`
	Payload     *VideoSubmissionPayload `json:"payload,omitempty"`
	Correction  *CorrectionPayload      `json:"correction,omitempty"`
}

// IsPending reports whether the submission can still be reviewed
func (s *Submission) IsPending() bool {
	return s.Status == SubmissionStatusPending
}

// VideoSubmissionPayload describes a new video proposed for the catalog
type VideoSubmissionPayload struct {
	YoutubeID          string   `json:"youtube_id"`
	Title              string   `json:"title"`
	Creator            string   `json:"creator,omitempty"`
	CreatorOriginal    string   `json:"creator_original,omitempty"`
	CreatorCanonical   string   `json:"creator_canonical,omitempty"`
	Description        string   `json:"description,omitempty"`
	Tags               []string `json:"tags,omitempty"`
	ReleaseDate        string   `json:"release_date,omitempty"`
	SubtitleStorageKey string   `json:"subtitle_storage_key,omitempty"`
	SubtitleURL        string   `json:"subtitle_url,omitempty"`
}

// CorrectionPayload is a set of cue-level edits against one subtitle version
type CorrectionPayload struct {
	VideoID                string    `json:"video_id"`
	SubtitleVersion        int       `json:"subtitle_version"`
	TimestampSeconds       float64   `json:"timestamp_seconds,omitempty"`
	WindowStartSeconds     float64   `json:"window_start_seconds,omitempty"`
	WindowEndSeconds       float64   `json:"window_end_seconds,omitempty"`
	Notes                  string    `json:"notes,omitempty"`
	Cues                   []CueEdit `json:"cues"`
	SubmittedByUserID      string    `json:"submitted_by_user_id"`
	SubmittedByDisplayName string    `json:"submitted_by_display_name,omitempty"`
}

// CueEdit replaces the text of a single cue
type CueEdit struct {
	Sequence     int     `json:"sequence"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	OriginalText string  `json:"original_text"`
	UpdatedText  string  `json:"updated_text"`
}

// Submission types
const (
	SubmissionTypeVideo              = "video"
	SubmissionTypeSubtitleCorrection = "subtitle_correction"
)

// Submission statuses
const (
	SubmissionStatusPending  = "pending"
	SubmissionStatusApproved = "approved"
	SubmissionStatusRejected = "rejected"
)

// Review actions
const (
	ReviewActionApprove = "approve"
	ReviewActionReject  = "reject"
)
