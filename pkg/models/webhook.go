package models

import (
	"time"
)

// WebhookDelivery represents a webhook delivery attempt
type WebhookDelivery struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Event       string     `json:"event"`
	Status      string     `json:"status"`
	StatusCode  int        `json:"status_code"`
	RetryCount  int        `json:"retry_count"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// WebhookDeliveryStatus constants
const (
	WebhookDeliveryStatusPending   = "pending"
	WebhookDeliveryStatusDelivered = "delivered"
	WebhookDeliveryStatusFailed    = "failed"
)

// WebhookEvent represents the payload sent to webhooks
type WebhookEvent struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// SubmissionEvent is published after a submission is created or reviewed
type SubmissionEvent struct {
	Event          string    `json:"event"`
	SubmissionID   string    `json:"submission_id"`
	SubmissionType string    `json:"submission_type"`
	Status         string    `json:"status"`
	VideoID        string    `json:"video_id"`
	Version        int       `json:"version,omitempty"`
	SubtitleURL    string    `json:"subtitle_url,omitempty"`
	ReviewerID     string    `json:"reviewer_id,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Webhook event types
const (
	WebhookEventSubmissionCreated  = "submission.created"
	WebhookEventSubmissionApproved = "submission.approved"
	WebhookEventSubmissionRejected = "submission.rejected"
	WebhookEventSubtitlePromoted   = "subtitle.promoted"
)
