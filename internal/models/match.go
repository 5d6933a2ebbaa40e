package models

import (
	"time"
)

// MatchStatus is the lifecycle state of a match
type MatchStatus string

const (
	MatchStatusPending   MatchStatus = "pending"
	MatchStatusViewed    MatchStatus = "viewed"
	MatchStatusConfirmed MatchStatus = "confirmed"
	MatchStatusRejected  MatchStatus = "rejected"
	MatchStatusExpired   MatchStatus = "expired"
)

// Terminal reports whether no further transitions are allowed
func (s MatchStatus) Terminal() bool {
	return s == MatchStatusConfirmed || s == MatchStatusRejected || s == MatchStatusExpired
}

// Confidence buckets a match score for display
type Confidence string

const (
	ConfidenceLow      Confidence = "low"
	ConfidenceMedium   Confidence = "medium"
	ConfidenceHigh     Confidence = "high"
	ConfidenceVeryHigh Confidence = "very_high"
)

// ConfidenceFor maps a 0-100 score to its confidence bucket
func ConfidenceFor(score int) Confidence {
	switch {
	case score >= 90:
		return ConfidenceVeryHigh
	case score >= 75:
		return ConfidenceHigh
	case score >= 50:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Match is a persisted, scored pairing between one lost and one found report
type Match struct {
	ID                string            `json:"id"`
	LostReportID      string            `json:"lost_report_id"`
	FoundReportID     string            `json:"found_report_id"`
	LostOwnerID       string            `json:"lost_owner_id"`
	FoundOwnerID      string            `json:"found_owner_id"`
	Score             int               `json:"score"`
	Confidence        Confidence        `json:"confidence"`
	Status            MatchStatus       `json:"status"`
	ScoreBreakdown    ScoreBreakdown    `json:"score_breakdown"`
	MatchReasons      []MatchReason     `json:"match_reasons"`
	NotificationsSent NotificationFlags `json:"notifications_sent"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// ScoreBreakdown holds the per-factor sub-scores of a match
type ScoreBreakdown struct {
	Category  int `json:"category_match"`
	Attribute int `json:"attribute_match"`
	Location  int `json:"location_match"`
	Time      int `json:"time_match"`
	Embedding int `json:"embedding_match"`
	Text      int `json:"text_match"`
}

// Sum adds up all sub-scores
func (b ScoreBreakdown) Sum() int {
	return b.Category + b.Attribute + b.Location + b.Time + b.Embedding + b.Text
}

// MatchReason is a user-facing explanation of one scoring factor
type MatchReason struct {
	Factor string `json:"factor"`
	Score  int    `json:"score"`
	Detail string `json:"detail"`
}

// NotificationFlags records which participants were told about the match.
// Both false means the match still needs notifying.
type NotificationFlags struct {
	Lost  bool `json:"lost_user"`
	Found bool `json:"found_user"`
}

// ScoreUpdate carries the fields a higher score may supersede on an existing match
type ScoreUpdate struct {
	Score          int
	Confidence     Confidence
	ScoreBreakdown ScoreBreakdown
	MatchReasons   []MatchReason
	UpdatedAt      time.Time
}
