package models

import "time"

// ReportCreatedEvent is consumed from RabbitMQ to trigger a match search
type ReportCreatedEvent struct {
	ReportID  string     `json:"report_id"`
	Kind      ReportKind `json:"kind,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// MatchCreatedEvent is published when a new match needs notifying
type MatchCreatedEvent struct {
	MatchID       string     `json:"match_id"`
	LostReportID  string     `json:"lost_report_id"`
	FoundReportID string     `json:"found_report_id"`
	LostOwnerID   string     `json:"lost_owner_id"`
	FoundOwnerID  string     `json:"found_owner_id"`
	Score         int        `json:"score"`
	Confidence    Confidence `json:"confidence"`
	Timestamp     time.Time  `json:"timestamp"`
}
