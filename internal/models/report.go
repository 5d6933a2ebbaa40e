package models

import (
	"time"
)

// ReportKind tells whether a report describes a lost or a found item
type ReportKind string

const (
	ReportKindLost  ReportKind = "lost"
	ReportKindFound ReportKind = "found"
)

// Opposite returns the counterpart kind. Unknown kinds yield an empty kind.
func (k ReportKind) Opposite() ReportKind {
	switch k {
	case ReportKindLost:
		return ReportKindFound
	case ReportKindFound:
		return ReportKindLost
	default:
		return ""
	}
}

// Valid reports whether k is lost or found
func (k ReportKind) Valid() bool {
	return k == ReportKindLost || k == ReportKindFound
}

// ReportStatus is the lifecycle state of a report
type ReportStatus string

const (
	ReportStatusActive   ReportStatus = "active"
	ReportStatusReunited ReportStatus = "reunited"
	ReportStatusExpired  ReportStatus = "expired"
	ReportStatusClosed   ReportStatus = "closed"
)

// CandidateStatus is the state of a backlink on a report
type CandidateStatus string

const (
	CandidateStatusPending   CandidateStatus = "pending"
	CandidateStatusConfirmed CandidateStatus = "confirmed"
	CandidateStatusRejected  CandidateStatus = "rejected"
)

// Report represents a single lost or found item listing
type Report struct {
	ID               string            `json:"id"`
	Kind             ReportKind        `json:"kind"`
	OwnerID          string            `json:"owner_id"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	Category         string            `json:"category"`
	Attributes       Attributes        `json:"attributes"`
	Location         Location          `json:"location"`
	EventDate        *time.Time        `json:"event_date,omitempty"`
	Embedding        []float64         `json:"embedding,omitempty"`
	LinkedCandidates []LinkedCandidate `json:"linked_candidates"`
	Status           ReportStatus      `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Attributes are optional free-text item details
type Attributes struct {
	Color string `json:"color,omitempty"`
	Brand string `json:"brand,omitempty"`
	Model string `json:"model,omitempty"`
}

// Location is where the item was lost or found
type Location struct {
	City        string       `json:"city,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Coordinates is a (longitude, latitude) pair in degrees
type Coordinates struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// LinkedCandidate is a backlink from a report to a counterpart it was matched with
type LinkedCandidate struct {
	ReportID  string          `json:"report_id"`
	Score     int             `json:"score"`
	Status    CandidateStatus `json:"status"`
	MatchedAt time.Time       `json:"matched_at"`
}

// EffectiveDate returns the event date, falling back to the creation time
func (r *Report) EffectiveDate() time.Time {
	if r.EventDate != nil && !r.EventDate.IsZero() {
		return *r.EventDate
	}
	return r.CreatedAt
}

// HasEmbedding reports whether a cached embedding is present
func (r *Report) HasEmbedding() bool {
	return len(r.Embedding) > 0
}

// CandidateQuery selects reports eligible as match candidates
type CandidateQuery struct {
	Kind      ReportKind
	Status    ReportStatus
	Category  string
	ExcludeID string
	Limit     int
}
