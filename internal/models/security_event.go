package models

import "time"

// EventType classifies a security event.
type EventType string

const (
	EventFailedLogin        EventType = "failed_login"
	EventSuspiciousActivity EventType = "suspicious_activity"

	// Declared for forward compatibility; the classifier does not yet
	// produce these from the audit stream.
	EventMultipleLocations EventType = "multiple_locations"
	EventUnusualHours      EventType = "unusual_hours"
	EventBruteForce        EventType = "brute_force"
)

// Severity is a coarse ordinal ranking of how concerning an event is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SecurityEvent is the normalized, classified view of an AuditRecord.
// Instances are immutable once created.
type SecurityEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Severity  Severity               `json:"severity"`
	UserID    string                 `json:"user_id,omitempty"`
	UserEmail string                 `json:"user_email,omitempty"`
	IPAddress string                 `json:"ip_address"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Resolved  bool                   `json:"resolved"`
}
