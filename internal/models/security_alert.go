package models

import "time"

// SecurityAlert is the message published to the security.alerts topic for
// every critical-severity event found during a refresh.
type SecurityAlert struct {
	EventID    string    `json:"event_id"`
	Type       EventType `json:"type"`
	Severity   Severity  `json:"severity"`
	UserID     string    `json:"user_id,omitempty"`
	UserEmail  string    `json:"user_email,omitempty"`
	IPAddress  string    `json:"ip_address"`
	OccurredAt time.Time `json:"occurred_at"`
	DetectedAt time.Time `json:"detected_at"`
}
