package models

import "time"

// AuditRecord is one row of the audit log as stored in ClickHouse and as
// produced on the audit.events topic. Details carries whatever extra context
// the emitting service attached (attempt counts, reasons, device info).
type AuditRecord struct {
	ID              string                 `json:"id" db:"id"`
	EventBucket     int                    `json:"event_bucket" db:"event_bucket"`
	Action          string                 `json:"action" db:"action"`
	TargetUserID    string                 `json:"target_user_id,omitempty" db:"target_user_id"`
	TargetUserEmail string                 `json:"target_user_email,omitempty" db:"target_user_email"`
	IPAddress       string                 `json:"ip_address" db:"ip_address"`
	Timestamp       time.Time              `json:"timestamp" db:"timestamp"`
	Details         map[string]interface{} `json:"details,omitempty" db:"details"`
}
