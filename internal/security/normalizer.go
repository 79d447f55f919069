package security

import (
	"encoding/json"
	"strings"

	"secmon-service/internal/models"
)

// Severity thresholds over details.attempts for failed logins.
const (
	criticalAttempts = 10
	highAttempts     = 5
	mediumAttempts   = 3

	defaultAttempts = 1
)

// Normalize maps one audit record to exactly one security event. The
// type/severity pair is a pure function of the record's action and
// details.attempts; malformed or missing details degrade to defaults
// rather than failing.
func Normalize(rec models.AuditRecord) models.SecurityEvent {
	return models.SecurityEvent{
		ID:        rec.ID,
		Type:      classifyType(rec.Action),
		Severity:  classifySeverity(rec.Action, rec.Details),
		UserID:    rec.TargetUserID,
		UserEmail: rec.TargetUserEmail,
		IPAddress: rec.IPAddress,
		Timestamp: rec.Timestamp,
		Details:   rec.Details,
		Resolved:  false,
	}
}

// NormalizeAll applies Normalize to a page of records, preserving order.
func NormalizeAll(records []models.AuditRecord) []models.SecurityEvent {
	events := make([]models.SecurityEvent, 0, len(records))
	for _, rec := range records {
		events = append(events, Normalize(rec))
	}
	return events
}

func classifyType(action string) models.EventType {
	switch {
	case action == "auth.failed":
		return models.EventFailedLogin
	case strings.Contains(action, "suspicious"):
		return models.EventSuspiciousActivity
	default:
		return models.EventFailedLogin
	}
}

// classifySeverity grades failed logins by attempt count. Every other
// action grades medium.
func classifySeverity(action string, details map[string]interface{}) models.Severity {
	if action != "auth.failed" {
		return models.SeverityMedium
	}

	attempts := numericDetail(details, "attempts", defaultAttempts)
	switch {
	case attempts >= criticalAttempts:
		return models.SeverityCritical
	case attempts >= highAttempts:
		return models.SeverityHigh
	case attempts >= mediumAttempts:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// numericDetail reads a numeric field from the open details mapping.
// Depending on where the record came from the value may arrive as float64,
// json.Number, or a native int; anything else falls back to def.
func numericDetail(details map[string]interface{}, key string, def int) int {
	v, ok := details[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		if f, err := n.Float64(); err == nil {
			return int(f)
		}
		return def
	default:
		return def
	}
}
