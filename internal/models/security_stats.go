package models

// HourBucket is one slot of the 24-hour event histogram. Hour is the
// two-digit local hour label, "00" through "23".
type HourBucket struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}

// IPCount ranks a source address by how many events it produced.
type IPCount struct {
	IP    string `json:"ip"`
	Count int    `json:"count"`
}

// UserCount ranks an affected user by event count.
type UserCount struct {
	UserID     string `json:"user_id"`
	UserEmail  string `json:"user_email"`
	EventCount int    `json:"event_count"`
}

// SecurityStats is a full summary of one page of security events. It is
// recomputed from scratch on every aggregation pass and holds no state of
// its own.
type SecurityStats struct {
	TotalEvents          int            `json:"total_events"`
	EventsToday          int            `json:"events_today"`
	FailedLogins         int            `json:"failed_logins"`
	SuspiciousActivities int            `json:"suspicious_activities"`
	UniqueIPs            int            `json:"unique_ips"`
	AffectedUsers        int            `json:"affected_users"`
	EventsByType         map[string]int `json:"events_by_type"`
	EventsBySeverity     map[string]int `json:"events_by_severity"`
	HourlyDistribution   []HourBucket   `json:"hourly_distribution"`
	TopIPs               []IPCount      `json:"top_ips"`
	TopUsers             []UserCount    `json:"top_users"`
}
