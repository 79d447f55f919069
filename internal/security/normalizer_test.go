package security

import (
	"encoding/json"
	"testing"
	"time"

	"secmon-service/internal/models"
)

func failedLogin(attempts interface{}) models.AuditRecord {
	rec := models.AuditRecord{
		ID:        "rec-1",
		Action:    "auth.failed",
		IPAddress: "10.0.0.1",
		Timestamp: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
	if attempts != nil {
		rec.Details = map[string]interface{}{"attempts": attempts}
	}
	return rec
}

func TestSeverityThresholds(t *testing.T) {
	cases := []struct {
		attempts int
		want     models.Severity
	}{
		{1, models.SeverityLow},
		{2, models.SeverityLow},
		{3, models.SeverityMedium},
		{4, models.SeverityMedium},
		{5, models.SeverityHigh},
		{9, models.SeverityHigh},
		{10, models.SeverityCritical},
		{25, models.SeverityCritical},
	}
	for _, tc := range cases {
		ev := Normalize(failedLogin(float64(tc.attempts)))
		if ev.Severity != tc.want {
			t.Errorf("attempts=%d: got severity %q, want %q", tc.attempts, ev.Severity, tc.want)
		}
	}
}

func TestSeverityDefaultsWhenAttemptsMissing(t *testing.T) {
	ev := Normalize(failedLogin(nil))
	if ev.Severity != models.SeverityLow {
		t.Fatalf("missing attempts: got %q, want low", ev.Severity)
	}
}

func TestSeverityDefaultsWhenAttemptsMalformed(t *testing.T) {
	for _, bad := range []interface{}{"many", true, []int{3}} {
		ev := Normalize(failedLogin(bad))
		if ev.Severity != models.SeverityLow {
			t.Errorf("attempts=%v: got %q, want low", bad, ev.Severity)
		}
	}
}

func TestAttemptsNumericEncodings(t *testing.T) {
	for _, v := range []interface{}{float64(10), int(10), int64(10), json.Number("10")} {
		ev := Normalize(failedLogin(v))
		if ev.Severity != models.SeverityCritical {
			t.Errorf("attempts=%T(%v): got %q, want critical", v, v, ev.Severity)
		}
	}
}

func TestSuspiciousActionClassification(t *testing.T) {
	ev := Normalize(models.AuditRecord{
		ID:        "rec-2",
		Action:    "some.suspicious.behavior",
		IPAddress: "10.0.0.2",
		Timestamp: time.Now(),
	})
	if ev.Type != models.EventSuspiciousActivity {
		t.Fatalf("got type %q, want suspicious_activity", ev.Type)
	}
	if ev.Severity != models.SeverityMedium {
		t.Fatalf("got severity %q, want medium", ev.Severity)
	}
}

func TestUnknownActionFallsBackToFailedLogin(t *testing.T) {
	ev := Normalize(models.AuditRecord{ID: "rec-3", Action: "user.banned"})
	if ev.Type != models.EventFailedLogin {
		t.Fatalf("got type %q, want failed_login fallback", ev.Type)
	}
	if ev.Severity != models.SeverityMedium {
		t.Fatalf("non-auth action severity: got %q, want medium", ev.Severity)
	}
}

// The classifier only ever produces failed_login and suspicious_activity;
// the remaining declared types have no trigger conditions on this input
// path and must stay unreachable until one is added deliberately.
func TestClassifierProducesOnlyTwoTypes(t *testing.T) {
	actions := []string{
		"auth.failed", "auth.success", "user.updated", "role.suspicious.change",
		"session.revoked", "brute.force.detected", "login.unusual",
	}
	for _, action := range actions {
		ev := Normalize(models.AuditRecord{ID: "x", Action: action})
		if ev.Type != models.EventFailedLogin && ev.Type != models.EventSuspiciousActivity {
			t.Errorf("action %q produced unexpected type %q", action, ev.Type)
		}
	}
}

func TestNormalizeCopiesFieldsAndStartsUnresolved(t *testing.T) {
	details := map[string]interface{}{"attempts": float64(7), "reason": "bad password"}
	rec := models.AuditRecord{
		ID:              "rec-9",
		Action:          "auth.failed",
		TargetUserID:    "u-42",
		TargetUserEmail: "ops@example.com",
		IPAddress:       "192.168.1.9",
		Timestamp:       time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC),
		Details:         details,
	}
	ev := Normalize(rec)

	if ev.ID != rec.ID || ev.UserID != rec.TargetUserID || ev.UserEmail != rec.TargetUserEmail {
		t.Fatalf("identity fields not copied: %+v", ev)
	}
	if ev.IPAddress != rec.IPAddress || !ev.Timestamp.Equal(rec.Timestamp) {
		t.Fatalf("source fields not copied: %+v", ev)
	}
	if ev.Resolved {
		t.Fatal("new events must start unresolved")
	}
	if ev.Severity != models.SeverityHigh {
		t.Fatalf("got severity %q, want high", ev.Severity)
	}
}

func TestNormalizeAllPreservesOrder(t *testing.T) {
	records := []models.AuditRecord{
		{ID: "a", Action: "auth.failed"},
		{ID: "b", Action: "ip.suspicious"},
		{ID: "c", Action: "auth.failed"},
	}
	events := NormalizeAll(records)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for i, id := range []string{"a", "b", "c"} {
		if events[i].ID != id {
			t.Errorf("position %d: got id %q, want %q", i, events[i].ID, id)
		}
	}
}
