package security

import (
	"reflect"
	"testing"
	"time"

	"secmon-service/internal/models"
)

func event(id string, hour int, attempts int, ip, userID, email string) models.SecurityEvent {
	return Normalize(models.AuditRecord{
		ID:              id,
		Action:          "auth.failed",
		TargetUserID:    userID,
		TargetUserEmail: email,
		IPAddress:       ip,
		Timestamp:       time.Date(2026, 3, 14, hour, 15, 0, 0, time.UTC),
		Details:         map[string]interface{}{"attempts": float64(attempts)},
	})
}

var noon = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func TestAggregateEmpty(t *testing.T) {
	stats := Aggregate(nil, noon, time.UTC)

	if stats.TotalEvents != 0 || stats.EventsToday != 0 {
		t.Fatalf("empty input: got totals %d/%d, want 0/0", stats.TotalEvents, stats.EventsToday)
	}
	if stats.UniqueIPs != 0 || stats.AffectedUsers != 0 {
		t.Fatalf("empty input: got cardinalities %d/%d, want 0/0", stats.UniqueIPs, stats.AffectedUsers)
	}
	if len(stats.HourlyDistribution) != 24 {
		t.Fatalf("got %d hour buckets, want 24", len(stats.HourlyDistribution))
	}
	for i, b := range stats.HourlyDistribution {
		if b.Count != 0 {
			t.Errorf("hour %d: got count %d, want 0", i, b.Count)
		}
	}
	if len(stats.TopIPs) != 0 || len(stats.TopUsers) != 0 {
		t.Fatal("empty input must yield empty rankings")
	}
}

func TestAggregateScenario(t *testing.T) {
	events := []models.SecurityEvent{
		event("e1", 10, 3, "203.0.113.7", "u1", "u1@example.com"),
		event("e2", 11, 5, "198.51.100.2", "u2", "u2@example.com"),
		event("e3", 12, 10, "203.0.113.7", "u1", "u1@example.com"),
	}
	stats := Aggregate(events, noon, time.UTC)

	if stats.TotalEvents != 3 || stats.FailedLogins != 3 {
		t.Fatalf("got total=%d failed=%d, want 3/3", stats.TotalEvents, stats.FailedLogins)
	}
	if stats.UniqueIPs != 2 {
		t.Fatalf("got %d unique IPs, want 2", stats.UniqueIPs)
	}
	wantSeverity := map[string]int{"medium": 1, "high": 1, "critical": 1}
	if !reflect.DeepEqual(stats.EventsBySeverity, wantSeverity) {
		t.Fatalf("got severity counts %v, want %v", stats.EventsBySeverity, wantSeverity)
	}
	wantIPs := []models.IPCount{
		{IP: "203.0.113.7", Count: 2},
		{IP: "198.51.100.2", Count: 1},
	}
	if !reflect.DeepEqual(stats.TopIPs, wantIPs) {
		t.Fatalf("got topIPs %v, want %v", stats.TopIPs, wantIPs)
	}
	for _, h := range []int{10, 11, 12} {
		if stats.HourlyDistribution[h].Count != 1 {
			t.Errorf("hour %02d: got %d, want 1", h, stats.HourlyDistribution[h].Count)
		}
	}
}

func TestHourlyDistributionSumsToTotal(t *testing.T) {
	events := []models.SecurityEvent{
		event("e1", 0, 1, "a", "", ""),
		event("e2", 0, 1, "b", "", ""),
		event("e3", 7, 1, "c", "", ""),
		event("e4", 23, 1, "d", "", ""),
		event("e5", 23, 1, "e", "", ""),
	}
	stats := Aggregate(events, noon, time.UTC)

	sum := 0
	for _, b := range stats.HourlyDistribution {
		sum += b.Count
	}
	if sum != stats.TotalEvents {
		t.Fatalf("histogram sums to %d, total is %d", sum, stats.TotalEvents)
	}
}

func TestHourLabelsAreTwoDigit(t *testing.T) {
	stats := Aggregate(nil, noon, time.UTC)
	if stats.HourlyDistribution[0].Hour != "00" {
		t.Fatalf("got label %q, want 00", stats.HourlyDistribution[0].Hour)
	}
	if stats.HourlyDistribution[23].Hour != "23" {
		t.Fatalf("got label %q, want 23", stats.HourlyDistribution[23].Hour)
	}
}

func TestEventsTodayRespectsInjectedLocation(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)

	// 22:00 UTC on the 13th is already 03:00 on the 14th in UTC+5.
	ev := Normalize(models.AuditRecord{
		ID:        "e1",
		Action:    "auth.failed",
		IPAddress: "a",
		Timestamp: time.Date(2026, 3, 13, 22, 0, 0, 0, time.UTC),
	})

	utcStats := Aggregate([]models.SecurityEvent{ev}, noon, time.UTC)
	if utcStats.EventsToday != 0 {
		t.Fatalf("UTC: got eventsToday=%d, want 0", utcStats.EventsToday)
	}
	zoneStats := Aggregate([]models.SecurityEvent{ev}, noon, loc)
	if zoneStats.EventsToday != 1 {
		t.Fatalf("UTC+5: got eventsToday=%d, want 1", zoneStats.EventsToday)
	}
	if zoneStats.HourlyDistribution[3].Count != 1 {
		t.Fatalf("UTC+5: event should land in hour 03, got %v", zoneStats.HourlyDistribution)
	}
}

func TestTopRankingsCappedAtTen(t *testing.T) {
	events := make([]models.SecurityEvent, 0, 15)
	for i := 0; i < 15; i++ {
		ip := string(rune('a' + i))
		events = append(events, event("e", 1, 1, ip, "u"+ip, ip+"@example.com"))
	}
	stats := Aggregate(events, noon, time.UTC)

	if len(stats.TopIPs) != 10 {
		t.Fatalf("got %d topIPs, want 10", len(stats.TopIPs))
	}
	if len(stats.TopUsers) != 10 {
		t.Fatalf("got %d topUsers, want 10", len(stats.TopUsers))
	}
	for i := 1; i < len(stats.TopIPs); i++ {
		if stats.TopIPs[i].Count > stats.TopIPs[i-1].Count {
			t.Fatal("topIPs not sorted by count descending")
		}
	}
}

// Equal counts rank in first-seen order, so the snapshot is deterministic
// for a given event list.
func TestTopRankingTieBreakIsFirstSeen(t *testing.T) {
	events := []models.SecurityEvent{
		event("e1", 1, 1, "b.b.b.b", "", ""),
		event("e2", 2, 1, "a.a.a.a", "", ""),
		event("e3", 3, 1, "c.c.c.c", "", ""),
	}
	stats := Aggregate(events, noon, time.UTC)

	want := []string{"b.b.b.b", "a.a.a.a", "c.c.c.c"}
	for i, ip := range want {
		if stats.TopIPs[i].IP != ip {
			t.Fatalf("position %d: got %q, want %q (first-seen tie-break)", i, stats.TopIPs[i].IP, ip)
		}
	}
}

func TestAffectedUsersCountsDistinctIDs(t *testing.T) {
	events := []models.SecurityEvent{
		event("e1", 1, 1, "a", "u1", "u1@example.com"),
		event("e2", 2, 1, "b", "u1", "u1@example.com"),
		event("e3", 3, 1, "c", "u2", "u2@example.com"),
		event("e4", 4, 1, "d", "", ""),
	}
	stats := Aggregate(events, noon, time.UTC)

	if stats.AffectedUsers != 2 {
		t.Fatalf("got affectedUsers=%d, want 2", stats.AffectedUsers)
	}
	if stats.TopUsers[0].UserID != "u1" || stats.TopUsers[0].EventCount != 2 {
		t.Fatalf("got topUsers %v, want u1 with 2 events first", stats.TopUsers)
	}
}

func TestTopUsersRequireBothIDAndEmail(t *testing.T) {
	events := []models.SecurityEvent{
		event("e1", 1, 1, "a", "u1", ""),
		event("e2", 2, 1, "b", "", "orphan@example.com"),
	}
	stats := Aggregate(events, noon, time.UTC)

	if len(stats.TopUsers) != 0 {
		t.Fatalf("got topUsers %v, want none", stats.TopUsers)
	}
	// The ID-only event still counts toward the distinct-user cardinality.
	if stats.AffectedUsers != 1 {
		t.Fatalf("got affectedUsers=%d, want 1", stats.AffectedUsers)
	}
}

func TestAggregateIdempotent(t *testing.T) {
	events := []models.SecurityEvent{
		event("e1", 10, 3, "a", "u1", "u1@example.com"),
		event("e2", 11, 5, "b", "u2", "u2@example.com"),
	}
	first := Aggregate(events, noon, time.UTC)
	second := Aggregate(events, noon, time.UTC)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated aggregation diverged:\n%+v\n%+v", first, second)
	}
}
