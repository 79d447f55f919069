package security

import (
	"fmt"
	"sort"
	"time"

	"secmon-service/internal/models"
)

// Rankings are capped at the ten worst offenders.
const topN = 10

// Aggregate reduces a page of security events into one stats snapshot.
// now and loc are injected so the reduction stays pure and deterministic:
// "today" and the hourly histogram are computed in loc, never in the
// process timezone. A nil loc means UTC. An empty or nil event list yields
// an all-zero snapshot with a fully zero-filled 24-entry histogram.
func Aggregate(events []models.SecurityEvent, now time.Time, loc *time.Location) models.SecurityStats {
	if loc == nil {
		loc = time.UTC
	}

	stats := models.SecurityStats{
		TotalEvents:        len(events),
		EventsByType:       make(map[string]int),
		EventsBySeverity:   make(map[string]int),
		HourlyDistribution: make([]models.HourBucket, 24),
		TopIPs:             []models.IPCount{},
		TopUsers:           []models.UserCount{},
	}
	for h := range stats.HourlyDistribution {
		stats.HourlyDistribution[h].Hour = fmt.Sprintf("%02d", h)
	}

	localNow := now.In(loc)
	dayStart := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, loc)

	type userKey struct {
		id    string
		email string
	}

	ips := newCounter()
	users := newCounter()
	userKeys := make(map[string]userKey)
	distinctUsers := make(map[string]struct{})

	for _, e := range events {
		if !e.Timestamp.Before(dayStart) {
			stats.EventsToday++
		}

		stats.EventsByType[string(e.Type)]++
		stats.EventsBySeverity[string(e.Severity)]++
		stats.HourlyDistribution[e.Timestamp.In(loc).Hour()].Count++

		ips.inc(e.IPAddress)
		if e.UserID != "" {
			distinctUsers[e.UserID] = struct{}{}
		}
		if e.UserID != "" && e.UserEmail != "" {
			key := e.UserID + "\x00" + e.UserEmail
			users.inc(key)
			userKeys[key] = userKey{id: e.UserID, email: e.UserEmail}
		}
	}

	stats.FailedLogins = stats.EventsByType[string(models.EventFailedLogin)]
	stats.SuspiciousActivities = stats.EventsByType[string(models.EventSuspiciousActivity)]
	stats.UniqueIPs = len(ips.counts)
	stats.AffectedUsers = len(distinctUsers)

	for _, kc := range ips.top(topN) {
		stats.TopIPs = append(stats.TopIPs, models.IPCount{IP: kc.key, Count: kc.count})
	}
	for _, kc := range users.top(topN) {
		uk := userKeys[kc.key]
		stats.TopUsers = append(stats.TopUsers, models.UserCount{
			UserID:     uk.id,
			UserEmail:  uk.email,
			EventCount: kc.count,
		})
	}

	return stats
}

// counter tallies string keys while remembering first-seen order, so that
// top-N rankings break count ties by first appearance instead of map
// iteration order.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) inc(key string) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

type keyCount struct {
	key   string
	count int
}

// top returns up to n entries ordered by count descending, ties in
// first-seen order.
func (c *counter) top(n int) []keyCount {
	ranked := make([]keyCount, 0, len(c.order))
	for _, key := range c.order {
		ranked = append(ranked, keyCount{key: key, count: c.counts[key]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].count > ranked[j].count
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
