package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"secmon-service/internal/client"
	"secmon-service/internal/models"
	"secmon-service/internal/util"
)

// EventIndex maintains the searchable copy of normalized security events
// in Elasticsearch.
type EventIndex struct {
	es    *client.ESClient
	index string
}

// Filters narrows an event search; zero-value fields are ignored.
type Filters struct {
	Type     string
	Severity string
	IP       string
	UserID   string
}

func NewEventIndex(es *client.ESClient, index string) *EventIndex {
	return &EventIndex{
		es:    es,
		index: index,
	}
}

// IndexEvents bulk-upserts a page of events. Event IDs double as document
// IDs, so re-indexing the same page is idempotent.
func (x *EventIndex) IndexEvents(ctx context.Context, events []models.SecurityEvent) error {
	if len(events) == 0 {
		return nil
	}

	var body bytes.Buffer
	for _, ev := range events {
		meta := map[string]map[string]string{
			"index": {"_index": x.index, "_id": ev.ID},
		}
		if err := json.NewEncoder(&body).Encode(meta); err != nil {
			return fmt.Errorf("failed to encode bulk action: %w", err)
		}
		if err := json.NewEncoder(&body).Encode(ev); err != nil {
			return fmt.Errorf("failed to encode event %s: %w", ev.ID, err)
		}
	}

	res, err := x.es.Bulk(ctx, &body)
	if err != nil {
		return fmt.Errorf("failed to bulk index events: %w", err)
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
	}
	if err := x.es.ParseResponse(res, &bulkResp); err != nil {
		return err
	}
	if bulkResp.Errors {
		return fmt.Errorf("bulk indexing reported item failures")
	}

	util.Debug("Events indexed",
		zap.Int("event_count", len(events)),
		zap.String("index", x.index))
	return nil
}

// SearchEvents returns events matching all given filters, newest first.
func (x *EventIndex) SearchEvents(ctx context.Context, filters Filters, limit int) ([]models.SecurityEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var must []map[string]interface{}
	for field, value := range map[string]string{
		"type":       filters.Type,
		"severity":   filters.Severity,
		"ip_address": filters.IP,
		"user_id":    filters.UserID,
	} {
		if value != "" {
			must = append(must, map[string]interface{}{
				"term": map[string]interface{}{field: value},
			})
		}
	}

	query := map[string]interface{}{
		"size": limit,
		"sort": []map[string]interface{}{
			{"timestamp": map[string]interface{}{"order": "desc"}},
		},
	}
	if len(must) > 0 {
		query["query"] = map[string]interface{}{
			"bool": map[string]interface{}{"must": must},
		}
	} else {
		query["query"] = map[string]interface{}{"match_all": map[string]interface{}{}}
	}

	res, err := x.es.Search(ctx, x.index, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search events: %w", err)
	}

	var searchResp struct {
		Hits struct {
			Hits []struct {
				Source models.SecurityEvent `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := x.es.ParseResponse(res, &searchResp); err != nil {
		return nil, err
	}

	events := make([]models.SecurityEvent, 0, len(searchResp.Hits.Hits))
	for _, hit := range searchResp.Hits.Hits {
		events = append(events, hit.Source)
	}
	return events, nil
}
