package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"secmon-service/internal/repository/clickhouse"
	"secmon-service/internal/service"
)

func newDegradedHandler() http.Handler {
	svc := service.NewSecurityService(clickhouse.NewUnavailableAuditRepository(), nil, nil, nil,
		service.SecurityServiceOptions{}, zap.NewNop())
	h := NewSecurityHandler(svc, zap.NewNop())
	router := chi.NewRouter()
	h.RegisterRoutes(router)
	return router
}

func TestListEventsAgainstUninitializedStoreReturns503(t *testing.T) {
	router := newDegradedHandler()

	req := httptest.NewRequest(http.MethodGet, "/security/events", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("got status %d, want 503", rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response body not decodable: %v", err)
	}
	if resp.Success {
		t.Fatal("error response marked as success")
	}
}

func TestSearchEventsWithoutIndexReturns503(t *testing.T) {
	router := newDegradedHandler()

	req := httptest.NewRequest(http.MethodGet, "/security/events/search?severity=critical", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("got status %d, want 503", rec.Code)
	}
}
