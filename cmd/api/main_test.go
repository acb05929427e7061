package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	appconfig "github.com/expertease/consult-engine/internal/config"
	"github.com/expertease/consult-engine/pkg/logging"
)

func TestConnectPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	logger := logging.New("error")
	if pool := connectPostgresPool(context.Background(), "", logger); pool != nil {
		t.Fatalf("expected nil pool for empty URL")
	}
}

func TestConnectRedisMemoryStoresReturnsNil(t *testing.T) {
	logger := logging.New("error")
	cfg := &appconfig.Config{UseMemoryStores: true, RedisAddr: "localhost:6379"}
	if client := connectRedis(cfg, logger); client != nil {
		t.Fatalf("expected nil client with memory stores enabled")
	}
}

func TestBuildRouterServesHealthAndMetrics(t *testing.T) {
	t.Setenv("USE_MEMORY_STORES", "true")
	cfg := appconfig.Load()
	logger := logging.New("error")

	r := buildRouter(cfg, logger, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "expertease_consult") {
		t.Fatalf("expected engine metrics to be exported")
	}
}
