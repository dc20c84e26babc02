package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"
)

func TestLogRequestIncludesContext(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("test", "debug", "json", &buf)

	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = WithUser(ctx, "user-1", "admin")
	log.LogRequest(ctx, http.MethodGet, "/records", http.StatusOK, 15*time.Millisecond)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if line["trace_id"] != "trace-1" || line["user_id"] != "user-1" {
		t.Fatalf("missing context fields: %v", line)
	}
	if line["service"] != "test" || line["status"] != float64(200) {
		t.Fatalf("unexpected fields: %v", line)
	}
	if line["level"] != "info" {
		t.Fatalf("level = %v", line["level"])
	}
}

func TestLogRequestLevelByStatus(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("test", "info", "json", &buf)
	log.LogRequest(context.Background(), http.MethodPost, "/cart/items", http.StatusConflict, time.Millisecond)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if line["level"] != "warning" {
		t.Fatalf("level = %v, want warning", line["level"])
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if GetUserID(ctx) != "" || GetRole(ctx) != "" || GetTraceID(ctx) != "" {
		t.Fatal("expected empty values")
	}
	if WithTraceID(ctx, "") != ctx {
		t.Fatal("empty trace id should not wrap context")
	}
	ctx = WithUser(ctx, "u", "")
	if GetUserID(ctx) != "u" || GetRole(ctx) != "" {
		t.Fatal("unexpected user context")
	}
	if NewTraceID() == NewTraceID() {
		t.Fatal("trace ids should differ")
	}
}
