package health

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestRunAggregatesWorstStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []ComponentHealth
		want     Status
	}{
		{"all up", []ComponentHealth{Up(), Up()}, StatusUp},
		{"one degraded", []ComponentHealth{Up(), Degraded("cache cold")}, StatusDegraded},
		{"one down", []ComponentHealth{Up(), Degraded("cache cold"), Down("db gone")}, StatusDown},
		{"no checks", nil, StatusUp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewChecker()
			for i, status := range tt.statuses {
				s := status
				checker.Register(string(rune('a'+i)), func(context.Context) ComponentHealth { return s })
			}
			report := checker.Run(context.Background())
			if report.Status != tt.want {
				t.Fatalf("Run().Status = %s, want %s", report.Status, tt.want)
			}
			if len(report.Components) != len(tt.statuses) {
				t.Fatalf("Components = %d, want %d", len(report.Components), len(tt.statuses))
			}
		})
	}
}

func TestRunRecordsLatency(t *testing.T) {
	checker := NewChecker()
	checker.Register("probe", func(context.Context) ComponentHealth { return Up() })
	report := checker.Run(context.Background())
	if report.Components["probe"].Latency == "" {
		t.Fatal("probe latency not recorded")
	}
	if report.CheckedAt.IsZero() {
		t.Fatal("CheckedAt not set")
	}
}

func TestReadyHandler(t *testing.T) {
	checker := NewChecker()
	checker.Register("ok", func(context.Context) ComponentHealth { return Up() })

	rec := httptest.NewRecorder()
	checker.ReadyHandler()(rec, httptest.NewRequest("GET", "/healthz/ready", nil))
	if rec.Code != 200 {
		t.Fatalf("ready status = %d, want 200", rec.Code)
	}
	var report Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decoding report: %v", err)
	}
	if report.Status != StatusUp {
		t.Fatalf("report status = %s", report.Status)
	}

	checker.Register("bad", func(context.Context) ComponentHealth { return Down("dependency gone") })
	rec = httptest.NewRecorder()
	checker.ReadyHandler()(rec, httptest.NewRequest("GET", "/healthz/ready", nil))
	if rec.Code != 503 {
		t.Fatalf("ready status = %d with down component, want 503", rec.Code)
	}
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler()(rec, httptest.NewRequest("GET", "/healthz/live", nil))
	if rec.Code != 200 {
		t.Fatalf("live status = %d, want 200", rec.Code)
	}
}
