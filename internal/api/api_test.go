package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oumacare/ancare/internal/models"
)

type fakeScheduler struct {
	stats    models.SchedulerStats
	summary  models.CheckSummary
	checkErr error
	checks   int
}

func (f *fakeScheduler) Stats() models.SchedulerStats { return f.stats }

func (f *fakeScheduler) TriggerImmediateCheck(ctx context.Context) (models.CheckSummary, error) {
	f.checks++
	return f.summary, f.checkErr
}

type fakeMemory struct {
	stats models.MemoryStats
}

func (f *fakeMemory) Stats() models.MemoryStats { return f.stats }

func doRequest(t *testing.T, handler http.Handler, method, path string) (*httptest.ResponseRecorder, models.APIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var body models.APIResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return rr, body
}

func TestHealthEndpoint(t *testing.T) {
	s := NewServer(&fakeScheduler{}, &fakeMemory{})
	rr, body := doRequest(t, s.Handler(), "GET", "/healthz")
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
	if body.Status != string(models.APIStatusOK) {
		t.Errorf("expected ok status, got %s", body.Status)
	}
}

func TestSchedulerStatsEndpoint(t *testing.T) {
	sched := &fakeScheduler{stats: models.SchedulerStats{IsRunning: true, TotalChecks: 4, ScheduleTime: "08:00"}}
	s := NewServer(sched, &fakeMemory{})

	rr, body := doRequest(t, s.Handler(), "GET", "/v1/scheduler/stats")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	result, ok := body.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("expected result object, got %T", body.Result)
	}
	if result["is_running"] != true {
		t.Error("is_running not reported")
	}
	if result["total_checks"] != float64(4) {
		t.Errorf("expected 4 total checks, got %v", result["total_checks"])
	}
}

func TestMemoryStatsEndpoint(t *testing.T) {
	mem := &fakeMemory{stats: models.MemoryStats{TotalSessions: 7, TotalUsers: 3, CacheSize: 7, StoreSize: 7}}
	s := NewServer(&fakeScheduler{}, mem)

	rr, body := doRequest(t, s.Handler(), "GET", "/v1/memory/stats")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	result, ok := body.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("expected result object, got %T", body.Result)
	}
	if result["total_sessions"] != float64(7) || result["total_users"] != float64(3) {
		t.Errorf("unexpected memory stats: %v", result)
	}
}

func TestImmediateCheckEndpoint(t *testing.T) {
	sched := &fakeScheduler{summary: models.CheckSummary{RecordsChecked: 2, RemindersSent: 1, CheckNumber: 1}}
	s := NewServer(sched, &fakeMemory{})

	rr, body := doRequest(t, s.Handler(), "POST", "/v1/scheduler/check")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if sched.checks != 1 {
		t.Errorf("expected one triggered check, got %d", sched.checks)
	}
	result, ok := body.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("expected result object, got %T", body.Result)
	}
	if result["reminders_sent"] != float64(1) {
		t.Errorf("unexpected summary: %v", result)
	}
}

func TestImmediateCheckEndpointError(t *testing.T) {
	sched := &fakeScheduler{checkErr: errors.New("record store unreachable")}
	s := NewServer(sched, &fakeMemory{})

	rr, body := doRequest(t, s.Handler(), "POST", "/v1/scheduler/check")
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rr.Code)
	}
	if body.Status != string(models.APIStatusError) || body.Message == "" {
		t.Errorf("expected error envelope, got %+v", body)
	}
}

func TestUnknownRoute(t *testing.T) {
	s := NewServer(&fakeScheduler{}, &fakeMemory{})
	req := httptest.NewRequest("GET", "/nope", nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}
