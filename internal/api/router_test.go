package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/jengzang/timeslots-backend-go/internal/config"
	"github.com/jengzang/timeslots-backend-go/internal/database"
	"github.com/jengzang/timeslots-backend-go/internal/handler"
	"github.com/jengzang/timeslots-backend-go/internal/logger"
	"github.com/jengzang/timeslots-backend-go/internal/models"
	"github.com/jengzang/timeslots-backend-go/internal/repository"
	"github.com/jengzang/timeslots-backend-go/internal/service"
	"github.com/jengzang/timeslots-backend-go/internal/worker"
)

var t0 = time.Date(2026, 4, 14, 8, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router *gin.Engine
	clock  *testClock
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	db, err := database.Open(database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := logger.FromZap(zaptest.NewLogger(t))
	clock := &testClock{now: t0}
	settings := repository.NewSettingsRepository(db, time.UTC)
	slots := service.NewTimeSlotService(repository.NewTimeSlotRepository(db, time.UTC), clock, time.UTC, log)
	guesses := service.NewSmartGuessService(repository.NewSmartGuessRepository(db, time.UTC), settings, clock,
		config.DefaultSmartGuessConfig(), log)
	reminders := service.NewReminderService(repository.NewReminderRepository(db, time.UTC), clock)
	tracking := service.NewTrackingService(slots, guesses, settings, reminders, clock, config.DefaultTrackingConfig(), log)
	dispatcher := worker.NewDispatcher(tracking, guesses, 16, 0, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = dispatcher.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	h := handler.NewTimeSlotHandler(dispatcher, slots, reminders, clock, time.UTC, log)
	return &testServer{router: SetupRouter(cfg, h, log), clock: clock}
}

func (s *testServer) do(t *testing.T, method, path, body string, header ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: decode body %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w, env
}

func defaultConfig() *config.Config {
	return &config.Config{
		Tracking:   config.DefaultTrackingConfig(),
		SmartGuess: config.DefaultSmartGuessConfig(),
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, defaultConfig())
	w, _ := s.do(t, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestCategoryFlow(t *testing.T) {
	s := newTestServer(t, defaultConfig())
	start := fmt.Sprintf("%d", t0.Unix())

	w, env := s.do(t, http.MethodPut, "/api/v1/timeslots/"+start+"/category", `{"category":"work"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT category status = %d, body %s", w.Code, w.Body.String())
	}
	var slot models.TimeSlot
	if err := json.Unmarshal(env.Data, &slot); err != nil {
		t.Fatalf("decode slot: %v", err)
	}
	if slot.Category != models.CategoryWork || !slot.CategoryWasSetByUser {
		t.Errorf("slot = %+v, want user-set work", slot)
	}

	w, env = s.do(t, http.MethodGet, "/api/v1/timeslots?date=2026-04-14", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET timeslots status = %d", w.Code)
	}
	var day []models.TimeSlot
	if err := json.Unmarshal(env.Data, &day); err != nil {
		t.Fatalf("decode day: %v", err)
	}
	if len(day) != 1 || !day[0].StartTime.Equal(t0) {
		t.Errorf("day = %+v, want the single bootstrap slot", day)
	}

	s.clock.Set(t0.Add(2 * time.Hour))
	_, env = s.do(t, http.MethodGet, "/api/v1/timeslots/summary?date=2026-04-14", "")
	var summary struct {
		Date       string                   `json:"date"`
		Categories []models.CategorySummary `json:"categories"`
	}
	if err := json.Unmarshal(env.Data, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if len(summary.Categories) != 1 || summary.Categories[0].Category != models.CategoryWork ||
		summary.Categories[0].DurationSeconds != 7200 {
		t.Errorf("summary = %+v, want work 7200s", summary)
	}

	w, env = s.do(t, http.MethodPost, "/api/v1/timeslots", `{"category":"food"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST timeslots status = %d, body %s", w.Code, w.Body.String())
	}
	_, env = s.do(t, http.MethodGet, "/api/v1/timeslots/last", "")
	var last models.TimeSlot
	if err := json.Unmarshal(env.Data, &last); err != nil {
		t.Fatalf("decode last: %v", err)
	}
	if last.Category != models.CategoryFood || !last.StartTime.Equal(t0.Add(2*time.Hour)) {
		t.Errorf("last = %+v, want food at 10:00", last)
	}

	w, _ = s.do(t, http.MethodPost, "/api/v1/timeslots", `{"category":"food"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("second manual slot in the same second: status = %d, want 409", w.Code)
	}

	s.clock.Set(t0.Add(time.Hour))
	w, env = s.do(t, http.MethodPost, "/api/v1/timeslots", `{"category":"work"}`)
	if w.Code != http.StatusConflict || env.Message != "New time slot must start after the current one" {
		t.Errorf("manual slot behind the current one: %d %q, want 409", w.Code, env.Message)
	}
}

func TestValidation(t *testing.T) {
	s := newTestServer(t, defaultConfig())

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown category", http.MethodPost, "/api/v1/timeslots", `{"category":"sleep"}`, http.StatusBadRequest},
		{"missing body", http.MethodPost, "/api/v1/notifications/category", "", http.StatusBadRequest},
		{"bad start", http.MethodPut, "/api/v1/timeslots/abc/category", `{"category":"work"}`, http.StatusBadRequest},
		{"missing slot", http.MethodPut, "/api/v1/timeslots/12345/category", `{"category":"work"}`, http.StatusNotFound},
		{"bad date", http.MethodGet, "/api/v1/timeslots?date=14/04/2026", "", http.StatusBadRequest},
		{"bad app state", http.MethodPost, "/api/v1/app-state", `{"state":"paused"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := s.do(t, tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestPostLocationsFiltersInvalidFixes(t *testing.T) {
	s := newTestServer(t, defaultConfig())
	body := fmt.Sprintf(`{"locations":[
		{"latitude":0,"longitude":0,"timestamp":%q},
		{"latitude":41.38,"longitude":2.17,"timestamp":%q,"horizontal_accuracy":10}
	]}`, t0.Add(time.Minute).Format(time.RFC3339), t0.Add(2*time.Minute).Format(time.RFC3339))

	w, env := s.do(t, http.MethodPost, "/api/v1/locations", body)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var counts struct {
		Received int `json:"received"`
		Accepted int `json:"accepted"`
	}
	if err := json.Unmarshal(env.Data, &counts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if counts.Received != 2 || counts.Accepted != 1 {
		t.Errorf("counts = %+v, want 2 received 1 accepted", counts)
	}
}

func TestRemindersAndCategories(t *testing.T) {
	s := newTestServer(t, defaultConfig())

	_, env := s.do(t, http.MethodGet, "/api/v1/categories", "")
	var infos []models.CategoryInfo
	if err := json.Unmarshal(env.Data, &infos); err != nil {
		t.Fatalf("decode categories: %v", err)
	}
	if len(infos) != len(models.AllCategories()) {
		t.Errorf("got %d categories, want %d", len(infos), len(models.AllCategories()))
	}

	w, env := s.do(t, http.MethodGet, "/api/v1/reminders", "")
	if w.Code != http.StatusOK || string(env.Data) != "[]" {
		t.Errorf("reminders = %d %s, want empty list", w.Code, env.Data)
	}
}

func TestAuthRequired(t *testing.T) {
	cfg := defaultConfig()
	cfg.AuthEnabled = true
	cfg.JWTSecret = "secret"
	s := newTestServer(t, cfg)

	w, _ := s.do(t, http.MethodGet, "/api/v1/categories", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	w, _ = s.do(t, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200 without a token", w.Code)
	}
}

func TestStreamEvents(t *testing.T) {
	s := newTestServer(t, defaultConfig())
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/timeslots/events", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	put, err := http.NewRequest(http.MethodPut,
		fmt.Sprintf("%s/api/v1/timeslots/%d/category", srv.URL, t0.Unix()),
		strings.NewReader(`{"category":"leisure"}`))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	put.Header.Set("Content-Type", "application/json")
	putResp, err := http.DefaultClient.Do(put)
	if err != nil {
		t.Fatalf("PUT: %v", err)
	}
	putResp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		if v, ok := strings.CutPrefix(line, "event:"); ok {
			event = strings.TrimSpace(v)
		}
		// The bootstrap slot may still be announced as created first
		if v, ok := strings.CutPrefix(line, "data:"); ok && event == string(models.TimeSlotUpdated) {
			data = v
			break
		}
	}
	cancel()

	if event != string(models.TimeSlotUpdated) {
		t.Fatalf("event = %q, want updated", event)
	}
	var slot models.TimeSlot
	if err := json.Unmarshal([]byte(data), &slot); err != nil {
		t.Fatalf("decode event data %q: %v", data, err)
	}
	if slot.Category != models.CategoryLeisure {
		t.Errorf("event slot category = %s, want leisure", slot.Category)
	}
}
