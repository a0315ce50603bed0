package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"lora-control/internal/controller"
	"lora-control/internal/lora"
	"lora-control/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeBackend struct {
	mu      sync.Mutex
	devices []lora.Actuator
	groups  []lora.Group
	fail    map[string]error
}

func (f *fakeBackend) ListActuators(context.Context) ([]lora.Actuator, error) {
	return append([]lora.Actuator(nil), f.devices...), nil
}

func (f *fakeBackend) Command(_ context.Context, id string, _ lora.Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail[id]
}

func (f *fakeBackend) ListGroups(context.Context) ([]lora.Group, error) { return f.groups, nil }

func (f *fakeBackend) CreateGroup(context.Context, lora.NewGroup) (lora.Group, error) {
	return lora.Group{}, nil
}

func (f *fakeBackend) DeleteGroup(context.Context, string) error { return nil }

func (f *fakeBackend) ListSchedules(context.Context) ([]lora.Schedule, error) {
	return []lora.Schedule{{ID: "s1", GroupID: "G"}, {ID: "s2", GroupID: "other"}}, nil
}

func (f *fakeBackend) CreateSchedule(context.Context, lora.NewSchedule) (lora.Schedule, error) {
	return lora.Schedule{}, nil
}

func (f *fakeBackend) SetScheduleActive(context.Context, string, bool) error { return nil }

func (f *fakeBackend) DeleteSchedule(context.Context, string) error { return nil }

type fakeHistory struct{ entries []storage.Entry }

func (h fakeHistory) Recent(context.Context, string, int) ([]storage.Entry, error) {
	return h.entries, nil
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	be := &fakeBackend{
		devices: []lora.Actuator{
			{ID: "10", Alias: "Lora-10", State: lora.StateOffline, Latitude: -2.1, Longitude: -79.9},
			{ID: "2", Alias: "Lora-2", State: lora.StateOnline, MotorOn: true, GatewayState: lora.GatewayOK},
			{ID: "b", Alias: "Lora-B", State: lora.StateOnline},
		},
		groups: []lora.Group{{ID: "G", Name: "Norte", Members: []lora.GroupMember{
			{Actuator: lora.Actuator{ID: "2", Alias: "Lora-2"}},
			{Actuator: lora.Actuator{ID: "b", Alias: "Lora-B"}},
		}}},
		fail: map[string]error{"b": &lora.APIError{Status: 500, Message: "gateway unreachable"}},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctl := controller.New(controller.Options{Backend: be, Logger: logger})
	if err := ctl.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return NewRouter(ctl, fakeHistory{entries: []storage.Entry{{DeviceID: "2"}}}, logger)
}

func do(t *testing.T, r *Router, method, path string) (*httptest.ResponseRecorder, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)
	return rec, rec.Body.Bytes()
}

func TestListDevicesFilters(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	rec, body := do(t, r, http.MethodGet, "/api/devices?alias=lora-1&estado=offline")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, body)
	}
	var got []controller.DeviceView
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Alias != "Lora-10" {
		t.Fatalf("devices: %+v", got)
	}

	rec, _ = do(t, r, http.MethodGet, "/api/devices?motor=sometimes")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad filter status: %d", rec.Code)
	}
}

func TestActOnDeviceStatuses(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)

	rec, body := do(t, r, http.MethodPost, "/api/devices/2/apagar")
	if rec.Code != http.StatusOK {
		t.Fatalf("ok status %d: %s", rec.Code, body)
	}
	_, body = do(t, r, http.MethodGet, "/api/pending")
	var pending map[string]lora.Action
	if err := json.Unmarshal(body, &pending); err != nil || pending["2"] != lora.ActionPowerOff {
		t.Fatalf("pending: %s %v", body, err)
	}

	rec, body = do(t, r, http.MethodPost, "/api/devices/Lora-B/reiniciar")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("rejected status %d: %s", rec.Code, body)
	}
	var o struct {
		Message string `json:"mensaje"`
	}
	if err := json.Unmarshal(body, &o); err != nil || o.Message != "gateway unreachable" {
		t.Fatalf("outcome: %s", body)
	}

	if rec, _ := do(t, r, http.MethodPost, "/api/devices/2/toggle"); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown action status %d", rec.Code)
	}
	if rec, _ := do(t, r, http.MethodPost, "/api/devices/ghost/encender"); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown device status %d", rec.Code)
	}
}

func TestGroupsAndSchedules(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	rec, body := do(t, r, http.MethodGet, "/api/groups")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var gs []groupView
	if err := json.Unmarshal(body, &gs); err != nil || len(gs) != 1 || len(gs[0].Members) != 2 {
		t.Fatalf("groups: %s %v", body, err)
	}
	if !gs[0].Members[0].MotorOn {
		t.Fatalf("members should carry live state: %+v", gs[0].Members)
	}

	rec, body = do(t, r, http.MethodPost, "/api/groups/norte/encender")
	if rec.Code != http.StatusMultiStatus {
		t.Fatalf("partial failure status %d: %s", rec.Code, body)
	}

	rec, body = do(t, r, http.MethodGet, "/api/groups/G/schedules")
	var list []lora.Schedule
	if rec.Code != http.StatusOK || json.Unmarshal(body, &list) != nil || len(list) != 1 || list[0].ID != "s1" {
		t.Fatalf("schedules %d: %s", rec.Code, body)
	}

	if rec, _ := do(t, r, http.MethodPost, "/api/groups/sur/encender"); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown group status %d", rec.Code)
	}
}

func TestMapAndHealth(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	_, body := do(t, r, http.MethodGet, "/api/map")
	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(body, &fc); err != nil || fc.Type != "FeatureCollection" || len(fc.Features) != 1 {
		t.Fatalf("map: %s", body)
	}

	rec, body := do(t, r, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("health: %d %s", rec.Code, body)
	}

	rec, _ = do(t, r, http.MethodGet, "/api/history")
	if rec.Code != http.StatusOK {
		t.Fatalf("history: %d", rec.Code)
	}
}
