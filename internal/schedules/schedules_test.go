package schedules

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"lora-control/internal/lora"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   lora.NewSchedule
		want error
	}{
		{name: "missing start", in: lora.NewSchedule{GroupID: "g", End: "18:00", Frequency: lora.FrequencyDaily}, want: ErrMissingFields},
		{name: "bad clock", in: lora.NewSchedule{GroupID: "g", Start: "6:00", End: "18:00", Frequency: lora.FrequencyDaily}, want: ErrInvalidTime},
		{name: "out of range", in: lora.NewSchedule{GroupID: "g", Start: "06:00", End: "25:00", Frequency: lora.FrequencyDaily}, want: ErrInvalidTime},
		{name: "bad frequency", in: lora.NewSchedule{GroupID: "g", Start: "06:00", End: "18:00", Frequency: "semanal"}, want: ErrInvalidFrequency},
		{name: "weekdays without days", in: lora.NewSchedule{GroupID: "g", Start: "06:00", End: "18:00", Frequency: lora.FrequencyWeekdays}, want: ErrNoDays},
		{name: "unknown day", in: lora.NewSchedule{GroupID: "g", Start: "06:00", End: "18:00", Frequency: lora.FrequencyWeekdays, Days: []string{"funday"}}, want: ErrInvalidDay},
	}
	for _, tc := range cases {
		if _, err := Validate(tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestValidateNormalizesDays(t *testing.T) {
	t.Parallel()

	got, err := Validate(lora.NewSchedule{GroupID: "g", Start: "06:00", End: "18:00",
		Frequency: lora.FrequencyWeekdays, Days: []string{"Sabado", "lunes", "miercoles", "lunes"}})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if want := []string{"lunes", "miércoles", "sábado"}; !reflect.DeepEqual(got.Days, want) {
		t.Fatalf("days: %v", got.Days)
	}

	daily, err := Validate(lora.NewSchedule{GroupID: "g", Start: "06:00", End: "18:00", Frequency: "daily", Days: []string{"lunes"}})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if daily.Frequency != lora.FrequencyDaily || daily.Days != nil {
		t.Fatalf("days must be dropped for daily schedules: %+v", daily)
	}
}

type fakeBackend struct {
	mu        sync.Mutex
	schedules []lora.Schedule
	created   []lora.NewSchedule
	lists     int
}

func (f *fakeBackend) ListSchedules(context.Context) ([]lora.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	return append([]lora.Schedule(nil), f.schedules...), nil
}

func (f *fakeBackend) CreateSchedule(_ context.Context, s lora.NewSchedule) (lora.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, s)
	sc := lora.Schedule{ID: "new", GroupID: s.GroupID, Start: s.Start, End: s.End, Frequency: s.Frequency, Days: s.Days, Active: true}
	f.schedules = append(f.schedules, sc)
	return sc, nil
}

func (f *fakeBackend) SetScheduleActive(_ context.Context, id string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.schedules {
		if f.schedules[i].ID == id {
			f.schedules[i].Active = active
			return nil
		}
	}
	return &lora.APIError{Status: 404, Message: "Programación no encontrada"}
}

func (f *fakeBackend) DeleteSchedule(context.Context, string) error { return nil }

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestListFiltersByGroup(t *testing.T) {
	t.Parallel()

	be := &fakeBackend{schedules: []lora.Schedule{{ID: "1", GroupID: "a"}, {ID: "2", GroupID: "b"}, {ID: "3", GroupID: "a"}}}
	got, err := NewService(be, quiet()).List(context.Background(), "a")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "3" {
		t.Fatalf("filtered: %+v", got)
	}
}

func TestToggleRereadsList(t *testing.T) {
	t.Parallel()

	be := &fakeBackend{schedules: []lora.Schedule{{ID: "1", GroupID: "a", Active: true}}}
	svc := NewService(be, quiet())

	got, err := svc.Toggle(context.Background(), "1", false)
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if got.Active || be.lists != 1 {
		t.Fatalf("toggle result: %+v lists=%d", got, be.lists)
	}
	if _, err := svc.Toggle(context.Background(), "missing", true); err == nil || err.Error() != "Programación no encontrada" {
		t.Fatalf("expected server message, got %v", err)
	}
}

func TestCreateSendsNormalizedPayload(t *testing.T) {
	t.Parallel()

	be := &fakeBackend{}
	svc := NewService(be, quiet())
	if _, err := svc.Create(context.Background(), lora.NewSchedule{GroupID: "a", Start: "06:00", End: "18:00", Frequency: lora.FrequencyOnce, Days: []string{"lunes"}}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(be.created) != 1 || be.created[0].Days != nil {
		t.Fatalf("payload: %+v", be.created)
	}
	if _, err := svc.Create(context.Background(), lora.NewSchedule{GroupID: "a"}); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("invalid schedule must not be sent: %v", err)
	}
	if len(be.created) != 1 {
		t.Fatalf("unexpected request: %+v", be.created)
	}
}

func TestCreateReportsValidationArray(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"message":["horaFin debe ser posterior","grupoId no existe"]}`)
	}))
	t.Cleanup(srv.Close)

	svc := NewService(lora.NewClient(srv.URL), quiet())
	_, err := svc.Create(context.Background(), lora.NewSchedule{GroupID: "a", Start: "18:00", End: "06:00", Frequency: lora.FrequencyDaily})
	if err == nil || err.Error() != "horaFin debe ser posterior, grupoId no existe" {
		t.Fatalf("expected joined message, got %v", err)
	}
}
