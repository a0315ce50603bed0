// Package schedules validates and manages group schedules. Execution belongs
// to the backend; this side only creates, lists, toggles and deletes them.
package schedules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lora-control/internal/lora"
)

var (
	ErrMissingFields    = errors.New("completa todos los campos obligatorios")
	ErrInvalidTime      = errors.New("hora inválida, usa HH:MM")
	ErrInvalidFrequency = errors.New("frecuencia inválida")
	ErrNoDays           = errors.New("selecciona al menos un día")
	ErrInvalidDay       = errors.New("día inválido")
	ErrNotFound         = errors.New("schedule not found")
)

// Weekdays in the order the backend and the day picker use.
var Weekdays = []string{"lunes", "martes", "miércoles", "jueves", "viernes", "sábado", "domingo"}

var dayAliases = map[string]string{
	"miercoles": "miércoles",
	"sabado":    "sábado",
}

func ParseFrequency(s string) (lora.Frequency, error) {
	switch f := lora.Frequency(strings.ToLower(strings.TrimSpace(s))); f {
	case lora.FrequencyOnce, lora.FrequencyDaily, lora.FrequencyWeekdays:
		return f, nil
	case "once":
		return lora.FrequencyOnce, nil
	case "daily":
		return lora.FrequencyDaily, nil
	case "weekdays", "dias":
		return lora.FrequencyWeekdays, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
}

func validClock(s string) bool {
	if len(s) != 5 {
		return false
	}
	_, err := time.Parse("15:04", s)
	return err == nil
}

// Validate checks s and returns it normalized: days are lowercased, accented,
// deduplicated and in week order, and dropped unless the frequency needs them.
func Validate(s lora.NewSchedule) (lora.NewSchedule, error) {
	s.GroupID = strings.TrimSpace(s.GroupID)
	s.Start = strings.TrimSpace(s.Start)
	s.End = strings.TrimSpace(s.End)
	if s.GroupID == "" || s.Start == "" || s.End == "" || s.Frequency == "" {
		return s, ErrMissingFields
	}
	for _, clock := range []string{s.Start, s.End} {
		if !validClock(clock) {
			return s, fmt.Errorf("%w: %q", ErrInvalidTime, clock)
		}
	}
	f, err := ParseFrequency(string(s.Frequency))
	if err != nil {
		return s, err
	}
	s.Frequency = f

	if f != lora.FrequencyWeekdays {
		s.Days = nil
		return s, nil
	}
	if len(s.Days) == 0 {
		return s, ErrNoDays
	}
	picked := map[string]bool{}
	for _, d := range s.Days {
		d = strings.ToLower(strings.TrimSpace(d))
		if alias, ok := dayAliases[d]; ok {
			d = alias
		}
		if !isWeekday(d) {
			return s, fmt.Errorf("%w: %q", ErrInvalidDay, d)
		}
		picked[d] = true
	}
	days := make([]string, 0, len(picked))
	for _, d := range Weekdays {
		if picked[d] {
			days = append(days, d)
		}
	}
	s.Days = days
	return s, nil
}

func isWeekday(d string) bool {
	for _, w := range Weekdays {
		if w == d {
			return true
		}
	}
	return false
}

type Backend interface {
	ListSchedules(ctx context.Context) ([]lora.Schedule, error)
	CreateSchedule(ctx context.Context, s lora.NewSchedule) (lora.Schedule, error)
	SetScheduleActive(ctx context.Context, id string, active bool) error
	DeleteSchedule(ctx context.Context, id string) error
}

type Service struct {
	backend Backend
	logger  *slog.Logger
}

func NewService(backend Backend, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, logger: logger}
}

// List fetches every schedule and keeps the ones owned by groupID. An empty
// groupID returns all of them.
func (s *Service) List(ctx context.Context, groupID string) ([]lora.Schedule, error) {
	all, err := s.backend.ListSchedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	out := make([]lora.Schedule, 0, len(all))
	for _, sc := range all {
		if groupID == "" || sc.GroupID == groupID {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, in lora.NewSchedule) (lora.Schedule, error) {
	in, err := Validate(in)
	if err != nil {
		return lora.Schedule{}, err
	}
	created, err := s.backend.CreateSchedule(ctx, in)
	if err != nil {
		s.logger.Warn("create schedule failed", "group", in.GroupID, "err", err)
		return lora.Schedule{}, lora.Describe(err, "Error al crear la programación")
	}
	s.logger.Debug("schedule created", "id", created.ID, "group", in.GroupID, "frequency", in.Frequency)
	return created, nil
}

// Toggle sets the active flag and re-reads the list instead of patching local
// state. It returns the schedule as the backend now reports it.
func (s *Service) Toggle(ctx context.Context, id string, active bool) (lora.Schedule, error) {
	if err := s.backend.SetScheduleActive(ctx, id, active); err != nil {
		s.logger.Warn("toggle schedule failed", "id", id, "active", active, "err", err)
		return lora.Schedule{}, lora.Describe(err, "Error al actualizar la programación")
	}
	return s.Find(ctx, id)
}

func (s *Service) Find(ctx context.Context, id string) (lora.Schedule, error) {
	all, err := s.List(ctx, "")
	if err != nil {
		return lora.Schedule{}, err
	}
	for _, sc := range all {
		if sc.ID == id {
			return sc, nil
		}
	}
	return lora.Schedule{}, fmt.Errorf("%w: %q", ErrNotFound, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.backend.DeleteSchedule(ctx, id); err != nil {
		s.logger.Warn("delete schedule failed", "id", id, "err", err)
		return lora.Describe(err, "Error al eliminar la programación")
	}
	return nil
}
