// Package groups manages named device groups and fans a single action out
// to every member.
package groups

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"lora-control/internal/dispatch"
	"lora-control/internal/lora"
	"lora-control/internal/view"
)

var (
	ErrEmptyName        = errors.New("el nombre del grupo es obligatorio")
	ErrDuplicateName    = errors.New("ya existe un grupo con ese nombre")
	ErrNoMembers        = errors.New("selecciona al menos una Lora")
	ErrGroupNotFound    = errors.New("group not found")
	ErrInvalidCompanyID = errors.New("company id must be a UUID")
)

// ValidateNew checks a group before anything is sent to the backend.
func ValidateNew(name string, memberIDs []string, existing []lora.Group) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	for _, g := range existing {
		if strings.EqualFold(strings.TrimSpace(g.Name), name) {
			return fmt.Errorf("%w: %q", ErrDuplicateName, g.Name)
		}
	}
	if len(memberIDs) == 0 {
		return ErrNoMembers
	}
	return nil
}

type Backend interface {
	ListGroups(ctx context.Context) ([]lora.Group, error)
	CreateGroup(ctx context.Context, g lora.NewGroup) (lora.Group, error)
	DeleteGroup(ctx context.Context, id string) error
}

// Executor runs one member request, tracking pending state like a single dispatch.
type Executor interface {
	Execute(ctx context.Context, id, alias string, action lora.Action) dispatch.Outcome
}

type Config struct {
	CompanyID string
	// CacheTTL bounds how long List serves the cached group list.
	CacheTTL time.Duration
	// Concurrency caps in-flight member requests. Zero means no limit.
	Concurrency int
	Logger      *slog.Logger
}

type Service struct {
	backend Backend
	exec    Executor
	sorter  *view.Projector
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	cached    []lora.Group
	fetchedAt time.Time
}

func NewService(backend Backend, exec Executor, sorter *view.Projector, cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if sorter == nil {
		sorter = view.NewProjector("es")
	}
	return &Service{backend: backend, exec: exec, sorter: sorter, cfg: cfg, logger: logger, now: time.Now}
}

// List returns every group sorted by name, served from cache while fresh.
func (s *Service) List(ctx context.Context) ([]lora.Group, error) {
	s.mu.Lock()
	if s.cached != nil && s.cfg.CacheTTL > 0 && s.now().Sub(s.fetchedAt) < s.cfg.CacheTTL {
		out := append([]lora.Group(nil), s.cached...)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	groups, err := s.backend.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	groups = s.sorter.SortGroups(groups)

	s.mu.Lock()
	s.cached = groups
	s.fetchedAt = s.now()
	s.mu.Unlock()
	return append([]lora.Group(nil), groups...), nil
}

// Invalidate drops the cached list so the next List hits the backend.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.fetchedAt = time.Time{}
	s.mu.Unlock()
}

// Find resolves a group by id, then by case-insensitive name.
func (s *Service) Find(ctx context.Context, ref string) (lora.Group, error) {
	groups, err := s.List(ctx)
	if err != nil {
		return lora.Group{}, err
	}
	ref = strings.TrimSpace(ref)
	for _, g := range groups {
		if g.ID == ref {
			return g, nil
		}
	}
	for _, g := range groups {
		if strings.EqualFold(strings.TrimSpace(g.Name), ref) {
			return g, nil
		}
	}
	return lora.Group{}, fmt.Errorf("%w: %q", ErrGroupNotFound, ref)
}

// Create rejects an empty name or member list before contacting the backend;
// the group list is fetched only for the duplicate-name check.
func (s *Service) Create(ctx context.Context, name string, memberIDs []string) (lora.Group, error) {
	if err := ValidateNew(name, memberIDs, nil); err != nil {
		return lora.Group{}, err
	}
	existing, err := s.List(ctx)
	if err != nil {
		return lora.Group{}, err
	}
	if err := ValidateNew(name, memberIDs, existing); err != nil {
		return lora.Group{}, err
	}
	if _, err := uuid.Parse(s.cfg.CompanyID); err != nil {
		return lora.Group{}, fmt.Errorf("%w: %q", ErrInvalidCompanyID, s.cfg.CompanyID)
	}

	g, err := s.backend.CreateGroup(ctx, lora.NewGroup{
		Name:      strings.TrimSpace(name),
		CompanyID: s.cfg.CompanyID,
		LoraIDs:   memberIDs,
	})
	if err != nil {
		s.logger.Warn("create group failed", "name", name, "err", err)
		return lora.Group{}, lora.Describe(err, "Error al crear el grupo")
	}
	s.Invalidate()
	s.logger.Debug("group created", "id", g.ID, "name", g.Name, "members", len(memberIDs))
	return g, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.backend.DeleteGroup(ctx, id); err != nil {
		s.logger.Warn("delete group failed", "id", id, "err", err)
		return lora.Describe(err, "Error inesperado al eliminar el grupo")
	}
	s.Invalidate()
	return nil
}

// Result buckets member outcomes. Ids and messages follow membership order.
type Result struct {
	Group     string             `json:"grupo"`
	Action    lora.Action        `json:"accion"`
	Succeeded []string           `json:"exitosas"`
	Failed    []string           `json:"fallidas"`
	Messages  []string           `json:"mensajes"`
	Outcomes  []dispatch.Outcome `json:"resultados"`
}

// Run sends action to every member concurrently. Each member gets exactly one
// attempt; a failing member never cancels the others.
func (s *Service) Run(ctx context.Context, g lora.Group, action lora.Action) Result {
	aliases := make(map[string]string, len(g.Members))
	ids := g.MemberIDs()
	for _, m := range g.Members {
		alias := m.Actuator.Alias
		if alias == "" {
			alias = m.Actuator.ID
		}
		aliases[m.Actuator.ID] = alias
	}

	outcomes := make([]dispatch.Outcome, len(ids))
	var eg errgroup.Group
	if s.cfg.Concurrency > 0 {
		eg.SetLimit(s.cfg.Concurrency)
	}
	for i, id := range ids {
		eg.Go(func() error {
			outcomes[i] = s.exec.Execute(ctx, id, aliases[id], action)
			return nil
		})
	}
	_ = eg.Wait()

	res := Result{
		Group:     g.Name,
		Action:    action,
		Succeeded: []string{},
		Failed:    []string{},
		Messages:  []string{},
		Outcomes:  outcomes,
	}
	for _, o := range outcomes {
		if o.OK() {
			res.Succeeded = append(res.Succeeded, o.ID)
			continue
		}
		msg := lora.ServerMessage(o.Err)
		if msg == "" {
			msg = fmt.Sprintf("Error al ejecutar %s", action)
		}
		res.Failed = append(res.Failed, o.ID)
		res.Messages = append(res.Messages, fmt.Sprintf("❌ %s: %s", o.Alias, msg))
	}
	s.logger.Info("group action finished", "group", g.Name, "action", action,
		"ok", len(res.Succeeded), "failed", len(res.Failed))
	return res
}

// Report notifies the aggregate: a single warning when nothing succeeded, a
// summary plus one error per failure on partial success, otherwise one success.
func Report(r Result, n dispatch.Notifier) {
	switch {
	case len(r.Succeeded) == 0 && len(r.Failed) == 0:
		n.Warn(fmt.Sprintf("El grupo %s no tiene Loras", r.Group))
	case len(r.Succeeded) == 0:
		n.Warn("Ninguna acción fue exitosa")
	case len(r.Failed) > 0:
		n.Warn(fmt.Sprintf("%d exitosos, %d fallidos", len(r.Succeeded), len(r.Failed)))
		for _, msg := range r.Messages {
			n.Error(msg)
		}
	default:
		n.Success(fmt.Sprintf("✅ Acción %q ejecutada en %d Loras del grupo %s", r.Action, len(r.Succeeded), r.Group))
	}
}
