package pending

import (
	"sort"
	"sync"
	"time"

	"lora-control/internal/lora"
)

type Entry struct {
	ID     string      `json:"id"`
	Action lora.Action `json:"accion"`
	Since  time.Time   `json:"desde"`

	seq uint64
}

// Satisfied reports whether device already shows the outcome of action.
func Satisfied(action lora.Action, device lora.Actuator) bool {
	switch action {
	case lora.ActionPowerOn:
		return device.MotorOn
	case lora.ActionPowerOff:
		return !device.MotorOn
	case lora.ActionRestartGateway:
		return device.GatewayStatus() == lora.GatewayOK
	default:
		return false
	}
}

// Tracker maps a device id to its single in-flight action.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]Entry
	seq     uint64
	now     func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{entries: map[string]Entry{}, now: time.Now}
}

// Set records action for id, replacing whatever was pending before. The
// returned token identifies this entry for ClearIf.
func (t *Tracker) Set(id string, action lora.Action) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	t.entries[id] = Entry{ID: id, Action: action, Since: t.now(), seq: t.seq}
	return t.seq
}

// ClearIf removes the entry for id only while it is still the one token
// names. A newer Set for the same id survives.
func (t *Tracker) ClearIf(id string, token uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok || e.seq != token {
		return false
	}
	delete(t.entries, id)
	return true
}

func (t *Tracker) Clear(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

func (t *Tracker) Get(id string) (lora.Action, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	return e.Action, ok
}

func (t *Tracker) Busy(id string) bool {
	_, ok := t.Get(id)
	return ok
}

// ClearIfSatisfied drops the entry for device.ID when the merged snapshot
// already reflects the pending action.
func (t *Tracker) ClearIfSatisfied(device lora.Actuator) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[device.ID]
	if !ok || !Satisfied(e.Action, device) {
		return false
	}
	delete(t.entries, device.ID)
	return true
}

// Expire removes entries older than ttl and returns them sorted by id.
func (t *Tracker) Expire(now time.Time, ttl time.Duration) []Entry {
	if ttl <= 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Entry
	for id, e := range t.entries {
		if now.Sub(e.Since) >= ttl {
			out = append(out, e)
			delete(t.entries, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Snapshot returns a copy of every pending entry keyed by device id.
func (t *Tracker) Snapshot() map[string]lora.Action {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]lora.Action, len(t.entries))
	for id, e := range t.entries {
		out[id] = e.Action
	}
	return out
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
