// Package view derives filtered, locale-sorted presentation lists from
// registry snapshots. Nothing in here mutates its input.
package view

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"lora-control/internal/lora"
)

type MotorFilter string

const (
	MotorAny MotorFilter = ""
	MotorOn  MotorFilter = "on"
	MotorOff MotorFilter = "off"
)

// Criteria are AND-combined. Zero values match everything.
type Criteria struct {
	Alias   string
	State   lora.ConnState
	Gateway lora.GatewayState
	Motor   MotorFilter
}

func (c Criteria) Match(d lora.Actuator) bool {
	if c.Alias != "" && !strings.Contains(strings.ToLower(d.Alias), strings.ToLower(strings.TrimSpace(c.Alias))) {
		return false
	}
	if c.State != "" && d.State != c.State {
		return false
	}
	if c.Gateway != "" && d.GatewayStatus() != c.Gateway {
		return false
	}
	switch c.Motor {
	case MotorOn:
		return d.MotorOn
	case MotorOff:
		return !d.MotorOn
	}
	return true
}

func ParseMotor(s string) (MotorFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any", "todos":
		return MotorAny, nil
	case "on", "encendido", "true":
		return MotorOn, nil
	case "off", "apagado", "false":
		return MotorOff, nil
	}
	return "", fmt.Errorf("invalid motor filter %q (use on, off or any)", s)
}

func ParseState(s string) (lora.ConnState, error) {
	switch st := lora.ConnState(strings.ToLower(strings.TrimSpace(s))); st {
	case "", lora.StateOnline, lora.StateOffline:
		return st, nil
	}
	return "", fmt.Errorf("invalid state %q (use online or offline)", s)
}

func ParseGateway(s string) (lora.GatewayState, error) {
	switch st := lora.GatewayState(strings.ToLower(strings.TrimSpace(s))); st {
	case "", lora.GatewayOK, lora.GatewayDown, lora.GatewayRestarting:
		return st, nil
	}
	return "", fmt.Errorf("invalid gateway state %q (use ok, caido or reiniciando)", s)
}

// Projector sorts with a collator for one locale. collate.Collator keeps
// internal buffers, so comparisons are serialized.
type Projector struct {
	mu  sync.Mutex
	col *collate.Collator
}

func NewProjector(locale string) *Projector {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Spanish
	}
	return &Projector{col: collate.New(tag)}
}

func (p *Projector) Compare(a, b string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.col.CompareString(a, b)
}

// Project returns the devices matching c, sorted by alias. Devices with equal
// aliases keep their relative order.
func (p *Projector) Project(devices []lora.Actuator, c Criteria) []lora.Actuator {
	out := make([]lora.Actuator, 0, len(devices))
	for _, d := range devices {
		if c.Match(d) {
			out = append(out, d)
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		return p.col.CompareString(out[i].Alias, out[j].Alias) < 0
	})
	return out
}

// SortGroups returns groups ordered by name.
func (p *Projector) SortGroups(groups []lora.Group) []lora.Group {
	out := append([]lora.Group(nil), groups...)
	p.mu.Lock()
	defer p.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		return p.col.CompareString(out[i].Name, out[j].Name) < 0
	})
	return out
}

// Members resolves a group's membership against the live device list so that
// badges show current connectivity. Members missing from live fall back to
// the snapshot stored with the group.
func (p *Projector) Members(g lora.Group, live []lora.Actuator) []lora.Actuator {
	byID := make(map[string]lora.Actuator, len(live))
	for _, d := range live {
		byID[d.ID] = d
	}
	members := make([]lora.Actuator, 0, len(g.Members))
	for _, m := range g.Members {
		if d, ok := byID[m.Actuator.ID]; ok {
			members = append(members, d)
			continue
		}
		members = append(members, m.Actuator)
	}
	return p.Project(members, Criteria{})
}
