package view

import (
	"reflect"
	"testing"

	"lora-control/internal/lora"
)

func fleet() []lora.Actuator {
	return []lora.Actuator{
		{ID: "2", Alias: "Lora-2", State: lora.StateOnline, MotorOn: true, GatewayState: lora.GatewayOK},
		{ID: "10", Alias: "Lora-10", State: lora.StateOffline, GatewayState: lora.GatewayDown},
		{ID: "n", Alias: "Ñandú", State: lora.StateOnline, GatewayState: lora.GatewayRestarting},
		{ID: "o", Alias: "Oeste", State: lora.StateOffline, MotorOn: true},
		{ID: "a", Alias: "alfa", State: lora.StateOnline},
	}
}

func TestProjectAliasAndState(t *testing.T) {
	t.Parallel()

	p := NewProjector("es")
	in := []lora.Actuator{
		{ID: "10", Alias: "Lora-10", State: lora.StateOffline},
		{ID: "2", Alias: "Lora-2", State: lora.StateOnline},
	}
	got := p.Project(in, Criteria{Alias: "lora-1", State: lora.StateOffline})
	if len(got) != 1 || got[0].Alias != "Lora-10" {
		t.Fatalf("unexpected projection: %+v", got)
	}
}

func TestProjectSortsWithLocale(t *testing.T) {
	t.Parallel()

	p := NewProjector("es")
	got := p.Project(fleet(), Criteria{})
	var aliases []string
	for _, d := range got {
		aliases = append(aliases, d.Alias)
	}
	// Spanish collation places Ñ between N and O and ignores case at the primary level.
	want := []string{"alfa", "Lora-10", "Lora-2", "Ñandú", "Oeste"}
	if !reflect.DeepEqual(aliases, want) {
		t.Fatalf("order: %v", aliases)
	}
}

func TestProjectIsPure(t *testing.T) {
	t.Parallel()

	p := NewProjector("es")
	in := fleet()
	before := fleet()
	c := Criteria{Motor: MotorOn}

	first := p.Project(in, c)
	second := p.Project(in, c)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("projection not deterministic")
	}
	if !reflect.DeepEqual(in, before) {
		t.Fatalf("input mutated")
	}
	if len(first) != 2 || first[0].ID != "2" || first[1].ID != "o" {
		t.Fatalf("motor filter: %+v", first)
	}
}

func TestProjectGatewayFilter(t *testing.T) {
	t.Parallel()

	got := NewProjector("es").Project(fleet(), Criteria{Gateway: lora.GatewayDown, Motor: MotorOff})
	// "Oeste" has no gateway state and reads as down, but its motor is on.
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "10" {
		t.Fatalf("gateway filter: %+v", got)
	}
}

func TestParseFilters(t *testing.T) {
	t.Parallel()

	if m, err := ParseMotor("ON"); err != nil || m != MotorOn {
		t.Fatalf("ParseMotor: %q %v", m, err)
	}
	if _, err := ParseMotor("maybe"); err == nil {
		t.Fatalf("expected error")
	}
	if s, err := ParseState("offline"); err != nil || s != lora.StateOffline {
		t.Fatalf("ParseState: %q %v", s, err)
	}
	if _, err := ParseState("broken"); err == nil {
		t.Fatalf("expected error")
	}
	if g, err := ParseGateway("reiniciando"); err != nil || g != lora.GatewayRestarting {
		t.Fatalf("ParseGateway: %q %v", g, err)
	}
}

func TestMembersUseLiveState(t *testing.T) {
	t.Parallel()

	g := lora.Group{ID: "g", Name: "Norte", Members: []lora.GroupMember{
		{Actuator: lora.Actuator{ID: "z", Alias: "Zeta", State: lora.StateOffline}},
		{Actuator: lora.Actuator{ID: "2", Alias: "Lora-2", State: lora.StateOffline}},
	}}
	got := NewProjector("es").Members(g, fleet())
	if len(got) != 2 || got[0].ID != "2" || got[0].State != lora.StateOnline || got[1].ID != "z" {
		t.Fatalf("members: %+v", got)
	}
}

func TestSortGroups(t *testing.T) {
	t.Parallel()

	in := []lora.Group{{Name: "sur"}, {Name: "Norte"}, {Name: "centro"}}
	got := NewProjector("es").SortGroups(in)
	if got[0].Name != "centro" || got[1].Name != "Norte" || got[2].Name != "sur" {
		t.Fatalf("groups: %+v", got)
	}
	if in[0].Name != "sur" {
		t.Fatalf("input mutated")
	}
}

func TestMarkersSkipMissingCoordinates(t *testing.T) {
	t.Parallel()

	fc := Markers([]lora.Actuator{
		{ID: "a", Alias: "A", Latitude: -2.1, Longitude: -79.9},
		{ID: "b", Alias: "B"},
	})
	if len(fc.Features) != 1 {
		t.Fatalf("features: %+v", fc.Features)
	}
	if c := fc.Features[0].Geometry.Coordinates; c[0] != -79.9 || c[1] != -2.1 {
		t.Fatalf("coordinates must be lon,lat: %v", c)
	}
}
