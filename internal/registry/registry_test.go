package registry

import (
	"errors"
	"reflect"
	"testing"

	"lora-control/internal/lora"
)

func sample() []lora.Actuator {
	return []lora.Actuator{
		{ID: "a", Alias: "Lora-A", State: lora.StateOnline, MotorOn: false, GatewayState: lora.GatewayOK,
			Relays: lora.Relays{Motor1: true}, Gateway: lora.Gateway{Alias: "GW-A", IP: "10.0.0.1", State: lora.GatewayOK}},
		{ID: "b", Alias: "Lora-B", State: lora.StateOffline, GatewayState: lora.GatewayDown},
	}
}

func TestMergeOverwritesMatchingAndKeepsOthers(t *testing.T) {
	t.Parallel()

	devices := sample()
	before := sample()
	patch := []lora.Actuator{
		{ID: "a", Alias: "Lora-A2", State: lora.StateOffline, MotorOn: true},
		{ID: "zzz", Alias: "ghost"},
	}

	merged, updated := Merge(devices, patch)

	if len(merged) != 2 {
		t.Fatalf("registry must not grow through merge: %d", len(merged))
	}
	if !reflect.DeepEqual(merged[0], patch[0]) {
		t.Fatalf("full overwrite expected, got %+v", merged[0])
	}
	// Relays and gateway from the previous snapshot must not survive.
	if merged[0].Relays.Motor1 || merged[0].Gateway.Alias != "" {
		t.Fatalf("stale fields survived: %+v", merged[0])
	}
	if !reflect.DeepEqual(merged[1], before[1]) {
		t.Fatalf("untouched device changed: %+v", merged[1])
	}
	if len(updated) != 1 || updated[0].ID != "a" {
		t.Fatalf("updated: %+v", updated)
	}
	if !reflect.DeepEqual(devices, before) {
		t.Fatalf("input mutated")
	}
}

func TestRegistryLoadMergeAndSelection(t *testing.T) {
	t.Parallel()

	r := New()
	r.Load(sample())
	if r.Len() != 2 {
		t.Fatalf("len: %d", r.Len())
	}
	if !r.Select("a") {
		t.Fatalf("select a")
	}
	if r.Select("missing") {
		t.Fatalf("selecting an unknown id must fail")
	}

	r.Merge([]lora.Actuator{{ID: "a", Alias: "Lora-A", MotorOn: true, State: lora.StateOnline}})

	sel, ok := r.Selected()
	if !ok || !sel.MotorOn {
		t.Fatalf("selected device is stale: %+v ok=%v", sel, ok)
	}

	r.Load([]lora.Actuator{{ID: "b"}})
	if _, ok := r.Selected(); ok {
		t.Fatalf("selection should be dropped when its device disappears")
	}
}

func TestRegistryLoadDropsDuplicateIDs(t *testing.T) {
	r := New()
	r.Load([]lora.Actuator{{ID: "a", Alias: "first"}, {ID: "a", Alias: "second"}})
	if r.Len() != 1 || r.Alias("a") != "first" {
		t.Fatalf("unexpected registry: %+v", r.All())
	}
}

func TestResolve(t *testing.T) {
	r := New()
	r.Load(sample())

	if d, err := r.Resolve("b"); err != nil || d.Alias != "Lora-B" {
		t.Fatalf("by id: %+v %v", d, err)
	}
	if d, err := r.Resolve("  lora-a "); err != nil || d.ID != "a" {
		t.Fatalf("by alias: %+v %v", d, err)
	}
	if _, err := r.Resolve("nope"); !errors.Is(err, lora.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if r.Alias("nope") != "Lora" {
		t.Fatalf("fallback alias: %q", r.Alias("nope"))
	}
}

func TestAllReturnsCopy(t *testing.T) {
	r := New()
	r.Load(sample())
	all := r.All()
	all[0].Alias = "changed"
	if r.Alias("a") != "Lora-A" {
		t.Fatalf("All must return a copy")
	}
}
