package pending

import (
	"testing"
	"time"

	"lora-control/internal/lora"
)

func TestSatisfied(t *testing.T) {
	t.Parallel()

	on := lora.Actuator{ID: "a", MotorOn: true, GatewayState: lora.GatewayRestarting}
	off := lora.Actuator{ID: "a", MotorOn: false, GatewayState: lora.GatewayOK}

	cases := []struct {
		action lora.Action
		device lora.Actuator
		want   bool
	}{
		{lora.ActionPowerOn, on, true},
		{lora.ActionPowerOn, off, false},
		{lora.ActionPowerOff, off, true},
		{lora.ActionPowerOff, on, false},
		{lora.ActionRestartGateway, off, true},
		{lora.ActionRestartGateway, on, false},
	}
	for _, tc := range cases {
		if got := Satisfied(tc.action, tc.device); got != tc.want {
			t.Fatalf("Satisfied(%s, motor=%v gw=%s) = %v", tc.action, tc.device.MotorOn, tc.device.GatewayState, got)
		}
	}
}

func TestSetOverwritesAndClearIfSatisfied(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.Set("a", lora.ActionPowerOff)
	tr.Set("a", lora.ActionPowerOn)

	if got, ok := tr.Get("a"); !ok || got != lora.ActionPowerOn {
		t.Fatalf("expected overwrite to encender, got %q ok=%v", got, ok)
	}
	if tr.Len() != 1 {
		t.Fatalf("one entry per id, got %d", tr.Len())
	}

	if tr.ClearIfSatisfied(lora.Actuator{ID: "a", MotorOn: false}) {
		t.Fatalf("motor still off, must stay pending")
	}
	if !tr.ClearIfSatisfied(lora.Actuator{ID: "a", MotorOn: true}) {
		t.Fatalf("motor on, should clear")
	}
	if tr.Busy("a") {
		t.Fatalf("expected cleared")
	}
	if tr.ClearIfSatisfied(lora.Actuator{ID: "b", MotorOn: true}) {
		t.Fatalf("nothing pending for b")
	}
}

func TestBusyIsPerDevice(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	tr.Set("a", lora.ActionRestartGateway)
	tr.Set("b", lora.ActionPowerOn)
	tr.Clear("a")

	if tr.Busy("a") || !tr.Busy("b") {
		t.Fatalf("snapshot: %v", tr.Snapshot())
	}
}

func TestExpire(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTracker()
	tr.now = func() time.Time { return base }
	tr.Set("old", lora.ActionPowerOn)
	tr.now = func() time.Time { return base.Add(90 * time.Second) }
	tr.Set("new", lora.ActionPowerOff)

	expired := tr.Expire(base.Add(2*time.Minute), time.Minute)
	if len(expired) != 1 || expired[0].ID != "old" || expired[0].Action != lora.ActionPowerOn {
		t.Fatalf("expired: %+v", expired)
	}
	if !tr.Busy("new") || tr.Busy("old") {
		t.Fatalf("snapshot after expire: %v", tr.Snapshot())
	}
	if got := tr.Expire(base.Add(time.Hour), 0); got != nil {
		t.Fatalf("ttl 0 disables expiry, got %+v", got)
	}
}

func TestClearIfOnlyRemovesOwnEntry(t *testing.T) {
	t.Parallel()

	tr := NewTracker()
	old := tr.Set("a", lora.ActionPowerOn)
	newer := tr.Set("a", lora.ActionPowerOff)

	if tr.ClearIf("a", old) {
		t.Fatalf("stale token must not clear")
	}
	if got, _ := tr.Get("a"); got != lora.ActionPowerOff {
		t.Fatalf("pending: %q", got)
	}
	if !tr.ClearIf("a", newer) || tr.Busy("a") {
		t.Fatalf("own token should clear")
	}
}
