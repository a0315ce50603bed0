package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"lora-control/internal/dispatch"
	"lora-control/internal/lora"
)

func TestJournalRecordAndRecent(t *testing.T) {
	t.Parallel()

	j, err := Open(filepath.Join(t.TempDir(), "nested", "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	outcomes := []dispatch.Outcome{
		{ID: "a", Alias: "Lora-1", Action: lora.ActionPowerOn, Status: dispatch.StatusOK, Message: "✅ Lora-1 encendido correctamente", At: base},
		{ID: "b", Alias: "Lora-2", Action: lora.ActionRestartGateway, Status: dispatch.StatusRejected, Message: "gateway unreachable", At: base.Add(time.Minute)},
		{ID: "a", Alias: "Lora-1", Action: lora.ActionPowerOff, Status: dispatch.StatusFailed, Message: "Error inesperado al procesar Lora-1", At: base.Add(2 * time.Minute)},
	}
	for _, o := range outcomes {
		if err := j.Record(ctx, o); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	all, err := j.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(all) != 3 || all[0].Action != lora.ActionPowerOff || all[2].Action != lora.ActionPowerOn {
		t.Fatalf("newest first expected: %+v", all)
	}
	if !all[1].At.Equal(base.Add(time.Minute)) || all[1].Status != dispatch.StatusRejected {
		t.Fatalf("round trip: %+v", all[1])
	}

	onlyA, err := j.Recent(ctx, "a", 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(onlyA) != 1 || onlyA[0].DeviceID != "a" || onlyA[0].Status != dispatch.StatusFailed {
		t.Fatalf("filtered: %+v", onlyA)
	}
}

func TestJournalEmpty(t *testing.T) {
	t.Parallel()

	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	got, err := j.Recent(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}
