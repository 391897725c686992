package history

import (
	"context"
	"testing"
	"time"
)

func sampleRun(id string, startedAt time.Time) *Run {
	return &Run{
		ID:             id,
		RuleRoot:       "rules",
		StartedAt:      startedAt,
		RecordCount:    10,
		ViolationCount: 3,
	}
}

func TestMemoryStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()

	run := sampleRun("run-1", time.Now().UTC())
	if err := m.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	got, err := m.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.ID != run.ID || got.RecordCount != 10 || got.ViolationCount != 3 {
		t.Errorf("GetRun() = %+v", got)
	}

	// Stored copy is independent of the caller's struct.
	run.RecordCount = 99
	got, _ = m.GetRun(ctx, "run-1")
	if got.RecordCount != 10 {
		t.Error("stored run aliases the caller's struct")
	}
}

func TestMemoryStorageGetRunNotFound(t *testing.T) {
	m := NewMemoryStorage()
	if _, err := m.GetRun(context.Background(), "ghost"); err != ErrRunNotFound {
		t.Errorf("GetRun() error = %v, want ErrRunNotFound", err)
	}
}

func TestMemoryStorageListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()

	base := time.Now().UTC()
	for i, id := range []string{"old", "mid", "new"} {
		if err := m.SaveRun(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("SaveRun(%s) error = %v", id, err)
		}
	}

	runs, err := m.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "new" || runs[1].ID != "mid" {
		t.Errorf("ListRuns() = %+v", runs)
	}
}

func TestMemoryStorageViolations(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()

	violations := []*StoredViolation{
		{RunID: "run-1", RecordID: "r1", Field: "apnea", Rule: "field:apnea", Message: "required field is missing"},
		{RunID: "run-1", RecordID: "r2", Field: "ahi", Rule: "compat[0]", Message: "value out of range"},
	}
	if err := m.SaveViolations(ctx, violations); err != nil {
		t.Fatalf("SaveViolations() error = %v", err)
	}

	got, err := m.ListViolations(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListViolations() error = %v", err)
	}
	if len(got) != 2 || got[0].Field != "apnea" || got[1].RecordID != "r2" {
		t.Errorf("ListViolations() = %+v", got)
	}

	other, _ := m.ListViolations(ctx, "other-run")
	if len(other) != 0 {
		t.Errorf("ListViolations(other) = %+v, want empty", other)
	}
}

func TestMemoryStorageDeleteRunsBefore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()

	now := time.Now().UTC()
	m.SaveRun(ctx, sampleRun("ancient", now.AddDate(0, 0, -120)))
	m.SaveRun(ctx, sampleRun("recent", now))
	m.SaveViolations(ctx, []*StoredViolation{{RunID: "ancient", RecordID: "r1"}})

	deleted, err := m.DeleteRunsBefore(ctx, now.AddDate(0, 0, -90))
	if err != nil {
		t.Fatalf("DeleteRunsBefore() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	if _, err := m.GetRun(ctx, "ancient"); err != ErrRunNotFound {
		t.Error("ancient run survived pruning")
	}
	if _, err := m.GetRun(ctx, "recent"); err != nil {
		t.Errorf("recent run pruned: %v", err)
	}
	if vs, _ := m.ListViolations(ctx, "ancient"); len(vs) != 0 {
		t.Error("ancient violations survived pruning")
	}
}
