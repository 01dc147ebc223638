package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"taskpad/internal/models"
	"taskpad/internal/store"
)

func newTestRepo() (*Repository, *store.MemoryStore) {
	st := store.NewMemoryStore()
	repo := NewRepository(st)

	clock := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	ids := 0
	repo.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	repo.newID = func() string {
		ids++
		return fmt.Sprintf("task-%d", ids)
	}
	return repo, st
}

func TestCreateDefaults(t *testing.T) {
	repo, _ := newTestRepo()
	ctx := context.Background()

	item, err := repo.Create(ctx, "alice", map[string]any{"title": "water plants"})
	if err != nil {
		t.Fatal(err)
	}

	if item.Str("owner_id") != "alice" || item.Str("task_id") == "" {
		t.Fatalf("bad identity: %v", item)
	}
	if item.Str("status") != "open" {
		t.Fatalf("status = %q, want open", item.Str("status"))
	}
	if _, ok := item["sort"].(int64); !ok {
		t.Fatalf("sort = %v (%T), want creation millis", item["sort"], item["sort"])
	}
	if item.Str("updated_at") == "" {
		t.Fatal("updated_at not stamped")
	}

	// absent optionals must not be stored as empty placeholders
	for _, name := range []string{"due_date", "parent_id", "details", "overdue_notified_at"} {
		if _, ok := item[name]; ok {
			t.Fatalf("%s stored despite being absent from payload", name)
		}
	}
}

func TestCreateKeepsProvidedFields(t *testing.T) {
	repo, _ := newTestRepo()
	ctx := context.Background()

	item, err := repo.Create(ctx, "alice", map[string]any{
		"title":    "file taxes",
		"status":   "done",
		"due_date": "2026-04-15T00:00:00Z",
		"details":  "use the accountant portal",
	})
	if err != nil {
		t.Fatal(err)
	}
	if item.Str("status") != "done" || item.Str("due_date") != "2026-04-15T00:00:00Z" {
		t.Fatalf("provided fields lost: %v", item)
	}
}

func TestListOrdersBySortMissingLast(t *testing.T) {
	repo, st := newTestRepo()
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		if _, err := repo.Create(ctx, "alice", map[string]any{"title": title}); err != nil {
			t.Fatal(err)
		}
	}
	// reorder "third" to the front
	if _, err := repo.Update(ctx, "alice", "task-3", map[string]any{"sort": json.Number("1")}); err != nil {
		t.Fatal(err)
	}
	// an item without any sort field sorts after everything
	err := st.PutItem(ctx, models.Item{
		"owner_id": "alice", "task_id": "legacy", "title": "unsorted",
	})
	if err != nil {
		t.Fatal(err)
	}

	items, err := repo.List(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}

	var titles []string
	for _, it := range items {
		titles = append(titles, it.Str("title"))
	}
	want := []string{"third", "first", "second", "unsorted"}
	if len(titles) != len(want) {
		t.Fatalf("titles = %v, want %v", titles, want)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("titles = %v, want %v", titles, want)
		}
	}
}

func TestUpdateRefreshesUpdatedAt(t *testing.T) {
	repo, _ := newTestRepo()
	ctx := context.Background()

	item, err := repo.Create(ctx, "alice", map[string]any{"title": "a"})
	if err != nil {
		t.Fatal(err)
	}
	before := item.Str("updated_at")

	updated, err := repo.Update(ctx, "alice", item.Str("task_id"), map[string]any{"status": "done"})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Str("updated_at") <= before {
		t.Fatalf("updated_at %q not advanced past %q", updated.Str("updated_at"), before)
	}
}

func TestUpdateRemovesDueDate(t *testing.T) {
	repo, _ := newTestRepo()
	ctx := context.Background()

	item, err := repo.Create(ctx, "alice", map[string]any{"title": "a", "due_date": "2026-06-01T00:00:00Z"})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := repo.Update(ctx, "alice", item.Str("task_id"), map[string]any{"due_date": ""})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := updated["due_date"]; ok {
		t.Fatalf("due_date still present after removal: %v", updated)
	}
}

func TestUpdateMissingTaskIsNotFound(t *testing.T) {
	repo, _ := newTestRepo()

	_, err := repo.Update(context.Background(), "alice", "no-such-id", map[string]any{"status": "done"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestUpdateNoFieldsRejected(t *testing.T) {
	repo, _ := newTestRepo()
	ctx := context.Background()

	item, err := repo.Create(ctx, "alice", map[string]any{"title": "a"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = repo.Update(ctx, "alice", item.Str("task_id"), map[string]any{"bogus": 1})
	if !errors.Is(err, ErrNoFields) {
		t.Fatalf("got %v, want ErrNoFields", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	repo, _ := newTestRepo()
	ctx := context.Background()

	item, err := repo.Create(ctx, "alice", map[string]any{"title": "a"})
	if err != nil {
		t.Fatal(err)
	}
	id := item.Str("task_id")

	if err := repo.Delete(ctx, "alice", id); err != nil {
		t.Fatal(err)
	}
	if err := repo.Delete(ctx, "alice", id); err != nil {
		t.Fatalf("second delete errored: %v", err)
	}

	items, err := repo.List(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Fatalf("task still listed after delete: %v", items)
	}
}

func TestBulkApplySiblingsSurviveFailure(t *testing.T) {
	repo, _ := newTestRepo()
	ctx := context.Background()

	a, _ := repo.Create(ctx, "alice", map[string]any{"title": "a"})
	c, _ := repo.Create(ctx, "alice", map[string]any{"title": "c"})

	ops := []BulkOp{
		{ID: a.Str("task_id"), Action: "status", Payload: json.RawMessage(`"done"`)},
		{ID: "ghost", Action: "patch", Payload: json.RawMessage(`{"title":"nope"}`)},
		{ID: c.Str("task_id"), Action: "delete"},
	}

	res, err := repo.BulkApply(ctx, "alice", ops)
	if err != nil {
		t.Fatal(err)
	}
	if res.OK {
		t.Fatal("OK = true despite a failed op")
	}
	if len(res.Results) != 2 || len(res.Errors) != 1 {
		t.Fatalf("results=%d errors=%d, want 2/1", len(res.Results), len(res.Errors))
	}
	if e := res.Errors[0]; e.Index != 1 || e.ID != "ghost" || e.Action != "patch" {
		t.Fatalf("error record = %+v", e)
	}

	// 1st and 3rd ops' effects are visible
	items, err := repo.List(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %v, want only task a", items)
	}
	if items[0].Str("status") != "done" {
		t.Fatalf("status shorthand not applied: %v", items[0])
	}
}

func TestBulkApplyValidation(t *testing.T) {
	repo, _ := newTestRepo()
	ctx := context.Background()

	t.Run("over the op cap", func(t *testing.T) {
		ops := make([]BulkOp, MaxBulkOps+1)
		for i := range ops {
			ops[i] = BulkOp{ID: "x", Action: "delete"}
		}
		_, err := repo.BulkApply(ctx, "alice", ops)
		if !errors.Is(err, ErrTooManyOps) {
			t.Fatalf("got %v, want ErrTooManyOps", err)
		}
	})

	t.Run("per-op failures recorded", func(t *testing.T) {
		item, _ := repo.Create(ctx, "alice", map[string]any{"title": "a"})
		ops := []BulkOp{
			{ID: "", Action: "delete"},
			{ID: item.Str("task_id"), Action: "archive"},
			{ID: item.Str("task_id"), Action: "patch", Payload: json.RawMessage(`{}`)},
			{ID: item.Str("task_id"), Action: "status", Payload: json.RawMessage(`{"not":"a string"}`)},
		}
		res, err := repo.BulkApply(ctx, "alice", ops)
		if err != nil {
			t.Fatal(err)
		}
		if res.OK || len(res.Errors) != 4 || len(res.Results) != 0 {
			t.Fatalf("res = %+v", res)
		}
	})
}
