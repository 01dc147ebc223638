package tasks

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"taskpad/internal/models"
	"taskpad/internal/store"

	"github.com/google/uuid"
)

// Repository orchestrates task CRUD against an ItemStore. All operations
// are scoped to one owner; the owner id arrives pre-resolved.
type Repository struct {
	store store.ItemStore

	// swappable in tests
	now   func() time.Time
	newID func() string
}

func NewRepository(st store.ItemStore) *Repository {
	return &Repository{
		store: st,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Create stores a new task and returns it. status defaults to open, sort
// seeds to creation-time millis so new tasks land at the end of the list.
// Optional fields absent from the payload are not stored at all.
func (r *Repository) Create(ctx context.Context, ownerID string, payload map[string]any) (models.Item, error) {
	now := r.now()

	item := models.Item{
		models.FieldOwnerID:   ownerID,
		models.FieldTaskID:    r.newID(),
		models.FieldTitle:     stringField(payload, models.FieldTitle),
		models.FieldStatus:    models.StatusOpen,
		models.FieldSort:      now.UnixMilli(),
		models.FieldUpdatedAt: models.ISO(now),
	}

	if s := stringField(payload, models.FieldStatus); s != "" {
		item[models.FieldStatus] = s
	}
	for _, name := range []string{models.FieldDueDate, models.FieldParentID, models.FieldDetails} {
		if s := stringField(payload, name); s != "" {
			item[name] = s
		}
	}

	if err := r.store.PutItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// List returns the owner's tasks ascending by sort. Items without a sort
// field go last.
func (r *Repository) List(ctx context.Context, ownerID string) ([]models.Item, error) {
	items, err := r.store.QueryByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		si, iok := sortValue(items[i])
		sj, jok := sortValue(items[j])
		if iok != jok {
			return iok
		}
		return si < sj
	})
	return items, nil
}

// Update applies a partial update. ErrNoFields when the payload carries
// nothing mutable, store.ErrNotFound when the task does not exist.
func (r *Repository) Update(ctx context.Context, ownerID, taskID string, payload map[string]any) (models.Item, error) {
	spec, err := BuildUpdateSpec(payload, r.now())
	if err != nil {
		return nil, err
	}

	key := models.Key{OwnerID: ownerID, TaskID: taskID}
	return r.store.UpdateItem(ctx, key, spec.Sets, spec.Removes)
}

// Delete removes a task. Idempotent; deleting an absent id is not an error.
func (r *Repository) Delete(ctx context.Context, ownerID, taskID string) error {
	return r.store.DeleteItem(ctx, models.Key{OwnerID: ownerID, TaskID: taskID})
}

// MarkOverdueNotified flips a task to overdue and stamps the sticky
// notification flag. Only the notifier calls this; the flag is not part of
// the client-mutable field set.
func (r *Repository) MarkOverdueNotified(ctx context.Context, ownerID, taskID string) (models.Item, error) {
	now := models.ISO(r.now())
	key := models.Key{OwnerID: ownerID, TaskID: taskID}
	sets := map[string]any{
		models.FieldStatus:            models.StatusOverdue,
		models.FieldOverdueNotifiedAt: now,
		models.FieldUpdatedAt:         now,
	}
	return r.store.UpdateItem(ctx, key, sets, nil)
}

func stringField(payload map[string]any, name string) string {
	s, _ := payload[name].(string)
	return s
}

func sortValue(it models.Item) (float64, bool) {
	switch v := it[models.FieldSort].(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}
