package store

import (
	"context"
	"fmt"
	"sync"

	"taskpad/internal/models"
)

// MemoryStore is an in-process ItemStore with DynamoDB's observable
// semantics: sparse items, removes delete the attribute, updating a
// missing key fails, deleting one does not.
type MemoryStore struct {
	mu     sync.Mutex
	owners map[string]map[string]models.Item
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{owners: map[string]map[string]models.Item{}}
}

func (s *MemoryStore) QueryByOwner(_ context.Context, ownerID string) ([]models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []models.Item
	for _, it := range s.owners[ownerID] {
		items = append(items, cloneItem(it))
	}
	return items, nil
}

func (s *MemoryStore) PutItem(_ context.Context, item models.Item) error {
	key := item.Key()
	if key.OwnerID == "" || key.TaskID == "" {
		return fmt.Errorf("item is missing its key")
	}

	stored := make(models.Item, len(item))
	for name, v := range item {
		if v == nil {
			return fmt.Errorf("field %q: null values are not storable", name)
		}
		stored[name] = models.NormalizeValue(v)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.owners[key.OwnerID] == nil {
		s.owners[key.OwnerID] = map[string]models.Item{}
	}
	s.owners[key.OwnerID][key.TaskID] = stored
	return nil
}

func (s *MemoryStore) UpdateItem(_ context.Context, key models.Key, sets map[string]any, removes []string) (models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.owners[key.OwnerID][key.TaskID]
	if !ok {
		return nil, ErrNotFound
	}

	for name, v := range sets {
		if v == nil {
			return nil, fmt.Errorf("field %q: null values are not storable", name)
		}
		it[name] = models.NormalizeValue(v)
	}
	for _, name := range removes {
		delete(it, name)
	}
	return cloneItem(it), nil
}

func (s *MemoryStore) DeleteItem(_ context.Context, key models.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.owners[key.OwnerID], key.TaskID)
	return nil
}

func cloneItem(it models.Item) models.Item {
	out := make(models.Item, len(it))
	for name, v := range it {
		out[name] = v
	}
	return out
}
