package store

import (
	"sync"
)

// ReadStore keeps read models in memory, grouped by collection. It backs the
// dynamo and memory deployments, where read models are rebuilt on boot.
type ReadStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]any
}

func NewReadStore() *ReadStore {
	return &ReadStore{
		collections: make(map[string]map[string]any),
	}
}

func (rs *ReadStore) Set(collection, id string, data any) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	c, ok := rs.collections[collection]
	if !ok {
		c = make(map[string]any)
		rs.collections[collection] = c
	}
	c[id] = data
	return nil
}

func (rs *ReadStore) Get(collection, id string) (any, bool, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	data, ok := rs.collections[collection][id]
	return data, ok, nil
}

func (rs *ReadStore) GetAll(collection string) ([]any, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	c := rs.collections[collection]
	if len(c) == 0 {
		return nil, nil
	}
	items := make([]any, 0, len(c))
	for _, item := range c {
		items = append(items, item)
	}
	return items, nil
}

func (rs *ReadStore) Delete(collection, id string) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	delete(rs.collections[collection], id)
	return nil
}

// Update applies fn to an existing model under the write lock. Reports false
// when the model does not exist; fn is not called then.
func (rs *ReadStore) Update(collection, id string, updateFn func(current any) any) (bool, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	current, ok := rs.collections[collection][id]
	if !ok {
		return false, nil
	}
	rs.collections[collection][id] = updateFn(current)
	return true, nil
}
