package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/example/marketplace-engine/internal/readmodel"
	_ "github.com/lib/pq"
)

// PostgresReadStore persists read models in a single JSONB table keyed by
// (collection, id). Rows are decoded back into their typed read models on
// the way out; a small per-process lock keeps read-modify-write Updates
// serial the way the in-memory store is.
type PostgresReadStore struct {
	db *sql.DB
	mu sync.Mutex
}

func NewPostgresReadStore(db *sql.DB) *PostgresReadStore {
	return &PostgresReadStore{db: db}
}

// EnsureSchema creates the read_models table if it does not exist
func (rs *PostgresReadStore) EnsureSchema(ctx context.Context) error {
	_, err := rs.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS read_models (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			data       JSONB NOT NULL,
			PRIMARY KEY (collection, id)
		)`)
	return err
}

// Set stores a read model
func (rs *PostgresReadStore) Set(collection, id string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = rs.db.Exec(
		`INSERT INTO read_models (collection, id, data)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (collection, id) DO UPDATE SET data = $3`,
		collection, id, jsonData,
	)
	return err
}

// Get retrieves a read model by id
func (rs *PostgresReadStore) Get(collection, id string) (any, bool, error) {
	var raw []byte
	err := rs.db.QueryRow(
		`SELECT data FROM read_models WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	model, err := decodeReadModel(collection, raw)
	if err != nil {
		return nil, false, err
	}
	return model, true, nil
}

// GetAll retrieves all items in a collection
func (rs *PostgresReadStore) GetAll(collection string) ([]any, error) {
	rows, err := rs.db.Query(
		`SELECT data FROM read_models WHERE collection = $1`,
		collection,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []any
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			continue
		}
		model, err := decodeReadModel(collection, raw)
		if err != nil {
			continue
		}
		items = append(items, model)
	}
	return items, rows.Err()
}

// Delete removes a read model
func (rs *PostgresReadStore) Delete(collection, id string) error {
	_, err := rs.db.Exec(
		`DELETE FROM read_models WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	return err
}

// Update modifies a read model using an update function
func (rs *PostgresReadStore) Update(collection, id string, updateFn func(current any) any) (bool, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	current, ok, err := rs.Get(collection, id)
	if err != nil || !ok {
		return false, err
	}
	if err := rs.Set(collection, id, updateFn(current)); err != nil {
		return false, err
	}
	return true, nil
}

// decodeReadModel unmarshals a stored row into its typed read model
func decodeReadModel(collection string, raw []byte) (any, error) {
	var model any
	switch collection {
	case readmodel.CollectionCarts:
		model = &readmodel.CartReadModel{}
	case readmodel.CollectionOrders:
		model = &readmodel.OrderReadModel{}
	case readmodel.CollectionReturns:
		model = &readmodel.ReturnRequestReadModel{}
	case readmodel.CollectionUsers:
		model = &readmodel.UserReadModel{}
	default:
		return nil, fmt.Errorf("unknown read model collection %q", collection)
	}
	if err := json.Unmarshal(raw, model); err != nil {
		return nil, err
	}
	return model, nil
}
