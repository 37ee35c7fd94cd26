package mock

import (
	"context"
	"sync"

	"github.com/poiesic/convoflow/index"
)

// MockIndex is a test double for index.Index.
// It records every upserted row keyed by id (so repeated upserts of the same
// id overwrite, mirroring the idempotency contract) and allows error
// injection via function fields.
type MockIndex struct {
	// UpsertFunc is consulted before the default recording behavior if set.
	UpsertFunc func(ctx context.Context, rows []index.Row) error

	// SearchFunc is called by SimilaritySearch if set.
	SearchFunc func(ctx context.Context, query string, k int) ([]index.Match, error)

	mu      sync.Mutex
	rows    map[string]index.Row
	batches [][]index.Row
	closed  bool
}

// NewMockIndex creates an empty mock index.
func NewMockIndex() *MockIndex {
	return &MockIndex{rows: make(map[string]index.Row)}
}

// Upsert records the batch, overwriting rows with previously seen ids.
func (m *MockIndex) Upsert(ctx context.Context, rows []index.Row) error {
	if m.UpsertFunc != nil {
		if err := m.UpsertFunc(ctx, rows); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	batch := make([]index.Row, len(rows))
	copy(batch, rows)
	m.batches = append(m.batches, batch)
	for _, row := range rows {
		m.rows[row.ID] = row
	}
	return nil
}

// SimilaritySearch returns nothing unless SearchFunc is injected.
func (m *MockIndex) SimilaritySearch(ctx context.Context, query string, k int) ([]index.Match, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, k)
	}
	return nil, nil
}

// Close marks the index closed.
func (m *MockIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Row returns the stored row for an id, if any.
func (m *MockIndex) Row(id string) (index.Row, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	return row, ok
}

// Rows returns the number of distinct stored rows.
func (m *MockIndex) Rows() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// Batches returns a copy of every batch passed to Upsert, in order.
func (m *MockIndex) Batches() [][]index.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]index.Row, len(m.batches))
	copy(out, m.batches)
	return out
}

// Closed reports whether Close was called.
func (m *MockIndex) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
