package gateway

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Gateway used by tests and by `serve --local`.
// It supports targeted failure injection per operation and table, and
// counts calls so tests can assert exactly one network round happened.
type Memory struct {
	mu       sync.Mutex
	tables   map[string]map[string]map[string]any
	failures map[string]error
	calls    map[string]int
}

// NewMemory creates an empty in-memory gateway.
func NewMemory() *Memory {
	return &Memory{
		tables:   make(map[string]map[string]map[string]any),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// FailWith makes every subsequent op ("insert", "update", "delete",
// "select") on the table return err until ClearFailure is called.
func (m *Memory) FailWith(op, table string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op+":"+table] = err
}

// ClearFailure removes an injected failure.
func (m *Memory) ClearFailure(op, table string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, op+":"+table)
}

// Calls returns how many times an op ran against a table.
func (m *Memory) Calls(op, table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op+":"+table]
}

// Get returns a stored document, or nil if absent.
func (m *Memory) Get(table, id string) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.tables[table][id]
	if !ok {
		return nil
	}
	return cloneDoc(doc)
}

// Put seeds a document directly, bypassing call counting. Test setup only.
func (m *Memory) Put(table string, doc map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, _ := doc["id"].(string)
	if m.tables[table] == nil {
		m.tables[table] = make(map[string]map[string]any)
	}
	m.tables[table][id] = cloneDoc(doc)
}

// Count returns the number of documents in a table.
func (m *Memory) Count(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[table])
}

func (m *Memory) check(op, table string) error {
	m.calls[op+":"+table]++
	if err := m.failures[op+":"+table]; err != nil {
		return err
	}
	return nil
}

// Insert implements Gateway with upsert semantics.
func (m *Memory) Insert(ctx context.Context, table string, doc map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("insert", table); err != nil {
		return err
	}

	id, _ := doc["id"].(string)
	if id == "" {
		return fmt.Errorf("insert into %s: document has no id", table)
	}
	if m.tables[table] == nil {
		m.tables[table] = make(map[string]map[string]any)
	}
	m.tables[table][id] = cloneDoc(doc)
	return nil
}

// Update implements Gateway.
func (m *Memory) Update(ctx context.Context, table, id string, partial map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("update", table); err != nil {
		return err
	}

	doc, ok := m.tables[table][id]
	if !ok {
		return fmt.Errorf("update record %s in %s: record not found", id, table)
	}
	for k, v := range partial {
		if k == "id" {
			continue
		}
		doc[k] = v
	}
	return nil
}

// Delete implements Gateway. Idempotent.
func (m *Memory) Delete(ctx context.Context, table, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("delete", table); err != nil {
		return err
	}

	delete(m.tables[table], id)
	return nil
}

// SelectAll implements Gateway.
func (m *Memory) SelectAll(ctx context.Context, table string) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check("select", table); err != nil {
		return nil, err
	}

	docs := make([]map[string]any, 0, len(m.tables[table]))
	for _, doc := range m.tables[table] {
		docs = append(docs, cloneDoc(doc))
	}
	return docs, nil
}

func cloneDoc(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
