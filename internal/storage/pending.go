// Package storage holds the request-scoped staging area for row mutations. Repositories
// apply staged mutations when Commit is called; the staging area is cleared at request end.
package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Mutation is a staged update of the row where Column = Value in Table.
type Mutation struct {
	Table  string
	Column string
	Value  string
	Set    map[string]any
}

// Key returns the staging key for the row.
func (m Mutation) Key() string {
	return Key(m.Table, m.Column, m.Value)
}

// Key builds the staging key "table:column:value".
func Key(table, column, value string) string {
	return table + ":" + column + ":" + value
}

// Applier writes staged mutations for one table. Apply returns the number of rows matched.
type Applier interface {
	Table() string
	Apply(ctx context.Context, m Mutation) (int64, error)
}

// Pending collects mutations until Commit. Safe for concurrent use.
type Pending struct {
	mu     sync.Mutex
	staged map[string]Mutation
}

// NewPending returns an empty staging area.
func NewPending() *Pending {
	return &Pending{staged: make(map[string]Mutation)}
}

// Stage records m. Staging the same row again merges the column sets, later values winning.
func (p *Pending) Stage(m Mutation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := m.Key()
	if prev, ok := p.staged[key]; ok {
		for col, v := range m.Set {
			prev.Set[col] = v
		}
		return
	}
	set := make(map[string]any, len(m.Set))
	for col, v := range m.Set {
		set[col] = v
	}
	m.Set = set
	p.staged[key] = m
}

// Commit flushes every staged mutation for a.Table() through a, in key order.
// Flushed mutations are removed even when they fail. It returns the total rows matched.
func (p *Pending) Commit(ctx context.Context, a Applier) (int64, error) {
	p.mu.Lock()
	var batch []Mutation
	for key, m := range p.staged {
		if m.Table == a.Table() {
			batch = append(batch, m)
			delete(p.staged, key)
		}
	}
	p.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool { return batch[i].Key() < batch[j].Key() })
	var total int64
	var errs []error
	for _, m := range batch {
		n, err := a.Apply(ctx, m)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		total += n
	}
	return total, errors.Join(errs...)
}

// Clear drops everything staged.
func (p *Pending) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.staged)
}

// Len returns the number of staged rows.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.staged)
}

type contextKey struct{ name string }

var pendingKey = contextKey{"pending"}

// WithPending returns a context carrying p.
func WithPending(ctx context.Context, p *Pending) context.Context {
	return context.WithValue(ctx, pendingKey, p)
}

// PendingFrom returns the request's staging area and true, or nil and false if none is attached.
func PendingFrom(ctx context.Context) (*Pending, bool) {
	p, ok := ctx.Value(pendingKey).(*Pending)
	return p, ok && p != nil
}
