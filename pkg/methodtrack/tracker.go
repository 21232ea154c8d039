// Package methodtrack assigns persistent identifiers to methods across
// consecutive release snapshots.
package methodtrack

import (
	"github.com/google/uuid"

	"github.com/Sumatoshi-tech/faultline/pkg/callable"
)

// Located is a declaration found at a file path.
type Located struct {
	Path string
	callable.Declaration
}

// Key returns the path::signature identity of the declaration.
func (l Located) Key() string {
	return callable.Key(l.Path, l.Signature)
}

// Method is a tracked method of one release.
type Method struct {
	ID   string
	Path string
	callable.Declaration
}

// Key returns the path::signature identity of the method.
func (m Method) Key() string {
	return callable.Key(m.Path, m.Signature)
}

// Name returns the dataset label of the method: path, slash, signature.
func (m Method) Name() string {
	return m.Path + "/" + m.Signature
}

// Snapshot maps method keys of one release to their identifiers. It is never
// modified after Track returns it.
type Snapshot struct {
	ids map[string]string
}

// Len returns the number of methods in the snapshot.
func (s Snapshot) Len() int {
	return len(s.ids)
}

// ID returns the identifier recorded for a key.
func (s Snapshot) ID(key string) (string, bool) {
	id, ok := s.ids[key]

	return id, ok
}

// Tracker mints identifiers for methods it has not seen in the previous
// snapshot.
type Tracker struct {
	mint func() string
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMinter replaces the random UUID generator.
func WithMinter(mint func() string) Option {
	return func(t *Tracker) {
		t.mint = mint
	}
}

// New creates a Tracker that mints random UUIDs.
func New(opts ...Option) *Tracker {
	t := &Tracker{mint: func() string { return uuid.NewString() }}
	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Track gives each declaration the identifier its key had in prev, or a fresh
// one, and returns the methods together with the snapshot for the next
// release. Continuity reaches back exactly one snapshot. A key declared twice
// in the same release keeps a single identifier.
func (t *Tracker) Track(prev Snapshot, decls []Located) ([]Method, Snapshot) {
	next := Snapshot{ids: make(map[string]string, len(decls))}
	methods := make([]Method, 0, len(decls))

	for _, d := range decls {
		key := d.Key()

		id, ok := next.ids[key]
		if !ok {
			id, ok = prev.ids[key]
			if !ok {
				id = t.mint()
			}

			next.ids[key] = id
		}

		methods = append(methods, Method{ID: id, Path: d.Path, Declaration: d.Declaration})
	}

	return methods, next
}
