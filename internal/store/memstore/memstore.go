// Package memstore is an in-process store backend. It keeps items in memory
// and evaluates filters in Go; it backs tests and the "memory" provider.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"cms-graphql/internal/dbschema"
	"cms-graphql/internal/schema"
	"cms-graphql/internal/store"
)

// Store holds every model's items.
type Store struct {
	schema *dbschema.Schema

	mu        sync.RWMutex
	items     map[string][]schema.Item
	junctions map[string][]pair
}

type pair struct {
	a, b any
}

// New creates an empty store for s.
func New(s *dbschema.Schema) *Store {
	st := &Store{
		schema:    s,
		items:     make(map[string][]schema.Item, len(s.Models)),
		junctions: make(map[string][]pair, len(s.Junctions)),
	}
	return st
}

// Model implements store.Client.
func (s *Store) Model(listKey string) (store.Model, error) {
	m, ok := s.schema.Model(listKey)
	if !ok {
		return nil, store.UnknownModel(listKey)
	}
	return &model{st: s, m: m}, nil
}

// Provider implements store.Client.
func (s *Store) Provider() store.Provider {
	return store.Provider{Name: store.ProviderMemory, ConcurrentWrites: true}
}

// Close implements store.Client.
func (s *Store) Close() error { return nil }

type model struct {
	st *Store
	m  *dbschema.Model
}

func (md *model) FindUnique(ctx context.Context, unique map[string]any) (schema.Item, error) {
	return md.FindFirst(ctx, store.UniqueFilter(unique))
}

func (md *model) FindFirst(ctx context.Context, where store.Filter) (schema.Item, error) {
	take := 1
	items, err := md.FindMany(ctx, store.FindArgs{Where: where, Take: &take})
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0], nil
}

func (md *model) FindMany(ctx context.Context, args store.FindArgs) ([]schema.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	md.st.mu.RLock()
	defer md.st.mu.RUnlock()

	matched, err := md.st.filter(md.m, args.Where)
	if err != nil {
		return nil, err
	}
	if err := sortItems(md.m, matched, args.OrderBy); err != nil {
		return nil, err
	}
	if args.Skip > 0 {
		if args.Skip >= len(matched) {
			matched = nil
		} else {
			matched = matched[args.Skip:]
		}
	}
	if args.Take != nil && *args.Take < len(matched) {
		matched = matched[:*args.Take]
	}
	out := make([]schema.Item, len(matched))
	for i, item := range matched {
		out[i] = clone(item)
	}
	return out, nil
}

func (md *model) Count(ctx context.Context, where store.Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	md.st.mu.RLock()
	defer md.st.mu.RUnlock()
	matched, err := md.st.filter(md.m, where)
	return len(matched), err
}

func (md *model) Create(ctx context.Context, data store.Data) (schema.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	md.st.mu.Lock()
	defer md.st.mu.Unlock()

	item := schema.Item{}
	for _, c := range md.m.Columns {
		item[c.Name] = nil
	}
	if data[dbschema.IDColumn] == nil {
		withID := make(store.Data, len(data)+1)
		for k, v := range data {
			withID[k] = v
		}
		withID[dbschema.IDColumn] = uuid.NewString()
		data = withID
	}
	if err := md.st.write(md.m, item, data, true); err != nil {
		return nil, err
	}
	return clone(item), nil
}

func (md *model) Update(ctx context.Context, id any, data store.Data) (schema.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	md.st.mu.Lock()
	defer md.st.mu.Unlock()

	item := md.st.byID(md.m.Name, id)
	if item == nil {
		return nil, store.ErrNotFound
	}
	if err := md.st.write(md.m, item, data, false); err != nil {
		return nil, err
	}
	return clone(item), nil
}

func (md *model) Delete(ctx context.Context, id any) (schema.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	md.st.mu.Lock()
	defer md.st.mu.Unlock()

	items := md.st.items[md.m.Name]
	idx := -1
	for i, item := range items {
		if store.Equal(item[dbschema.IDColumn], id) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, store.ErrNotFound
	}
	deleted := items[idx]
	md.st.items[md.m.Name] = append(items[:idx:idx], items[idx+1:]...)

	// Foreign keys pointing at the item are cleared and join rows removed.
	for _, other := range md.st.schema.Models {
		for _, c := range other.Columns {
			if c.References != md.m.Name {
				continue
			}
			for _, item := range md.st.items[other.Name] {
				if store.Equal(item[c.Name], id) {
					item[c.Name] = nil
				}
			}
		}
	}
	for _, r := range md.m.Relations {
		if r.Junction != nil {
			md.st.removePairs(r.Junction, id, nil)
		}
	}
	return clone(deleted), nil
}

func (s *Store) byID(modelName string, id any) schema.Item {
	for _, item := range s.items[modelName] {
		if store.Equal(item[dbschema.IDColumn], id) {
			return item
		}
	}
	return nil
}

// write applies data to item, inserting it when create is set. Every check
// runs before the first mutation so a failed write leaves the store as it
// was.
func (s *Store) write(m *dbschema.Model, item schema.Item, data store.Data, create bool) error {
	next := clone(item)
	relations := map[*dbschema.Relation]any{}
	for key, value := range data {
		if r, ok := m.Relation(key); ok {
			relations[r] = value
			continue
		}
		if _, ok := m.Column(key); !ok {
			return fmt.Errorf("%s has no column %q", m.Name, key)
		}
		next[key] = value
	}
	for _, c := range m.Columns {
		if !c.Nullable() && next[c.Name] == nil {
			return fmt.Errorf("null value in column %q of %s violates not-null constraint", c.Name, m.Name)
		}
		if c.Unique && next[c.Name] != nil {
			for _, other := range s.items[m.Name] {
				if !store.Equal(other[dbschema.IDColumn], next[dbschema.IDColumn]) && store.Equal(other[c.Name], next[c.Name]) {
					return fmt.Errorf("Unique constraint failed on the fields: (`%s`)", c.Name)
				}
			}
		}
	}
	if err := s.checkRelations(relations); err != nil {
		return err
	}

	for k, v := range next {
		item[k] = v
	}
	if create {
		s.items[m.Name] = append(s.items[m.Name], item)
	}
	id := item[dbschema.IDColumn]
	rels := make([]*dbschema.Relation, 0, len(relations))
	for r := range relations {
		rels = append(rels, r)
	}
	sort.Slice(rels, func(i, j int) bool { return rels[i].Field < rels[j].Field })
	for _, r := range rels {
		s.relate(m, item, id, r, relations[r])
	}
	return nil
}

func (s *Store) checkRelations(relations map[*dbschema.Relation]any) error {
	for r, value := range relations {
		ids, err := store.ConnectIDs(r.Field, value)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if s.byID(r.Target, id) == nil {
				return fmt.Errorf("connect %s %v: %w", r.Target, id, store.ErrNotFound)
			}
		}
	}
	return nil
}

func (s *Store) relate(m *dbschema.Model, item schema.Item, id any, r *dbschema.Relation, value any) {
	switch w := value.(type) {
	case store.RelateOne:
		switch {
		case r.ForeignKey != "":
			if w.Disconnect {
				item[r.ForeignKey] = nil
			}
			if w.Connect != nil {
				if col, _ := m.Column(r.ForeignKey); col != nil && col.Unique {
					for _, other := range s.items[m.Name] {
						if store.Equal(other[r.ForeignKey], w.Connect) {
							other[r.ForeignKey] = nil
						}
					}
				}
				item[r.ForeignKey] = w.Connect
			}
		case r.TargetForeignKey != "":
			if w.Disconnect || w.Connect != nil {
				s.clearTargets(r, id)
			}
			if w.Connect != nil {
				s.byID(r.Target, w.Connect)[r.TargetForeignKey] = id
			}
		}
	case store.RelateMany:
		switch {
		case r.TargetForeignKey != "":
			if w.SetGiven {
				s.clearTargets(r, id)
			}
			for _, target := range w.Disconnect {
				if t := s.byID(r.Target, target); t != nil && store.Equal(t[r.TargetForeignKey], id) {
					t[r.TargetForeignKey] = nil
				}
			}
			for _, target := range append(append([]any{}, w.Set...), w.Connect...) {
				s.byID(r.Target, target)[r.TargetForeignKey] = id
			}
		case r.Junction != nil:
			if w.SetGiven {
				s.removePairs(r.Junction, id, nil)
			}
			for _, target := range w.Disconnect {
				s.removePairs(r.Junction, id, target)
			}
			for _, target := range append(append([]any{}, w.Set...), w.Connect...) {
				s.addPair(r.Junction, id, target)
			}
		}
	}
}

func (s *Store) clearTargets(r *dbschema.Relation, id any) {
	for _, t := range s.items[r.Target] {
		if store.Equal(t[r.TargetForeignKey], id) {
			t[r.TargetForeignKey] = nil
		}
	}
}

func orient(j *schema.Junction, self, other any) pair {
	if j.SelfColumn == "A" {
		return pair{a: self, b: other}
	}
	return pair{a: other, b: self}
}

func (s *Store) addPair(j *schema.Junction, self, other any) {
	p := orient(j, self, other)
	for _, existing := range s.junctions[j.Table] {
		if store.Equal(existing.a, p.a) && store.Equal(existing.b, p.b) {
			return
		}
	}
	s.junctions[j.Table] = append(s.junctions[j.Table], p)
}

// removePairs removes the join rows of self, limited to other when it is
// not nil.
func (s *Store) removePairs(j *schema.Junction, self, other any) {
	kept := s.junctions[j.Table][:0]
	for _, p := range s.junctions[j.Table] {
		selfV, otherV := p.a, p.b
		if j.SelfColumn != "A" {
			selfV, otherV = p.b, p.a
		}
		if store.Equal(selfV, self) && (other == nil || store.Equal(otherV, other)) {
			continue
		}
		kept = append(kept, p)
	}
	s.junctions[j.Table] = kept
}

// related returns the items on the other side of r for the item with id.
func (s *Store) related(r *dbschema.Relation, item schema.Item) []schema.Item {
	id := item[dbschema.IDColumn]
	switch {
	case r.ForeignKey != "":
		if target := s.byID(r.Target, item[r.ForeignKey]); target != nil {
			return []schema.Item{target}
		}
		return nil
	case r.TargetForeignKey != "":
		var out []schema.Item
		for _, t := range s.items[r.Target] {
			if store.Equal(t[r.TargetForeignKey], id) {
				out = append(out, t)
			}
		}
		return out
	case r.Junction != nil:
		var out []schema.Item
		for _, p := range s.junctions[r.Junction.Table] {
			selfV, otherV := p.a, p.b
			if r.Junction.SelfColumn != "A" {
				selfV, otherV = p.b, p.a
			}
			if store.Equal(selfV, id) {
				if t := s.byID(r.Target, otherV); t != nil {
					out = append(out, t)
				}
			}
		}
		return out
	}
	return nil
}

func clone(item schema.Item) schema.Item {
	out := make(schema.Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}
