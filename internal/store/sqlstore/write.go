package sqlstore

import (
	"context"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"cms-graphql/internal/dbexec"
	"cms-graphql/internal/dbschema"
	"cms-graphql/internal/schema"
	"cms-graphql/internal/store"
)

func (md *model) Create(ctx context.Context, data store.Data) (schema.Item, error) {
	columns, relations, err := md.m.Split(data)
	if err != nil {
		return nil, err
	}
	if columns[dbschema.IDColumn] == nil {
		columns[dbschema.IDColumn] = uuid.NewString()
	}
	id := columns[dbschema.IDColumn]

	var created schema.Item
	err = md.st.exec.InTx(ctx, func(q dbexec.QueryExecutor) error {
		if err := md.st.checkConnects(ctx, q, relations); err != nil {
			return err
		}
		if err := md.st.ownedKeys(ctx, q, md.m, id, relations, columns); err != nil {
			return err
		}
		keys := sortedKeys(columns)
		quoted := make([]string, len(keys))
		values := make([]any, len(keys))
		for i, k := range keys {
			quoted[i] = md.st.dialect.QuoteIdent(k)
			values[i] = columns[k]
		}
		insert := sq.Insert(md.st.dialect.QuoteIdent(md.m.Name)).
			Columns(quoted...).
			Values(values...).
			PlaceholderFormat(md.st.dialect.Placeholder())
		if _, err := md.st.execute(ctx, q, insert); err != nil {
			return err
		}
		if err := md.st.relateTargets(ctx, q, id, relations); err != nil {
			return err
		}
		created, err = md.byID(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (md *model) Update(ctx context.Context, id any, data store.Data) (schema.Item, error) {
	columns, relations, err := md.m.Split(data)
	if err != nil {
		return nil, err
	}

	var updated schema.Item
	err = md.st.exec.InTx(ctx, func(q dbexec.QueryExecutor) error {
		existing, err := md.byID(ctx, q, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return store.ErrNotFound
		}
		if err := md.st.checkConnects(ctx, q, relations); err != nil {
			return err
		}
		if err := md.st.ownedKeys(ctx, q, md.m, id, relations, columns); err != nil {
			return err
		}
		if len(columns) > 0 {
			update := sq.Update(md.st.dialect.QuoteIdent(md.m.Name)).
				Where(sq.Eq{md.st.dialect.QuoteIdent(dbschema.IDColumn): id}).
				PlaceholderFormat(md.st.dialect.Placeholder())
			for _, k := range sortedKeys(columns) {
				update = update.Set(md.st.dialect.QuoteIdent(k), columns[k])
			}
			if _, err := md.st.execute(ctx, q, update); err != nil {
				return err
			}
		}
		if err := md.st.relateTargets(ctx, q, id, relations); err != nil {
			return err
		}
		updated, err = md.byID(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (md *model) Delete(ctx context.Context, id any) (schema.Item, error) {
	var deleted schema.Item
	err := md.st.exec.InTx(ctx, func(q dbexec.QueryExecutor) error {
		existing, err := md.byID(ctx, q, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return store.ErrNotFound
		}
		s := md.st
		qi := s.dialect.QuoteIdent
		// Clear foreign keys pointing at the item, then its join rows.
		for _, other := range s.schema.Models {
			for _, c := range other.Columns {
				if c.References != md.m.Name {
					continue
				}
				unset := sq.Update(qi(other.Name)).
					Set(qi(c.Name), nil).
					Where(sq.Eq{qi(c.Name): id}).
					PlaceholderFormat(s.dialect.Placeholder())
				if _, err := s.execute(ctx, q, unset); err != nil {
					return err
				}
			}
		}
		for _, r := range md.m.Relations {
			if r.Junction == nil {
				continue
			}
			del := sq.Delete(qi(r.Junction.Table)).
				Where(sq.Eq{qi(r.Junction.SelfColumn): id}).
				PlaceholderFormat(s.dialect.Placeholder())
			if _, err := s.execute(ctx, q, del); err != nil {
				return err
			}
		}
		del := sq.Delete(qi(md.m.Name)).
			Where(sq.Eq{qi(dbschema.IDColumn): id}).
			PlaceholderFormat(s.dialect.Placeholder())
		if _, err := s.execute(ctx, q, del); err != nil {
			return err
		}
		deleted = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (md *model) byID(ctx context.Context, q dbexec.QueryExecutor, id any) (schema.Item, error) {
	take := 1
	b, err := md.st.selectItems(md.m, store.FindArgs{Where: store.IDFilter(id), Take: &take})
	if err != nil {
		return nil, err
	}
	items, err := md.st.query(ctx, q, md.m, b)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0], nil
}

// checkConnects verifies that every item a write connects to exists.
func (s *Store) checkConnects(ctx context.Context, q dbexec.QueryExecutor, relations []dbschema.RelationWrite) error {
	for _, rw := range relations {
		ids, err := store.ConnectIDs(rw.Relation.Field, rw.Value)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			continue
		}
		qi := s.dialect.QuoteIdent
		b := sq.Select(qi(dbschema.IDColumn)).
			From(qi(rw.Relation.Target)).
			Where(sq.Eq{qi(dbschema.IDColumn): ids}).
			PlaceholderFormat(s.dialect.Placeholder())
		found, err := s.values(ctx, q, b)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if !containsValue(found, id) {
				return fmt.Errorf("connect %s %v: %w", rw.Relation.Target, id, store.ErrNotFound)
			}
		}
	}
	return nil
}

// ownedKeys folds writes to relations whose key lives on this model into
// columns. A unique key is first released by any other row holding it.
func (s *Store) ownedKeys(ctx context.Context, q dbexec.QueryExecutor, m *dbschema.Model, id any, relations []dbschema.RelationWrite, columns map[string]any) error {
	qi := s.dialect.QuoteIdent
	for _, rw := range relations {
		w, ok := rw.Value.(store.RelateOne)
		if !ok || rw.Relation.ForeignKey == "" {
			continue
		}
		if w.Disconnect {
			columns[rw.Relation.ForeignKey] = nil
		}
		if w.Connect == nil {
			continue
		}
		if col, _ := m.Column(rw.Relation.ForeignKey); col != nil && col.Unique {
			release := sq.Update(qi(m.Name)).
				Set(qi(rw.Relation.ForeignKey), nil).
				Where(sq.Eq{qi(rw.Relation.ForeignKey): w.Connect}).
				Where(sq.NotEq{qi(dbschema.IDColumn): id}).
				PlaceholderFormat(s.dialect.Placeholder())
			if _, err := s.execute(ctx, q, release); err != nil {
				return err
			}
		}
		columns[rw.Relation.ForeignKey] = w.Connect
	}
	return nil
}

// relateTargets applies writes to relations keyed on the target model or a
// join table. Within one relation set runs first, then disconnect, then
// connect.
func (s *Store) relateTargets(ctx context.Context, q dbexec.QueryExecutor, id any, relations []dbschema.RelationWrite) error {
	qi := s.dialect.QuoteIdent
	ph := s.dialect.Placeholder()
	for _, rw := range relations {
		r := rw.Relation
		switch w := rw.Value.(type) {
		case store.RelateOne:
			if r.TargetForeignKey == "" {
				continue
			}
			if w.Disconnect || w.Connect != nil {
				unset := sq.Update(qi(r.Target)).
					Set(qi(r.TargetForeignKey), nil).
					Where(sq.Eq{qi(r.TargetForeignKey): id}).
					PlaceholderFormat(ph)
				if _, err := s.execute(ctx, q, unset); err != nil {
					return err
				}
			}
			if w.Connect != nil {
				set := sq.Update(qi(r.Target)).
					Set(qi(r.TargetForeignKey), id).
					Where(sq.Eq{qi(dbschema.IDColumn): w.Connect}).
					PlaceholderFormat(ph)
				if _, err := s.execute(ctx, q, set); err != nil {
					return err
				}
			}
		case store.RelateMany:
			connect := append(append([]any{}, w.Set...), w.Connect...)
			switch {
			case r.TargetForeignKey != "":
				if w.SetGiven {
					unset := sq.Update(qi(r.Target)).
						Set(qi(r.TargetForeignKey), nil).
						Where(sq.Eq{qi(r.TargetForeignKey): id}).
						PlaceholderFormat(ph)
					if _, err := s.execute(ctx, q, unset); err != nil {
						return err
					}
				}
				if len(w.Disconnect) > 0 {
					unset := sq.Update(qi(r.Target)).
						Set(qi(r.TargetForeignKey), nil).
						Where(sq.Eq{qi(r.TargetForeignKey): id, qi(dbschema.IDColumn): w.Disconnect}).
						PlaceholderFormat(ph)
					if _, err := s.execute(ctx, q, unset); err != nil {
						return err
					}
				}
				if len(connect) > 0 {
					set := sq.Update(qi(r.Target)).
						Set(qi(r.TargetForeignKey), id).
						Where(sq.Eq{qi(dbschema.IDColumn): connect}).
						PlaceholderFormat(ph)
					if _, err := s.execute(ctx, q, set); err != nil {
						return err
					}
				}
			case r.Junction != nil:
				if err := s.relateJunction(ctx, q, r.Junction, id, w, connect); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *Store) relateJunction(ctx context.Context, q dbexec.QueryExecutor, j *schema.Junction, id any, w store.RelateMany, connect []any) error {
	qi := s.dialect.QuoteIdent
	ph := s.dialect.Placeholder()
	self, other := qi(j.SelfColumn), qi(j.OtherColumn)
	if w.SetGiven {
		del := sq.Delete(qi(j.Table)).Where(sq.Eq{self: id}).PlaceholderFormat(ph)
		if _, err := s.execute(ctx, q, del); err != nil {
			return err
		}
	}
	if len(w.Disconnect) > 0 {
		del := sq.Delete(qi(j.Table)).Where(sq.Eq{self: id, other: w.Disconnect}).PlaceholderFormat(ph)
		if _, err := s.execute(ctx, q, del); err != nil {
			return err
		}
	}
	if len(connect) == 0 {
		return nil
	}
	b := sq.Select(other).From(qi(j.Table)).Where(sq.Eq{self: id, other: connect}).PlaceholderFormat(ph)
	existing, err := s.values(ctx, q, b)
	if err != nil {
		return err
	}
	insert := sq.Insert(qi(j.Table)).Columns(self, other).PlaceholderFormat(ph)
	pending := 0
	for _, target := range connect {
		if containsValue(existing, target) {
			continue
		}
		existing = append(existing, target)
		insert = insert.Values(id, target)
		pending++
	}
	if pending == 0 {
		return nil
	}
	_, err = s.execute(ctx, q, insert)
	return err
}

// values runs a single-column query.
func (s *Store) values(ctx context.Context, q dbexec.QueryExecutor, b sq.SelectBuilder) ([]any, error) {
	query, args, err := s.statement(b)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var out []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, classify(err)
		}
		if raw, ok := v.([]byte); ok {
			v = string(raw)
		}
		out = append(out, v)
	}
	return out, classify(rows.Err())
}

func containsValue(values []any, v any) bool {
	for _, candidate := range values {
		if store.Equal(candidate, v) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
