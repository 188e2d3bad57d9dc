package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"cms-graphql/internal/dbschema"
	"cms-graphql/internal/schema"
	"cms-graphql/internal/store"
)

// Writes are not transactional: every check runs before the first write,
// leaving the unique indexes as the only failure after mutation starts.

func (md *model) Create(ctx context.Context, data store.Data) (schema.Item, error) {
	columns, relations, err := md.m.Split(data)
	if err != nil {
		return nil, err
	}
	if columns[dbschema.IDColumn] == nil {
		columns[dbschema.IDColumn] = newID()
	}
	id := columns[dbschema.IDColumn]
	if err := md.st.checkConnects(ctx, relations); err != nil {
		return nil, err
	}
	if err := md.st.ownedKeys(ctx, md.m, id, relations, columns); err != nil {
		return nil, err
	}
	if _, err := md.collection().InsertOne(ctx, toDocument(columns)); err != nil {
		return nil, classify(err)
	}
	if err := md.st.relateTargets(ctx, id, relations); err != nil {
		return nil, err
	}
	return md.byID(ctx, id)
}

func (md *model) Update(ctx context.Context, id any, data store.Data) (schema.Item, error) {
	columns, relations, err := md.m.Split(data)
	if err != nil {
		return nil, err
	}
	delete(columns, dbschema.IDColumn)
	existing, err := md.byID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, store.ErrNotFound
	}
	if err := md.st.checkConnects(ctx, relations); err != nil {
		return nil, err
	}
	if err := md.st.ownedKeys(ctx, md.m, id, relations, columns); err != nil {
		return nil, err
	}
	if update := updateDocument(columns); len(update) > 0 {
		if _, err := md.collection().UpdateOne(ctx, byID(id), update); err != nil {
			return nil, classify(err)
		}
	}
	if err := md.st.relateTargets(ctx, id, relations); err != nil {
		return nil, err
	}
	return md.byID(ctx, id)
}

func (md *model) Delete(ctx context.Context, id any) (schema.Item, error) {
	existing, err := md.byID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, store.ErrNotFound
	}
	db := md.st.db
	for _, other := range md.st.schema.Models {
		for _, c := range other.Columns {
			if c.References != md.m.Name {
				continue
			}
			if _, err := db.Collection(other.Name).UpdateMany(ctx, eq(c.Name, id), unset(c.Name)); err != nil {
				return nil, classify(err)
			}
		}
	}
	for _, r := range md.m.Relations {
		if r.Junction == nil {
			continue
		}
		if _, err := db.Collection(r.Junction.Table).DeleteMany(ctx, eq(r.Junction.SelfColumn, id)); err != nil {
			return nil, classify(err)
		}
	}
	if _, err := md.collection().DeleteOne(ctx, byID(id)); err != nil {
		return nil, classify(err)
	}
	return existing, nil
}

func byID(id any) bson.D { return eq(idField, id) }

func eq(field string, v any) bson.D { return bson.D{{Key: field, Value: v}} }

func in(field string, ids []any) bson.D {
	return bson.D{{Key: field, Value: bson.D{{Key: "$in", Value: ids}}}}
}

func set(field string, v any) bson.D {
	return bson.D{{Key: "$set", Value: bson.D{{Key: field, Value: v}}}}
}

func unset(field string) bson.D {
	return bson.D{{Key: "$unset", Value: bson.D{{Key: field, Value: ""}}}}
}

func (s *Store) checkConnects(ctx context.Context, relations []dbschema.RelationWrite) error {
	for _, rw := range relations {
		ids, err := store.ConnectIDs(rw.Relation.Field, rw.Value)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			continue
		}
		found, err := s.lookup.distinct(ctx, rw.Relation.Target, idField, in(idField, ids))
		if err != nil {
			return err
		}
		for _, id := range ids {
			if !contains(found, id) {
				return fmt.Errorf("connect %s %v: %w", rw.Relation.Target, id, store.ErrNotFound)
			}
		}
	}
	return nil
}

func (s *Store) ownedKeys(ctx context.Context, m *dbschema.Model, id any, relations []dbschema.RelationWrite, columns map[string]any) error {
	for _, rw := range relations {
		w, ok := rw.Value.(store.RelateOne)
		fk := rw.Relation.ForeignKey
		if !ok || fk == "" {
			continue
		}
		if w.Disconnect {
			columns[fk] = nil
		}
		if w.Connect == nil {
			continue
		}
		if col, _ := m.Column(fk); col != nil && col.Unique {
			holders := bson.D{
				{Key: fk, Value: w.Connect},
				{Key: idField, Value: bson.D{{Key: "$ne", Value: id}}},
			}
			if _, err := s.db.Collection(m.Name).UpdateMany(ctx, holders, unset(fk)); err != nil {
				return classify(err)
			}
		}
		columns[fk] = w.Connect
	}
	return nil
}

func (s *Store) relateTargets(ctx context.Context, id any, relations []dbschema.RelationWrite) error {
	for _, rw := range relations {
		r := rw.Relation
		targets := s.db.Collection(r.Target)
		switch w := rw.Value.(type) {
		case store.RelateOne:
			if r.TargetForeignKey == "" {
				continue
			}
			if w.Disconnect || w.Connect != nil {
				if _, err := targets.UpdateMany(ctx, eq(r.TargetForeignKey, id), unset(r.TargetForeignKey)); err != nil {
					return classify(err)
				}
			}
			if w.Connect != nil {
				if _, err := targets.UpdateOne(ctx, byID(w.Connect), set(r.TargetForeignKey, id)); err != nil {
					return classify(err)
				}
			}
		case store.RelateMany:
			connect := append(append([]any{}, w.Set...), w.Connect...)
			switch {
			case r.TargetForeignKey != "":
				if w.SetGiven {
					if _, err := targets.UpdateMany(ctx, eq(r.TargetForeignKey, id), unset(r.TargetForeignKey)); err != nil {
						return classify(err)
					}
				}
				if len(w.Disconnect) > 0 {
					filter := append(eq(r.TargetForeignKey, id), in(idField, w.Disconnect)...)
					if _, err := targets.UpdateMany(ctx, filter, unset(r.TargetForeignKey)); err != nil {
						return classify(err)
					}
				}
				if len(connect) > 0 {
					if _, err := targets.UpdateMany(ctx, in(idField, connect), set(r.TargetForeignKey, id)); err != nil {
						return classify(err)
					}
				}
			case r.Junction != nil:
				if err := s.relateJunction(ctx, r.Junction, id, w, connect); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *Store) relateJunction(ctx context.Context, j *schema.Junction, id any, w store.RelateMany, connect []any) error {
	pairs := s.db.Collection(j.Table)
	if w.SetGiven {
		if _, err := pairs.DeleteMany(ctx, eq(j.SelfColumn, id)); err != nil {
			return classify(err)
		}
	}
	if len(w.Disconnect) > 0 {
		filter := append(eq(j.SelfColumn, id), in(j.OtherColumn, w.Disconnect)...)
		if _, err := pairs.DeleteMany(ctx, filter); err != nil {
			return classify(err)
		}
	}
	if len(connect) == 0 {
		return nil
	}
	existing, err := s.lookup.distinct(ctx, j.Table, j.OtherColumn, append(eq(j.SelfColumn, id), in(j.OtherColumn, connect)...))
	if err != nil {
		return err
	}
	var docs []any
	for _, target := range connect {
		if contains(existing, target) {
			continue
		}
		existing = append(existing, target)
		docs = append(docs, bson.D{{Key: j.SelfColumn, Value: id}, {Key: j.OtherColumn, Value: target}})
	}
	if len(docs) == 0 {
		return nil
	}
	if _, err := pairs.InsertMany(ctx, docs); err != nil {
		return classify(err)
	}
	return nil
}

func contains(values []any, v any) bool {
	for _, candidate := range values {
		if store.Equal(candidate, v) {
			return true
		}
	}
	return false
}
