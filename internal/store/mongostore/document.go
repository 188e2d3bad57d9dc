package mongostore

import (
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"cms-graphql/internal/dbschema"
	"cms-graphql/internal/schema"
)

// toDocument builds the stored form of columns. Null values are left out.
func toDocument(columns map[string]any) bson.D {
	keys := make([]string, 0, len(columns))
	for k := range columns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	doc := bson.D{}
	if id, ok := columns[dbschema.IDColumn]; ok {
		doc = append(doc, bson.E{Key: idField, Value: id})
	}
	for _, k := range keys {
		if k == dbschema.IDColumn || columns[k] == nil {
			continue
		}
		doc = append(doc, bson.E{Key: k, Value: columns[k]})
	}
	return doc
}

// updateDocument splits columns into $set and $unset.
func updateDocument(columns map[string]any) bson.D {
	set, unset := bson.D{}, bson.D{}
	keys := make([]string, 0, len(columns))
	for k := range columns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if columns[k] == nil {
			unset = append(unset, bson.E{Key: fieldName(k), Value: ""})
		} else {
			set = append(set, bson.E{Key: fieldName(k), Value: columns[k]})
		}
	}
	update := bson.D{}
	if len(set) > 0 {
		update = append(update, bson.E{Key: "$set", Value: set})
	}
	if len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}
	return update
}

// fromDocument reads an item back, filling absent columns with null.
func fromDocument(m *dbschema.Model, doc bson.M) schema.Item {
	item := make(schema.Item, len(m.Columns))
	for _, c := range m.Columns {
		item[c.Name] = normalize(c, doc[fieldName(c.Name)])
	}
	return item
}

func normalize(c *dbschema.Column, v any) any {
	switch n := v.(type) {
	case int32:
		if c.Scalar == schema.ScalarFloat {
			return float64(n)
		}
		return int(n)
	case int64:
		if c.Scalar == schema.ScalarFloat {
			return float64(n)
		}
		return int(n)
	case float64:
		if c.Scalar == schema.ScalarInt {
			return int(n)
		}
		return n
	case primitive.DateTime:
		return n.Time().UTC()
	case time.Time:
		return n.UTC()
	}
	return v
}
