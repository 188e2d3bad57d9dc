// Package mongostore is the MongoDB store backend. Each list is a
// collection keyed by _id and each many-to-many relation a collection of
// {A, B} pairs. Relation filters are resolved to id sets with Distinct
// before the outer query runs.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cms-graphql/internal/dbschema"
	"cms-graphql/internal/schema"
	"cms-graphql/internal/store"
)

const idField = "_id"

// lookup runs the id pre-queries of relation filters.
type lookup interface {
	distinct(ctx context.Context, collection, field string, filter bson.D) ([]any, error)
}

// Store runs list operations against one MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	schema *dbschema.Schema
	logger *slog.Logger
	lookup lookup
}

// Connect opens a client for uri and selects database.
func Connect(ctx context.Context, uri, database string, s *dbschema.Schema, logger *slog.Logger) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return New(client, client.Database(database), s, logger), nil
}

// New wraps a connected database.
func New(client *mongo.Client, db *mongo.Database, s *dbschema.Schema, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	st := &Store{client: client, db: db, schema: s, logger: logger}
	st.lookup = st
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
	return store.Provider{Name: store.ProviderMongoDB, ConcurrentWrites: true}
}

// Close implements store.Client.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(context.Background())
}

// EnsureIndexes creates a unique index per unique column and an index on
// both columns of each join collection. Null values are not stored, so the
// unique indexes only cover documents holding the field.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	for _, m := range s.schema.Models {
		var indexes []mongo.IndexModel
		for _, c := range m.Columns {
			if !c.Unique || c.Name == dbschema.IDColumn {
				continue
			}
			indexes = append(indexes, mongo.IndexModel{
				Keys: bson.D{{Key: c.Name, Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.D{{Key: c.Name, Value: bson.D{{Key: "$exists", Value: true}}}}),
			})
		}
		if len(indexes) == 0 {
			continue
		}
		if _, err := s.db.Collection(m.Name).Indexes().CreateMany(ctx, indexes); err != nil {
			return classify(fmt.Errorf("failed to create indexes for %s: %w", m.Name, err))
		}
	}
	for _, j := range s.schema.Junctions {
		index := mongo.IndexModel{
			Keys:    bson.D{{Key: "A", Value: 1}, {Key: "B", Value: 1}},
			Options: options.Index().SetUnique(true),
		}
		if _, err := s.db.Collection(j.Name).Indexes().CreateOne(ctx, index); err != nil {
			return classify(fmt.Errorf("failed to create indexes for %s: %w", j.Name, err))
		}
	}
	return nil
}

func (s *Store) distinct(ctx context.Context, collection, field string, filter bson.D) ([]any, error) {
	values, err := s.db.Collection(collection).Distinct(ctx, field, filter)
	if err != nil {
		return nil, classify(err)
	}
	return values, nil
}

type model struct {
	st *Store
	m  *dbschema.Model
}

func (md *model) collection() *mongo.Collection {
	return md.st.db.Collection(md.m.Name)
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
	filter, err := md.st.translate(ctx, md.m, args.Where)
	if err != nil {
		return nil, err
	}
	opts, err := findOptions(md.m, args)
	if err != nil {
		return nil, err
	}
	if args.Take != nil && *args.Take == 0 {
		// A zero limit means no limit to MongoDB.
		return nil, nil
	}
	md.st.logger.Debug("mongo find", slog.String("collection", md.m.Name))
	cursor, err := md.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, classify(err)
	}
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, classify(err)
	}
	items := make([]schema.Item, 0, len(docs))
	for _, doc := range docs {
		items = append(items, fromDocument(md.m, doc))
	}
	return items, nil
}

func findOptions(m *dbschema.Model, args store.FindArgs) (*options.FindOptions, error) {
	opts := options.Find()
	if len(args.OrderBy) > 0 {
		sort := bson.D{}
		for _, o := range args.OrderBy {
			if _, ok := m.Column(o.Field); !ok {
				return nil, fmt.Errorf("unknown order by column: %s.%s", m.Name, o.Field)
			}
			dir := 1
			if o.Direction == store.Desc {
				dir = -1
			}
			sort = append(sort, bson.E{Key: fieldName(o.Field), Value: dir})
		}
		opts.SetSort(sort)
	}
	if args.Skip > 0 {
		opts.SetSkip(int64(args.Skip))
	}
	if args.Take != nil {
		opts.SetLimit(int64(*args.Take))
	}
	return opts, nil
}

func (md *model) Count(ctx context.Context, where store.Filter) (int, error) {
	filter, err := md.st.translate(ctx, md.m, where)
	if err != nil {
		return 0, err
	}
	n, err := md.collection().CountDocuments(ctx, filter)
	if err != nil {
		return 0, classify(err)
	}
	return int(n), nil
}

func (md *model) byID(ctx context.Context, id any) (schema.Item, error) {
	var doc bson.M
	err := md.collection().FindOne(ctx, bson.D{{Key: idField, Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return fromDocument(md.m, doc), nil
}

func newID() string { return uuid.NewString() }

// backendError carries the server error code for the resolver layer.
type backendError struct {
	err  error
	code string
}

func (e *backendError) Error() string       { return e.err.Error() }
func (e *backendError) Unwrap() error       { return e.err }
func (e *backendError) BackendCode() string { return e.code }

func classify(err error) error {
	if err == nil {
		return nil
	}
	var we mongo.WriteException
	if errors.As(err, &we) && len(we.WriteErrors) > 0 {
		return &backendError{err: err, code: strconv.Itoa(we.WriteErrors[0].Code)}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		return &backendError{err: err, code: strconv.Itoa(int(ce.Code))}
	}
	return err
}
