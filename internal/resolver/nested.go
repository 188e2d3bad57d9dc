package resolver

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"cms-graphql/internal/gqlerrors"
	"cms-graphql/internal/lists"
	"cms-graphql/internal/schema"
	"cms-graphql/internal/store"
)

// nestedMutationState tracks the items created through relationship inputs
// of one create or update. Their afterChange hooks run when the owning
// item's afterChange runs.
type nestedMutationState struct {
	r *Resolver

	group   singleflight.Group
	mu      sync.Mutex
	created map[string]any
	after   []func(ctx context.Context) error
}

func newNestedMutationState(r *Resolver) *nestedMutationState {
	return &nestedMutationState{r: r, created: map[string]any{}}
}

// create creates an item of target from a nested create input and returns
// its id. The same input value is only ever created once per state.
func (s *nestedMutationState) create(ctx context.Context, target *lists.List, data map[string]any) (any, error) {
	key := fmt.Sprintf("%s:%p", target.Key, data)
	s.mu.Lock()
	id, ok := s.created[key]
	s.mu.Unlock()
	if ok {
		return id, nil
	}
	id, err, _ := s.group.Do(key, func() (any, error) {
		item, after, err := s.r.createSingle(ctx, target, data)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.created[key] = item["id"]
		s.after = append(s.after, after)
		s.mu.Unlock()
		return item["id"], nil
	})
	return id, err
}

// afterChange runs the afterChange hooks of every nested create.
func (s *nestedMutationState) afterChange(ctx context.Context) error {
	s.mu.Lock()
	after := append([]func(context.Context) error(nil), s.after...)
	s.mu.Unlock()

	tasks := make([]func(context.Context) (struct{}, error), len(after))
	for i, fn := range after {
		tasks[i] = func(ctx context.Context) (struct{}, error) { return struct{}{}, fn(ctx) }
	}
	for _, res := range gqlerrors.AllSettled(ctx, tasks) {
		if res.Err != nil {
			return res.Err
		}
	}
	return nil
}

// relations returns the handler that turns the relationship inputs of list
// into store writes.
func (s *nestedMutationState) relations(ctx context.Context, list *lists.List, field *lists.Field, value any) (any, error) {
	rel := field.Relation()
	target, ok := s.r.lists.Get(rel.List)
	if !ok {
		return nil, gqlerrors.Systemf("%s refers to the unknown list %q", schema.Path(list.Key, field.Key), rel.List)
	}
	if value == nil {
		return nil, nil
	}
	input, ok := value.(map[string]any)
	if !ok {
		return nil, gqlerrors.Systemf("%s expects an object but received %T", schema.Path(list.Key, field.Key), value)
	}
	desc := fmt.Sprintf("%s<%s>", schema.Path(list.Key, field.Key), target.Key)
	if rel.Cardinality == schema.Many {
		return s.relateToMany(ctx, target, desc, input)
	}
	if len(input) != 1 {
		return nil, gqlerrors.UserInputf("Relationship field %s accepts exactly one input value.", schema.Path(list.Key, field.Key))
	}
	return s.relateToOne(ctx, target, desc, input)
}

func (s *nestedMutationState) relateToOne(ctx context.Context, target *lists.List, desc string, input map[string]any) (any, error) {
	if where, ok := input["connect"]; ok {
		unique, _ := where.(map[string]any)
		if unique == nil {
			return nil, nil
		}
		id, err := s.connectable(ctx, target, unique)
		if err != nil {
			return nil, err
		}
		if id == nil {
			return nil, fmt.Errorf("Unable to connect a %s", desc)
		}
		return store.RelateOne{Connect: id}, nil
	}
	if data, ok := input["create"]; ok {
		create, _ := data.(map[string]any)
		if create == nil {
			return nil, nil
		}
		id, err := s.create(ctx, target, create)
		if err != nil {
			return nil, err
		}
		return store.RelateOne{Connect: id}, nil
	}
	if disconnect, _ := input["disconnect"].(bool); disconnect {
		return store.RelateOne{Disconnect: true}, nil
	}
	return nil, nil
}

func (s *nestedMutationState) relateToMany(ctx context.Context, target *lists.List, desc string, input map[string]any) (any, error) {
	connect, _ := input["connect"].([]any)
	create, _ := input["create"].([]any)
	disconnect, _ := input["disconnect"].([]any)
	set, setGiven := input["set"].([]any)
	if setGiven && input["disconnect"] != nil {
		return nil, gqlerrors.UserInputf("The set and disconnect fields cannot both be provided to to-many relationship inputs but both were provided at %s", desc)
	}

	tasks := make([]func(context.Context) (any, error), 0, len(connect)+len(create))
	for _, where := range connect {
		unique, _ := where.(map[string]any)
		tasks = append(tasks, func(ctx context.Context) (any, error) {
			id, err := s.connectable(ctx, target, unique)
			if err == nil && id == nil {
				err = fmt.Errorf("Unable to connect a %s", desc)
			}
			return id, err
		})
	}
	for _, data := range create {
		input, _ := data.(map[string]any)
		tasks = append(tasks, func(ctx context.Context) (any, error) {
			return s.create(ctx, target, input)
		})
	}
	connected := gqlerrors.AllSettled(ctx, tasks)
	ids, ok := gqlerrors.Values(connected)
	if !ok {
		failed := 0
		for _, res := range connected {
			if res.Err != nil {
				failed++
			}
		}
		return nil, fmt.Errorf("Unable to create and/or connect %d %s", failed, desc)
	}

	write := store.RelateMany{Connect: ids, SetGiven: setGiven}
	for _, where := range set {
		unique, _ := where.(map[string]any)
		id, err := s.connectable(ctx, target, unique)
		if err != nil {
			return nil, err
		}
		if id == nil {
			return nil, fmt.Errorf("Unable to set a %s", desc)
		}
		write.Set = append(write.Set, id)
	}
	for _, where := range disconnect {
		unique, _ := where.(map[string]any)
		id, err := s.lookup(ctx, target, unique)
		if err != nil {
			return nil, err
		}
		// Disconnecting an item that does not exist is not an error.
		if id != nil {
			write.Disconnect = append(write.Disconnect, id)
		}
	}
	return write, nil
}

// connectable returns the id of the item matching where if the caller may
// read it, or nil.
func (s *nestedMutationState) connectable(ctx context.Context, target *lists.List, where map[string]any) (any, error) {
	item, err := s.r.findOne(ctx, target, where)
	if err != nil {
		if gqlerrors.CodeOf(err) == gqlerrors.CodeAccessDenied {
			return nil, nil
		}
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	return item["id"], nil
}

// lookup returns the id of the item matching where regardless of access.
func (s *nestedMutationState) lookup(ctx context.Context, target *lists.List, where map[string]any) (any, error) {
	unique, err := s.r.resolveUniqueWhere(ctx, target, where)
	if err != nil {
		return nil, err
	}
	m, err := s.r.model(target)
	if err != nil {
		return nil, err
	}
	item, err := m.FindUnique(ctx, unique)
	if err != nil {
		return nil, gqlerrors.Database(err)
	}
	if item == nil {
		return nil, nil
	}
	return item["id"], nil
}
