package gqlerrors

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// Settled is the outcome of one task run by AllSettled.
type Settled[T any] struct {
	Value T
	Err   error
}

// AllSettled runs every task concurrently and waits for all of them. Failures
// do not cancel siblings.
func AllSettled[T any](ctx context.Context, tasks []func(context.Context) (T, error)) []Settled[T] {
	results := make([]Settled[T], len(tasks))
	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for i, task := range tasks {
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i].Err = Systemf("panic: %v", r)
				}
			}()
			results[i].Value, results[i].Err = task(ctx)
		}()
	}
	wg.Wait()
	return results
}

// Values returns the successful values in task order, or false when any task failed.
func Values[T any](settled []Settled[T]) ([]T, bool) {
	values := make([]T, 0, len(settled))
	for _, s := range settled {
		if s.Err != nil {
			return nil, false
		}
		values = append(values, s.Value)
	}
	return values, true
}

// RelationshipFromSettled aggregates failures into one relationship error.
// tagFor returns the prefix used for the failure at index i.
func RelationshipFromSettled[T any](settled []Settled[T], tagFor func(i int) string) error {
	var messages []string
	for i, s := range settled {
		if s.Err == nil {
			continue
		}
		messages = append(messages, fmt.Sprintf("%s: %s", tagFor(i), s.Err.Error()))
	}
	if len(messages) == 0 {
		return nil
	}
	return Relationship(messages)
}

// SystemFromSettled aggregates failures into one system error.
func SystemFromSettled[T any](settled []Settled[T]) error {
	var messages []string
	for _, s := range settled {
		if s.Err != nil {
			messages = append(messages, s.Err.Error())
		}
	}
	if len(messages) == 0 {
		return nil
	}
	return System(messages...)
}

// HookRunner collects failures from hook invocations run under one name.
type HookRunner struct {
	Name     string
	mu       sync.Mutex
	failures []HookFailure
}

// Run invokes fn and records its error or panic under tag.
func (h *HookRunner) Run(tag string, fn func() error) {
	var stack string
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%v", r)
				stack = string(debug.Stack())
			}
		}()
		return fn()
	}()
	if err == nil {
		return
	}
	h.mu.Lock()
	h.failures = append(h.failures, HookFailure{Tag: tag, Err: err, Stack: stack})
	h.mu.Unlock()
}

// Err returns the aggregated extension error, or nil when every hook succeeded.
func (h *HookRunner) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.failures) == 0 {
		return nil
	}
	return Extension(h.Name, h.failures)
}
