// Package services holds the per-user workflows behind the pages: they call
// the API on the user's behalf, keep each user's lists in step with what the
// API accepted, and journal every mutation.
package services

import (
	"context"
	"slices"
	"time"

	"pfm/internal/cache"
	"pfm/internal/core"
)

// ListKey names the cached list of resource for owner.
func ListKey(owner, resource string) string {
	return owner + "|" + resource
}

// Lists holds the cached API lists of every signed-in user.
type Lists struct {
	Banks        *cache.LRUCache[[]core.Bank]
	Accounts     *cache.LRUCache[[]core.BankAccount]
	Transactions *cache.LRUCache[[]core.Transaction]
}

// NewLists sizes each resource cache for maxUsers users.
func NewLists(maxUsers int, ttl time.Duration) *Lists {
	return &Lists{
		Banks:        cache.NewLRUCache[[]core.Bank](maxUsers, ttl),
		Accounts:     cache.NewLRUCache[[]core.BankAccount](maxUsers, ttl),
		Transactions: cache.NewLRUCache[[]core.Transaction](maxUsers, ttl),
	}
}

// Register hands every cache to m for periodic expiry.
func (l *Lists) Register(m *cache.Manager) {
	m.Register(l.Banks)
	m.Register(l.Accounts)
	m.Register(l.Transactions)
}

// Forget drops every list cached for owner and returns how many went.
func (l *Lists) Forget(owner string) int {
	prefix := owner + "|"
	return l.Banks.DeletePrefix(prefix) +
		l.Accounts.DeletePrefix(prefix) +
		l.Transactions.DeletePrefix(prefix)
}

// listStore applies successful mutations to a cached list instead of
// refetching it. Callers always get their own copy of the slice.
type listStore[T any] struct {
	cache    cache.Cache[[]T]
	resource string
	idOf     func(T) int64
}

func newListStore[T any](c cache.Cache[[]T], resource string, idOf func(T) int64) *listStore[T] {
	return &listStore[T]{cache: c, resource: resource, idOf: idOf}
}

func (s *listStore[T]) load(ctx context.Context, owner string, fetch func(context.Context) ([]T, error)) ([]T, error) {
	key := ListKey(owner, s.resource)
	if cached, ok := s.cache.Get(key); ok {
		return slices.Clone(cached), nil
	}
	items, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, slices.Clone(items))
	return items, nil
}

// add appends item to owner's cached list. A list that is not cached is left
// alone; the next load fetches it.
func (s *listStore[T]) add(owner string, item T) {
	s.cache.Update(ListKey(owner, s.resource), func(cur []T) []T {
		return append(slices.Clone(cur), item)
	})
}

func (s *listStore[T]) replace(owner string, item T) {
	id := s.idOf(item)
	s.cache.Update(ListKey(owner, s.resource), func(cur []T) []T {
		out := slices.Clone(cur)
		for i := range out {
			if s.idOf(out[i]) == id {
				out[i] = item
			}
		}
		return out
	})
}

func (s *listStore[T]) remove(owner string, id int64) {
	s.cache.Update(ListKey(owner, s.resource), func(cur []T) []T {
		return slices.DeleteFunc(slices.Clone(cur), func(v T) bool { return s.idOf(v) == id })
	})
}

func (s *listStore[T]) invalidate(owner string) {
	s.cache.Delete(ListKey(owner, s.resource))
}
