package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pfm/internal/core"
	ports "pfm/internal/sheets"
)

var _ ports.ActivityWriter = (*Store)(nil)

// Store keeps exported activity in memory. It backs the worker when no
// spreadsheet is configured.
type Store struct {
	mu    sync.Mutex
	items []core.Activity
}

func New() *Store {
	return &Store{}
}

// AppendActivity stores a and returns a synthetic row reference.
func (s *Store) AppendActivity(_ context.Context, a core.Activity) (string, error) {
	if a.ID == 0 {
		return "", errors.New("activity has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, a)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() []core.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Activity(nil), s.items...)
}
