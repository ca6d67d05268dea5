package scheduler

import (
	"context"
	"fmt"
	"sync"

	"fintrack/internal/core"
)

type storeStub struct {
	mu          sync.Mutex
	obligations []core.RecurringObligation
	listErr     error
	updateErr   error
	deleteErr   error
	updates     []string
	deletes     []string

	// deleteEntered/deleteRelease let a test hold DeleteObligation open.
	deleteEntered chan struct{}
	deleteRelease chan struct{}

	// listEntered/listRelease hold ListObligations open after it has
	// copied the current set.
	listEntered chan struct{}
	listRelease chan struct{}
}

func newStoreStub(obligations ...core.RecurringObligation) *storeStub {
	return &storeStub{obligations: obligations}
}

func (s *storeStub) ListObligations(_ context.Context) ([]core.RecurringObligation, error) {
	s.mu.Lock()
	if s.listErr != nil {
		s.mu.Unlock()
		return nil, s.listErr
	}
	out := make([]core.RecurringObligation, len(s.obligations))
	copy(out, s.obligations)
	entered, release := s.listEntered, s.listRelease
	s.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}
	return out, nil
}

// holdNextList makes the next ListObligations call block after its copy.
func (s *storeStub) holdNextList() (entered <-chan struct{}, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in := make(chan struct{})
	out := make(chan struct{})
	s.listEntered, s.listRelease = in, out
	return in, func() {
		s.mu.Lock()
		s.listEntered, s.listRelease = nil, nil
		s.mu.Unlock()
		close(out)
	}
}

func (s *storeStub) UpdateNextDue(_ context.Context, id string, nextDue core.Date) (core.RecurringObligation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, id+"="+nextDue.String())
	if s.updateErr != nil {
		return core.RecurringObligation{}, s.updateErr
	}
	for i, o := range s.obligations {
		if o.ID == id {
			s.obligations[i].NextDue = nextDue
			return s.obligations[i], nil
		}
	}
	return core.RecurringObligation{}, fmt.Errorf("update %s: %w", id, core.ErrNotFound)
}

func (s *storeStub) DeleteObligation(_ context.Context, id string) error {
	if s.deleteEntered != nil {
		s.deleteEntered <- struct{}{}
		<-s.deleteRelease
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, id)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	for i, o := range s.obligations {
		if o.ID == id {
			s.obligations = append(s.obligations[:i], s.obligations[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("delete %s: %w", id, core.ErrNotFound)
}

func (s *storeStub) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}
