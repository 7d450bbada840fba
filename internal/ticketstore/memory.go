package ticketstore

import (
	"context"
	"sync"

	"github.com/emberchat/push-relay/internal/model"
)

// memoryStore is an ordered in-process collection guarded by a mutex, so
// the dispatcher and reconciler can share it across goroutines.
type memoryStore struct {
	mu      sync.Mutex
	tickets []model.DeliveryTicket
}

func NewMemory() *memoryStore {
	return &memoryStore{}
}

func (s *memoryStore) Append(ctx context.Context, tickets []model.DeliveryTicket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets = append(s.tickets, tickets...)
	return nil
}

func (s *memoryStore) Partition(ctx context.Context) ([]model.DeliveryTicket, []model.DeliveryTicket, error) {
	s.mu.Lock()
	snapshot := make([]model.DeliveryTicket, len(s.tickets))
	copy(snapshot, s.tickets)
	s.mu.Unlock()

	ok, failed := partition(snapshot)
	return ok, failed, nil
}

func (s *memoryStore) Remove(ctx context.Context, ids []model.TicketID) error {
	if len(ids) == 0 {
		return nil
	}

	evict := make(map[model.TicketID]struct{}, len(ids))
	for _, id := range ids {
		evict[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.tickets[:0]
	for _, ticket := range s.tickets {
		if _, gone := evict[ticket.ID]; !gone {
			kept = append(kept, ticket)
		}
	}
	s.tickets = kept
	return nil
}

func (s *memoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *memoryStore) Close() error {
	return nil
}
