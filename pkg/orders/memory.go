package orders

import (
	"context"
	"sync"
	"time"

	"github.com/novinshop/paycore/pkg/models"
)

// MemoryStore implements Reader and Reconciler in memory for tests and
// local development.
type MemoryStore struct {
	mu     sync.Mutex
	orders map[string]*models.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]*models.Order)}
}

func (s *MemoryStore) Put(ord *models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cpy := *ord
	s.orders[ord.ID] = &cpy
}

func (s *MemoryStore) Find(ctx context.Context, orderID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ord, ok := s.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cpy := *ord
	return &cpy, nil
}

func (s *MemoryStore) MarkPaid(ctx context.Context, orderID, transactionID, gatewayName string, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ord, ok := s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	if ord.PaymentStatus == models.OrderPaymentStatusPaid && ord.TransactionID == transactionID {
		return nil
	}
	now := time.Now()
	ord.PaymentStatus = models.OrderPaymentStatusPaid
	ord.TransactionID = transactionID
	ord.PaidGateway = gatewayName
	ord.PaidAt = &now
	return nil
}

func (s *MemoryStore) MarkRefunded(ctx context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ord, ok := s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	ord.PaymentStatus = models.OrderPaymentStatusRefunded
	return nil
}
