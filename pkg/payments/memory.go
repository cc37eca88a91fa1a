package payments

import (
	"context"
	"sort"
	"sync"

	"gorm.io/datatypes"

	"github.com/novinshop/paycore/pkg/models"
)

// MemoryStore is a mutex-guarded Store used in tests and local development.
// Its conditional updates give the same winner-takes-it semantics as the
// SQL implementation.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*models.PaymentRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*models.PaymentRecord)}
}

func (s *MemoryStore) Create(ctx context.Context, rec *models.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cpy := *rec
	s.records[rec.ID] = &cpy
	return nil
}

func (s *MemoryStore) Save(ctx context.Context, rec *models.PaymentRecord) error {
	return s.Create(ctx, rec)
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (*models.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cpy := *rec
	return &cpy, nil
}

func (s *MemoryStore) FindByAuthority(ctx context.Context, authority string) (*models.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.Authority == authority && authority != "" {
			cpy := *rec
			return &cpy, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindLatestByOrderID(ctx context.Context, orderID string) (*models.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []*models.PaymentRecord
	for _, rec := range s.records {
		if rec.OrderID == orderID {
			matches = append(matches, rec)
		}
	}
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	cpy := *matches[0]
	return &cpy, nil
}

func (s *MemoryStore) FindCompletedByOrderID(ctx context.Context, orderID string) (*models.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.OrderID == orderID && rec.Status == models.PaymentStatusCompleted {
			cpy := *rec
			return &cpy, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CompleteIfNotCompleted(ctx context.Context, id string, settle Settlement) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return false, ErrNotFound
	}
	if rec.Status == models.PaymentStatusCompleted || rec.Status == models.PaymentStatusRefunded {
		return false, nil
	}
	rec.Status = models.PaymentStatusCompleted
	rec.TransactionID = settle.TransactionID
	rec.RefID = settle.RefID
	rec.GatewayResponse = datatypes.JSON(settle.Raw)
	at := settle.CompletedAt
	rec.CompletedAt = &at
	return true, nil
}

func (s *MemoryStore) MarkFailure(ctx context.Context, id string, failure Failure) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return false, ErrNotFound
	}
	if rec.Status != models.PaymentStatusPending && rec.Status != models.PaymentStatusProcessing {
		return false, nil
	}
	rec.Status = failure.Status
	rec.ErrorCode = failure.Code
	rec.ErrorMessage = failure.Message
	at := failure.At
	rec.FailedAt = &at
	return true, nil
}
