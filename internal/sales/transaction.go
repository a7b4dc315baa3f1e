package sales

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tillworks/backend-pos/internal/pricing"
)

// Transaction kinds. Voids and returns are recorded as successor
// transactions pointing at the original; settled records are never edited.
const (
	KindSale   = "sale"
	KindVoid   = "void"
	KindReturn = "return"
)

// Transaction statuses.
const (
	StatusSettled  = "settled"
	StatusVoided   = "voided"
	StatusReturned = "returned"
)

// LineItem is an immutable snapshot of a sold cart line.
type LineItem struct {
	ProductID string        `json:"productId"`
	SKU       string        `json:"sku"`
	Name      string        `json:"name"`
	Qty       int           `json:"qty"`
	UnitPrice pricing.Money `json:"unitPrice"`
	Discount  pricing.Money `json:"discount"`
}

// Transaction is a settled ledger record.
type Transaction struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	Status       string          `json:"status"`
	OriginalID   string          `json:"originalId,omitempty"`
	OperatorID   string          `json:"operatorId"`
	ShiftID      string          `json:"shiftId"`
	CustomerID   string          `json:"customerId,omitempty"`
	TenderType   string          `json:"tenderType"`
	Lines        []LineItem      `json:"lines"`
	Summary      pricing.Summary `json:"summary"`
	Tendered     pricing.Money   `json:"tendered,omitempty"`
	Change       pricing.Money   `json:"change,omitempty"`
	AuthRef      string          `json:"authRef,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	CompletedAt  time.Time       `json:"completedAt"`
	VoidedByID   string          `json:"voidedById,omitempty"`
	ReturnedByID string          `json:"returnedById,omitempty"`
}

// Store is the append-only in-memory transaction ledger. IDs follow the
// receipt numbering scheme TXN0001, TXN0002, ...
type Store struct {
	mu    sync.RWMutex
	byID  map[string]*Transaction
	order []string
	seq   int
}

// NewStore constructs an empty ledger.
func NewStore() *Store {
	return &Store{byID: make(map[string]*Transaction)}
}

// NextID reserves the next transaction identifier.
func (s *Store) NextID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("TXN%04d", s.seq)
}

// Append records a transaction. The ID must have been reserved via NextID.
func (s *Store) Append(t Transaction) error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("sales: transaction id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[t.ID]; exists {
		return fmt.Errorf("sales: transaction %s already recorded", t.ID)
	}
	cp := t
	s.byID[cp.ID] = &cp
	s.order = append(s.order, cp.ID)
	return nil
}

// Get returns a copy of the transaction.
func (s *Store) Get(id string) (Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[id]
	if !ok {
		return Transaction{}, false
	}
	return cloneTransaction(t), true
}

// All returns every transaction in ledger order.
func (s *Store) All() []Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Transaction, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneTransaction(s.byID[id]))
	}
	return out
}

// MarkSuperseded links an original sale to the void or return that replaced
// it and flips its status. Line data is never touched.
func (s *Store) MarkSuperseded(originalID, successorID, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[originalID]
	if !ok {
		return fmt.Errorf("sales: transaction %s not found", originalID)
	}
	switch kind {
	case KindVoid:
		t.Status = StatusVoided
		t.VoidedByID = successorID
	case KindReturn:
		t.Status = StatusReturned
		t.ReturnedByID = successorID
	default:
		return fmt.Errorf("sales: unknown successor kind %q", kind)
	}
	return nil
}

func cloneTransaction(t *Transaction) Transaction {
	cp := *t
	cp.Lines = append([]LineItem(nil), t.Lines...)
	return cp
}
