package refund

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocql/gocql"

	"refund_engine/internal/models"
)

// memStore implémente Store en mémoire avec le même contrat de version que
// l'implémentation ScyllaDB : CAS sur rec.Version, ErrConcurrentModification
// en cas de conflit, aucune écriture partielle.
type memStore struct {
	mu   sync.Mutex
	recs map[gocql.UUID]*models.RefundRequest
}

func newMemStore() *memStore {
	return &memStore{recs: make(map[gocql.UUID]*models.RefundRequest)}
}

func copyRec(rec *models.RefundRequest) *models.RefundRequest {
	cp := *rec
	cp.Notes = append([]models.RefundNote(nil), rec.Notes...)
	cp.History = append([]models.HistoryEntry(nil), rec.History...)
	return &cp
}

// seed insère directement un enregistrement, y compris dans des états
// incohérents que l'API ne produirait pas (nécessaire pour tester les
// préconditions croisées).
func (s *memStore) seed(rec *models.RefundRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.ID] = copyRec(rec)
}

func (s *memStore) Get(_ context.Context, id gocql.UUID) (*models.RefundRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRec(rec), nil
}

func (s *memStore) Insert(_ context.Context, rec *models.RefundRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.recs[rec.ID]; exists {
		return ErrConcurrentModification
	}
	s.recs[rec.ID] = copyRec(rec)
	return nil
}

func (s *memStore) ApplyTransition(_ context.Context, rec *models.RefundRequest, entry models.HistoryEntry, note *models.RefundNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.recs[rec.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != rec.Version {
		return ErrConcurrentModification
	}

	updated := copyRec(rec)
	updated.Version = rec.Version + 1
	updated.History = append(append([]models.HistoryEntry(nil), stored.History...), entry)
	updated.Notes = append([]models.RefundNote(nil), stored.Notes...)
	if note != nil {
		updated.Notes = append(updated.Notes, *note)
	}
	s.recs[rec.ID] = updated

	rec.Version++
	rec.History = append(rec.History, entry)
	if note != nil {
		rec.Notes = append(rec.Notes, *note)
	}
	return nil
}

func (s *memStore) AppendNote(_ context.Context, rec *models.RefundRequest, note models.RefundNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.recs[rec.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != rec.Version {
		return ErrConcurrentModification
	}
	stored.Notes = append(stored.Notes, note)
	stored.Version++
	stored.UpdatedAt = rec.UpdatedAt

	rec.Version++
	rec.Notes = append(rec.Notes, note)
	return nil
}

func (s *memStore) UpdateVendorCreditAmount(_ context.Context, rec *models.RefundRequest, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.recs[rec.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != rec.Version {
		return ErrConcurrentModification
	}
	stored.VendorCreditAmount = amount
	stored.Version++
	stored.UpdatedAt = rec.UpdatedAt

	rec.Version++
	rec.VendorCreditAmount = amount
	return nil
}

func (s *memStore) HasActiveForOrderItem(_ context.Context, orderItemID gocql.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.recs {
		if rec.OrderItemID == orderItemID && rec.State != models.StateDenied {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) ListByUser(_ context.Context, userID string) ([]models.RefundRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.RefundRequest{}
	for _, rec := range s.recs {
		if rec.UserID == userID {
			out = append(out, *copyRec(rec))
		}
	}
	return out, nil
}

func (s *memStore) List(_ context.Context, state *models.RefundState, page, pageSize int) ([]models.RefundRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.RefundRequest{}
	for _, rec := range s.recs {
		if state == nil || rec.State == *state {
			out = append(out, *copyRec(rec))
		}
	}
	return out, nil
}

func (s *memStore) CountByState(_ context.Context) (map[models.RefundState]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[models.RefundState]int)
	for _, rec := range s.recs {
		counts[rec.State]++
	}
	return counts, nil
}

func (s *memStore) SumCompletedAmount(_ context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total float64
	for _, rec := range s.recs {
		if rec.State == models.StateCompleted {
			total += rec.RefundAmount
		}
	}
	return total, nil
}

// memOrders sert les lignes de commande du test.
type memOrders struct {
	items map[gocql.UUID]*models.OrderItem // par order_item_id
}

func newMemOrders() *memOrders {
	return &memOrders{items: make(map[gocql.UUID]*models.OrderItem)}
}

func (o *memOrders) add(item *models.OrderItem) {
	o.items[item.OrderItemID] = item
}

func (o *memOrders) GetOrderItem(_ context.Context, _, orderItemID gocql.UUID) (*models.OrderItem, error) {
	item, ok := o.items[orderItemID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *item
	return &cp, nil
}

// memLock reproduit le marqueur Redis : un seul appel passerelle en vol par
// demande.
type memLock struct {
	mu   sync.Mutex
	held map[gocql.UUID]string
}

func newMemLock() *memLock {
	return &memLock{held: make(map[gocql.UUID]string)}
}

func (l *memLock) Acquire(_ context.Context, refundID gocql.UUID) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[refundID]; taken {
		return "", false, nil
	}
	token := gocql.TimeUUID().String()
	l.held[refundID] = token
	return token, true, nil
}

func (l *memLock) Release(_ context.Context, refundID gocql.UUID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[refundID] == token {
		delete(l.held, refundID)
	}
	return nil
}

// stubGateway compte les mouvements d'argent réels ; delay simule la latence
// réseau pour les tests de concurrence.
type stubGateway struct {
	calls int32
	delay time.Duration
	err   error
}

func (g *stubGateway) Refund(_ context.Context, refundID gocql.UUID, _ string, _ float64) (string, error) {
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	if g.err != nil {
		return "", g.err
	}
	atomic.AddInt32(&g.calls, 1)
	return "re_" + refundID.String(), nil
}
