package refund

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gocql/gocql"

	"refund_engine/internal/database"
	"refund_engine/internal/models"
)

// ScyllaStore persiste les demandes dans le keyspace refunds. Un
// enregistrement = une ligne ; notes et historique sont des list<text>
// d'entrées JSON, ajoutées uniquement en fin de liste. Toute mutation passe
// par un UPDATE conditionnel `IF version = ?` (LWT) : l'entrée d'historique,
// la note, le nouvel état et updated_at sont commis dans la même écriture,
// et un écrivain concurrent obtient ErrConcurrentModification.
type ScyllaStore struct{}

func NewScyllaStore() *ScyllaStore {
	return &ScyllaStore{}
}

const refundColumns = `refund_id, order_id, order_item_id, user_id, state, reason_code, reason_details,
		original_amount, refund_amount, vendor_credit_amount, vendor_credit_received,
		gateway_refund_id, notes, history, version, created_at, updated_at`

func scanRefund(scan func(...interface{}) error) (*models.RefundRequest, error) {
	var rec models.RefundRequest
	var state, reason string
	var rawNotes, rawHistory []string

	err := scan(
		&rec.ID, &rec.OrderID, &rec.OrderItemID, &rec.UserID, &state, &reason, &rec.ReasonDetails,
		&rec.OriginalAmount, &rec.RefundAmount, &rec.VendorCreditAmount, &rec.VendorCreditReceived,
		&rec.GatewayRefundID, &rawNotes, &rawHistory, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.State = models.RefundState(state)
	rec.ReasonCode = models.ReasonCode(reason)

	rec.Notes = make([]models.RefundNote, 0, len(rawNotes))
	for _, raw := range rawNotes {
		var n models.RefundNote
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			return nil, fmt.Errorf("note corrompue pour %s: %v", rec.ID, err)
		}
		rec.Notes = append(rec.Notes, n)
	}

	rec.History = make([]models.HistoryEntry, 0, len(rawHistory))
	for _, raw := range rawHistory {
		var h models.HistoryEntry
		if err := json.Unmarshal([]byte(raw), &h); err != nil {
			return nil, fmt.Errorf("historique corrompu pour %s: %v", rec.ID, err)
		}
		rec.History = append(rec.History, h)
	}

	return &rec, nil
}

func (s *ScyllaStore) Get(ctx context.Context, id gocql.UUID) (*models.RefundRequest, error) {
	session, err := database.GetRefundsSession()
	if err != nil {
		return nil, err
	}

	q := session.Query(`SELECT `+refundColumns+` FROM refund_requests WHERE refund_id = ?`, id).WithContext(ctx)
	rec, err := scanRefund(q.Scan)
	if err == gocql.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *ScyllaStore) Insert(ctx context.Context, rec *models.RefundRequest) error {
	session, err := database.GetRefundsSession()
	if err != nil {
		return err
	}

	applied, err := session.Query(`
		INSERT INTO refund_requests (`+refundColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		IF NOT EXISTS
	`, rec.ID, rec.OrderID, rec.OrderItemID, rec.UserID, string(rec.State), string(rec.ReasonCode), rec.ReasonDetails,
		rec.OriginalAmount, rec.RefundAmount, rec.VendorCreditAmount, rec.VendorCreditReceived,
		rec.GatewayRefundID, []string{}, []string{}, rec.Version, rec.CreatedAt, rec.UpdatedAt,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return err
	}
	if !applied {
		return ErrConcurrentModification
	}
	return nil
}

func (s *ScyllaStore) ApplyTransition(ctx context.Context, rec *models.RefundRequest, entry models.HistoryEntry, note *models.RefundNote) error {
	session, err := database.GetRefundsSession()
	if err != nil {
		return err
	}

	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	newNotes := []string{}
	if note != nil {
		noteJSON, err := json.Marshal(note)
		if err != nil {
			return err
		}
		newNotes = append(newNotes, string(noteJSON))
	}

	applied, err := session.Query(`
		UPDATE refund_requests
		SET state = ?, refund_amount = ?, vendor_credit_amount = ?, vendor_credit_received = ?,
		    gateway_refund_id = ?, history = history + ?, notes = notes + ?,
		    version = ?, updated_at = ?
		WHERE refund_id = ?
		IF version = ?
	`, string(rec.State), rec.RefundAmount, rec.VendorCreditAmount, rec.VendorCreditReceived,
		rec.GatewayRefundID, []string{string(entryJSON)}, newNotes,
		rec.Version+1, rec.UpdatedAt,
		rec.ID, rec.Version,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return err
	}
	if !applied {
		return ErrConcurrentModification
	}

	rec.Version++
	rec.History = append(rec.History, entry)
	if note != nil {
		rec.Notes = append(rec.Notes, *note)
	}
	return nil
}

func (s *ScyllaStore) AppendNote(ctx context.Context, rec *models.RefundRequest, note models.RefundNote) error {
	session, err := database.GetRefundsSession()
	if err != nil {
		return err
	}

	noteJSON, err := json.Marshal(note)
	if err != nil {
		return err
	}

	applied, err := session.Query(`
		UPDATE refund_requests
		SET notes = notes + ?, version = ?, updated_at = ?
		WHERE refund_id = ?
		IF version = ?
	`, []string{string(noteJSON)}, rec.Version+1, rec.UpdatedAt, rec.ID, rec.Version).
		WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return err
	}
	if !applied {
		return ErrConcurrentModification
	}

	rec.Version++
	rec.Notes = append(rec.Notes, note)
	return nil
}

func (s *ScyllaStore) UpdateVendorCreditAmount(ctx context.Context, rec *models.RefundRequest, amount float64) error {
	session, err := database.GetRefundsSession()
	if err != nil {
		return err
	}

	now := rec.UpdatedAt
	applied, err := session.Query(`
		UPDATE refund_requests
		SET vendor_credit_amount = ?, version = ?, updated_at = ?
		WHERE refund_id = ?
		IF version = ?
	`, amount, rec.Version+1, now, rec.ID, rec.Version).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return err
	}
	if !applied {
		return ErrConcurrentModification
	}

	rec.Version++
	rec.VendorCreditAmount = amount
	return nil
}

func (s *ScyllaStore) HasActiveForOrderItem(ctx context.Context, orderItemID gocql.UUID) (bool, error) {
	session, err := database.GetRefundsSession()
	if err != nil {
		return false, err
	}

	iter := session.Query(`
		SELECT state FROM refund_requests WHERE order_item_id = ? ALLOW FILTERING
	`, orderItemID).WithContext(ctx).Iter()

	var state string
	active := false
	for iter.Scan(&state) {
		if models.RefundState(state) != models.StateDenied {
			active = true
		}
	}
	if err := iter.Close(); err != nil {
		return false, err
	}
	return active, nil
}

func (s *ScyllaStore) ListByUser(ctx context.Context, userID string) ([]models.RefundRequest, error) {
	session, err := database.GetRefundsSession()
	if err != nil {
		return nil, err
	}

	iter := session.Query(`
		SELECT `+refundColumns+` FROM refund_requests WHERE user_id = ? ALLOW FILTERING
	`, userID).WithContext(ctx).Iter()

	return collectRefunds(iter)
}

func (s *ScyllaStore) List(ctx context.Context, state *models.RefundState, page, pageSize int) ([]models.RefundRequest, error) {
	session, err := database.GetRefundsSession()
	if err != nil {
		return nil, err
	}

	var iter *gocql.Iter
	if state != nil {
		iter = session.Query(`
			SELECT `+refundColumns+` FROM refund_requests WHERE state = ? ALLOW FILTERING
		`, string(*state)).WithContext(ctx).Iter()
	} else {
		iter = session.Query(`SELECT ` + refundColumns + ` FROM refund_requests`).WithContext(ctx).Iter()
	}

	all, err := collectRefunds(iter)
	if err != nil {
		return nil, err
	}

	// Pagination en mémoire : volumes de remboursements faibles, même
	// compromis que le listing admin d'origine.
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= len(all) {
		return []models.RefundRequest{}, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (s *ScyllaStore) CountByState(ctx context.Context) (map[models.RefundState]int, error) {
	session, err := database.GetRefundsSession()
	if err != nil {
		return nil, err
	}

	iter := session.Query(`SELECT state FROM refund_requests`).WithContext(ctx).Iter()

	counts := make(map[models.RefundState]int)
	var state string
	for iter.Scan(&state) {
		counts[models.RefundState(state)]++
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return counts, nil
}

func (s *ScyllaStore) SumCompletedAmount(ctx context.Context) (float64, error) {
	session, err := database.GetRefundsSession()
	if err != nil {
		return 0, err
	}

	iter := session.Query(`
		SELECT refund_amount FROM refund_requests WHERE state = ? ALLOW FILTERING
	`, string(models.StateCompleted)).WithContext(ctx).Iter()

	var total, amount float64
	for iter.Scan(&amount) {
		total += amount
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}
	return total, nil
}

func collectRefunds(iter *gocql.Iter) ([]models.RefundRequest, error) {
	refunds := []models.RefundRequest{}
	for {
		rec := models.RefundRequest{}
		var state, reason string
		var rawNotes, rawHistory []string
		ok := iter.Scan(
			&rec.ID, &rec.OrderID, &rec.OrderItemID, &rec.UserID, &state, &reason, &rec.ReasonDetails,
			&rec.OriginalAmount, &rec.RefundAmount, &rec.VendorCreditAmount, &rec.VendorCreditReceived,
			&rec.GatewayRefundID, &rawNotes, &rawHistory, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt,
		)
		if !ok {
			break
		}
		rec.State = models.RefundState(state)
		rec.ReasonCode = models.ReasonCode(reason)
		for _, raw := range rawNotes {
			var n models.RefundNote
			if json.Unmarshal([]byte(raw), &n) == nil {
				rec.Notes = append(rec.Notes, n)
			}
		}
		for _, raw := range rawHistory {
			var h models.HistoryEntry
			if json.Unmarshal([]byte(raw), &h) == nil {
				rec.History = append(rec.History, h)
			}
		}
		refunds = append(refunds, rec)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return refunds, nil
}
