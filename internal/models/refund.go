package models

import (
	"time"

	"github.com/gocql/gocql"
)

// RefundState représente l'état d'une demande de remboursement.
type RefundState string

const (
	StateRequested                RefundState = "REQUESTED"
	StateUnderReview              RefundState = "UNDER_REVIEW"
	StateApproved                 RefundState = "APPROVED"
	StateDenied                   RefundState = "DENIED"
	StateVendorReturnInitiated    RefundState = "VENDOR_RETURN_INITIATED"
	StateVendorCreditPending      RefundState = "VENDOR_CREDIT_PENDING"
	StateVendorCreditReceived     RefundState = "VENDOR_CREDIT_RECEIVED"
	StateCustomerRefundProcessing RefundState = "CUSTOMER_REFUND_PROCESSING"
	StateCompleted                RefundState = "COMPLETED"
)

// Transitions est la table de légalité côté serveur : c'est la SEULE source
// de vérité, jamais ce que le client croit pouvoir faire.
var Transitions = map[RefundState][]RefundState{
	StateRequested:                {StateUnderReview, StateDenied},
	StateUnderReview:              {StateApproved, StateDenied},
	StateApproved:                 {StateVendorReturnInitiated},
	StateVendorReturnInitiated:    {StateVendorCreditPending},
	StateVendorCreditPending:      {StateVendorCreditReceived},
	StateVendorCreditReceived:     {StateCustomerRefundProcessing},
	StateCustomerRefundProcessing: {StateCompleted},
	StateDenied:                   {}, // état terminal
	StateCompleted:                {}, // état terminal
}

// IsValid vérifie que l'état fait partie de l'énumération.
func (s RefundState) IsValid() bool {
	_, ok := Transitions[s]
	return ok
}

// IsTerminal indique si l'état n'a aucune transition sortante.
func (s RefundState) IsTerminal() bool {
	targets, ok := Transitions[s]
	return ok && len(targets) == 0
}

// CanTransitionTo vérifie l'adjacence dans la table de transitions.
func (s RefundState) CanTransitionTo(target RefundState) bool {
	for _, t := range Transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// ReasonCode représente le motif de la demande, fixé à la création.
type ReasonCode string

const (
	ReasonDefective      ReasonCode = "DEFECTIVE"
	ReasonWrongItem      ReasonCode = "WRONG_ITEM"
	ReasonNotAsDescribed ReasonCode = "NOT_AS_DESCRIBED"
	ReasonChangedMind    ReasonCode = "CHANGED_MIND"
	ReasonOther          ReasonCode = "OTHER"
)

// IsValid vérifie que le motif fait partie de l'énumération.
func (r ReasonCode) IsValid() bool {
	switch r {
	case ReasonDefective, ReasonWrongItem, ReasonNotAsDescribed, ReasonChangedMind, ReasonOther:
		return true
	}
	return false
}

// RefundNote est une note attachée à la demande (append-only).
type RefundNote struct {
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryEntry est une entrée de la piste d'audit : exactement une par
// transition appliquée, jamais réécrite ni réordonnée.
type HistoryEntry struct {
	FromState RefundState `json:"from_state"`
	ToState   RefundState `json:"to_state"`
	Actor     string      `json:"actor"`
	Note      string      `json:"note,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// RefundRequest est l'enregistrement durable d'une demande de remboursement.
// L'état n'est muté que par le moteur de transitions ; la colonne version
// porte la concurrence optimiste (LWT côté ScyllaDB).
type RefundRequest struct {
	ID                   gocql.UUID     `json:"id" db:"refund_id"`
	OrderID              gocql.UUID     `json:"order_id" db:"order_id"`
	OrderItemID          gocql.UUID     `json:"order_item_id" db:"order_item_id"`
	UserID               string         `json:"user_id" db:"user_id"`
	State                RefundState    `json:"state" db:"state"`
	ReasonCode           ReasonCode     `json:"reason_code" db:"reason_code"`
	ReasonDetails        string         `json:"reason_details,omitempty" db:"reason_details"`
	OriginalAmount       float64        `json:"original_amount" db:"original_amount"`
	RefundAmount         float64        `json:"refund_amount" db:"refund_amount"`
	VendorCreditAmount   float64        `json:"vendor_credit_amount" db:"vendor_credit_amount"`
	VendorCreditReceived bool           `json:"vendor_credit_received" db:"vendor_credit_received"`
	GatewayRefundID      string         `json:"gateway_refund_id,omitempty" db:"gateway_refund_id"`
	Notes                []RefundNote   `json:"notes" db:"notes"`
	History              []HistoryEntry `json:"history" db:"history"`
	Version              int            `json:"-" db:"version"`
	CreatedAt            time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at" db:"updated_at"`
}

// AllowedTargets retourne les cibles réellement légales pour cet
// enregistrement : l'adjacence de la table, plus la précondition de crédit
// fournisseur que la table seule ne peut pas exprimer.
func (r *RefundRequest) AllowedTargets() []RefundState {
	targets := make([]RefundState, 0, len(Transitions[r.State]))
	for _, t := range Transitions[r.State] {
		if t == StateCustomerRefundProcessing && !r.VendorCreditReceived {
			continue
		}
		targets = append(targets, t)
	}
	return targets
}
