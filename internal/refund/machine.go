package refund

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"refund_engine/internal/models"
)

// Gateway exécute le remboursement monétaire auprès du processeur de
// paiement. L'implémentation doit être idempotente par refundID et classer
// ses échecs en ErrGatewayRetryable ou ErrGatewayFatal.
type Gateway interface {
	Refund(ctx context.Context, refundID gocql.UUID, paymentIntentID string, amount float64) (string, error)
}

// GatewayLock pose un marqueur "appel passerelle en cours" pour un refundID.
// Le verrou n'est PAS tenu pendant l'appel réseau via la base : il vit dans
// Redis avec un TTL, et ne se libère que si le token correspond.
type GatewayLock interface {
	Acquire(ctx context.Context, refundID gocql.UUID) (token string, ok bool, err error)
	Release(ctx context.Context, refundID gocql.UUID, token string) error
}

// Notifier reçoit les événements sortants du moteur. Les implémentations
// sont fire-and-forget : aucune erreur ne remonte dans la transition.
type Notifier interface {
	VendorReturnInitiated(rec *models.RefundRequest)
	RefundDecision(rec *models.RefundRequest)
}

// Engine applique les transitions d'état sur le Store en faisant respecter
// préconditions, preuves obligatoires et ordre des effets de bord.
type Engine struct {
	store    Store
	orders   OrderReader
	gateway  Gateway
	lock     GatewayLock
	notifier Notifier
}

func NewEngine(store Store, orders OrderReader, gateway Gateway, lock GatewayLock, notifier Notifier) *Engine {
	return &Engine{
		store:    store,
		orders:   orders,
		gateway:  gateway,
		lock:     lock,
		notifier: notifier,
	}
}

// CreateInput décrit une demande de remboursement entrante (côté client).
type CreateInput struct {
	OrderID       gocql.UUID
	OrderItemID   gocql.UUID
	UserID        string
	ReasonCode    models.ReasonCode
	ReasonDetails string
}

// CreateRequest ré-évalue l'éligibilité côté serveur puis crée
// l'enregistrement en état REQUESTED. Aucune entrée d'historique à la
// création : l'historique ne compte que les transitions.
func (e *Engine) CreateRequest(ctx context.Context, in CreateInput) (*models.RefundRequest, error) {
	if !in.ReasonCode.IsValid() {
		return nil, fmt.Errorf("%w: motif invalide %q", ErrPreconditionFailed, in.ReasonCode)
	}

	item, err := e.orders.GetOrderItem(ctx, in.OrderID, in.OrderItemID)
	if err != nil {
		return nil, err
	}

	if item.UserID != in.UserID {
		return nil, ErrForbidden
	}

	hasActive, err := e.store.HasActiveForOrderItem(ctx, in.OrderItemID)
	if err != nil {
		return nil, err
	}

	elig := CheckEligibility(item, hasActive, time.Now())
	if !elig.Eligible {
		return nil, fmt.Errorf("%w: %s", ErrNotEligible, elig.Reason)
	}

	now := time.Now()
	rec := &models.RefundRequest{
		ID:             gocql.TimeUUID(),
		OrderID:        in.OrderID,
		OrderItemID:    in.OrderItemID,
		UserID:         in.UserID,
		State:          models.StateRequested,
		ReasonCode:     in.ReasonCode,
		ReasonDetails:  in.ReasonDetails,
		OriginalAmount: item.Price,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := e.store.Insert(ctx, rec); err != nil {
		return nil, err
	}

	log.Printf("💰 Demande de remboursement créée: %s (commande %s, article %s)", rec.ID, in.OrderID, in.OrderItemID)
	return rec, nil
}

// TransitionInput décrit une transition demandée par un opérateur.
// RefundAmount n'est consulté que pour la cible APPROVED.
type TransitionInput struct {
	RefundID     gocql.UUID
	Target       models.RefundState
	Actor        string
	Note         string
	RefundAmount *float64
}

// Transition valide puis commet une transition d'état. Entrée d'historique,
// note éventuelle, nouvel état et updated_at partent dans la même écriture
// conditionnelle : en cas de rejet, l'enregistrement persistant est
// strictement inchangé.
func (e *Engine) Transition(ctx context.Context, in TransitionInput) (*models.RefundRequest, error) {
	if strings.TrimSpace(in.Actor) == "" {
		return nil, fmt.Errorf("%w: toute transition doit être attribuée à un acteur", ErrPreconditionFailed)
	}
	if !in.Target.IsValid() {
		return nil, fmt.Errorf("%w: état cible inconnu %q", ErrInvalidTransition, in.Target)
	}

	rec, err := e.store.Get(ctx, in.RefundID)
	if err != nil {
		return nil, err
	}

	if !rec.State.CanTransitionTo(in.Target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.State, in.Target)
	}

	note := strings.TrimSpace(in.Note)

	// Préconditions que la table d'adjacence seule ne peut pas exprimer.
	switch in.Target {
	case models.StateDenied:
		if note == "" {
			return nil, ErrMissingEvidence
		}
	case models.StateCustomerRefundProcessing:
		if !rec.VendorCreditReceived {
			return nil, fmt.Errorf("%w: crédit fournisseur non reçu", ErrPreconditionFailed)
		}
	case models.StateCompleted:
		// COMPLETED ne se franchit que par ProcessGatewayRefund, jamais
		// par une transition directe sans mouvement d'argent.
		if rec.GatewayRefundID == "" {
			return nil, fmt.Errorf("%w: remboursement passerelle non exécuté", ErrPreconditionFailed)
		}
	}

	from := rec.State
	now := time.Now()
	rec.State = in.Target
	rec.UpdatedAt = now

	if in.Target == models.StateApproved {
		amount := rec.OriginalAmount
		if in.RefundAmount != nil {
			amount = *in.RefundAmount
		}
		if amount <= 0 || amount > rec.OriginalAmount {
			return nil, fmt.Errorf("%w: refund_amount doit être dans ]0, %.2f]", ErrPreconditionFailed, rec.OriginalAmount)
		}
		rec.RefundAmount = amount
	}

	if in.Target == models.StateVendorCreditReceived {
		// Effet de bord lié à la transition : même unité d'écriture.
		rec.VendorCreditReceived = true
	}

	entry := models.HistoryEntry{
		FromState: from,
		ToState:   in.Target,
		Actor:     in.Actor,
		Note:      note,
		CreatedAt: now,
	}

	var noteEntry *models.RefundNote
	if note != "" {
		noteEntry = &models.RefundNote{Author: in.Actor, Content: note, CreatedAt: now}
	}

	if err := e.store.ApplyTransition(ctx, rec, entry, noteEntry); err != nil {
		return nil, err
	}

	log.Printf("🔁 Remboursement %s: %s -> %s (par %s)", rec.ID, from, rec.State, in.Actor)

	if e.notifier != nil {
		switch in.Target {
		case models.StateVendorReturnInitiated:
			e.notifier.VendorReturnInitiated(rec)
		case models.StateDenied:
			e.notifier.RefundDecision(rec)
		}
	}

	return rec, nil
}

// RecordVendorCreditAmount enregistre le montant de crédit fournisseur.
// Autorisé uniquement pendant la phase de retour fournisseur ; ce n'est pas
// une transition, donc pas d'entrée d'historique.
func (e *Engine) RecordVendorCreditAmount(ctx context.Context, refundID gocql.UUID, amount float64) (*models.RefundRequest, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: montant de crédit invalide", ErrPreconditionFailed)
	}

	rec, err := e.store.Get(ctx, refundID)
	if err != nil {
		return nil, err
	}

	if rec.State != models.StateVendorReturnInitiated && rec.State != models.StateVendorCreditPending {
		return nil, fmt.Errorf("%w: crédit fournisseur modifiable uniquement en %s ou %s",
			ErrPreconditionFailed, models.StateVendorReturnInitiated, models.StateVendorCreditPending)
	}

	rec.UpdatedAt = time.Now()
	if err := e.store.UpdateVendorCreditAmount(ctx, rec, amount); err != nil {
		return nil, err
	}

	log.Printf("🧾 Crédit fournisseur enregistré pour %s: %.2f€", refundID, amount)
	return rec, nil
}

// gatewayCommitAttempts borne les réessais du commit COMPLETED après un
// appel passerelle réussi : l'argent a bougé, l'état doit suivre.
const gatewayCommitAttempts = 3

// ProcessGatewayRefund exécute le mouvement d'argent. Ordre inverse des
// autres transitions : l'appel passerelle doit réussir AVANT que l'état
// COMPLETED ne soit commis, car un remboursement monétaire est irréversible.
// Le marqueur Redis empêche deux appels concurrents ; la clé d'idempotence
// (dérivée du refundID) rend les réessais réseau sans danger.
func (e *Engine) ProcessGatewayRefund(ctx context.Context, refundID gocql.UUID, actor string) (*models.RefundRequest, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, fmt.Errorf("%w: toute transition doit être attribuée à un acteur", ErrPreconditionFailed)
	}

	rec, err := e.store.Get(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if rec.State != models.StateCustomerRefundProcessing {
		return nil, fmt.Errorf("%w: état %s, attendu %s", ErrPreconditionFailed, rec.State, models.StateCustomerRefundProcessing)
	}
	if rec.GatewayRefundID != "" {
		return nil, fmt.Errorf("%w: remboursement passerelle déjà exécuté (%s)", ErrPreconditionFailed, rec.GatewayRefundID)
	}

	token, ok, err := e.lock.Acquire(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: un appel passerelle est déjà en cours", ErrConcurrentModification)
	}
	defer func() {
		if err := e.lock.Release(context.Background(), refundID, token); err != nil {
			log.Printf("⚠️ Libération du marqueur passerelle %s échouée: %v", refundID, err)
		}
	}()

	// Relecture sous marqueur : un appel concurrent a pu aboutir entre
	// temps.
	rec, err = e.store.Get(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if rec.State != models.StateCustomerRefundProcessing || rec.GatewayRefundID != "" {
		return nil, fmt.Errorf("%w: remboursement déjà traité", ErrPreconditionFailed)
	}

	item, err := e.orders.GetOrderItem(ctx, rec.OrderID, rec.OrderItemID)
	if err != nil {
		return nil, err
	}

	gatewayID, err := e.gateway.Refund(ctx, rec.ID, item.PaymentIntentID, rec.RefundAmount)
	if err != nil {
		if errors.Is(err, ErrGatewayFatal) {
			// Pas de retour automatique vers DENIED après approbation :
			// l'enregistrement reste en CUSTOMER_REFUND_PROCESSING pour
			// décision humaine.
			log.Printf("❌ Échec passerelle définitif pour %s: %v", refundID, err)
		}
		return nil, err
	}

	// L'argent a bougé : on commet COMPLETED coûte que coûte, avec
	// relecture bornée en cas de conflit de version.
	for attempt := 0; attempt < gatewayCommitAttempts; attempt++ {
		now := time.Now()
		from := rec.State
		rec.State = models.StateCompleted
		rec.GatewayRefundID = gatewayID
		rec.UpdatedAt = now

		entry := models.HistoryEntry{
			FromState: from,
			ToState:   models.StateCompleted,
			Actor:     actor,
			CreatedAt: now,
		}

		err = e.store.ApplyTransition(ctx, rec, entry, nil)
		if err == nil {
			log.Printf("✅ Remboursement traité: %s (passerelle: %s, %.2f€)", rec.ID, gatewayID, rec.RefundAmount)
			if e.notifier != nil {
				e.notifier.RefundDecision(rec)
			}
			return rec, nil
		}
		if !errors.Is(err, ErrConcurrentModification) {
			break
		}
		rec, err = e.store.Get(ctx, refundID)
		if err != nil {
			break
		}
		if rec.State == models.StateCompleted {
			// Quelqu'un d'autre a commis le même remboursement.
			return rec, nil
		}
		if rec.State != models.StateCustomerRefundProcessing {
			err = fmt.Errorf("%w: état inattendu %s après appel passerelle", ErrPreconditionFailed, rec.State)
			break
		}
	}

	log.Printf("⚠️ Remboursement passerelle %s exécuté (%s) mais commit COMPLETED échoué: %v", refundID, gatewayID, err)
	return nil, err
}

// AddNote ajoute une note hors transition : commentaire opérateur ou trace
// d'une pièce justificative déposée par le client.
func (e *Engine) AddNote(ctx context.Context, refundID gocql.UUID, author, content string) (*models.RefundRequest, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: note vide", ErrPreconditionFailed)
	}

	rec, err := e.store.Get(ctx, refundID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rec.UpdatedAt = now
	note := models.RefundNote{Author: author, Content: content, CreatedAt: now}
	if err := e.store.AppendNote(ctx, rec, note); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get expose la lecture d'un enregistrement complet.
func (e *Engine) Get(ctx context.Context, refundID gocql.UUID) (*models.RefundRequest, error) {
	return e.store.Get(ctx, refundID)
}

// ListByUser retourne les demandes d'un client.
func (e *Engine) ListByUser(ctx context.Context, userID string) ([]models.RefundRequest, error) {
	return e.store.ListByUser(ctx, userID)
}

// List retourne une page de demandes pour la console opérateur.
func (e *Engine) List(ctx context.Context, state *models.RefundState, page, pageSize int) ([]models.RefundRequest, error) {
	return e.store.List(ctx, state, page, pageSize)
}
