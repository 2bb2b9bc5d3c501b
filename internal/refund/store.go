package refund

import (
	"context"

	"github.com/gocql/gocql"

	"refund_engine/internal/models"
)

// Store est la source de vérité des demandes de remboursement. Toute mutation
// est conditionnée par rec.Version : en cas de conflit l'implémentation doit
// retourner ErrConcurrentModification sans rien écrire.
type Store interface {
	// Get charge un enregistrement complet (notes et historique compris).
	Get(ctx context.Context, id gocql.UUID) (*models.RefundRequest, error)

	// Insert crée l'enregistrement initial en état REQUESTED.
	Insert(ctx context.Context, rec *models.RefundRequest) error

	// ApplyTransition commet atomiquement le nouvel état, l'entrée
	// d'historique, la note éventuelle et updated_at. rec porte déjà les
	// nouvelles valeurs de colonnes (state, refund_amount,
	// vendor_credit_received, gateway_refund_id...) et l'ANCIENNE version ;
	// en cas de succès le store incrémente rec.Version et ajoute entry/note
	// aux listes en mémoire.
	ApplyTransition(ctx context.Context, rec *models.RefundRequest, entry models.HistoryEntry, note *models.RefundNote) error

	// AppendNote ajoute une note hors transition (pièce justificative,
	// commentaire opérateur) sous CAS, sans entrée d'historique.
	AppendNote(ctx context.Context, rec *models.RefundRequest, note models.RefundNote) error

	// UpdateVendorCreditAmount enregistre le montant de crédit fournisseur
	// sous CAS, sans entrée d'historique (ce n'est pas une transition).
	UpdateVendorCreditAmount(ctx context.Context, rec *models.RefundRequest, amount float64) error

	// HasActiveForOrderItem indique s'il existe déjà une demande non refusée
	// pour cette ligne de commande.
	HasActiveForOrderItem(ctx context.Context, orderItemID gocql.UUID) (bool, error)

	// ListByUser retourne les demandes d'un client.
	ListByUser(ctx context.Context, userID string) ([]models.RefundRequest, error)

	// List retourne une page de demandes, optionnellement filtrée par état.
	List(ctx context.Context, state *models.RefundState, page, pageSize int) ([]models.RefundRequest, error)

	// CountByState et SumCompletedAmount alimentent l'agrégateur de stats ;
	// lecture seule, cohérence éventuelle acceptée.
	CountByState(ctx context.Context) (map[models.RefundState]int, error)
	SumCompletedAmount(ctx context.Context) (float64, error)
}

// OrderReader lit les lignes de commande du sous-système orders (externe).
type OrderReader interface {
	GetOrderItem(ctx context.Context, orderID, orderItemID gocql.UUID) (*models.OrderItem, error)
}
