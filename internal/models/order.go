package models

import (
	"time"

	"github.com/gocql/gocql"
)

// Catégories de produit référencées par la politique d'éligibilité.
// Seule la catégorie "supplies" est retournable ; le reste (gradés,
// collectors, scellés) est vente ferme.
const (
	CategorySupplies = "supplies"
	CategoryGraded   = "graded"
	CategoryRaw      = "raw"
	CategorySealed   = "sealed"
)

// OrderItem est la ligne de commande telle que lue depuis le keyspace orders.
// Propriété du sous-système commandes : lecture seule ici.
type OrderItem struct {
	OrderID         gocql.UUID `json:"order_id" db:"order_id"`
	OrderItemID     gocql.UUID `json:"order_item_id" db:"order_item_id"`
	UserID          string     `json:"user_id" db:"user_id"`
	ProductCategory string     `json:"product_category" db:"product_category"`
	PaymentIntentID string     `json:"payment_intent_id" db:"payment_intent_id"`
	Price           float64    `json:"price" db:"price"`
	Status          string     `json:"status" db:"status"`
	DeliveredAt     *time.Time `json:"delivered_at,omitempty" db:"delivered_at"`
}
