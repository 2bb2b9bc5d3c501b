package refund

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"

	"refund_engine/internal/database"
	"refund_engine/internal/models"
)

// ScyllaOrderReader lit les lignes de commande depuis le keyspace orders,
// propriété du sous-système commandes. Lecture seule.
type ScyllaOrderReader struct{}

func NewScyllaOrderReader() *ScyllaOrderReader {
	return &ScyllaOrderReader{}
}

func (r *ScyllaOrderReader) GetOrderItem(ctx context.Context, orderID, orderItemID gocql.UUID) (*models.OrderItem, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, err
	}

	item := models.OrderItem{OrderID: orderID, OrderItemID: orderItemID}
	err = session.Query(`
		SELECT user_id, product_category, payment_intent_id, price, status, delivered_at
		FROM order_items WHERE order_id = ? AND order_item_id = ?
	`, orderID, orderItemID).WithContext(ctx).Scan(
		&item.UserID, &item.ProductCategory, &item.PaymentIntentID, &item.Price, &item.Status, &item.DeliveredAt,
	)
	if err == gocql.ErrNotFound {
		return nil, fmt.Errorf("%w: ligne de commande %s", ErrNotFound, orderItemID)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}
