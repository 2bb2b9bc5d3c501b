package refund

import (
	"context"
	"testing"
	"time"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refund_engine/internal/models"
)

func suppliesItem(deliveredDaysAgo int) *models.OrderItem {
	delivered := time.Now().Add(-time.Duration(deliveredDaysAgo) * 24 * time.Hour)
	return &models.OrderItem{
		OrderID:         gocql.TimeUUID(),
		OrderItemID:     gocql.TimeUUID(),
		UserID:          "client@example.com",
		ProductCategory: models.CategorySupplies,
		Price:           20.00,
		Status:          "delivered",
		DeliveredAt:     &delivered,
	}
}

func TestCheckEligibility(t *testing.T) {
	now := time.Now()

	t.Run("fourniture livrée dans la fenêtre: éligible", func(t *testing.T) {
		elig := CheckEligibility(suppliesItem(10), false, now)
		assert.True(t, elig.Eligible)
		assert.Empty(t, elig.Reason)
	})

	t.Run("article gradé: vente ferme, jamais éligible", func(t *testing.T) {
		item := suppliesItem(10)
		item.ProductCategory = models.CategoryGraded
		elig := CheckEligibility(item, false, now)
		assert.False(t, elig.Eligible)
		assert.NotEmpty(t, elig.Reason)
	})

	t.Run("date de livraison inconnue: inéligible", func(t *testing.T) {
		item := suppliesItem(10)
		item.DeliveredAt = nil
		assert.False(t, CheckEligibility(item, false, now).Eligible)
	})

	t.Run("fenêtre de 30 jours dépassée: inéligible", func(t *testing.T) {
		assert.False(t, CheckEligibility(suppliesItem(31), false, now).Eligible)
	})

	t.Run("livré il y a exactement 30 jours: encore éligible", func(t *testing.T) {
		delivered := now.Add(-ReturnWindow)
		item := suppliesItem(0)
		item.DeliveredAt = &delivered
		assert.True(t, CheckEligibility(item, false, now).Eligible)
	})

	t.Run("demande active existante: inéligible", func(t *testing.T) {
		assert.False(t, CheckEligibility(suppliesItem(10), true, now).Eligible)
	})
}

// Scénario B : tentative de création pour un article gradé → aucune demande
// créée, l'éligibilité est re-validée côté serveur.
func TestCreateRequestRejectsIneligibleItem(t *testing.T) {
	env := newTestEnv()

	item := suppliesItem(10)
	item.ProductCategory = models.CategoryGraded
	env.orders.add(item)

	_, err := env.engine.CreateRequest(context.Background(), CreateInput{
		OrderID:     item.OrderID,
		OrderItemID: item.OrderItemID,
		UserID:      item.UserID,
		ReasonCode:  models.ReasonChangedMind,
	})
	require.ErrorIs(t, err, ErrNotEligible)

	refunds, err := env.store.ListByUser(context.Background(), item.UserID)
	require.NoError(t, err)
	assert.Empty(t, refunds)
}

// Une seconde demande sur la même ligne est refusée tant que la première
// n'est pas DENIED ; après un refus, une nouvelle demande redevient possible.
func TestCreateRequestDuplicateHandling(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	item := suppliesItem(5)
	env.orders.add(item)

	first, err := env.engine.CreateRequest(ctx, CreateInput{
		OrderID:     item.OrderID,
		OrderItemID: item.OrderItemID,
		UserID:      item.UserID,
		ReasonCode:  models.ReasonWrongItem,
	})
	require.NoError(t, err)

	_, err = env.engine.CreateRequest(ctx, CreateInput{
		OrderID:     item.OrderID,
		OrderItemID: item.OrderItemID,
		UserID:      item.UserID,
		ReasonCode:  models.ReasonWrongItem,
	})
	require.ErrorIs(t, err, ErrNotEligible)

	_, err = env.engine.Transition(ctx, TransitionInput{
		RefundID: first.ID,
		Target:   models.StateDenied,
		Actor:    "ops@example.com",
		Note:     "photo illisible",
	})
	require.NoError(t, err)

	_, err = env.engine.CreateRequest(ctx, CreateInput{
		OrderID:     item.OrderID,
		OrderItemID: item.OrderItemID,
		UserID:      item.UserID,
		ReasonCode:  models.ReasonWrongItem,
	})
	require.NoError(t, err)
}

func TestCreateRequestOwnershipAndReason(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	item := suppliesItem(5)
	env.orders.add(item)

	_, err := env.engine.CreateRequest(ctx, CreateInput{
		OrderID:     item.OrderID,
		OrderItemID: item.OrderItemID,
		UserID:      "autre@example.com",
		ReasonCode:  models.ReasonDefective,
	})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = env.engine.CreateRequest(ctx, CreateInput{
		OrderID:     item.OrderID,
		OrderItemID: item.OrderItemID,
		UserID:      item.UserID,
		ReasonCode:  models.ReasonCode("PARCE_QUE"),
	})
	require.ErrorIs(t, err, ErrPreconditionFailed)
}
