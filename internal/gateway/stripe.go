package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gocql/gocql"
	"github.com/stripe/stripe-go/v83"
	striperefund "github.com/stripe/stripe-go/v83/refund"

	"refund_engine/internal/refund"
)

// stripeCallTimeout borne l'appel réseau vers Stripe. Une fois l'appel
// parti, il ne s'annule pas : on réessaie ou on laisse à l'opérateur.
const stripeCallTimeout = 30 * time.Second

// StripeGateway exécute le remboursement monétaire via Stripe. La clé
// d'idempotence est dérivée du refundID : un réessai réseau avec la même clé
// ne produit jamais un second mouvement d'argent.
type StripeGateway struct{}

func NewStripeGateway() *StripeGateway {
	return &StripeGateway{}
}

func (g *StripeGateway) Refund(ctx context.Context, refundID gocql.UUID, paymentIntentID string, amount float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, stripeCallTimeout)
	defer cancel()

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
		Amount:        stripe.Int64(int64(amount * 100)),
		Reason:        stripe.String("requested_by_customer"),
	}
	params.Context = ctx
	params.SetIdempotencyKey("refund_" + refundID.String())

	stripeRefund, err := striperefund.New(params)
	if err != nil {
		classified := ClassifyStripeError(err)
		log.Printf("❌ Erreur Stripe refund pour %s: %v", refundID, err)
		return "", classified
	}

	log.Printf("✅ Remboursement Stripe créé: %s (refund %s)", stripeRefund.ID, refundID)
	return stripeRefund.ID, nil
}

// ClassifyStripeError range un échec Stripe dans la taxonomie du moteur :
// timeout/réseau/5xx → réessayable (la clé d'idempotence protège le
// réessai) ; rejet applicatif (moyen de paiement invalide, requête
// illégale) → définitif, décision humaine.
func ClassifyStripeError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", refund.ErrGatewayRetryable, err)
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Type {
		case stripe.ErrorTypeAPI:
			// Problème côté Stripe, réessayable.
			return fmt.Errorf("%w: %v", refund.ErrGatewayRetryable, err)
		case stripe.ErrorTypeCard, stripe.ErrorTypeInvalidRequest:
			return fmt.Errorf("%w: %v", refund.ErrGatewayFatal, err)
		}
		if stripeErr.HTTPStatusCode >= 500 || stripeErr.HTTPStatusCode == 429 {
			return fmt.Errorf("%w: %v", refund.ErrGatewayRetryable, err)
		}
		return fmt.Errorf("%w: %v", refund.ErrGatewayFatal, err)
	}

	// Erreur de transport sans réponse Stripe : réessayable.
	return fmt.Errorf("%w: %v", refund.ErrGatewayRetryable, err)
}
