package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v83"
	"github.com/stretchr/testify/assert"

	"refund_engine/internal/refund"
)

func TestClassifyStripeError(t *testing.T) {
	t.Run("timeout: réessayable", func(t *testing.T) {
		err := ClassifyStripeError(context.DeadlineExceeded)
		assert.ErrorIs(t, err, refund.ErrGatewayRetryable)
	})

	t.Run("erreur API Stripe: réessayable", func(t *testing.T) {
		err := ClassifyStripeError(&stripe.Error{Type: stripe.ErrorTypeAPI, HTTPStatusCode: 500})
		assert.ErrorIs(t, err, refund.ErrGatewayRetryable)
	})

	t.Run("rate limit Stripe: réessayable", func(t *testing.T) {
		err := ClassifyStripeError(&stripe.Error{HTTPStatusCode: 429})
		assert.ErrorIs(t, err, refund.ErrGatewayRetryable)
	})

	t.Run("moyen de paiement invalide: définitif", func(t *testing.T) {
		err := ClassifyStripeError(&stripe.Error{Type: stripe.ErrorTypeCard, HTTPStatusCode: 402})
		assert.ErrorIs(t, err, refund.ErrGatewayFatal)
	})

	t.Run("requête invalide: définitif", func(t *testing.T) {
		err := ClassifyStripeError(&stripe.Error{Type: stripe.ErrorTypeInvalidRequest, HTTPStatusCode: 400})
		assert.ErrorIs(t, err, refund.ErrGatewayFatal)
	})

	t.Run("erreur de transport: réessayable", func(t *testing.T) {
		err := ClassifyStripeError(errors.New("connection reset by peer"))
		assert.ErrorIs(t, err, refund.ErrGatewayRetryable)
	})
}
