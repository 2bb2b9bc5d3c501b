package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitionTableShape(t *testing.T) {
	// Tous les états de l'énumération figurent dans la table, et toutes
	// les cibles y renvoient : la table est close sur elle-même.
	for state, targets := range Transitions {
		assert.True(t, state.IsValid())
		for _, target := range targets {
			assert.True(t, target.IsValid(), "cible inconnue %s depuis %s", target, state)
		}
	}

	assert.True(t, StateDenied.IsTerminal())
	assert.True(t, StateCompleted.IsTerminal())
	assert.False(t, StateRequested.IsTerminal())

	assert.True(t, StateRequested.CanTransitionTo(StateUnderReview))
	assert.True(t, StateRequested.CanTransitionTo(StateDenied))
	assert.False(t, StateRequested.CanTransitionTo(StateApproved))
	assert.False(t, StateCompleted.CanTransitionTo(StateRequested))
	assert.False(t, RefundState("INCONNU").IsValid())
}

func TestAllowedTargetsAppliesCreditPrecondition(t *testing.T) {
	rec := &RefundRequest{State: StateVendorCreditReceived}

	// Sans crédit fournisseur reçu, la console ne doit même pas proposer
	// CUSTOMER_REFUND_PROCESSING.
	assert.Empty(t, rec.AllowedTargets())

	rec.VendorCreditReceived = true
	assert.Equal(t, []RefundState{StateCustomerRefundProcessing}, rec.AllowedTargets())
}

func TestReasonCodeValidation(t *testing.T) {
	for _, r := range []ReasonCode{ReasonDefective, ReasonWrongItem, ReasonNotAsDescribed, ReasonChangedMind, ReasonOther} {
		assert.True(t, r.IsValid())
	}
	assert.False(t, ReasonCode("").IsValid())
	assert.False(t, ReasonCode("parce_que").IsValid())
}
