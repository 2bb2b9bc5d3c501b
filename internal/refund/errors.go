package refund

import "errors"

// Taxonomie d'erreurs du moteur. Les quatre premières sont rejetées de façon
// synchrone sans toucher l'enregistrement ; les erreurs passerelle laissent
// l'enregistrement en CUSTOMER_REFUND_PROCESSING.
var (
	ErrNotFound               = errors.New("demande de remboursement introuvable")
	ErrForbidden              = errors.New("cette commande ne vous appartient pas")
	ErrInvalidTransition      = errors.New("transition d'état illégale")
	ErrMissingEvidence        = errors.New("un refus doit être justifié par une note")
	ErrPreconditionFailed     = errors.New("précondition non satisfaite")
	ErrConcurrentModification = errors.New("modification concurrente, rechargez et réessayez")
	ErrNotEligible            = errors.New("article non éligible au remboursement")
	ErrGatewayRetryable       = errors.New("erreur passerelle temporaire, nouvel essai possible")
	ErrGatewayFatal           = errors.New("erreur passerelle définitive, intervention manuelle requise")
)
