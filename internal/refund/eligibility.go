package refund

import (
	"time"

	"refund_engine/internal/models"
)

// ReturnWindow est la fenêtre de retour après livraison.
const ReturnWindow = 30 * 24 * time.Hour

// Eligibility est le résultat de la politique d'éligibilité.
type Eligibility struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

// CheckEligibility décide si une ligne de commande peut faire l'objet d'un
// remboursement. Fonction pure : toujours ré-évaluée côté serveur à la
// création de la demande, quoi que le client ait affiché.
func CheckEligibility(item *models.OrderItem, hasActiveRefund bool, now time.Time) Eligibility {
	if item.ProductCategory != models.CategorySupplies {
		// Gradés, collectors, scellés : vente ferme.
		return Eligibility{Eligible: false, Reason: "catégorie de produit non retournable (vente ferme)"}
	}
	if item.DeliveredAt == nil {
		return Eligibility{Eligible: false, Reason: "date de livraison inconnue"}
	}
	if now.Sub(*item.DeliveredAt) > ReturnWindow {
		return Eligibility{Eligible: false, Reason: "fenêtre de retour de 30 jours dépassée"}
	}
	if hasActiveRefund {
		return Eligibility{Eligible: false, Reason: "une demande de remboursement existe déjà pour cet article"}
	}
	return Eligibility{Eligible: true}
}
