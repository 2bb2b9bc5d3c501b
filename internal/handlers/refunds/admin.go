package refunds

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"refund_engine/internal/middleware"
	"refund_engine/internal/models"
	"refund_engine/internal/refund"
)

func parseRefundID(c *gin.Context) (gocql.UUID, bool) {
	id, err := uuid.Parse(c.Param("refundId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID remboursement invalide"})
		return gocql.UUID{}, false
	}
	return gocql.UUID(id), true
}

// ListRefunds retourne une page de demandes pour la console opérateur,
// filtrable par état.
func ListRefunds(c *gin.Context) {
	var state *models.RefundState
	if s := c.Query("state"); s != "" {
		st := models.RefundState(s)
		if !st.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "État inconnu: " + s})
			return
		}
		state = &st
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	refunds, err := engine.List(c.Request.Context(), state, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur lecture remboursements"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"refunds": refunds,
		"count":   len(refunds),
		"page":    page,
	})
}

// GetRefund retourne une demande complète, avec les cibles de transition
// réellement légales pour que la console ne propose que des actions valides.
// Le serveur re-valide de toute façon.
func GetRefund(c *gin.Context) {
	refundID, ok := parseRefundID(c)
	if !ok {
		return
	}

	rec, err := engine.Get(c.Request.Context(), refundID)
	if err != nil {
		if errors.Is(err, refund.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Demande de remboursement introuvable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur lecture remboursement"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"refund":          rec,
		"allowed_targets": rec.AllowedTargets(),
	})
}

// TransitionRefund applique une transition d'état demandée par un opérateur.
func TransitionRefund(c *gin.Context) {
	refundID, ok := parseRefundID(c)
	if !ok {
		return
	}

	var req struct {
		Target       string   `json:"target" binding:"required"`
		Note         string   `json:"note" binding:"max=1000"`
		RefundAmount *float64 `json:"refund_amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
		return
	}

	rec, err := engine.Transition(c.Request.Context(), refund.TransitionInput{
		RefundID:     refundID,
		Target:       models.RefundState(req.Target),
		Actor:        middleware.Actor(c),
		Note:         req.Note,
		RefundAmount: req.RefundAmount,
	})
	if err != nil {
		respondTransitionError(c, refundID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         "Transition appliquée",
		"refund":          rec,
		"allowed_targets": rec.AllowedTargets(),
	})
}

// RecordVendorCredit enregistre le montant de crédit fournisseur annoncé.
func RecordVendorCredit(c *gin.Context) {
	refundID, ok := parseRefundID(c)
	if !ok {
		return
	}

	var req struct {
		Amount float64 `json:"amount" binding:"required,gt=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
		return
	}

	rec, err := engine.RecordVendorCreditAmount(c.Request.Context(), refundID, req.Amount)
	if err != nil {
		respondTransitionError(c, refundID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Crédit fournisseur enregistré",
		"refund":  rec,
	})
}

// ProcessGatewayRefund déclenche le mouvement d'argent vers le client.
// Opération explicite, découplée de la transition CUSTOMER_REFUND_PROCESSING
// pour qu'un réessai après échec passerelle ne rejoue pas toute la chaîne.
func ProcessGatewayRefund(c *gin.Context) {
	refundID, ok := parseRefundID(c)
	if !ok {
		return
	}

	rec, err := engine.ProcessGatewayRefund(c.Request.Context(), refundID, middleware.Actor(c))
	if err != nil {
		switch {
		case errors.Is(err, refund.ErrGatewayRetryable):
			c.JSON(http.StatusBadGateway, gin.H{
				"error":     "Erreur passerelle temporaire, réessayez",
				"retryable": true,
				"details":   err.Error(),
			})
		case errors.Is(err, refund.ErrGatewayFatal):
			// Pas de transition automatique : décision humaine requise.
			c.JSON(http.StatusBadGateway, gin.H{
				"error":     "Erreur passerelle définitive, intervention manuelle requise",
				"retryable": false,
				"details":   err.Error(),
			})
		default:
			respondTransitionError(c, refundID, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":           "Remboursement traité avec succès",
		"refund":            rec,
		"gateway_refund_id": rec.GatewayRefundID,
		"amount":            rec.RefundAmount,
	})
}

// GetRefundStats retourne les agrégats lecture seule pour les tableaux de
// bord.
func GetRefundStats(c *gin.Context) {
	stats, err := engine.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur calcul statistiques"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// respondTransitionError traduit la taxonomie du moteur en réponses HTTP.
func respondTransitionError(c *gin.Context, refundID gocql.UUID, err error) {
	switch {
	case errors.Is(err, refund.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Demande de remboursement introuvable"})
	case errors.Is(err, refund.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "Transition illégale", "details": err.Error()})
	case errors.Is(err, refund.ErrMissingEvidence):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Un refus doit être justifié par une note"})
	case errors.Is(err, refund.ErrPreconditionFailed):
		c.JSON(http.StatusConflict, gin.H{"error": "Précondition non satisfaite", "details": err.Error()})
	case errors.Is(err, refund.ErrConcurrentModification):
		c.JSON(http.StatusConflict, gin.H{"error": "Modification concurrente, rechargez et réessayez"})
	default:
		log.Printf("❌ Erreur transition remboursement %s: %v", refundID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur traitement"})
	}
}
