package refunds

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"refund_engine/internal/models"
	"refund_engine/internal/refund"
)

// engine est posé au démarrage par Init ; tous les handlers passent par lui,
// jamais par le Store directement.
var engine *refund.Engine

func Init(e *refund.Engine) {
	engine = e
}

// RequestRefund permet à un client de demander un remboursement pour une
// ligne de commande. L'éligibilité est re-validée côté serveur quoi que
// l'interface ait affiché.
func RequestRefund(c *gin.Context) {
	userID := c.GetString("user_id")

	var req struct {
		ReasonCode    string `json:"reason_code" binding:"required"`
		ReasonDetails string `json:"reason_details" binding:"max=500"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
		return
	}

	orderUUID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID commande invalide"})
		return
	}
	itemUUID, err := uuid.Parse(c.Param("itemId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID article invalide"})
		return
	}

	rec, err := engine.CreateRequest(c.Request.Context(), refund.CreateInput{
		OrderID:       gocql.UUID(orderUUID),
		OrderItemID:   gocql.UUID(itemUUID),
		UserID:        userID,
		ReasonCode:    models.ReasonCode(req.ReasonCode),
		ReasonDetails: req.ReasonDetails,
	})
	if err != nil {
		switch {
		case errors.Is(err, refund.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Commande introuvable"})
		case errors.Is(err, refund.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "Cette commande ne vous appartient pas"})
		case errors.Is(err, refund.ErrNotEligible):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Article non éligible au remboursement", "details": err.Error()})
		case errors.Is(err, refund.ErrPreconditionFailed):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
		default:
			log.Printf("❌ Erreur création demande remboursement: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur création demande"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Demande de remboursement créée",
		"refund":  rec,
	})
}

// GetMyRefunds récupère les demandes de remboursement du client connecté.
func GetMyRefunds(c *gin.Context) {
	userID := c.GetString("user_id")

	refunds, err := engine.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur lecture remboursements"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"refunds": refunds,
		"count":   len(refunds),
	})
}
