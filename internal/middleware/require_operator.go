package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireOperator vérifie que l'utilisateur a accès à la console opérateur
// (rôle "admin" ou "operator"). Le serveur re-valide de toute façon chaque
// transition : ce garde ne fait que fermer la porte d'entrée.
func RequireOperator(c *gin.Context) {
	role, exists := c.Get("role")
	if !exists || (role != "admin" && role != "operator") {
		c.JSON(http.StatusForbidden, gin.H{"error": "Accès réservé aux opérateurs"})
		c.Abort()
		return
	}
	c.Next()
}
