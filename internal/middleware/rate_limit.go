package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"refund_engine/internal/database"
)

const (
	// Limites par endpoint
	RefundRequestMaxAttempts = 5   // créations de demande par client
	APIMaxRequests           = 100 // par minute pour les endpoints généraux

	// Durées de cooldown
	RefundRequestCooldown = 30 * time.Minute
	APICooldown           = 1 * time.Minute
)

// RefundRequestRateLimit limite les créations de demande de remboursement
// par client, pour ne pas laisser un script marteler la politique
// d'éligibilité.
func RefundRequestRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			c.Next()
			return
		}

		ctx := context.Background()
		key := "refund_request_attempts:" + userID

		count, err := database.Redis.Incr(ctx, key).Result()
		if err != nil {
			// Redis indisponible : on laisse passer, l'éligibilité
			// serveur reste le vrai garde-fou.
			c.Next()
			return
		}
		if count == 1 {
			database.Redis.Expire(ctx, key, RefundRequestCooldown)
		}

		if count > RefundRequestMaxAttempts {
			ttl := database.Redis.TTL(ctx, key).Val()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       fmt.Sprintf("Trop de demandes de remboursement. Réessayez dans %d minutes", int(ttl.Minutes())),
				"retry_after": int(ttl.Seconds()),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// APIRateLimit limite le débit global par adresse IP.
func APIRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background()
		key := "api_requests:" + c.ClientIP()

		count, err := database.Redis.Incr(ctx, key).Result()
		if err != nil {
			c.Next()
			return
		}
		if count == 1 {
			database.Redis.Expire(ctx, key, APICooldown)
		}

		if count > APIMaxRequests {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Trop de requêtes, ralentissez"})
			c.Abort()
			return
		}

		c.Next()
	}
}
