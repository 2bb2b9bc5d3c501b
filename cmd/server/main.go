package main

import (
	"log"
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v83"

	"refund_engine/internal/config"
	"refund_engine/internal/database"
	"refund_engine/internal/gateway"
	"refund_engine/internal/handlers/refunds"
	"refund_engine/internal/refund"
	"refund_engine/internal/routes"
	"refund_engine/internal/utils"
)

func main() {
	config.Load()

	secret := os.Getenv("STRIPE_SECRET_KEY")
	stripe.Key = secret
	if stripe.Key == "" {
		log.Fatal("❌ Impossible d'initialiser Stripe : clé manquante")
	}
	log.Println("✅ Stripe initialisé")

	database.ConnectDatabases()
	defer database.CloseScylla()

	// Assemblage du moteur de remboursement
	engine := refund.NewEngine(
		refund.NewScyllaStore(),
		refund.NewScyllaOrderReader(),
		gateway.NewStripeGateway(),
		refund.NewRedisGatewayLock(database.Redis),
		utils.NewMailNotifier(),
	)
	refunds.Init(engine)

	r := gin.Default()
	r.Use(cors.New(corsConfig()))
	routes.RegisterRoutes(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Println("🚀 Moteur de remboursement lancé sur le port", port)
	r.Run(":" + port)
}

func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	origins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if origins == "" {
		cfg.AllowOrigins = []string{"http://localhost:3000"}
	} else {
		cfg.AllowOrigins = strings.Split(origins, ",")
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	cfg.AllowCredentials = true
	return cfg
}
