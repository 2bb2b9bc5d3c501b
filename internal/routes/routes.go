package routes

import (
	"github.com/gin-gonic/gin"

	"refund_engine/internal/handlers/refunds"
	"refund_engine/internal/middleware"
)

func RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api", middleware.APIRateLimit())

	// Côté client : création de demande et suivi
	client := api.Group("/refunds", middleware.AuthRequired())
	{
		client.POST("/orders/:orderId/items/:itemId", middleware.RefundRequestRateLimit(), refunds.RequestRefund)
		client.GET("/me", refunds.GetMyRefunds)
		client.POST("/:refundId/attachments", refunds.UploadAttachment)
	}

	// Console opérateur : transitions, crédit fournisseur, passerelle, stats
	admin := api.Group("/admin/refunds", middleware.AuthRequired(), middleware.RequireOperator)
	{
		admin.GET("", refunds.ListRefunds)
		admin.GET("/stats", refunds.GetRefundStats)
		admin.GET("/:refundId", refunds.GetRefund)
		admin.POST("/:refundId/transition", refunds.TransitionRefund)
		admin.POST("/:refundId/credit", refunds.RecordVendorCredit)
		admin.POST("/:refundId/process-gateway", refunds.ProcessGatewayRefund)
	}
}
