package refunds

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"

	"refund_engine/internal/database"
	"refund_engine/internal/refund"
)

// UploadAttachment permet au client de déposer une pièce justificative
// (photo de l'article défectueux). L'objet part dans MinIO et la clé est
// tracée comme note sur la demande.
func UploadAttachment(c *gin.Context) {
	userID := c.GetString("user_id")

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
	if rec.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cette demande ne vous appartient pas"})
		return
	}
	if rec.State.IsTerminal() {
		c.JSON(http.StatusConflict, gin.H{"error": "Demande clôturée, pièce refusée"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Fichier manquant"})
		return
	}
	defer file.Close()

	ext := filepath.Ext(header.Filename)
	objectName := fmt.Sprintf("refunds/%s/%d%s", refundID, time.Now().UnixNano(), ext)

	_, err = database.MinIO.PutObject(
		context.Background(),
		os.Getenv("MINIO_BUCKET"),
		objectName,
		file,
		header.Size,
		minio.PutObjectOptions{ContentType: header.Header.Get("Content-Type")},
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur upload MinIO: " + err.Error()})
		return
	}

	rec, err = engine.AddNote(c.Request.Context(), refundID, userID, "Pièce justificative: "+objectName)
	if err != nil {
		respondTransitionError(c, refundID, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":    "Pièce justificative enregistrée",
		"attachment": objectName,
		"refund":     rec,
	})
}
