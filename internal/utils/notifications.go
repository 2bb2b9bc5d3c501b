package utils

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/wneessen/go-mail"

	"refund_engine/internal/models"
)

// MailNotifier envoie les notifications sortantes du moteur : avis de
// retour au fournisseur et décisions au client. Tout est fire-and-forget,
// aucune erreur ne bloque une transition.
type MailNotifier struct{}

func NewMailNotifier() *MailNotifier {
	return &MailNotifier{}
}

// VendorReturnInitiated prévient le fournisseur qu'un retour part vers lui.
func (n *MailNotifier) VendorReturnInitiated(rec *models.RefundRequest) {
	go func() {
		vendorEmail := os.Getenv("VENDOR_RETURNS_EMAIL")
		if vendorEmail == "" {
			log.Println("⚠️ VENDOR_RETURNS_EMAIL non configuré, avis de retour non envoyé")
			return
		}

		subject := fmt.Sprintf("Retour fournisseur — demande %s", rec.ID)
		body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body>
	<h2>Avis de retour fournisseur</h2>
	<p>Un retour a été initié pour la ligne de commande <b>%s</b> (commande %s).</p>
	<table border="0" cellpadding="4">
		<tr><td>Demande</td><td>%s</td></tr>
		<tr><td>Motif</td><td>%s</td></tr>
		<tr><td>Montant d'origine</td><td>%.2f€</td></tr>
	</table>
</body>
</html>`, rec.OrderItemID, rec.OrderID, rec.ID, rec.ReasonCode, rec.OriginalAmount)

		if err := sendMail(vendorEmail, subject, body); err != nil {
			log.Printf("❌ Envoi avis de retour fournisseur échoué pour %s: %v", rec.ID, err)
		}
	}()
}

// RefundDecision informe le client d'une décision finale (refus ou
// remboursement effectué).
func (n *MailNotifier) RefundDecision(rec *models.RefundRequest) {
	go func() {
		// L'annuaire des clients appartient au sous-système utilisateurs ;
		// ici on ne sait notifier que si l'identifiant est une adresse.
		customerEmail := rec.UserID
		if !strings.Contains(customerEmail, "@") {
			return
		}
		var subject, body string

		switch rec.State {
		case models.StateDenied:
			reason := ""
			if len(rec.Notes) > 0 {
				reason = rec.Notes[len(rec.Notes)-1].Content
			}
			subject = "Votre demande de remboursement a été refusée"
			body = fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body>
	<p>Votre demande de remboursement %s a été refusée.</p>
	<p>Motif : %s</p>
</body>
</html>`, rec.ID, reason)
		case models.StateCompleted:
			subject = "Votre remboursement a été effectué"
			body = fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body>
	<p>Votre remboursement de <b>%.2f€</b> (demande %s) a été exécuté.</p>
	<p>Le montant apparaîtra sur votre moyen de paiement d'origine sous quelques jours.</p>
</body>
</html>`, rec.RefundAmount, rec.ID)
		default:
			return
		}

		if err := sendMail(customerEmail, subject, body); err != nil {
			log.Printf("❌ Envoi e-mail décision échoué pour %s: %v", rec.ID, err)
		}
	}()
}

func sendMail(to, subject, htmlBody string) error {
	msg := mail.NewMsg()

	if err := msg.From(os.Getenv("SMTP_FROM")); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	client, err := mail.NewClient(os.Getenv("SMTP_HOST"),
		mail.WithPort(587),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(os.Getenv("SMTP_USERNAME")),
		mail.WithPassword(os.Getenv("SMTP_PASSWORD")),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return err
	}

	log.Println("📤 Envoi de l'e-mail à", to)
	return client.DialAndSend(msg)
}
