package mailer

import (
	"fmt"
	"log"
	"strings"

	"gopkg.in/gomail.v2"

	"storefront-backend/internal/models"
)

// Mailer sends transactional email. When no SMTP host is configured it
// degrades to logging, so checkout never depends on a mail server.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func New(host string, port int, username, password, from string) *Mailer {
	if strings.TrimSpace(host) == "" {
		log.Println("[MAIL] [INFO] SMTP not configured, mail disabled")
		return &Mailer{from: from}
	}
	return &Mailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// SendOrderConfirmation emails a plain-text order summary. Failures are
// returned for the caller to log; they never fail the order.
func (m *Mailer) SendOrderConfirmation(to string, order models.Order) error {
	if m.dialer == nil {
		log.Printf("[MAIL] [INFO] skipping order confirmation for %s (mail disabled)", order.ID.Hex())
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", fmt.Sprintf("Order confirmation %s", order.ID.Hex()))
	msg.SetBody("text/plain", orderConfirmationBody(order))

	return m.dialer.DialAndSend(msg)
}

func orderConfirmationBody(order models.Order) string {
	var body strings.Builder
	fmt.Fprintf(&body, "Thank you for your order %s.\n\n", order.ID.Hex())
	for _, item := range order.Items {
		fmt.Fprintf(&body, "%d x %s - $%.2f\n", item.Quantity, item.Name, float64(item.PriceCents)/100)
	}
	fmt.Fprintf(&body, "\nSubtotal: $%.2f\n", float64(order.SubtotalCents)/100)
	fmt.Fprintf(&body, "Tax: $%.2f\n", float64(order.TaxCents)/100)
	fmt.Fprintf(&body, "Shipping: $%.2f\n", float64(order.ShippingCents)/100)
	fmt.Fprintf(&body, "Total: $%.2f\n", float64(order.TotalCents)/100)
	return body.String()
}
