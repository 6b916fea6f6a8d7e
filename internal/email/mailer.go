package email

import (
	"context"
	"fmt"
	"net/smtp"

	"storefront-payments/config"
	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Mailer sends transactional email over SMTP. It implements ports.Mailer;
// callers treat every send as best-effort and never roll back state when
// a message fails to go out.
type Mailer struct {
	addr string
	from string
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	log  zerolog.Logger
}

// NewMailer creates an SMTP mailer from config.
func NewMailer(cfg config.SMTPConfig, log zerolog.Logger) *Mailer {
	return &Mailer{
		addr: cfg.Addr(),
		from: cfg.From,
		send: smtp.SendMail,
		log:  log,
	}
}

var _ ports.Mailer = (*Mailer)(nil)

// SendPaymentConfirmed notifies the customer their payment settled and the
// order is being prepared.
func (m *Mailer) SendPaymentConfirmed(ctx context.Context, order *domain.Order) error {
	subject := fmt.Sprintf("Payment received for order %s", order.OrderNumber)
	return m.deliver(ctx, order.CustomerEmail, subject, buildPaymentConfirmedBody(order))
}

// SendOrderCancelled notifies the customer their order was cancelled.
func (m *Mailer) SendOrderCancelled(ctx context.Context, order *domain.Order, reason string) error {
	subject := fmt.Sprintf("Order %s cancelled", order.OrderNumber)
	return m.deliver(ctx, order.CustomerEmail, subject, buildOrderCancelledBody(order, reason))
}

// SendRefundIssued notifies the customer a refund went out.
func (m *Mailer) SendRefundIssued(ctx context.Context, order *domain.Order, amount decimal.Decimal) error {
	subject := fmt.Sprintf("Refund issued for order %s", order.OrderNumber)
	return m.deliver(ctx, order.CustomerEmail, subject, buildRefundIssuedBody(order, amount))
}

func (m *Mailer) deliver(ctx context.Context, to, subject, body string) error {
	if to == "" {
		m.log.Warn().Str("subject", subject).Msg("no recipient address, skipping email")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		m.from, to, subject, body)
	if err := m.send(m.addr, nil, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info().Str("to", to).Str("subject", subject).Msg("email sent")
	return nil
}
