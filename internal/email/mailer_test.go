package email

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"storefront-payments/config"
	"storefront-payments/internal/core/domain"
	"storefront-payments/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder() *domain.Order {
	return &domain.Order{
		OrderNumber:   "ORD-20260115-AAAA1111",
		CustomerEmail: "customer@example.com",
		Items: []domain.OrderItem{
			{ProductID: "prod-1", Name: "Mechanical Keyboard", Quantity: 2, UnitPrice: decimal.NewFromInt(80)},
		},
		Total:    decimal.NewFromInt(160),
		Currency: "GBP",
	}
}

func TestMailer_SendPaymentConfirmed(t *testing.T) {
	var gotTo []string
	var gotMsg string

	m := NewMailer(config.SMTPConfig{Host: "localhost", Port: 1025, From: "shop@example.com"}, logger.New("disabled", false))
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		assert.Equal(t, "localhost:1025", addr)
		assert.Equal(t, "shop@example.com", from)
		gotTo = to
		gotMsg = string(msg)
		return nil
	}

	require.NoError(t, m.SendPaymentConfirmed(context.Background(), testOrder()))
	assert.Equal(t, []string{"customer@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Payment received for order ORD-20260115-AAAA1111")
	assert.Contains(t, gotMsg, "Mechanical Keyboard")
	assert.Contains(t, gotMsg, "160.00 GBP")
}

func TestMailer_SkipsWithoutRecipient(t *testing.T) {
	m := NewMailer(config.SMTPConfig{Host: "localhost", Port: 1025, From: "shop@example.com"}, logger.New("disabled", false))
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called without a recipient")
		return nil
	}

	order := testOrder()
	order.CustomerEmail = ""
	assert.NoError(t, m.SendOrderCancelled(context.Background(), order, "payment window expired"))
}

func TestMailer_RefundBody(t *testing.T) {
	var gotMsg string
	m := NewMailer(config.SMTPConfig{Host: "localhost", Port: 1025, From: "shop@example.com"}, logger.New("disabled", false))
	m.send = func(_ string, _ smtp.Auth, _ string, _ []string, msg []byte) error {
		gotMsg = string(msg)
		return nil
	}

	require.NoError(t, m.SendRefundIssued(context.Background(), testOrder(), decimal.RequireFromString("42.50")))
	assert.True(t, strings.Contains(gotMsg, "42.50 GBP"))
}
