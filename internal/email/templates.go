package email

import (
	"fmt"
	"strings"

	"storefront-payments/internal/core/domain"

	"github.com/shopspring/decimal"
)

const bodyFrame = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h1 style="font-size: 22px;">%s</h1>
	%s
	<hr style="border: none; border-top: 1px solid #eee; margin: 30px 0;">
	<p style="font-size: 12px; color: #999;">This email was sent automatically. If anything looks wrong, please contact support.</p>
</body>
</html>`

func buildPaymentConfirmedBody(order *domain.Order) string {
	var items strings.Builder
	for _, item := range order.Items {
		items.WriteString(fmt.Sprintf(
			`<tr><td style="padding: 8px; border-bottom: 1px solid #eee;">%s</td>`+
				`<td style="padding: 8px; border-bottom: 1px solid #eee; text-align: center;">%d</td>`+
				`<td style="padding: 8px; border-bottom: 1px solid #eee; text-align: right;">%s</td></tr>`,
			item.Name, item.Quantity, money(item.Subtotal(), order.Currency),
		))
	}

	content := fmt.Sprintf(`
	<p>We have received your payment for order <strong>%s</strong>. Your order is now being prepared for dispatch.</p>
	<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
		<thead><tr style="background: #f8f9fa;">
			<th style="padding: 8px; text-align: left;">Item</th>
			<th style="padding: 8px; text-align: center;">Qty</th>
			<th style="padding: 8px; text-align: right;">Subtotal</th>
		</tr></thead>
		<tbody>%s</tbody>
	</table>
	<p style="text-align: right; font-size: 18px;"><strong>Total: %s</strong></p>`,
		order.OrderNumber, items.String(), money(order.Total, order.Currency))

	return fmt.Sprintf(bodyFrame, "Payment received", content)
}

func buildOrderCancelledBody(order *domain.Order, reason string) string {
	content := fmt.Sprintf(`
	<p>Your order <strong>%s</strong> has been cancelled.</p>
	<p>Reason: %s</p>
	<p>Any payment received for this order will be returned to you.</p>`,
		order.OrderNumber, reason)
	return fmt.Sprintf(bodyFrame, "Order cancelled", content)
}

func buildRefundIssuedBody(order *domain.Order, amount decimal.Decimal) string {
	content := fmt.Sprintf(`
	<p>A refund of <strong>%s</strong> has been issued for order <strong>%s</strong>.</p>
	<p>Depending on your payment method it may take a few days to appear.</p>`,
		money(amount, order.Currency), order.OrderNumber)
	return fmt.Sprintf(bodyFrame, "Refund issued", content)
}

func money(amount decimal.Decimal, currency string) string {
	return amount.StringFixed(2) + " " + currency
}
