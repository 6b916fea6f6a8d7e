package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"storefront-payments/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReturn() *domain.ReturnRequest {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.ReturnRequest{
		ID:          uuid.New(),
		OrderNumber: "ORD-20260115-AAAA1111",
		Items: []domain.ReturnItem{
			{ProductID: "prod-1", Quantity: 1, Reason: "damaged in transit", Amount: decimal.NewFromInt(80)},
		},
		Status:    domain.ReturnStatusPendingReview,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func returnColumnNames() []string {
	return []string{"id", "order_number", "items", "status", "admin_notes",
		"rejection_reason", "refund_provider_ref", "created_at", "updated_at"}
}

func returnRow(t *testing.T, ret *domain.ReturnRequest) *pgxmock.Rows {
	t.Helper()
	items, err := json.Marshal(ret.Items)
	require.NoError(t, err)
	return pgxmock.NewRows(returnColumnNames()).AddRow(
		ret.ID, ret.OrderNumber, items, ret.Status, ret.AdminNotes,
		ret.RejectionReason, ret.RefundProviderRef, ret.CreatedAt, ret.UpdatedAt,
	)
}

func TestReturnRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewReturnRepo(mock)
	ret := newTestReturn()

	mock.ExpectExec("INSERT INTO returns").
		WithArgs(
			ret.ID, ret.OrderNumber, pgxmock.AnyArg(), ret.Status, ret.AdminNotes,
			ret.RejectionReason, ret.RefundProviderRef, ret.CreatedAt, ret.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(context.Background(), ret))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReturnRepo_GetOpenByOrder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewReturnRepo(mock)
	ret := newTestReturn()

	mock.ExpectQuery("SELECT .+ FROM returns\\s+WHERE order_number .+ status NOT IN").
		WithArgs(ret.OrderNumber).
		WillReturnRows(returnRow(t, ret))

	result, err := repo.GetOpenByOrder(context.Background(), ret.OrderNumber)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, ret.ID, result.ID)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "damaged in transit", result.Items[0].Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReturnRepo_GetOpenByOrder_NoneOpen(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewReturnRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM returns\\s+WHERE order_number .+ status NOT IN").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(returnColumnNames()))

	result, err := repo.GetOpenByOrder(context.Background(), "ORD-20260115-AAAA1111")
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReturnRepo_Update(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewReturnRepo(mock)
	ret := newTestReturn()
	ret.Status = domain.ReturnStatusApproved
	ret.AdminNotes = "approved, send prepaid label"

	mock.ExpectExec("UPDATE returns SET").
		WithArgs(
			pgxmock.AnyArg(), ret.Status, ret.AdminNotes,
			ret.RejectionReason, ret.RefundProviderRef, ret.UpdatedAt, ret.ID,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.Update(context.Background(), ret))
	assert.NoError(t, mock.ExpectationsWereMet())
}
