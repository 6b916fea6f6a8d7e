package service

import (
	"context"
	"testing"

	"storefront-payments/internal/core/domain"
	"storefront-payments/internal/core/ports"
	"storefront-payments/internal/core/ports/mocks"
	"storefront-payments/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type returnFixture struct {
	returnRepo *mocks.MockReturnRepository
	orderRepo  *mocks.MockOrderRepository
	gateways   *mocks.MockGatewayRegistry
	mailer     *mocks.MockMailer
	adapter    *mocks.MockGatewayAdapter
	svc        *ReturnServiceImpl
}

func newReturnFixture(t *testing.T) *returnFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &returnFixture{
		returnRepo: mocks.NewMockReturnRepository(ctrl),
		orderRepo:  mocks.NewMockOrderRepository(ctrl),
		gateways:   mocks.NewMockGatewayRegistry(ctrl),
		mailer:     mocks.NewMockMailer(ctrl),
		adapter:    mocks.NewMockGatewayAdapter(ctrl),
	}
	f.svc = NewReturnService(f.returnRepo, f.orderRepo, f.gateways, f.mailer, fixedClock, zerolog.Nop())
	return f
}

func deliveredOrder() *domain.Order {
	o := awaitingOrder(domain.PaymentMethodPayPal)
	o.Status = domain.OrderStatusDelivered
	o.PaymentStatus = domain.PaymentStatusConfirmed
	o.PaymentDetails = &domain.PaymentDetails{
		Provider:       domain.PaymentMethodPayPal,
		Reference:      "CAP-1",
		AmountExpected: o.Total,
		AmountReceived: o.Total,
		Status:         "accepted",
		Currency:       "GBP",
	}
	return o
}

func pendingReturn(orderNumber string) *domain.ReturnRequest {
	return &domain.ReturnRequest{
		ID:          uuid.New(),
		OrderNumber: orderNumber,
		Items: []domain.ReturnItem{
			{ProductID: "prod-1", Quantity: 1, Reason: "faulty", Amount: decimal.NewFromInt(80)},
		},
		Status:    domain.ReturnStatusPendingReview,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
}

func TestOpenReturn(t *testing.T) {
	f := newReturnFixture(t)
	order := deliveredOrder()

	f.orderRepo.EXPECT().GetByNumber(gomock.Any(), order.OrderNumber).Return(order, nil)
	f.returnRepo.EXPECT().GetOpenByOrder(gomock.Any(), order.OrderNumber).Return(nil, nil)
	f.returnRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

	ret, err := f.svc.OpenReturn(context.Background(), ports.OpenReturnRequest{
		OrderNumber: order.OrderNumber,
		Items: []domain.ReturnItem{
			{ProductID: "prod-1", Quantity: 1, Reason: "faulty", Amount: decimal.NewFromInt(80)},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ReturnStatusPendingReview, ret.Status)
	assert.Equal(t, order.OrderNumber, ret.OrderNumber)
	assert.True(t, ret.RefundTotal().Equal(decimal.NewFromInt(80)))
}

func TestOpenReturn_NotDelivered(t *testing.T) {
	f := newReturnFixture(t)
	order := awaitingOrder(domain.PaymentMethodPayPal)
	order.Status = domain.OrderStatusShipped

	f.orderRepo.EXPECT().GetByNumber(gomock.Any(), order.OrderNumber).Return(order, nil)

	_, err := f.svc.OpenReturn(context.Background(), ports.OpenReturnRequest{
		OrderNumber: order.OrderNumber,
		Items:       []domain.ReturnItem{{ProductID: "prod-1", Quantity: 1}},
	})
	assert.Equal(t, "RET_002", appCode(t, err))
}

func TestOpenReturn_AlreadyOpen(t *testing.T) {
	f := newReturnFixture(t)
	order := deliveredOrder()

	f.orderRepo.EXPECT().GetByNumber(gomock.Any(), order.OrderNumber).Return(order, nil)
	f.returnRepo.EXPECT().GetOpenByOrder(gomock.Any(), order.OrderNumber).Return(pendingReturn(order.OrderNumber), nil)

	_, err := f.svc.OpenReturn(context.Background(), ports.OpenReturnRequest{
		OrderNumber: order.OrderNumber,
		Items:       []domain.ReturnItem{{ProductID: "prod-1", Quantity: 1}},
	})
	assert.Equal(t, "RET_001", appCode(t, err))
}

func TestOpenReturn_ItemNotInOrder(t *testing.T) {
	f := newReturnFixture(t)
	order := deliveredOrder()

	f.orderRepo.EXPECT().GetByNumber(gomock.Any(), order.OrderNumber).Return(order, nil)
	f.returnRepo.EXPECT().GetOpenByOrder(gomock.Any(), order.OrderNumber).Return(nil, nil)

	_, err := f.svc.OpenReturn(context.Background(), ports.OpenReturnRequest{
		OrderNumber: order.OrderNumber,
		Items:       []domain.ReturnItem{{ProductID: "prod-99", Quantity: 1}},
	})
	assert.Equal(t, "VAL_001", appCode(t, err))
}

func TestReject_RequiresReason(t *testing.T) {
	f := newReturnFixture(t)

	_, err := f.svc.Reject(context.Background(), uuid.New(), "  ")
	assert.Equal(t, "RET_003", appCode(t, err))
}

func TestReject_RecordsReason(t *testing.T) {
	f := newReturnFixture(t)
	ret := pendingReturn("ORD-20260115-AAAA1111")

	f.returnRepo.EXPECT().GetByID(gomock.Any(), ret.ID).Return(ret, nil)
	f.returnRepo.EXPECT().Update(gomock.Any(), ret).Return(nil)

	result, err := f.svc.Reject(context.Background(), ret.ID, "outside the return window")
	require.NoError(t, err)

	assert.Equal(t, domain.ReturnStatusRejected, result.Status)
	assert.Equal(t, "outside the return window", result.RejectionReason)
}

func TestApprove_FromRejected(t *testing.T) {
	f := newReturnFixture(t)
	ret := pendingReturn("ORD-20260115-AAAA1111")
	ret.Status = domain.ReturnStatusRejected

	f.returnRepo.EXPECT().GetByID(gomock.Any(), ret.ID).Return(ret, nil)

	_, err := f.svc.Approve(context.Background(), ret.ID, "")
	assert.Equal(t, "ORD_001", appCode(t, err))
}

func TestIssueRefund(t *testing.T) {
	f := newReturnFixture(t)
	order := deliveredOrder()
	ret := pendingReturn(order.OrderNumber)
	ret.Status = domain.ReturnStatusItemReceived

	f.returnRepo.EXPECT().GetByID(gomock.Any(), ret.ID).Return(ret, nil)
	f.orderRepo.EXPECT().GetByNumber(gomock.Any(), order.OrderNumber).Return(order, nil)
	f.returnRepo.EXPECT().Update(gomock.Any(), ret).Return(nil).Times(2)
	f.gateways.EXPECT().ForMethod(domain.PaymentMethodPayPal).Return(f.adapter, nil)
	f.adapter.EXPECT().Refund(gomock.Any(), ports.RefundRequest{
		ProviderRef: "CAP-1",
		Amount:      ret.RefundTotal(),
		Currency:    "GBP",
		Reason:      "return " + ret.ID.String(),
	}).Return("REFUND-1", nil)
	f.orderRepo.EXPECT().Update(gomock.Any(), order).Return(nil)
	f.mailer.EXPECT().SendRefundIssued(gomock.Any(), order, ret.RefundTotal()).Return(nil)

	result, err := f.svc.IssueRefund(context.Background(), ret.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.ReturnStatusRefunded, result.Status)
	assert.Equal(t, "REFUND-1", result.RefundProviderRef)
	assert.Equal(t, domain.OrderStatusReturned, order.Status)
}

func TestIssueRefund_ProviderRejection(t *testing.T) {
	f := newReturnFixture(t)
	order := deliveredOrder()
	ret := pendingReturn(order.OrderNumber)
	ret.Status = domain.ReturnStatusItemReceived

	f.returnRepo.EXPECT().GetByID(gomock.Any(), ret.ID).Return(ret, nil)
	f.orderRepo.EXPECT().GetByNumber(gomock.Any(), order.OrderNumber).Return(order, nil)
	f.returnRepo.EXPECT().Update(gomock.Any(), ret).Return(nil)
	f.gateways.EXPECT().ForMethod(domain.PaymentMethodPayPal).Return(f.adapter, nil)
	f.adapter.EXPECT().Refund(gomock.Any(), gomock.Any()).Return("", apperror.ErrRefundRejected(assert.AnError))

	_, err := f.svc.IssueRefund(context.Background(), ret.ID)
	assert.Equal(t, "GWY_004", appCode(t, err))
	assert.Equal(t, domain.ReturnStatusProcessingRefund, ret.Status, "a rejected refund stays retryable")
	assert.Empty(t, ret.RefundProviderRef)
}

func TestIssueRefund_BeforeItemReceived(t *testing.T) {
	f := newReturnFixture(t)
	order := deliveredOrder()
	ret := pendingReturn(order.OrderNumber)

	f.returnRepo.EXPECT().GetByID(gomock.Any(), ret.ID).Return(ret, nil)
	f.orderRepo.EXPECT().GetByNumber(gomock.Any(), order.OrderNumber).Return(order, nil)

	_, err := f.svc.IssueRefund(context.Background(), ret.ID)
	assert.Equal(t, "ORD_001", appCode(t, err))
}

func TestClose_FromAnyOpenState(t *testing.T) {
	f := newReturnFixture(t)
	ret := pendingReturn("ORD-20260115-AAAA1111")
	ret.Status = domain.ReturnStatusApproved

	f.returnRepo.EXPECT().GetByID(gomock.Any(), ret.ID).Return(ret, nil)
	f.returnRepo.EXPECT().Update(gomock.Any(), ret).Return(nil)

	result, err := f.svc.Close(context.Background(), ret.ID, "customer withdrew the request")
	require.NoError(t, err)
	assert.Equal(t, domain.ReturnStatusClosed, result.Status)
	assert.Contains(t, result.AdminNotes, "customer withdrew the request")
}
