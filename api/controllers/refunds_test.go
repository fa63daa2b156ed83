package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laggedout/storefront-backend/internal/refunds"
	"github.com/laggedout/storefront-backend/pkg/enums"
	pkgerrors "github.com/laggedout/storefront-backend/pkg/errors"
	"github.com/laggedout/storefront-backend/pkg/pagination"
)

type stubRefundsService struct {
	requestFn func(ctx context.Context, userID uuid.UUID, input refunds.RequestInput) (*refunds.View, error)
	reviewFn  func(ctx context.Context, reviewer refunds.Reviewer, refundID uuid.UUID, input refunds.ReviewInput) (*refunds.View, error)
	listFn    func(ctx context.Context, status *enums.RefundStatus, params pagination.Params) (*pagination.Page[refunds.View], error)
}

func (s *stubRefundsService) RequestRefund(ctx context.Context, userID uuid.UUID, input refunds.RequestInput) (*refunds.View, error) {
	return s.requestFn(ctx, userID, input)
}

func (s *stubRefundsService) ReviewRefund(ctx context.Context, reviewer refunds.Reviewer, refundID uuid.UUID, input refunds.ReviewInput) (*refunds.View, error) {
	return s.reviewFn(ctx, reviewer, refundID, input)
}

func (s *stubRefundsService) ListRefunds(ctx context.Context, status *enums.RefundStatus, params pagination.Params) (*pagination.Page[refunds.View], error) {
	return s.listFn(ctx, status, params)
}

func (s *stubRefundsService) ListMyRefunds(context.Context, uuid.UUID, pagination.Params) (*pagination.Page[refunds.View], error) {
	return &pagination.Page[refunds.View]{}, nil
}

func TestRequestRefundCreated(t *testing.T) {
	purchaseID := uuid.New()
	svc := &stubRefundsService{
		requestFn: func(ctx context.Context, uid uuid.UUID, input refunds.RequestInput) (*refunds.View, error) {
			require.Equal(t, purchaseID, input.PurchaseID)
			return &refunds.View{ID: uuid.New(), PurchaseID: input.PurchaseID, Status: enums.RefundStatusPending}, nil
		},
	}
	body := `{"purchase_id":"` + purchaseID.String() + `","reason":"game crashes on launch"}`
	req := httptest.NewRequest(http.MethodPost, "/api/refund/request-refund", strings.NewReader(body))
	req = withUser(req, uuid.New(), enums.RoleCustomer)
	resp := httptest.NewRecorder()
	RequestRefund(svc, testLogger())(resp, req)

	assert.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
}

func TestRequestRefundDuplicate(t *testing.T) {
	svc := &stubRefundsService{
		requestFn: func(context.Context, uuid.UUID, refunds.RequestInput) (*refunds.View, error) {
			return nil, pkgerrors.New(pkgerrors.CodeDuplicateRefund, "a refund is already open for this purchase")
		},
	}
	body := `{"purchase_id":"` + uuid.NewString() + `","reason":"changed my mind"}`
	req := httptest.NewRequest(http.MethodPost, "/api/refund/request-refund", strings.NewReader(body))
	req = withUser(req, uuid.New(), enums.RoleCustomer)
	resp := httptest.NewRecorder()
	RequestRefund(svc, testLogger())(resp, req)

	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeDuplicateRefund), decodeErrorCode(t, resp.Body.Bytes()))
}

func TestReviewRefundPassesReviewer(t *testing.T) {
	adminID := uuid.New()
	refundID := uuid.New()
	svc := &stubRefundsService{
		reviewFn: func(ctx context.Context, reviewer refunds.Reviewer, id uuid.UUID, input refunds.ReviewInput) (*refunds.View, error) {
			require.Equal(t, adminID, reviewer.UserID)
			require.Equal(t, enums.RoleAdmin, reviewer.Role)
			require.Equal(t, refundID, id)
			require.Equal(t, enums.RefundDecisionApprove, input.Decision)
			require.NotNil(t, input.Note)
			require.Equal(t, "ok", *input.Note)
			return &refunds.View{ID: id, Status: enums.RefundStatusApproved}, nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/refund/review/"+refundID.String(), strings.NewReader(`{"decision":"approved","note":"  ok  "}`))
	req = withUser(req, adminID, enums.RoleAdmin)
	req = addRouteParam(req, "refundId", refundID.String())
	resp := httptest.NewRecorder()
	ReviewRefund(svc, testLogger())(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
}

func TestReviewRefundKeepsMultibyteNoteIntact(t *testing.T) {
	refundID := uuid.New()
	note := strings.Repeat("日", maxReviewNoteLen)
	var got string
	svc := &stubRefundsService{
		reviewFn: func(ctx context.Context, reviewer refunds.Reviewer, id uuid.UUID, input refunds.ReviewInput) (*refunds.View, error) {
			require.NotNil(t, input.Note)
			got = *input.Note
			return &refunds.View{ID: id, Status: enums.RefundStatusRejected}, nil
		},
	}
	body := `{"decision":"rejected","note":"` + note + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/refund/review/"+refundID.String(), strings.NewReader(body))
	req = withUser(req, uuid.New(), enums.RoleAdmin)
	req = addRouteParam(req, "refundId", refundID.String())
	resp := httptest.NewRecorder()
	ReviewRefund(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, note, got)
}

func TestRequestRefundCleansReason(t *testing.T) {
	var got string
	svc := &stubRefundsService{
		requestFn: func(ctx context.Context, uid uuid.UUID, input refunds.RequestInput) (*refunds.View, error) {
			got = input.Reason
			return &refunds.View{ID: uuid.New(), PurchaseID: input.PurchaseID, Status: enums.RefundStatusPending}, nil
		},
	}
	body := `{"purchase_id":"` + uuid.NewString() + `","reason":"  ゲームが起動しない\u0000  "}`
	req := httptest.NewRequest(http.MethodPost, "/api/refund/request-refund", strings.NewReader(body))
	req = withUser(req, uuid.New(), enums.RoleCustomer)
	resp := httptest.NewRecorder()
	RequestRefund(svc, testLogger())(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, "ゲームが起動しない", got)
}

func TestReviewRefundRejectsUnknownDecision(t *testing.T) {
	refundID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/refund/review/"+refundID.String(), strings.NewReader(`{"decision":"maybe"}`))
	req = withUser(req, uuid.New(), enums.RoleAdmin)
	req = addRouteParam(req, "refundId", refundID.String())
	resp := httptest.NewRecorder()
	ReviewRefund(&stubRefundsService{}, testLogger())(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestListRefundsStatusFilter(t *testing.T) {
	var got *enums.RefundStatus
	svc := &stubRefundsService{
		listFn: func(ctx context.Context, status *enums.RefundStatus, params pagination.Params) (*pagination.Page[refunds.View], error) {
			got = status
			return &pagination.Page[refunds.View]{}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/refund?status=pending", nil)
	req = withUser(req, uuid.New(), enums.RoleAdmin)
	resp := httptest.NewRecorder()
	ListRefunds(svc, testLogger())(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, got)
	assert.Equal(t, enums.RefundStatusPending, *got)

	req = httptest.NewRequest(http.MethodGet, "/api/refund?status=bogus", nil)
	req = withUser(req, uuid.New(), enums.RoleAdmin)
	resp = httptest.NewRecorder()
	ListRefunds(svc, testLogger())(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
