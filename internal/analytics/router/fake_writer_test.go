package router

import (
	"context"

	"github.com/laggedout/storefront-backend/internal/analytics/types"
)

type fakeWriter struct {
	purchases []types.PurchaseFactRow
	refunds   []types.RefundFactRow
	err       error
}

func (f *fakeWriter) InsertPurchaseFacts(_ context.Context, rows []types.PurchaseFactRow) error {
	if f.err != nil {
		return f.err
	}
	f.purchases = append(f.purchases, rows...)
	return nil
}

func (f *fakeWriter) InsertRefundFact(_ context.Context, row types.RefundFactRow) error {
	if f.err != nil {
		return f.err
	}
	f.refunds = append(f.refunds, row)
	return nil
}
