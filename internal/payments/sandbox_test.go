package payments

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laggedout/storefront-backend/pkg/db/models"
	"github.com/laggedout/storefront-backend/pkg/enums"
	pkgerrors "github.com/laggedout/storefront-backend/pkg/errors"
)

func TestSandboxConfirmationVerifies(t *testing.T) {
	f := newFixture(t)
	confirmer, err := NewSandboxConfirmer(f.orders, f.signer)
	require.NoError(t, err)

	userID := uuid.New()
	f.fillCart(t, userID, 1200)
	order := f.cartOrder(t, userID)

	conf, err := confirmer.Confirm(context.Background(), userID, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderID, conf.OrderID)
	assert.NotEmpty(t, conf.PaymentID)
	assert.Zero(t, f.count(t, &models.Purchase{}, "user_id = ?", userID), "confirming must not settle")

	res, err := f.svc.VerifyPayment(context.Background(), userID, VerifyInput{
		OrderID:   conf.OrderID,
		PaymentID: conf.PaymentID,
		Signature: conf.Signature,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusVerified, res.Status)

	_, err = confirmer.Confirm(context.Background(), userID, order.OrderID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAlreadyVerified))
}

func TestSandboxConfirmationChecksOwnership(t *testing.T) {
	f := newFixture(t)
	confirmer, err := NewSandboxConfirmer(f.orders, f.signer)
	require.NoError(t, err)

	owner := uuid.New()
	f.fillCart(t, owner, 1200)
	order := f.cartOrder(t, owner)

	_, err = confirmer.Confirm(context.Background(), uuid.New(), order.OrderID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOrderNotFound))

	_, err = confirmer.Confirm(context.Background(), owner, "order_missing")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOrderNotFound))
}
