package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/laggedout/storefront-backend/internal/orders"
	"github.com/laggedout/storefront-backend/pkg/db"
	"github.com/laggedout/storefront-backend/pkg/enums"
	pkgerrors "github.com/laggedout/storefront-backend/pkg/errors"
	"github.com/laggedout/storefront-backend/pkg/gateway"
)

// Confirmation is the signed callback a provider hands the client after a
// successful payment. The client forwards it unchanged to verify-payment.
type Confirmation struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// SandboxConfirmer stands in for the provider's hosted payment page when the
// sandbox gateway is active. It never settles anything itself.
type SandboxConfirmer struct {
	orders *orders.Repository
	signer *gateway.Signer
}

func NewSandboxConfirmer(repo *orders.Repository, signer *gateway.Signer) (*SandboxConfirmer, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if signer == nil {
		return nil, fmt.Errorf("signer required")
	}
	return &SandboxConfirmer{orders: repo, signer: signer}, nil
}

// Confirm pays a pending order owned by userID and signs the callback.
func (c *SandboxConfirmer) Confirm(ctx context.Context, userID uuid.UUID, gatewayOrderID string) (*Confirmation, error) {
	order, err := c.orders.FindByGatewayID(ctx, gatewayOrderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeOrderNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeOrderNotFound, "order not found")
	}
	switch order.Status {
	case enums.OrderStatusPending:
	case enums.OrderStatusVerified:
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyVerified, "order already verified")
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer payable")
	}

	paymentID := "pay_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	return &Confirmation{
		OrderID:   order.GatewayOrderID,
		PaymentID: paymentID,
		Signature: c.signer.Sign(order.GatewayOrderID, paymentID),
	}, nil
}
