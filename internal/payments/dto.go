package payments

import (
	"github.com/laggedout/storefront-backend/internal/purchases"
	"github.com/laggedout/storefront-backend/pkg/enums"
)

// VerifyInput is the client's proof of payment for a gateway order.
type VerifyInput struct {
	OrderID   string `json:"order_id" validate:"required,max=255"`
	PaymentID string `json:"payment_id" validate:"required,max=255"`
	Signature string `json:"signature" validate:"required,hexadecimal,max=128"`
}

// Result describes a settled order.
type Result struct {
	OrderID     string            `json:"order_id"`
	Status      enums.OrderStatus `json:"status"`
	PaymentID   string            `json:"payment_id"`
	Purchases   []purchases.View  `json:"purchases"`
	CartCleared bool              `json:"cart_cleared"`
}
