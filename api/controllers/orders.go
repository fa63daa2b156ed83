package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/laggedout/storefront-backend/api/middleware"
	"github.com/laggedout/storefront-backend/api/responses"
	"github.com/laggedout/storefront-backend/api/validators"
	"github.com/laggedout/storefront-backend/internal/orders"
	"github.com/laggedout/storefront-backend/internal/payments"
	"github.com/laggedout/storefront-backend/pkg/enums"
	pkgerrors "github.com/laggedout/storefront-backend/pkg/errors"
	"github.com/laggedout/storefront-backend/pkg/logger"
)

// CreateCartOrder opens a gateway order for everything in the caller's cart.
func CreateCartOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		createOrder(w, r, svc, logg, orders.CreateInput{Source: enums.OrderSourceCart})
	}
}

// CreateSingleItemOrder opens a gateway order for one item, bypassing the cart.
func CreateSingleItemOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload itemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		spec := payload.spec()
		createOrder(w, r, svc, logg, orders.CreateInput{Source: enums.OrderSourceSingleItem, Item: &spec})
	}
}

func createOrder(w http.ResponseWriter, r *http.Request, svc orders.Service, logg *logger.Logger, input orders.CreateInput) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
		return
	}

	userID, err := middleware.UserUUIDFromContext(r.Context())
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}

	view, err := svc.CreateOrder(r.Context(), userID, input)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}

	status := http.StatusCreated
	if view.Reused {
		status = http.StatusOK
	}
	responses.WriteSuccessStatus(w, status, view)
}

// VerifyPayment settles a pending order from the client's signed gateway callback.
func VerifyPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		userID, err := middleware.UserUUIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload payments.VerifyInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, payload.OrderID)
		}

		result, err := svc.VerifyPayment(ctx, userID, payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// SandboxConfirmer issues the signed payment callback when the sandbox gateway is active.
type SandboxConfirmer interface {
	Confirm(ctx context.Context, userID uuid.UUID, gatewayOrderID string) (*payments.Confirmation, error)
}

type sandboxConfirmRequest struct {
	OrderID string `json:"order_id" validate:"required,max=255"`
}

// ConfirmSandboxPayment plays the provider's checkout page for sandbox orders.
func ConfirmSandboxPayment(svc SandboxConfirmer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "sandbox payments are disabled"))
			return
		}

		userID, err := middleware.UserUUIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload sandboxConfirmRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		conf, err := svc.Confirm(r.Context(), userID, payload.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, conf)
	}
}
