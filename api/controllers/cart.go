package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/laggedout/storefront-backend/api/middleware"
	"github.com/laggedout/storefront-backend/api/responses"
	"github.com/laggedout/storefront-backend/api/validators"
	"github.com/laggedout/storefront-backend/internal/cart"
	"github.com/laggedout/storefront-backend/internal/catalog"
	pkgerrors "github.com/laggedout/storefront-backend/pkg/errors"
	"github.com/laggedout/storefront-backend/pkg/logger"
)

// itemRequest names one purchasable in cart and single-item order bodies.
type itemRequest struct {
	GameID    uuid.UUID  `json:"game_id" validate:"required"`
	EditionID *uuid.UUID `json:"edition_id,omitempty"`
	DLCID     *uuid.UUID `json:"dlc_id,omitempty"`
}

func (i itemRequest) spec() catalog.ItemSpec {
	return catalog.ItemSpec{GameID: i.GameID, EditionID: i.EditionID, DLCID: i.DLCID}
}

// GetCart returns the caller's cart with current prices.
func GetCart(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		userID, err := middleware.UserUUIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.GetCart(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func AddCartItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		userID, err := middleware.UserUUIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload itemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		line, err := svc.AddItem(r.Context(), userID, payload.spec())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, line)
	}
}

func RemoveCartItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		userID, err := middleware.UserUUIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		itemID, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RemoveItem(r.Context(), userID, itemID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"removed": itemID})
	}
}
