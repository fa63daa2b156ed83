package controllers

import (
	"net/http"

	"github.com/laggedout/storefront-backend/api/responses"
	"github.com/laggedout/storefront-backend/api/validators"
	"github.com/laggedout/storefront-backend/internal/catalog"
	pkgerrors "github.com/laggedout/storefront-backend/pkg/errors"
	"github.com/laggedout/storefront-backend/pkg/logger"
)

// ListGames returns approved games newest first.
func ListGames(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListGames(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func GetGame(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		gameID, err := validators.ParseUUIDParam(r, "gameId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		game, err := svc.GetGame(r.Context(), gameID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, game)
	}
}
