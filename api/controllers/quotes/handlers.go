package quotes

import (
	"net/http"

	"github.com/angelmondragon/fabshop-backend/api/responses"
	"github.com/angelmondragon/fabshop-backend/api/validators"
	"github.com/angelmondragon/fabshop-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/fabshop-backend/pkg/errors"
	"github.com/angelmondragon/fabshop-backend/pkg/logger"
)

// Create prices a cart without persisting anything.
func Create(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "quote service unavailable"))
			return
		}

		var payload QuoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.BuildQuote(r.Context(), payload.Input())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteJSON(w, http.StatusOK, newQuoteResponse(quote))
	}
}
