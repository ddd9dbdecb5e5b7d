package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/rafflehouse-backend/api/responses"
	"github.com/angelmondragon/rafflehouse-backend/api/validators"
	"github.com/angelmondragon/rafflehouse-backend/internal/checkout"
	pkgcheckout "github.com/angelmondragon/rafflehouse-backend/pkg/checkout"
	pkgerrors "github.com/angelmondragon/rafflehouse-backend/pkg/errors"
	"github.com/angelmondragon/rafflehouse-backend/pkg/logger"
)

const idempotencyHeader = "Idempotency-Key"

// CheckoutSubmit converts the caller's cart into a checkout intent. Incomplete
// customer details come back as 412 with per-field messages.
func CheckoutSubmit(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body pkgcheckout.CustomerDetails
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
		receipt, err := svc.Submit(r.Context(), userID, body, key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if receipt.Replayed {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, receipt)
	}
}
