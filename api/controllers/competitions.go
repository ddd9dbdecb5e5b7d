package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/rafflehouse-backend/api/responses"
	"github.com/angelmondragon/rafflehouse-backend/api/validators"
	"github.com/angelmondragon/rafflehouse-backend/internal/competitions"
	"github.com/angelmondragon/rafflehouse-backend/internal/entry"
	pkgerrors "github.com/angelmondragon/rafflehouse-backend/pkg/errors"
	"github.com/angelmondragon/rafflehouse-backend/pkg/logger"
	"github.com/angelmondragon/rafflehouse-backend/pkg/pagination"
)

type validateAnswerRequest struct {
	Answer string `json:"answer" validate:"required,notblank,max=500"`
}

type validateAnswerResponse struct {
	Correct bool `json:"correct"`
}

func paginationFromRequest(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}

// CompetitionList returns live competitions only.
func CompetitionList(svc competitions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "competition service unavailable"))
			return
		}

		params, err := paginationFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListLive(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func CompetitionGet(svc competitions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "competition service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, "competitionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		competition, err := svc.GetPublic(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, competition)
	}
}

// CompetitionValidateAnswer checks the qualifying answer for the caller. A
// correct answer grants an entry pass; the correct option is never echoed.
func CompetitionValidateAnswer(svc entry.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "entry service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		competitionID, err := validators.ParseUUIDParam(r, "competitionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body validateAnswerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		correct, err := svc.ValidateAnswer(r.Context(), userID, competitionID, body.Answer)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, validateAnswerResponse{Correct: correct})
	}
}
