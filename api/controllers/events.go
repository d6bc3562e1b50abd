package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/motivhq/scoring-backend/api/middleware"
	"github.com/motivhq/scoring-backend/api/responses"
	"github.com/motivhq/scoring-backend/api/validators"
	"github.com/motivhq/scoring-backend/internal/badges"
	"github.com/motivhq/scoring-backend/internal/ledger"
	"github.com/motivhq/scoring-backend/pkg/enums"
	pkgerrors "github.com/motivhq/scoring-backend/pkg/errors"
	"github.com/motivhq/scoring-backend/pkg/logger"
)

type recordPointEventPayload struct {
	UserID         string          `json:"user_id" validate:"required"`
	ProjectID      *string         `json:"project_id,omitempty"`
	Delta          int64           `json:"delta"`
	Reason         string          `json:"reason" validate:"required"`
	ReferenceType  *string         `json:"reference_type,omitempty"`
	ReferenceID    *string         `json:"reference_id,omitempty"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

// PostPointEvent appends a point event to the ledger. Badge evaluation runs
// after a fresh append so newly crossed thresholds grant immediately;
// replayed duplicates and badge bonus events skip it to avoid loops.
func PostPointEvent(ledgerSvc ledger.Service, badgeSvc badges.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if ledgerSvc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		var payload recordPointEventPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		userID, err := uuid.Parse(payload.UserID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}

		reason, err := enums.ParsePointReason(payload.Reason)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reason"))
			return
		}

		input := ledger.RecordPointEventInput{
			UserID:         userID,
			Delta:          payload.Delta,
			Reason:         reason,
			ReferenceType:  payload.ReferenceType,
			IdempotencyKey: payload.IdempotencyKey,
			Metadata:       payload.Metadata,
			ActorRole:      middleware.RoleFromContext(ctx),
		}

		if payload.ReferenceID != nil {
			refID, parseErr := uuid.Parse(strings.TrimSpace(*payload.ReferenceID))
			if parseErr != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid reference id"))
				return
			}
			input.ReferenceID = &refID
		}

		if actor := middleware.UserIDFromContext(ctx); actor != "" {
			actorID, parseErr := uuid.Parse(actor)
			if parseErr != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid actor id"))
				return
			}
			input.ActorUserID = actorID
		}

		if payload.ProjectID != nil {
			raw := strings.TrimSpace(*payload.ProjectID)
			if raw != "" {
				projectID, parseErr := uuid.Parse(raw)
				if parseErr != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid project id"))
					return
				}
				input.ProjectID = &projectID
			}
		}

		result, err := ledgerSvc.RecordEvent(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if badgeSvc != nil && !result.Duplicate && reason != enums.PointReasonBadgeAwarded {
			if _, evalErr := badgeSvc.Evaluate(ctx, userID); evalErr != nil && logg != nil {
				logg.Warn(logg.WithField(ctx, "user_id", userID.String()), "badge evaluation after point event failed")
			}
		}

		status := http.StatusCreated
		if result.Duplicate {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

// ListUserEvents returns the user's event history, newest first.
func ListUserEvents(ledgerSvc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if ledgerSvc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		userID, err := uuid.Parse(chi.URLParam(r, "userId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := ledgerSvc.ListEvents(ctx, ledger.ListParams{
			UserID: userID,
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
