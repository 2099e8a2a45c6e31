package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlink-backend/api/responses"
	"github.com/angelmondragon/farmlink-backend/api/validators"
	"github.com/angelmondragon/farmlink-backend/internal/orders"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/angelmondragon/farmlink-backend/pkg/types"
)

const maxNotesLen = 1000

// AdminPendingOrders lists the approval queue, oldest first.
func AdminPendingOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ListPending(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AdminApproveOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderTransition(logg, svc.Approve)
}

func AdminCompleteOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return orderTransition(logg, svc.Complete)
}

func AdminRejectOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body orders.RejectInput
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body.Notes = validators.FreeText(body.Notes, maxNotesLen)
		ctx := withOrderID(r.Context(), logg, orderID)
		dto, err := svc.Reject(ctx, actor, orderID, body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

type transitionFunc func(ctx context.Context, actor types.Actor, orderID uuid.UUID) (*orders.OrderDTO, error)

func orderTransition(logg *logger.Logger, fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := withOrderID(r.Context(), logg, orderID)
		dto, err := fn(ctx, actor, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func withOrderID(ctx context.Context, logg *logger.Logger, orderID uuid.UUID) context.Context {
	if logg == nil {
		return ctx
	}
	return logg.WithOrderID(ctx, orderID.String())
}
