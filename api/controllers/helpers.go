package controllers

import (
	"net/http"

	"github.com/angelmondragon/farmlink-backend/api/middleware"
	"github.com/angelmondragon/farmlink-backend/api/responses"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/angelmondragon/farmlink-backend/pkg/types"
)

// requireActor writes a 401 and returns false when the request has no identity.
func requireActor(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (types.Actor, bool) {
	actor, ok := middleware.ActorFromRequest(r)
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
		return types.Actor{}, false
	}
	return actor, true
}

func serviceUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger, name string) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, name+" unavailable"))
}
