package handler

import (
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/model"
)

func actorFromRequest(r *http.Request) model.AuditActor {
	actor := model.AuditActor{IP: middleware.ClientIP(r)}

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return actor
	}

	actor.UserID = claims.UserID
	actor.Name = claims.Name
	actor.Role = claims.Role

	return actor
}

// callerFromRequest returns the identity attached by the session guard, or nil
// for anonymous requests.
func callerFromRequest(r *http.Request) *model.AuthClaims {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return nil
	}
	return &claims
}
