// Package testutil holds helpers shared by handler, service and store tests.
package testutil

import (
	"context"
	"net/http"
	"time"

	"renewals/pkg/domain"
	"renewals/pkg/requestcontext"
)

// AsActor returns req carrying an authenticated actor, as the auth middleware would set it.
func AsActor(req *http.Request, empNo int64, role domain.Role) *http.Request {
	ctx := requestcontext.WithActor(req.Context(), domain.Actor{ID: domain.EmployeeID(empNo), Role: role})
	return req.WithContext(ctx)
}

// ActorContext builds a service-level context for the given actor with a fixed clock.
func ActorContext(empNo int64, role domain.Role, now time.Time) context.Context {
	ctx := requestcontext.WithActor(context.Background(), domain.Actor{ID: domain.EmployeeID(empNo), Role: role})
	ctx = requestcontext.WithRequestID(ctx, "test-request")
	return requestcontext.WithTime(ctx, now)
}
