package testutil

import (
	"net/http"
	"time"

	"deedwizard/pkg/requestcontext"
)

// WithRequestMeta stamps a request the way requestmeta.Middleware does, for
// handlers exercised without the router.
func WithRequestMeta(req *http.Request, requestID, clientFlow string) *http.Request {
	ctx := requestcontext.WithRequestID(req.Context(), requestID)
	ctx = requestcontext.WithClientFlow(ctx, clientFlow)
	ctx = requestcontext.WithTime(ctx, time.Now())
	return req.WithContext(ctx)
}
