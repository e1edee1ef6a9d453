// Package requestmeta stamps every request with an id, a request-scoped time,
// and the caller's UI flow so logs and outbound trace headers can be
// correlated later.
package requestmeta

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"deedwizard/pkg/requestcontext"
)

const (
	// HeaderRequestID is echoed back on every response.
	HeaderRequestID = "X-Request-ID"
	// HeaderClientFlow names the UI flow that issued the request.
	HeaderClientFlow = "X-Client-Flow"
)

// maxHeaderLen bounds caller-supplied ids before they reach logs.
const maxHeaderLen = 128

// Middleware captures request id, time and client flow. A caller-supplied
// request id is kept when it is short enough; otherwise a UUID is minted.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" || len(requestID) > maxHeaderLen {
			requestID = uuid.NewString()
		}
		flow := r.Header.Get(HeaderClientFlow)
		if len(flow) > maxHeaderLen {
			flow = flow[:maxHeaderLen]
		}

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		ctx = requestcontext.WithTime(ctx, time.Now())
		ctx = requestcontext.WithClientFlow(ctx, flow)

		w.Header().Set(HeaderRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
