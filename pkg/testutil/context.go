package testutil

import (
	"net/http"

	"carinsurance/pkg/requestcontext"
)

// WithRequestID tags the request as the RequestID middleware would.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
