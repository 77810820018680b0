// Package httpclient builds the outbound HTTP clients used for the remote
// trust registry and requester callbacks.
package httpclient

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	request "credex/pkg/platform/middleware/request"
)

const RequestIDHeader = "X-Request-ID"

// New returns a standard *http.Client whose transport retries connection
// errors and 5xx responses up to retryMax times. retryMax 0 makes exactly one
// attempt. The request id of the calling context is forwarded.
func New(timeout time.Duration, retryMax int, logger *slog.Logger) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.RetryWaitMin = 50 * time.Millisecond
	rc.RetryWaitMax = 500 * time.Millisecond
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil
	if logger != nil {
		rc.Logger = logger
	}

	client := rc.StandardClient()
	client.Transport = &requestIDTransport{next: client.Transport}
	return client
}

type requestIDTransport struct {
	next http.RoundTripper
}

func (t *requestIDTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if requestID := request.GetRequestID(r.Context()); requestID != "" && r.Header.Get(RequestIDHeader) == "" {
		r = r.Clone(r.Context())
		r.Header.Set(RequestIDHeader, requestID)
	}
	return t.next.RoundTrip(r)
}
