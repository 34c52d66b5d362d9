package base

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/ajitpratap0/railstream/pkg/clients"
	"github.com/ajitpratap0/railstream/pkg/metrics"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// HTTPAvailabilityStrategy checks whether an HTTP API is reachable before a
// sync starts. It runs a cheap probe request supplied by the source and maps
// well-known failure statuses to operator-readable reasons instead of letting
// the sync fail mid-run.
type HTTPAvailabilityStrategy struct {
	source string
}

// NewHTTPAvailabilityStrategy creates an availability strategy for the named
// source. The name is used for metrics labels only.
func NewHTTPAvailabilityStrategy(source string) *HTTPAvailabilityStrategy {
	return &HTTPAvailabilityStrategy{source: source}
}

// Check runs the probe and reports availability. Transport-level errors and
// server errors are treated as unavailable with the raw error as reason;
// auth and permission failures get targeted guidance.
func (s *HTTPAvailabilityStrategy) Check(ctx context.Context, log *zap.Logger, probe func(context.Context) error) (bool, string) {
	err := probe(ctx)
	if err == nil {
		metrics.AvailabilityChecks.WithLabelValues(s.source, "available").Inc()
		return true, ""
	}

	metrics.AvailabilityChecks.WithLabelValues(s.source, "unavailable").Inc()

	var statusErr *clients.StatusError
	if stderrors.As(err, &statusErr) {
		reason := s.reasonForStatus(statusErr)
		log.Warn("availability check failed",
			zap.Int("status", statusErr.StatusCode),
			zap.String("reason", reason))
		return false, reason
	}

	log.Warn("availability check failed", zap.Error(err))
	return false, fmt.Sprintf("unable to reach the API: %v", err)
}

func (s *HTTPAvailabilityStrategy) reasonForStatus(err *clients.StatusError) string {
	detail := upstreamErrorMessage(err.Body)

	switch err.StatusCode {
	case http.StatusUnauthorized:
		if detail != "" {
			return fmt.Sprintf("the API rejected the provided credentials: %s", detail)
		}
		return "the API rejected the provided credentials; verify the client id and secret key"
	case http.StatusForbidden:
		if detail != "" {
			return fmt.Sprintf("access to this stream is forbidden: %s", detail)
		}
		return "access to this stream is forbidden; check that the account plan includes it"
	case http.StatusNotFound:
		return "the requested stream endpoint does not exist for this account"
	case http.StatusTooManyRequests:
		return "the API rate limit is exhausted; retry after the limit window resets"
	default:
		if detail != "" {
			return fmt.Sprintf("the API returned status %d: %s", err.StatusCode, detail)
		}
		return fmt.Sprintf("the API returned status %d", err.StatusCode)
	}
}

// upstreamErrorMessage pulls a human-readable message out of an error
// payload. Railz nests it under error.message; other APIs use a top-level
// message field.
func upstreamErrorMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
		return msg.String()
	}
	if msg := gjson.GetBytes(body, "message"); msg.Exists() {
		return msg.String()
	}
	return ""
}
