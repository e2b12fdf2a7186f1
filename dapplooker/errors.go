package dapplooker

import (
	"github.com/pkg/errors"
	"github.com/polyrabbit/market-collector/http"
	"github.com/polyrabbit/market-collector/metrics"
)

// Reasons recorded in the missing-token ledger.
const (
	ReasonNoData     = "No market data returned"
	ReasonAPIFailure = "API error - success=false"
)

// APIError is returned when the API answers with "success": false.
type APIError struct {
	Body string
}

func (e *APIError) Error() string {
	return "API success=false: " + e.Body
}

// DecodeError is returned when the response body is not the expected JSON.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "JSON parsing error: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func truncate(body []byte) string {
	if len(body) > 200 {
		return string(body[:200]) + "..."
	}
	return string(body)
}

// MissingReason maps a failed market request to the reason written to the
// missing-token ledger.
func MissingReason(err error) string {
	var apiErr *APIError
	var decodeErr *DecodeError
	switch {
	case errors.As(err, &apiErr):
		return ReasonAPIFailure
	case errors.As(err, &decodeErr):
		return decodeErr.Error()
	default:
		return "Request error: " + err.Error()
	}
}

// outcome classifies err for the request counters.
func outcome(err error) string {
	var apiErr *APIError
	var decodeErr *DecodeError
	var respErr *http.ResponseError
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.As(err, &apiErr):
		return metrics.OutcomeAPIError
	case errors.As(err, &decodeErr):
		return metrics.OutcomeDecode
	case errors.As(err, &respErr):
		return metrics.OutcomeHTTPError
	default:
		return metrics.OutcomeTransport
	}
}

// ReasonKind is a bounded label for MissingReason, used in metrics.
func ReasonKind(err error) string {
	if err == nil {
		return "no_data"
	}
	return outcome(err)
}

// IsBadGateway reports whether err is an HTTP 502, the only status worth retrying.
func IsBadGateway(err error) bool {
	var respErr *http.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 502
}
