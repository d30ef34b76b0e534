package api

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
)

// ParseResponse parses a Falcon API envelope
// - respBody: The raw response bytes from the API
// - resourcesTarget: Optional pointer where the "resources" field will be unmarshaled
// Returns: The envelope and any error that occurred. Errors reported inside a
// successful HTTP response are returned as *ResponseError.
func ParseResponse(statusCode int, respBody []byte, resourcesTarget interface{}) (*Response, error) {
	var envelope Response
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, errors.Wrap(err, "failed to parse API response")
	}

	if len(envelope.Errors) > 0 {
		return &envelope, &ResponseError{
			StatusCode: statusCode,
			TraceID:    envelope.Meta.TraceID,
			Errors:     envelope.Errors,
		}
	}

	if resourcesTarget != nil && len(envelope.Resources) > 0 && string(envelope.Resources) != "null" {
		if err := json.Unmarshal(envelope.Resources, resourcesTarget); err != nil {
			return &envelope, errors.Wrap(err, "failed to parse resources")
		}
	}

	return &envelope, nil
}

// ErrorPairs extracts the (code, message) pairs carried by err, if any
func ErrorPairs(err error) []Error {
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return respErr.Errors
	}
	return nil
}

// FormatAPIErrors renders each API error on its own line
func FormatAPIErrors(errs []Error) string {
	lines := make([]string, 0, len(errs))
	for _, apiErr := range errs {
		lines = append(lines, apiErr.String())
	}
	return strings.Join(lines, "\n")
}
