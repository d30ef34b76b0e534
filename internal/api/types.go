package api

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Error represents an error entry returned by the Falcon API
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// String renders the error the way operators see it on the console
func (e Error) String() string {
	return fmt.Sprintf("[Error %d] %s", e.Code, e.Message)
}

// PaginationInfo contains the pagination block of a query response
type PaginationInfo struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

// Meta is the metadata block present on every Falcon response
type Meta struct {
	QueryTime  float64         `json:"query_time"`
	PoweredBy  string          `json:"powered_by,omitempty"`
	TraceID    string          `json:"trace_id,omitempty"`
	Pagination *PaginationInfo `json:"pagination,omitempty"`
}

// Response is the generic Falcon API envelope
type Response struct {
	Meta      Meta            `json:"meta"`
	Resources json.RawMessage `json:"resources"`
	Errors    []Error         `json:"errors"`
}

// ResponseError is returned when the API answers with a non-success status
// or reports errors in the envelope. Every (code, message) pair is kept.
type ResponseError struct {
	StatusCode int
	TraceID    string
	Errors     []Error
	Body       string
	Hint       string
}

// Error implements the error interface
func (e *ResponseError) Error() string {
	if len(e.Errors) == 0 {
		if e.Body != "" {
			return fmt.Sprintf("API error (HTTP %d): %s", e.StatusCode, e.Body)
		}
		return fmt.Sprintf("API error (HTTP %d)", e.StatusCode)
	}

	msgs := make([]string, 0, len(e.Errors))
	for _, apiErr := range e.Errors {
		msgs = append(msgs, apiErr.String())
	}
	return fmt.Sprintf("API error (HTTP %d): %s", e.StatusCode, strings.Join(msgs, "; "))
}
