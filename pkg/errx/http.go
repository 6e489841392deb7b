package errx

import "errors"

// HTTPErrorResponse is the body every API error is rendered as.
type HTTPErrorResponse struct {
	Error     string         `json:"error"`
	Code      string         `json:"code"`
	Type      string         `json:"type"`
	Status    int            `json:"status"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Cause     string         `json:"underlying_error,omitempty"`
}

// ToHTTPResponse converts an Error to an HTTPErrorResponse
func (e *Error) ToHTTPResponse() HTTPErrorResponse {
	resp := HTTPErrorResponse{
		Error:  e.Message,
		Code:   e.Code,
		Type:   string(e.Type),
		Status: e.HTTPStatus,
	}
	if len(e.Details) > 0 {
		resp.Details = e.Details
	}
	return resp
}

// FromError returns err as an *Error, wrapping foreign errors as internal.
func FromError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, "An unexpected error occurred", TypeInternal)
}
